// Package domain defines the records persisted by the bot and the message
// shapes exchanged with the chat transport. The types carry JSON (and CBOR)
// tags for the record store and GORM tags where they map to a table.
package domain

import "slices"

// DateLayout is the calendar-day format used by every daily record.
const DateLayout = "2006-01-02"

// Record kinds. Each kind is persisted as one independent record sequence.
const (
	KindFortune        = "fortune"
	KindFortuneWeights = "fortune_weights"
	KindLottery        = "lottery"
)

// FortuneRecord is one user's fortune for one group on one day.
//
// At most one record exists per (UserID, GroupID, Date); once written it is
// never modified.
type FortuneRecord struct {
	UserID      int64  `json:"uin"          cbor:"uin"`
	GroupID     int64  `json:"groupUin"     cbor:"groupUin"`
	Date        string `json:"date"         cbor:"date"`
	FortuneType string `json:"fortuneType"  cbor:"fortuneType"`
}

// Is reports whether the record belongs to the given user, group and day.
func (r FortuneRecord) Is(userID, groupID int64, date string) bool {
	return r.UserID == userID && r.GroupID == groupID && r.Date == date
}

// FortuneWeight is one category of the weighted fortune table.
type FortuneWeight struct {
	Name   string `json:"name"   cbor:"name"`
	Weight int    `json:"weight" cbor:"weight"`
}

// DefaultFortuneWeights is the table seeded on first run. Weights sum to 12.
func DefaultFortuneWeights() []FortuneWeight {
	return []FortuneWeight{
		{Name: "大吉", Weight: 1},
		{Name: "小吉", Weight: 2},
		{Name: "末吉", Weight: 3},
		{Name: "平", Weight: 3},
		{Name: "小凶", Weight: 2},
		{Name: "大凶", Weight: 1},
	}
}

// LotteryRecord is an initiator's lottery draw for one group on one day.
//
// Invariants: SelectedID is always in DrawnIDs, DrawnIDs has no duplicates,
// and RemainingRerolls never goes below zero.
type LotteryRecord struct {
	InitiatorID      int64   `json:"initiatorUin"     cbor:"initiatorUin"`
	GroupID          int64   `json:"groupUin"         cbor:"groupUin"`
	Date             string  `json:"date"             cbor:"date"`
	SelectedID       int64   `json:"selectedUin"      cbor:"selectedUin"`
	RemainingRerolls int     `json:"remainingChances" cbor:"remainingChances"`
	DrawnIDs         []int64 `json:"drawnUins"        cbor:"drawnUins"`
}

// Is reports whether the record belongs to the given initiator, group and day.
func (r LotteryRecord) Is(initiatorID, groupID int64, date string) bool {
	return r.InitiatorID == initiatorID && r.GroupID == groupID && r.Date == date
}

// HasDrawn reports whether id was already selected by this record.
func (r LotteryRecord) HasDrawn(id int64) bool {
	return slices.Contains(r.DrawnIDs, id)
}
