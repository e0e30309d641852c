package domain

import "time"

// Member is a cached group roster entry. The roster is keyed by
// (group_id, user_id) and refreshed wholesale or per member.
type Member struct {
	GroupID   int64     `json:"group_id"  gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `json:"user_id"   gorm:"primaryKey;autoIncrement:false"`
	Nickname  string    `json:"nickname"  gorm:"type:varchar(128);not null;default:''"`
	Card      string    `json:"card,omitempty" gorm:"type:varchar(128);not null;default:''"`
	Role      string    `json:"role,omitempty" gorm:"type:varchar(16);not null;default:'member'"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (Member) TableName() string { return "group_members" }

// DisplayName prefers the group card over the account nickname.
func (m Member) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

// StoredRecord is one element of a record sequence in the SQL-backed store.
// Payload holds the JSON encoding of the element; Seq is its position.
type StoredRecord struct {
	Kind    string `gorm:"type:varchar(64);primaryKey"`
	Seq     int    `gorm:"primaryKey;autoIncrement:false"`
	Payload []byte `gorm:"type:blob;not null"`
}

// TableName implements the GORM tabler interface.
func (StoredRecord) TableName() string { return "records" }
