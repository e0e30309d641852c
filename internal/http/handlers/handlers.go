// Handler wiring.
//
// Handlers are transport-thin: they validate input, call the bot and its
// services through the contracts below, and translate results into HTTP
// responses.
package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/domain"
)

//
// Service contracts (context-aware)
//

// Dispatcher runs one inbound message through the bot pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, in domain.Inbound) bot.Outcome
}

// EventLog stores dispatched events so redeliveries can be replayed.
type EventLog interface {
	// Get returns the unexpired event stored under key or an error
	// satisfying IsNotFound.
	Get(ctx context.Context, key string, now time.Time) (*domain.ProcessedEvent, error)
	// Save stores ev; a concurrent save of the same key yields an error
	// satisfying IsDuplicate.
	Save(ctx context.Context, ev *domain.ProcessedEvent) error
	IsNotFound(err error) bool
	IsDuplicate(err error) bool
}

// Catalog lists what the bot answers to. A Dispatcher that also implements
// Catalog backs GET /commands.
type Catalog interface {
	Commands() []bot.Command
	Middlewares() []bot.Middleware
}

// RosterStore reads and maintains group rosters.
type RosterStore interface {
	ListMembers(ctx context.Context, groupID int64) ([]domain.Member, error)
	// ReplaceMembers swaps the whole roster of a group.
	ReplaceMembers(ctx context.Context, groupID int64, members []domain.Member) error
	GetMember(ctx context.Context, groupID, userID int64) (*domain.Member, error)
	// UpsertMember adds a member who joined or refreshes their names.
	UpsertMember(ctx context.Context, m domain.Member) error
	// RemoveMember drops a member who left; missing members satisfy
	// IsNotFound.
	RemoveMember(ctx context.Context, groupID, userID int64) error
	IsNotFound(err error) bool
}

// FortuneReader exposes fortune history and the weight table.
type FortuneReader interface {
	ListDay(ctx context.Context, groupID int64, date string) ([]domain.FortuneRecord, error)
	WeightTable(ctx context.Context) ([]domain.FortuneWeight, error)
	// Day is the current draw day, the default history date.
	Day() string
}

// LotteryReader exposes lottery history.
type LotteryReader interface {
	ListDay(ctx context.Context, groupID int64, date string) ([]domain.LotteryRecord, error)
	Day() string
}

// Handlers groups the HTTP endpoints. Every dependency is an interface so
// tests can stub what they do not exercise.
type Handlers struct {
	bot     Dispatcher
	catalog Catalog
	events  EventLog
	roster  RosterStore
	fortune FortuneReader
	lottery LotteryReader
}

// New constructs a Handlers instance. events may be nil, which disables
// de-duplication.
func New(d Dispatcher, events EventLog, roster RosterStore, fortune FortuneReader, lottery LotteryReader) *Handlers {
	cat, _ := d.(Catalog)
	return &Handlers{bot: d, catalog: cat, events: events, roster: roster, fortune: fortune, lottery: lottery}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// groupID parses the :id path parameter as a positive group id.
func groupID(c *gin.Context) (int64, bool) {
	return positiveParam(c, "id")
}

func positiveParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
