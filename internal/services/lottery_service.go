// Package services – LotteryService
//
// LotteryService picks one group member for an initiator per day and allows a
// bounded number of rerolls. Each reroll excludes the initiator and everyone
// already drawn that day, consumes one chance and replaces the day's record
// in place. Preconditions are checked in order: missing record, exhausted
// chances, empty candidate pool. Only a successful reroll consumes a chance.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/keylock"
	"github.com/tbourn/go-group-bot/internal/store"
)

// DefaultLotteryChances is the number of selections per day, the first draw
// included.
const DefaultLotteryChances = 3

// RerollReason explains why a reroll did not happen.
type RerollReason string

const (
	// ReasonExhausted means no reroll chances are left today.
	ReasonExhausted RerollReason = "exhausted"
	// ReasonNoCandidates means every other member was already drawn today.
	ReasonNoCandidates RerollReason = "no_candidates"
)

// RerollResult is the outcome of a reroll attempt that found today's record.
// Record is the updated record on success and the unchanged one otherwise.
type RerollResult struct {
	Success bool
	Record  domain.LotteryRecord
	Reason  RerollReason
}

// LotteryService owns the lottery record sequence.
type LotteryService struct {
	Records store.Store[domain.LotteryRecord]

	// Chances is the number of selections per day including the first
	// draw; values below 1 are treated as 1.
	Chances int

	Rand     Rand
	Calendar Calendar
	Locks    *keylock.Map
}

// NewLotteryService constructs a LotteryService with DefaultLotteryChances.
func NewLotteryService(records store.Store[domain.LotteryRecord]) *LotteryService {
	return &LotteryService{
		Records: records,
		Chances: DefaultLotteryChances,
		Rand:    DefaultRand(),
		Locks:   keylock.New(),
	}
}

func (s *LotteryService) initialRerolls() int {
	if s.Chances < 1 {
		return 0
	}
	return s.Chances - 1
}

func (s *LotteryService) find(ctx context.Context, initiatorID, groupID int64, date string) (domain.LotteryRecord, bool, error) {
	return s.Records.Find(ctx, func(r domain.LotteryRecord) bool {
		return r.Is(initiatorID, groupID, date)
	})
}

// Today returns the initiator's lottery record for today in group, if any.
func (s *LotteryService) Today(ctx context.Context, initiatorID, groupID int64) (domain.LotteryRecord, bool, error) {
	return s.find(ctx, initiatorID, groupID, s.Calendar.Today())
}

// Draw returns today's record for the initiator, selecting a member other
// than the initiator when none exists yet. drawn is false when an earlier
// record was returned. It fails with ErrNoCandidates when memberIDs holds no
// one but the initiator.
func (s *LotteryService) Draw(ctx context.Context, initiatorID, groupID int64, memberIDs []int64) (rec domain.LotteryRecord, drawn bool, err error) {
	tr := otel.Tracer("services/LotteryService")
	ctx, span := tr.Start(ctx, "Draw",
		trace.WithAttributes(
			attribute.Int64("user.id", initiatorID),
			attribute.Int64("group.id", groupID),
			attribute.Int("group.members", len(memberIDs)),
		),
	)
	defer func() {
		outcome := outcomeExisting
		switch {
		case errors.Is(err, ErrNoCandidates):
			outcome = outcomeNoCandidates
		case err != nil:
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case drawn:
			outcome = outcomeDrawn
		}
		span.SetAttributes(attribute.String("draw.outcome", outcome))
		drawsTotal.WithLabelValues(domain.KindLottery, outcome).Inc()
		span.End()
	}()

	unlock := s.Locks.Lock(lockKey(domain.KindLottery, groupID, initiatorID))
	defer unlock()

	date := s.Calendar.Today()
	existing, ok, err := s.find(ctx, initiatorID, groupID, date)
	if err != nil {
		return domain.LotteryRecord{}, false, err
	}
	if ok {
		return existing, false, nil
	}

	pool := candidates(memberIDs, initiatorID, nil)
	if len(pool) == 0 {
		return domain.LotteryRecord{}, false, ErrNoCandidates
	}
	selected := pool[s.Rand.IntN(len(pool))]

	rec = domain.LotteryRecord{
		InitiatorID:      initiatorID,
		GroupID:          groupID,
		Date:             date,
		SelectedID:       selected,
		RemainingRerolls: s.initialRerolls(),
		DrawnIDs:         []int64{selected},
	}
	if err := s.Records.Append(ctx, rec); err != nil {
		return domain.LotteryRecord{}, false, err
	}
	return rec, true, nil
}

// Reroll replaces today's selection with a member not drawn yet. It fails
// with ErrNoRecord when the initiator has not drawn today; exhausted chances
// and an empty pool are reported in the result and leave the record as is.
func (s *LotteryService) Reroll(ctx context.Context, initiatorID, groupID int64, memberIDs []int64) (res RerollResult, err error) {
	tr := otel.Tracer("services/LotteryService")
	ctx, span := tr.Start(ctx, "Reroll",
		trace.WithAttributes(
			attribute.Int64("user.id", initiatorID),
			attribute.Int64("group.id", groupID),
			attribute.Int("group.members", len(memberIDs)),
		),
	)
	defer func() {
		outcome := outcomeRerolled
		switch {
		case errors.Is(err, ErrNoRecord):
			outcome = outcomeNoRecord
		case err != nil:
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Reason == ReasonExhausted:
			outcome = outcomeExhausted
		case res.Reason == ReasonNoCandidates:
			outcome = outcomeNoCandidates
		}
		span.SetAttributes(attribute.String("draw.outcome", outcome))
		drawsTotal.WithLabelValues(domain.KindLottery, outcome).Inc()
		span.End()
	}()

	unlock := s.Locks.Lock(lockKey(domain.KindLottery, groupID, initiatorID))
	defer unlock()

	date := s.Calendar.Today()
	current, ok, err := s.find(ctx, initiatorID, groupID, date)
	if err != nil {
		return RerollResult{}, err
	}
	if !ok {
		return RerollResult{}, ErrNoRecord
	}
	if current.RemainingRerolls <= 0 {
		return RerollResult{Record: current, Reason: ReasonExhausted}, nil
	}

	pool := candidates(memberIDs, initiatorID, current.DrawnIDs)
	if len(pool) == 0 {
		return RerollResult{Record: current, Reason: ReasonNoCandidates}, nil
	}
	selected := pool[s.Rand.IntN(len(pool))]

	next := current
	next.SelectedID = selected
	next.RemainingRerolls = current.RemainingRerolls - 1
	next.DrawnIDs = append(append(make([]int64, 0, len(current.DrawnIDs)+1), current.DrawnIDs...), selected)

	err = s.Records.Upsert(ctx, next, func(r domain.LotteryRecord) bool {
		return r.Is(initiatorID, groupID, date)
	})
	if err != nil {
		return RerollResult{}, err
	}
	return RerollResult{Success: true, Record: next}, nil
}

// Day returns the current draw day.
func (s *LotteryService) Day() string { return s.Calendar.Today() }

// ListDay returns every lottery record of group on date, in draw order.
// A blank date means Day().
func (s *LotteryService) ListDay(ctx context.Context, groupID int64, date string) ([]domain.LotteryRecord, error) {
	if date == "" {
		date = s.Calendar.Today()
	}
	return s.Records.Filter(ctx, func(r domain.LotteryRecord) bool {
		return r.GroupID == groupID && r.Date == date
	})
}

// candidates returns memberIDs without the initiator, the excluded ids and
// duplicates, keeping first-seen order.
func candidates(memberIDs []int64, initiatorID int64, excluded []int64) []int64 {
	skip := make(map[int64]struct{}, len(excluded)+1)
	skip[initiatorID] = struct{}{}
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := skip[id]; ok {
			continue
		}
		skip[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
