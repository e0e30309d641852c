// Package services – FortuneService
//
// FortuneService draws at most one weighted fortune per user, group and day.
// The weight table is seeded with the default six categories on first use and
// read-only afterwards. A repeated draw on the same day returns the stored
// record instead of drawing again.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/keylock"
	"github.com/tbourn/go-group-bot/internal/store"
)

// FortuneService owns the fortune record and weight sequences.
type FortuneService struct {
	// Records holds one FortuneRecord per user, group and day.
	Records store.Store[domain.FortuneRecord]
	// Weights holds the category table.
	Weights store.Store[domain.FortuneWeight]

	Rand     Rand
	Calendar Calendar
	// Locks serializes draws for the same user and group. It may be shared
	// with other services; keys are prefixed with the record kind.
	Locks *keylock.Map
}

// NewFortuneService constructs a FortuneService with the process random
// source, the local calendar and a private lock table.
func NewFortuneService(records store.Store[domain.FortuneRecord], weights store.Store[domain.FortuneWeight]) *FortuneService {
	return &FortuneService{
		Records: records,
		Weights: weights,
		Rand:    DefaultRand(),
		Locks:   keylock.New(),
	}
}

// Initialize seeds the default weight table when none is stored.
func (s *FortuneService) Initialize(ctx context.Context) error {
	return s.Weights.Update(ctx, func(items []domain.FortuneWeight) ([]domain.FortuneWeight, error) {
		if len(items) > 0 {
			return nil, nil
		}
		return domain.DefaultFortuneWeights(), nil
	})
}

// WeightTable returns the stored table, seeding it first if needed.
func (s *FortuneService) WeightTable(ctx context.Context) ([]domain.FortuneWeight, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.Weights.Load(ctx)
}

// Today returns the user's fortune for today in group, if any.
func (s *FortuneService) Today(ctx context.Context, userID, groupID int64) (domain.FortuneRecord, bool, error) {
	date := s.Calendar.Today()
	return s.Records.Find(ctx, func(r domain.FortuneRecord) bool {
		return r.Is(userID, groupID, date)
	})
}

// Draw returns today's fortune for the user, drawing and persisting one when
// none exists. drawn is false when an earlier record was returned.
func (s *FortuneService) Draw(ctx context.Context, userID, groupID int64) (rec domain.FortuneRecord, drawn bool, err error) {
	tr := otel.Tracer("services/FortuneService")
	ctx, span := tr.Start(ctx, "Draw",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("group.id", groupID),
		),
	)
	defer func() {
		outcome := outcomeExisting
		switch {
		case err != nil:
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case drawn:
			outcome = outcomeDrawn
		}
		span.SetAttributes(attribute.String("draw.outcome", outcome))
		drawsTotal.WithLabelValues(domain.KindFortune, outcome).Inc()
		span.End()
	}()

	unlock := s.Locks.Lock(lockKey(domain.KindFortune, groupID, userID))
	defer unlock()

	date := s.Calendar.Today()
	existing, ok, err := s.Records.Find(ctx, func(r domain.FortuneRecord) bool {
		return r.Is(userID, groupID, date)
	})
	if err != nil {
		return domain.FortuneRecord{}, false, err
	}
	if ok {
		return existing, false, nil
	}

	weights, err := s.WeightTable(ctx)
	if err != nil {
		return domain.FortuneRecord{}, false, err
	}
	name, err := PickWeighted(weights, s.Rand)
	if err != nil {
		return domain.FortuneRecord{}, false, err
	}

	rec = domain.FortuneRecord{UserID: userID, GroupID: groupID, Date: date, FortuneType: name}
	if err := s.Records.Append(ctx, rec); err != nil {
		return domain.FortuneRecord{}, false, err
	}
	return rec, true, nil
}

// Day returns the current draw day.
func (s *FortuneService) Day() string { return s.Calendar.Today() }

// ListDay returns every fortune drawn in group on date, in draw order.
// A blank date means Day().
func (s *FortuneService) ListDay(ctx context.Context, groupID int64, date string) ([]domain.FortuneRecord, error) {
	if date == "" {
		date = s.Calendar.Today()
	}
	return s.Records.Filter(ctx, func(r domain.FortuneRecord) bool {
		return r.GroupID == groupID && r.Date == date
	})
}
