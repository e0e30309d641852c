// Package repo implements the SQL persistence layer backed by GORM. This file
// provides RecordStore, a store.Store over the records table.
//
// Each record kind is one ordered sequence: rows share a Kind and are ordered
// by Seq. A mutation loads the sequence, applies the change in memory and
// rewrites the kind's rows inside a single transaction, so the SQL backend
// keeps the same whole-sequence semantics as the file backend.
package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/keylock"
	"github.com/tbourn/go-group-bot/internal/store"
)

// recordLocks serializes writers of the same kind inside this process.
// SQLite serializes writers across processes on its own.
var recordLocks = keylock.New()

// RecordStore persists one record kind in the records table.
type RecordStore[T any] struct {
	db    *gorm.DB
	kind  string
	codec store.Codec
}

var _ store.Store[struct{}] = (*RecordStore[struct{}])(nil)

// NewRecordStore returns a store for kind. Payloads are encoded with codec
// (JSON when nil).
func NewRecordStore[T any](db *gorm.DB, kind string, codec store.Codec) *RecordStore[T] {
	if codec == nil {
		codec = store.JSONCodec{}
	}
	return &RecordStore[T]{db: db, kind: kind, codec: codec}
}

// Kind returns the partition this store reads and writes.
func (s *RecordStore[T]) Kind() string { return s.kind }

func (s *RecordStore[T]) Load(ctx context.Context) ([]T, error) {
	return s.load(s.db.WithContext(ctx))
}

func (s *RecordStore[T]) Save(ctx context.Context, items []T) error {
	return s.Update(ctx, func([]T) ([]T, error) {
		if items == nil {
			return []T{}, nil
		}
		return items, nil
	})
}

func (s *RecordStore[T]) Append(ctx context.Context, item T) error {
	return s.Update(ctx, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}

func (s *RecordStore[T]) Upsert(ctx context.Context, item T, pred store.Predicate[T]) error {
	return s.Update(ctx, func(items []T) ([]T, error) {
		return store.UpsertSlice(items, item, pred), nil
	})
}

func (s *RecordStore[T]) Find(ctx context.Context, pred store.Predicate[T]) (T, bool, error) {
	items, err := s.Load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := store.FindSlice(items, pred)
	return v, ok, nil
}

func (s *RecordStore[T]) Filter(ctx context.Context, pred store.Predicate[T]) ([]T, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return store.FilterSlice(items, pred), nil
}

func (s *RecordStore[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := recordLocks.Lock(s.kind)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.load(tx)
		if err != nil {
			return err
		}
		next, err := fn(items)
		if err != nil || next == nil {
			return err
		}
		return s.replace(tx, next)
	})
}

func (s *RecordStore[T]) load(db *gorm.DB) ([]T, error) {
	var rows []domain.StoredRecord
	if err := db.Where("kind = ?", s.kind).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := s.codec.Unmarshal(r.Payload, &v); err != nil {
			return nil, fmt.Errorf("%w: %s#%d: %v", store.ErrCorrupt, s.kind, r.Seq, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *RecordStore[T]) replace(tx *gorm.DB, items []T) error {
	if err := tx.Where("kind = ?", s.kind).Delete(&domain.StoredRecord{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]domain.StoredRecord, 0, len(items))
	for i, it := range items {
		payload, err := s.codec.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode %s#%d: %w", s.kind, i, err)
		}
		rows = append(rows, domain.StoredRecord{Kind: s.kind, Seq: i, Payload: payload})
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 200).Error
}
