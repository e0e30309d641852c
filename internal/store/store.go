// Package store defines the generic record store used for daily draw state
// and its file-backed implementation.
//
// A store holds an ordered sequence of records of one type. There is no
// index and no uniqueness at this layer: callers keep their own invariants by
// looking records up with a predicate and replacing them with Upsert. Every
// operation loads the whole sequence; every mutation rewrites it.
package store

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a persisted sequence cannot be decoded.
var ErrCorrupt = errors.New("record store: corrupt data")

// Predicate selects records.
type Predicate[T any] func(T) bool

// Store is an append/replace/find-by-predicate store over one record kind.
//
// Mutations are serialized per underlying file (or table partition) so
// concurrent writers never lose each other's updates. Load on an absent
// backing file yields an empty sequence.
type Store[T any] interface {
	// Load returns the full sequence.
	Load(ctx context.Context) ([]T, error)
	// Save replaces the full sequence.
	Save(ctx context.Context, items []T) error
	// Append adds item at the end.
	Append(ctx context.Context, item T) error
	// Upsert replaces the first element matching pred, keeping its position,
	// or appends item when none match.
	Upsert(ctx context.Context, item T, pred Predicate[T]) error
	// Find returns the first element matching pred.
	Find(ctx context.Context, pred Predicate[T]) (T, bool, error)
	// Filter returns every element matching pred, in order.
	Filter(ctx context.Context, pred Predicate[T]) ([]T, error)
	// Update loads the sequence, passes it to fn and saves what fn returns,
	// all inside the store's write critical section. If fn returns an error
	// nothing is saved. A nil slice from fn with a nil error skips the save.
	Update(ctx context.Context, fn func(items []T) ([]T, error)) error
}

// The slice helpers below carry the in-memory half of Upsert, Find and
// Filter so every backend shares the same semantics.

// UpsertSlice replaces the first element of items matching pred, or appends.
func UpsertSlice[T any](items []T, item T, pred Predicate[T]) []T {
	for i := range items {
		if pred(items[i]) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// FindSlice returns the first element of items matching pred.
func FindSlice[T any](items []T, pred Predicate[T]) (T, bool) {
	for _, it := range items {
		if pred(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// FilterSlice returns every element of items matching pred.
func FilterSlice[T any](items []T, pred Predicate[T]) []T {
	out := make([]T, 0)
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}
