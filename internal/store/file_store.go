package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-group-bot/internal/keylock"
)

const (
	fileMode        = 0o600
	dirMode         = 0o755
	tempFilePattern = ".records-*.tmp"
)

// fileLocks serializes access to the same path across every FileStore in the
// process, so two stores opened on one file still never interleave.
var fileLocks = keylock.New()

// FileStore is a Store backed by a single file holding the whole sequence.
//
// Writes go to a temp file in the same directory and are renamed over the
// target, so readers never observe a partially written file.
type FileStore[T any] struct {
	path  string
	codec Codec
}

var _ Store[struct{}] = (*FileStore[struct{}])(nil)

// NewFileStore returns a store over path using codec (JSON when nil).
// The path is cleaned and made absolute so equivalent spellings share a lock.
func NewFileStore[T any](path string, codec Codec) (*FileStore[T], error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	return &FileStore[T]{path: filepath.Clean(abs), codec: codec}, nil
}

// Path returns the backing file path.
func (s *FileStore[T]) Path() string { return s.path }

func (s *FileStore[T]) Load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := fileLocks.Lock(s.path)
	defer unlock()
	return s.read()
}

func (s *FileStore[T]) Save(ctx context.Context, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := fileLocks.Lock(s.path)
	defer unlock()
	return s.write(items)
}

func (s *FileStore[T]) Append(ctx context.Context, item T) error {
	return s.Update(ctx, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}

func (s *FileStore[T]) Upsert(ctx context.Context, item T, pred Predicate[T]) error {
	return s.Update(ctx, func(items []T) ([]T, error) {
		return UpsertSlice(items, item, pred), nil
	})
}

func (s *FileStore[T]) Find(ctx context.Context, pred Predicate[T]) (T, bool, error) {
	items, err := s.Load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := FindSlice(items, pred)
	return v, ok, nil
}

func (s *FileStore[T]) Filter(ctx context.Context, pred Predicate[T]) ([]T, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FilterSlice(items, pred), nil
}

func (s *FileStore[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := fileLocks.Lock(s.path)
	defer unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.write(next)
}

// read decodes the file. Callers hold the path lock.
func (s *FileStore[T]) read() ([]T, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := s.codec.Unmarshal(data, &items); err != nil {
		log.Error().Err(err).Str("path", s.path).Str("codec", s.codec.Name()).Msg("decode record file")
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// write encodes items and atomically replaces the file. Callers hold the
// path lock.
func (s *FileStore[T]) write(items []T) error {
	if items == nil {
		items = []T{}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := s.codec.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	cleanup = false
	return nil
}
