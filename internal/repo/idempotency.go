package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// ErrDuplicate indicates that an event is already stored under the key.
var ErrDuplicate = errors.New("duplicate")

// DefaultEventTTL bounds how long a processed event can be replayed.
const DefaultEventTTL = 24 * time.Hour

// GetProcessedEvent returns an unexpired event or ErrNotFound.
func GetProcessedEvent(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.ProcessedEvent, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var ev domain.ProcessedEvent
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// EventSeen reports whether an unexpired event is stored under key.
func EventSeen(ctx context.Context, db *gorm.DB, key string, now time.Time) (bool, error) {
	_, err := GetProcessedEvent(ctx, db, key, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// SaveProcessedEvent stores ev for ttl (DefaultEventTTL when <= 0). An
// expired row under the same key is replaced; a live one yields ErrDuplicate.
func SaveProcessedEvent(ctx context.Context, db *gorm.DB, ev *domain.ProcessedEvent, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.ExpiresAt = now.Add(ttl)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ? AND expires_at <= ?", ev.Key, now).
			Delete(&domain.ProcessedEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Create(ev).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// PurgeExpiredEvents deletes events expired at now and returns the count.
func PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation also matches the plain-text errors glebarez/sqlite
// returns for UNIQUE and PRIMARY KEY conflicts.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
