// Package repo implements the SQL persistence layer backed by GORM. This file
// provides repository functions for the group roster.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. Missing members surface as ErrNotFound.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ListMembers returns a group's roster ordered by user id.
func ListMembers(ctx context.Context, db *gorm.DB, groupID int64) ([]domain.Member, error) {
	var out []domain.Member
	err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Find(&out).Error
	return out, err
}

// GetMember fetches one roster entry.
func GetMember(ctx context.Context, db *gorm.DB, groupID, userID int64) (*domain.Member, error) {
	var m domain.Member
	if err := db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMember inserts or refreshes a roster entry.
func UpsertMember(ctx context.Context, db *gorm.DB, m domain.Member) error {
	if m.Role == "" {
		m.Role = "member"
	}
	m.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"nickname", "card", "role", "updated_at"}),
		}).
		Create(&m).Error
}

// ReplaceMembers swaps a group's whole roster in one transaction. Group ids
// on the given members are overwritten with groupID.
func ReplaceMembers(ctx context.Context, db *gorm.DB, groupID int64, members []domain.Member) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&domain.Member{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range members {
			members[i].GroupID = groupID
			members[i].UpdatedAt = now
			if members[i].Role == "" {
				members[i].Role = "member"
			}
		}
		if len(members) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(members, 200).Error
	})
}

// RemoveMember deletes a roster entry. It returns ErrNotFound when the
// member was not present.
func RemoveMember(ctx context.Context, db *gorm.DB, groupID, userID int64) error {
	res := db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&domain.Member{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberSource adapts the roster table to the roster cache's source contract.
type MemberSource struct {
	DB *gorm.DB
}

// NewMemberSource returns a source reading from db.
func NewMemberSource(db *gorm.DB) *MemberSource { return &MemberSource{DB: db} }

// FetchMembers returns the stored roster for a group.
func (s *MemberSource) FetchMembers(ctx context.Context, groupID int64) ([]domain.Member, error) {
	return ListMembers(ctx, s.DB, groupID)
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
