package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipshare/models"

	"gorm.io/gorm"
)

// ClipStore persists clips. It is safe for concurrent use by the read path,
// the hit batcher and the expiry sweeper.
type ClipStore struct {
	db *gorm.DB
}

func NewClipStore(db *gorm.DB) *ClipStore {
	return &ClipStore{db: db}
}

// Insert saves a new clip. It returns models.ErrClipExists when the short code is taken.
func (s *ClipStore) Insert(ctx context.Context, clip *models.Clip) error {
	if err := s.db.WithContext(ctx).Create(clip).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", models.ErrClipExists, clip.ShortCode)
		}
		return err
	}
	return nil
}

// Get returns the clip for code, expired or not.
func (s *ClipStore) Get(ctx context.Context, code models.ShortCode) (*models.Clip, error) {
	var clip models.Clip
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&clip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrClipNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &clip, nil
}

// IncrementHits adds delta to the stored counter in a single statement, so concurrent
// increments from different callers never overwrite each other.
func (s *ClipStore) IncrementHits(ctx context.Context, code models.ShortCode, delta uint64) error {
	if delta == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&models.Clip{}).
		Where("short_code = ?", code).
		Update("hits", gorm.Expr("hits + ?", int64(delta)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrClipNotFound, code)
	}
	return nil
}

// DeleteExpired removes every clip whose expiry is at or before now and returns
// how many were removed.
func (s *ClipStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires IS NOT NULL AND expires <= ?", now.Unix()).
		Delete(&models.Clip{})
	return result.RowsAffected, result.Error
}

// Ping checks that the underlying database answers.
func (s *ClipStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *ClipStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation detects constraint failures by message; the driver's error codes
// differ between the cgo and pure-Go SQLite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}
