package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// BumpRepository reads renewal history. Rows are written by the listing
// repository inside the renewal transaction.
type BumpRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ListingBump, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

type bumpRepository struct {
	db *gorm.DB
}

// NewBumpRepository constructs a GORM-backed bump repository.
func NewBumpRepository(db *gorm.DB) BumpRepository {
	return &bumpRepository{db: db}
}

func (r *bumpRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ListingBump, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var bumps []models.ListingBump
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("bumped_at DESC").
		Limit(limit).
		Find(&bumps).Error
	if err != nil {
		return nil, err
	}
	return bumps, nil
}

func (r *bumpRepository) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ListingBump{}).
		Where("user_id = ? AND bumped_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
