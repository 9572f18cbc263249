package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/quota"
)

// ListingRepository persists listings and the quota counters that move with
// them. Creation and renewal run inside single transactions so the counter
// and the listing never diverge.
type ListingRepository interface {
	ListByStatus(ctx context.Context, status string) ([]models.Listing, error)
	GetByID(ctx context.Context, id uint) (models.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]models.Listing, error)
	FindByClientNonce(ctx context.Context, userID, nonce string) (models.Listing, error)
	CreateWithQuota(ctx context.Context, listing *models.Listing, gate func(models.User) error) error
	Renew(ctx context.Context, listingID uint, now time.Time, gate func(models.Listing, models.User) (quota.RenewalDecision, error)) (models.Listing, error)
	UpdateStatus(ctx context.Context, id uint, status string) (models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	Delete(ctx context.Context, id uint) error
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository constructs a GORM-backed listing repository.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// ListByStatus reads the candidate set for the query pipeline, ordered by
// effective recency. The ALL sentinel reads every listing; this is the only
// stage of the pipeline allowed an index seek.
func (r *listingRepository) ListByStatus(ctx context.Context, status string) ([]models.Listing, error) {
	query := r.db.WithContext(ctx).Order("posted_at DESC")
	if !strings.EqualFold(status, models.StatusAll) {
		query = query.Where("status = ?", status)
	}

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

func (r *listingRepository) ListByUser(ctx context.Context, userID string) ([]models.Listing, error) {
	var listings []models.Listing
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("posted_at DESC").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) FindByClientNonce(ctx context.Context, userID, nonce string) (models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND client_nonce = ?", userID, nonce).
		First(&listing).Error
	if err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

// CreateWithQuota inserts the listing and increments the owner's posted
// counter in one transaction. The gate callback sees the current user row
// and decides whether the insert may proceed; any error rolls both back.
func (r *listingRepository) CreateWithQuota(ctx context.Context, listing *models.Listing, gate func(models.User) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("external_id = ?", listing.UserID).
			First(&user).Error; err != nil {
			return err
		}

		if err := gate(user); err != nil {
			return err
		}

		if err := tx.Create(listing).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			UpdateColumn("listings_posted_count", gorm.Expr("listings_posted_count + 1")).
			Error
	})
}

// Renew rewrites the listing's effective posting time and persists the
// renewal counters decided by the gate, all in one transaction. A pending
// listing stays pending; anything else is forced back to active.
func (r *listingRepository) Renew(ctx context.Context, listingID uint, now time.Time, gate func(models.Listing, models.User) (quota.RenewalDecision, error)) (models.Listing, error) {
	var renewed models.Listing

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.First(&listing, listingID).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("external_id = ?", listing.UserID).
			First(&user).Error; err != nil {
			return err
		}

		decision, err := gate(listing, user)
		if err != nil {
			return err
		}

		status := models.StatusActive
		if listing.Status == models.StatusPendingApproval {
			status = models.StatusPendingApproval
		}

		if err := tx.Model(&listing).Updates(map[string]interface{}{
			"posted_at": now,
			"status":    status,
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"monthly_renewals_used": decision.MonthlyUsed + 1,
			"last_renewal_month":    decision.MonthKey,
			"last_renewal_at":       now,
		}).Error; err != nil {
			return err
		}

		bump := models.ListingBump{
			UserID:    listing.UserID,
			ListingID: listing.ID,
			Type:      "RENEW",
			BumpedAt:  now,
		}
		if err := tx.Create(&bump).Error; err != nil {
			return err
		}

		listing.PostedAt = now
		listing.Status = status
		renewed = listing
		return nil
	})
	if err != nil {
		return models.Listing{}, err
	}

	return renewed, nil
}

func (r *listingRepository) UpdateStatus(ctx context.Context, id uint, status string) (models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&listing, id).Error; err != nil {
			return err
		}
		return tx.Model(&listing).UpdateColumn("status", status).Error
	})
	if err != nil {
		return models.Listing{}, err
	}

	listing.Status = status
	return listing, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

// Delete removes the listing and gives the quota slot back to its owner.
func (r *listingRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.First(&listing, id).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Listing{}, id).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("external_id = ? AND listings_posted_count > 0", listing.UserID).
			UpdateColumn("listings_posted_count", gorm.Expr("listings_posted_count - 1")).
			Error
	})
}
