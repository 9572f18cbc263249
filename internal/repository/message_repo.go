package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// MessageRepository persists individual messages. Threads are scoped by
// the participant pair plus the listing; a nil listing id scopes the
// general (support) thread.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListThread(ctx context.Context, listingID *uint, userA, userB string, limit int) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, listingID *uint, senderID, readerID string) (int64, error)
	CountRecentBySender(ctx context.Context, senderID string, since time.Time) (int64, error)
	CountUnreadForReceiver(ctx context.Context, receiverID string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a GORM-backed message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListThread returns the thread between two users in chronological order.
// Both send directions are included; the listing scope distinguishes
// threads between the same pair about different listings.
func (r *messageRepository) ListThread(ctx context.Context, listingID *uint, userA, userB string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA)
	query = scopeListing(query, listingID)

	// Fetch the newest slice first, then flip to chronological order.
	var messages []models.Message
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkThreadRead flips every unread message sent by senderID to readerID
// within the thread scope and reports how many rows changed.
func (r *messageRepository) MarkThreadRead(ctx context.Context, listingID *uint, senderID, readerID string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read = ?", senderID, readerID, false)
	query = scopeListing(query, listingID)

	result := query.UpdateColumn("read", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountRecentBySender counts messages the user sent since the given
// instant, feeding the per-sender rate limit.
func (r *messageRepository) CountRecentBySender(ctx context.Context, senderID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND created_at >= ?", senderID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) CountUnreadForReceiver(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND read = ?", receiverID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func scopeListing(query *gorm.DB, listingID *uint) *gorm.DB {
	if listingID == nil {
		return query.Where("listing_id IS NULL")
	}
	return query.Where("listing_id = ?", *listingID)
}
