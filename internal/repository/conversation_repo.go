package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// SortPair returns the two participant ids in lexicographic order. Both
// directions of a conversation resolve to the same canonical pair.
func SortPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ConversationRepository persists conversation threads. A listing
// conversation is unique per (listing, unordered participant pair); a
// support conversation is unique per (type, unordered participant pair).
type ConversationRepository interface {
	GetByID(ctx context.Context, id uint) (models.Conversation, error)
	FindForListing(ctx context.Context, listingID uint, userA, userB string) (models.Conversation, error)
	FindByTypeAndPair(ctx context.Context, convType, userA, userB string) (models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	Update(ctx context.Context, conversation *models.Conversation) error
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a GORM-backed conversation repository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) FindForListing(ctx context.Context, listingID uint, userA, userB string) (models.Conversation, error) {
	low, high := SortPair(userA, userB)

	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND participant_low = ? AND participant_high = ?", listingID, low, high).
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) FindByTypeAndPair(ctx context.Context, convType, userA, userB string) (models.Conversation, error) {
	low, high := SortPair(userA, userB)

	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("type = ? AND participant_low = ? AND participant_high = ?", convType, low, high).
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	conversation.ParticipantLow, conversation.ParticipantHigh = SortPair(conversation.BuyerID, conversation.SellerID)
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *conversationRepository) Update(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Save(conversation).Error
}

// ListForUser returns every conversation the user participates in, most
// recently active first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
