package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// UserRepository resolves marketplace accounts by their identity-provider
// id. Quota counters live on the user row but are moved by the listing
// repository inside its transactions.
type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (models.User, error)
	GetManyByExternalID(ctx context.Context, externalIDs []string) (map[string]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// GetManyByExternalID batch-loads users keyed by external id, used when
// decorating conversation lists with the counterpart's profile.
func (r *userRepository) GetManyByExternalID(ctx context.Context, externalIDs []string) (map[string]models.User, error) {
	if len(externalIDs) == 0 {
		return map[string]models.User{}, nil
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("external_id IN ?", externalIDs).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ExternalID] = user
	}
	return byID, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
