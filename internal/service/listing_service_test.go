package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/quota"
	"github.com/noah-isme/pazar-go-api/internal/repository"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.ListingBump{},
		&models.Category{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.ActivityLog{},
	))
	return db
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestListingService(t *testing.T, db *gorm.DB) ListingService {
	t.Helper()
	validate := newValidator()
	categories := NewCategoryService(repository.NewCategoryRepository(db), nil, time.Minute, nil, validate, zerolog.Nop())
	notifications := NewNotificationService(repository.NewNotificationRepository(db), validate, zerolog.Nop())
	return NewListingService(
		repository.NewListingRepository(db),
		repository.NewUserRepository(db),
		categories,
		repository.NewActivityLogRepository(db),
		repository.NewBumpRepository(db),
		notifications,
		nil,
		ListingThrottle{ListingLimit: 50, MonthlyLimit: 15, Location: time.UTC},
		validate,
		zerolog.Nop(),
	)
}

func createRequest() dto.ListingCreateRequest {
	return dto.ListingCreateRequest{
		Title:       "Mountain bike",
		Description: "Well kept mountain bike, barely used.",
		Price:       250,
		Category:    "bikes",
		City:        "Skopje",
	}
}

func TestListingServiceCreateEntersModeration(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "u1", Role: models.RoleUser}).Error)

	payload := createRequest()
	payload.Title = "<script>alert(1)</script>Mountain bike"

	created, err := svc.Create(context.Background(), "u1", payload)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingApproval, created.Status, "new listings always await moderation")
	require.Equal(t, "Mountain bike", created.Title, "markup is stripped")
	require.False(t, created.PostedAt.IsZero())

	var user models.User
	require.NoError(t, db.Where("external_id = ?", "u1").First(&user).Error)
	require.Equal(t, 1, user.ListingsPostedCount)
}

func TestListingServiceCreateNonceIsIdempotent(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "u1", Role: models.RoleUser}).Error)

	payload := createRequest()
	payload.ClientNonce = "nonce-1"

	first, err := svc.Create(context.Background(), "u1", payload)
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), "u1", payload)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "retried submission returns the original listing")

	var user models.User
	require.NoError(t, db.Where("external_id = ?", "u1").First(&user).Error)
	require.Equal(t, 1, user.ListingsPostedCount, "retry must not consume quota")
}

func TestListingServiceCreateEnforcesQuota(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "u1", Role: models.RoleUser, ListingsPostedCount: 50}).Error)

	_, err := svc.Create(context.Background(), "u1", createRequest())
	require.ErrorIs(t, err, quota.ErrListingLimitReached)
}

func TestListingServiceCreateValidatesTemplate(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "u1", Role: models.RoleUser}).Error)

	template := `{"type":"object","required":["fuel"],"properties":{"fuel":{"type":"string"}}}`
	require.NoError(t, db.Create(&models.Category{Name: "Cars", Slug: "cars", IsActive: true, Template: datatypes.JSON(template)}).Error)

	payload := createRequest()
	payload.Category = "cars"
	payload.Specifications = map[string]interface{}{"fuel": 12}

	_, err := svc.Create(context.Background(), "u1", payload)
	require.ErrorIs(t, err, ErrSpecificationsInvalid)

	payload.Specifications = map[string]interface{}{"fuel": "diesel"}
	_, err = svc.Create(context.Background(), "u1", payload)
	require.NoError(t, err)
}

func TestListingServiceSearchDefaultsToActive(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	now := time.Now()
	seed := []models.Listing{
		{Title: "active bike", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "bikes", City: "Skopje", Price: 100, PostedAt: now},
		{Title: "pending bike", Description: "d", Status: models.StatusPendingApproval, UserID: "u1", Category: "bikes", City: "Skopje", Price: 100, PostedAt: now},
		{Title: "active car", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "cars", City: "Bitola", Price: 5000, PostedAt: now},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	results, err := svc.Search(context.Background(), dto.ListingQuery{})
	require.NoError(t, err)
	require.Len(t, results, 2, "moderation queue is hidden by default")

	results, err = svc.Search(context.Background(), dto.ListingQuery{Category: "bikes"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "active bike", results[0].Title)

	results, err = svc.Search(context.Background(), dto.ListingQuery{City: "bitola", MinPrice: "1000"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "active car", results[0].Title)
}

func TestListingServiceSearchSkipsMalformedSpecFilters(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.Listing{Title: "bike", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "bikes", City: "Skopje", PostedAt: time.Now()}).Error)

	results, err := svc.Search(context.Background(), dto.ListingQuery{Filters: `{"broken":`})
	require.NoError(t, err, "a bad dynamic filter blob degrades, the query still runs")
	require.Len(t, results, 1)
}

func TestListingServiceRenewOwnershipAndDailyRule(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "owner", Role: models.RoleUser}).Error)

	listing := models.Listing{Title: "sofa", Description: "d", Status: models.StatusExpired, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now().Add(-30 * 24 * time.Hour)}
	require.NoError(t, db.Create(&listing).Error)

	_, err := svc.Renew(context.Background(), "intruder", listing.ID)
	require.ErrorIs(t, err, ErrListingNotOwned)

	renewed, err := svc.Renew(context.Background(), "owner", listing.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, renewed.Listing.Status)
	require.Equal(t, 14, renewed.RemainingMonthly, "one of fifteen monthly renewals spent")

	_, err = svc.Renew(context.Background(), "owner", listing.ID)
	require.ErrorIs(t, err, quota.ErrDailyRenewalLimit, "one renewal per calendar day")
}

func TestListingServiceModerationLifecycle(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	pending := models.Listing{Title: "sofa", Description: "d", Status: models.StatusPendingApproval, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now()}
	require.NoError(t, db.Create(&pending).Error)

	approved, err := svc.Approve(context.Background(), "mod", pending.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, approved.Status)

	var logs []models.ActivityLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "LISTING_APPROVED", logs[0].Action)
	require.Equal(t, "mod", logs[0].UserID)

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, "owner", notifications[0].UserID)

	// Already moderated: approve again is a no-op returning current state.
	again, err := svc.Approve(context.Background(), "mod", pending.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, again.Status)
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1, "no second audit row")

	// Absent listing: no-op, no error.
	_, err = svc.Approve(context.Background(), "mod", 9999)
	require.NoError(t, err)
}

func TestListingServiceRejectCarriesReason(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	pending := models.Listing{Title: "sofa", Description: "d", Status: models.StatusPendingApproval, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now()}
	require.NoError(t, db.Create(&pending).Error)

	rejected, err := svc.Reject(context.Background(), "mod", pending.ID, "prohibited item")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Contains(t, notifications[0].Message, "prohibited item")
}

func TestListingServiceGetByUserSearch(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	seed := []models.Listing{
		{Title: "Red bike", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "bikes", City: "Skopje", PostedAt: time.Now()},
		{Title: "Blue car", Description: "d", Status: models.StatusPendingApproval, UserID: "u1", Category: "cars", City: "Skopje", PostedAt: time.Now()},
		{Title: "Green bike", Description: "d", Status: models.StatusActive, UserID: "u2", Category: "bikes", City: "Skopje", PostedAt: time.Now()},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	mine, err := svc.GetByUser(context.Background(), "u1", "")
	require.NoError(t, err)
	require.Len(t, mine, 2, "own listings include every status")

	matched, err := svc.GetByUser(context.Background(), "u1", "BIKE")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, "Red bike", matched[0].Title)
}

func TestListingServiceRenewalStats(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	now := time.Now()
	last := now.Add(-time.Hour)
	require.NoError(t, db.Create(&models.User{
		ExternalID:          "u1",
		Role:                models.RoleUser,
		MonthlyRenewalsUsed: 3,
		LastRenewalMonth:    quota.MonthKey(now),
		LastRenewalAt:       &last,
	}).Error)

	stats, err := svc.RenewalStats(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 15, stats.MonthlyLimit)
	require.Equal(t, 3, stats.MonthlyUsed)
	require.Equal(t, 12, stats.Remaining)
	require.False(t, stats.RenewableToday, "already renewed today")
}

func TestListingServiceDeleteRequiresOwnerOrAdmin(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "owner", Role: models.RoleUser, ListingsPostedCount: 1}).Error)

	listing := models.Listing{Title: "sofa", Description: "d", Status: models.StatusActive, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now()}
	require.NoError(t, db.Create(&listing).Error)

	require.ErrorIs(t, svc.Delete(context.Background(), "intruder", models.RoleUser, listing.ID), ErrListingNotOwned)
	require.NoError(t, svc.Delete(context.Background(), "admin", models.RoleAdmin, listing.ID))
}

func TestListingServiceBumpHistory(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)
	require.NoError(t, db.Create(&models.User{ExternalID: "owner", Role: models.RoleUser}).Error)

	listing := models.Listing{Title: "sofa", Description: "d", Status: models.StatusActive, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, db.Create(&listing).Error)

	_, err := svc.Renew(context.Background(), "owner", listing.ID)
	require.NoError(t, err)

	bumps, err := svc.BumpHistory(context.Background(), "owner", 0)
	require.NoError(t, err)
	require.Len(t, bumps, 1)
	require.Equal(t, listing.ID, bumps[0].ListingID)
	require.Equal(t, "RENEW", bumps[0].Type)

	other, err := svc.BumpHistory(context.Background(), "stranger", 0)
	require.NoError(t, err)
	require.Empty(t, other, "history is scoped to the caller")
}

func TestListingServiceModerationActivityFeed(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestListingService(t, db)

	pending := models.Listing{Title: "sofa", Description: "d", Status: models.StatusPendingApproval, UserID: "owner", Category: "home", City: "Skopje", PostedAt: time.Now()}
	require.NoError(t, db.Create(&pending).Error)

	_, err := svc.Approve(context.Background(), "mod", pending.ID)
	require.NoError(t, err)

	entries, err := svc.ModerationActivity(context.Background(), "", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "LISTING_APPROVED", entries[0].Action)
	require.Equal(t, "mod", entries[0].UserID)

	byModerator, err := svc.ModerationActivity(context.Background(), "mod", "", 0)
	require.NoError(t, err)
	require.Len(t, byModerator, 1)

	rejectedOnly, err := svc.ModerationActivity(context.Background(), "", "LISTING_REJECTED", 0)
	require.NoError(t, err)
	require.Empty(t, rejectedOnly)
}
