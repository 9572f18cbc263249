package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/config"
	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/handler"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/repository"
	"github.com/noah-isme/pazar-go-api/internal/router"
	"github.com/noah-isme/pazar-go-api/internal/service"
)

// setupApp wires the full HTTP stack over an in-memory database. The JWT
// middleware is replaced with one that trusts X-Test-User and X-Test-Role
// headers so tests can act as different callers.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Listing{},
		&models.ListingBump{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, validate, logger)
	categoryService := service.NewCategoryService(categoryRepo, nil, time.Minute, nil, validate, logger)
	listingService := service.NewListingService(
		listingRepo, userRepo, categoryService, activityRepo,
		repository.NewBumpRepository(db), notificationService,
		nil, service.ListingThrottle{}, validate, logger,
	)
	messageService := service.NewMessageService(
		messageRepo, conversationRepo, listingRepo, userRepo, notificationService,
		nil, service.MessageThrottle{}, false, validate, logger,
	)

	app := fiber.New()
	router.Register(app, config.Config{
		AppName:           "Test",
		MessageRateLimit:  100,
		MessageRateWindow: time.Minute,
	}, router.Dependencies{
		ListingHandler:      handler.NewListingHandler(listingService, logger),
		CategoryHandler:     handler.NewCategoryHandler(categoryService, logger),
		MessageHandler:      handler.NewMessageHandler(messageService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if user := c.Get("X-Test-User"); user != "" {
				c.Locals("user_id", user)
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", strings.ToUpper(role))
			}
			return c.Next()
		},
	})

	return app, db
}

func seedAccount(t *testing.T, db *gorm.DB, externalID, role string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ExternalID: externalID,
		Name:       "Account " + externalID,
		Role:       role,
	}).Error)
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func asUser(req *http.Request, userID, role string) *http.Request {
	req.Header.Set("X-Test-User", userID)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func validCreatePayload() dto.ListingCreateRequest {
	return dto.ListingCreateRequest{
		Title:       "Mountain bike, barely used",
		Description: "Full suspension, serviced this spring.",
		Price:       350,
		Category:    "vehicles",
		SubCategory: "bicycles",
		City:        "Skopje",
	}
}

func TestListingCreateEntersModeration(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "seller-1", models.RoleUser)

	resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/listings", validCreatePayload()), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool                `json:"success"`
		Data    dto.ListingResponse `json:"data"`
		Message string              `json:"message"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.NotZero(t, created.Data.ID)
	require.Equal(t, models.StatusPendingApproval, created.Data.Status)

	// The pending listing is invisible to the public search.
	searchResp, err := app.Test(httptest.NewRequest("GET", "/api/listings", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, searchResp.StatusCode)

	var search struct {
		Data []dto.ListingResponse `json:"data"`
	}
	decodeResponse(t, searchResp, &search)
	require.Empty(t, search.Data)
}

func TestListingCreateRejectsInvalidPayload(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "seller-1", models.RoleUser)

	payload := validCreatePayload()
	payload.Title = "no"

	resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/listings", payload), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestModerationApprovePublishesListing(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "seller-1", models.RoleUser)
	seedAccount(t, db, "mod-1", models.RoleModerator)

	resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/listings", validCreatePayload()), "seller-1", ""))
	require.NoError(t, err)
	var created struct {
		Data dto.ListingResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	// A plain user may not reach moderation endpoints.
	forbidden, err := app.Test(asUser(httptest.NewRequest("POST",
		"/api/moderation/listings/1/approve", nil), "seller-1", models.RoleUser))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, forbidden.StatusCode)

	approve, err := app.Test(asUser(httptest.NewRequest("POST",
		"/api/moderation/listings/1/approve", nil), "mod-1", models.RoleModerator))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, approve.StatusCode)

	var approved struct {
		Data dto.ListingResponse `json:"data"`
	}
	decodeResponse(t, approve, &approved)
	require.Equal(t, models.StatusActive, approved.Data.Status)

	searchResp, err := app.Test(httptest.NewRequest("GET", "/api/listings?city=Skopje", nil))
	require.NoError(t, err)
	var search struct {
		Data []dto.ListingResponse `json:"data"`
	}
	decodeResponse(t, searchResp, &search)
	require.Len(t, search.Data, 1)
	require.Equal(t, created.Data.ID, search.Data[0].ID)

	// The decision leaves a row in the audit feed.
	activityResp, err := app.Test(asUser(httptest.NewRequest("GET",
		"/api/moderation/listings/activity", nil), "mod-1", models.RoleModerator))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, activityResp.StatusCode)

	var activity struct {
		Data []dto.ActivityLogResponse `json:"data"`
	}
	decodeResponse(t, activityResp, &activity)
	require.Len(t, activity.Data, 1)
	require.Equal(t, "LISTING_APPROVED", activity.Data[0].Action)
	require.Equal(t, "mod-1", activity.Data[0].UserID)
}

func TestRenewForeignListingForbidden(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "seller-1", models.RoleUser)
	seedAccount(t, db, "other-1", models.RoleUser)

	require.NoError(t, db.Create(&models.Listing{
		Title:       "Winter tyres",
		Description: "Set of four, one season.",
		Category:    "vehicles",
		City:        "Bitola",
		Status:      models.StatusActive,
		UserID:      "seller-1",
		PostedAt:    time.Now().Add(-48 * time.Hour),
	}).Error)

	resp, err := app.Test(asUser(httptest.NewRequest("POST", "/api/listings/1/renew", nil), "other-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	renewed, err := app.Test(asUser(httptest.NewRequest("POST", "/api/listings/1/renew", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, renewed.StatusCode)

	var renewal struct {
		Data dto.RenewalResponse `json:"data"`
	}
	decodeResponse(t, renewed, &renewal)
	require.Equal(t, models.StatusActive, renewal.Data.Listing.Status)
	require.Equal(t, 14, renewal.Data.RemainingMonthly)

	history, err := app.Test(asUser(httptest.NewRequest("GET", "/api/listings/bump-history", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, history.StatusCode)

	var bumps struct {
		Data []dto.ListingBumpResponse `json:"data"`
	}
	decodeResponse(t, history, &bumps)
	require.Len(t, bumps.Data, 1)
	require.EqualValues(t, 1, bumps.Data[0].ListingID)

	again, err := app.Test(asUser(httptest.NewRequest("POST", "/api/listings/1/renew", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, again.StatusCode, "one renewal per calendar day")
}

func TestRenewalStatsEndpoint(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "seller-1", models.RoleUser)

	resp, err := app.Test(asUser(httptest.NewRequest("GET", "/api/listings/renewal-stats", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats struct {
		Data dto.RenewalStatsResponse `json:"data"`
	}
	decodeResponse(t, resp, &stats)
	require.Equal(t, stats.Data.MonthlyLimit, stats.Data.Remaining)
	require.True(t, stats.Data.RenewableToday)
}
