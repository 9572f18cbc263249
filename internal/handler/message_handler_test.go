package handler_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/models"
)

func seedActiveListing(t *testing.T, db *gorm.DB, ownerID string) uint {
	t.Helper()
	listing := models.Listing{
		Title:       "Standing desk",
		Description: "Electric height adjustment, walnut top.",
		Category:    "furniture",
		City:        "Skopje",
		Status:      models.StatusActive,
		UserID:      ownerID,
		PostedAt:    time.Now(),
	}
	require.NoError(t, db.Create(&listing).Error)
	return listing.ID
}

func TestMessageSendAndInbox(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "buyer-1", models.RoleUser)
	seedAccount(t, db, "seller-1", models.RoleUser)
	listingID := seedActiveListing(t, db, "seller-1")

	payload := dto.MessageSendRequest{
		ReceiverID: "seller-1",
		Content:    "Is the desk still available?",
		ListingID:  &listingID,
	}
	resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/messages", payload), "buyer-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var sent struct {
		Data dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &sent)
	require.Equal(t, "buyer-1", sent.Data.SenderID)
	require.Equal(t, "seller-1", sent.Data.ReceiverID)

	inboxResp, err := app.Test(asUser(httptest.NewRequest("GET", "/api/messages/conversations", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, inboxResp.StatusCode)

	var inbox struct {
		Data []dto.ConversationResponse `json:"data"`
	}
	decodeResponse(t, inboxResp, &inbox)
	require.Len(t, inbox.Data, 1)
	require.Equal(t, "buyer-1", inbox.Data[0].OtherUser.ID)
	require.NotNil(t, inbox.Data[0].Listing)
	require.Equal(t, "Standing desk", inbox.Data[0].Listing.Title)
	require.Equal(t, 1, inbox.Data[0].UnreadCount)

	unreadResp, err := app.Test(asUser(httptest.NewRequest("GET", "/api/messages/unread-count", nil), "seller-1", ""))
	require.NoError(t, err)
	var unread struct {
		Data dto.UnreadTotalResponse `json:"data"`
	}
	decodeResponse(t, unreadResp, &unread)
	require.EqualValues(t, 1, unread.Data.Total)
}

func TestMessageSelfSendRejected(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "buyer-1", models.RoleUser)

	payload := dto.MessageSendRequest{ReceiverID: "buyer-1", Content: "hello me"}
	resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/messages", payload), "buyer-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMessageThreadAndMarkRead(t *testing.T) {
	app, db := setupApp(t)
	seedAccount(t, db, "buyer-1", models.RoleUser)
	seedAccount(t, db, "seller-1", models.RoleUser)
	listingID := seedActiveListing(t, db, "seller-1")

	for _, content := range []string{"First question", "Second question"} {
		payload := dto.MessageSendRequest{ReceiverID: "seller-1", Content: content, ListingID: &listingID}
		resp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/messages", payload), "buyer-1", ""))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	threadResp, err := app.Test(asUser(httptest.NewRequest("GET",
		"/api/messages/thread/buyer-1?listingId=1", nil), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, threadResp.StatusCode)

	var thread struct {
		Data []dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, threadResp, &thread)
	require.Len(t, thread.Data, 2)
	require.Equal(t, "First question", thread.Data[0].Content)

	markPayload := dto.MarkReadRequest{SenderID: "buyer-1", ListingID: &listingID}
	markResp, err := app.Test(asUser(jsonRequest(t, "POST", "/api/messages/read", markPayload), "seller-1", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, markResp.StatusCode)

	var marked struct {
		Data struct {
			Marked int64 `json:"marked"`
		} `json:"data"`
	}
	decodeResponse(t, markResp, &marked)
	require.EqualValues(t, 2, marked.Data.Marked)

	unreadResp, err := app.Test(asUser(httptest.NewRequest("GET", "/api/messages/unread-count", nil), "seller-1", ""))
	require.NoError(t, err)
	var unread struct {
		Data dto.UnreadTotalResponse `json:"data"`
	}
	decodeResponse(t, unreadResp, &unread)
	require.Zero(t, unread.Data.Total)
}
