package dto

import (
	"time"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// MessageSendRequest is the payload to send a message to another user. A
// listing id scopes the conversation to that listing; without one the
// message lands in the pair's general thread.
type MessageSendRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,max=64"`
	Content    string `json:"content" validate:"required,min=1,max=4000"`
	ListingID  *uint  `json:"listing_id"`
	Type       string `json:"type" validate:"omitempty,oneof=LISTING SUPPORT"`
}

// MarkReadRequest identifies the thread whose incoming messages the caller
// has read.
type MarkReadRequest struct {
	SenderID  string `json:"sender_id" validate:"required,max=64"`
	ListingID *uint  `json:"listing_id"`
}

// MessageResponse is the serialized representation of a message.
type MessageResponse struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	ListingID  *uint     `json:"listing_id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:         message.ID,
		Content:    message.Content,
		ListingID:  message.ListingID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Read:       message.Read,
		CreatedAt:  message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// ConversationUserResponse is the counterpart profile embedded in a
// conversation listing.
type ConversationUserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// ConversationListingResponse is the listing summary embedded in a
// conversation listing. Nil for support conversations.
type ConversationListingResponse struct {
	ID        uint    `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Status    string  `json:"status"`
}

// ConversationResponse is one entry in the caller's inbox. UnreadCount is
// already resolved for the viewing side.
type ConversationResponse struct {
	ID            uint                         `json:"id"`
	Type          string                       `json:"type"`
	OtherUser     ConversationUserResponse     `json:"other_user"`
	Listing       *ConversationListingResponse `json:"listing,omitempty"`
	LastMessage   string                       `json:"last_message"`
	LastMessageAt time.Time                    `json:"last_message_at"`
	UnreadCount   int                          `json:"unread_count"`
}

// UnreadTotalResponse reports the caller's unread message count across all
// conversations.
type UnreadTotalResponse struct {
	Total int64 `json:"total"`
}
