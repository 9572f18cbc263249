package models

import "time"

// Conversation types.
const (
	ConversationTypeListing = "LISTING"
	ConversationTypeSupport = "SUPPORT"
)

// Conversation is the single thread between two participants, optionally
// scoped to a listing. ParticipantLow/ParticipantHigh hold the two user ids
// in lexicographic order so either party initiating contact resolves to the
// same row.
type Conversation struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Type      string `gorm:"size:32;index:idx_conversations_type_pair,priority:1;not null" json:"type"`
	ListingID *uint  `gorm:"index" json:"listing_id,omitempty"`
	BuyerID   string `gorm:"size:64;index;not null" json:"buyer_id"`
	SellerID  string `gorm:"size:64;index;not null" json:"seller_id"`

	ParticipantLow  string `gorm:"size:64;index:idx_conversations_type_pair,priority:2;not null" json:"-"`
	ParticipantHigh string `gorm:"size:64;index:idx_conversations_type_pair,priority:3;not null" json:"-"`

	LastMessage   string    `gorm:"type:text" json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`

	// UnreadCount is the shared counter incremented on every send. The
	// per-side counters are maintained instead when the service runs in
	// per-participant mode.
	UnreadCount       int `gorm:"not null;default:0" json:"unread_count"`
	BuyerUnreadCount  int `gorm:"not null;default:0" json:"buyer_unread_count"`
	SellerUnreadCount int `gorm:"not null;default:0" json:"seller_unread_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single message inside a conversation. Immutable except for
// the read flag.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ListingID  *uint     `gorm:"index" json:"listing_id,omitempty"`
	SenderID   string    `gorm:"size:64;index" json:"sender_id"`
	ReceiverID string    `gorm:"size:64;index" json:"receiver_id"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
