package models

import (
	"time"

	"gorm.io/datatypes"
)

// Listing status values. A listing is created in StatusPendingApproval and
// becomes active only through moderator approval.
const (
	StatusPendingApproval = "PENDING_APPROVAL"
	StatusActive          = "ACTIVE"
	StatusRejected        = "REJECTED"
	StatusSold            = "SOLD"
	StatusExpired         = "EXPIRED"
)

// StatusAll is the sentinel accepted by queries that want every listing
// regardless of moderation state.
const StatusAll = "ALL"

// Listing is a classified ad owned by the user who posted it.
type Listing struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	Description string  `gorm:"type:text;not null" json:"description"`
	Price       float64 `gorm:"not null" json:"price"`
	Currency    string  `gorm:"size:8;default:MKD" json:"currency"`
	Category    string  `gorm:"size:255;index:idx_listings_status_category,priority:2;not null" json:"category"`
	SubCategory string  `gorm:"size:255;index" json:"sub_category,omitempty"`
	City        string  `gorm:"size:128;index" json:"city"`
	Region      string  `gorm:"size:128" json:"region,omitempty"`
	Status      string  `gorm:"size:32;index:idx_listings_status_category,priority:1;index;not null" json:"status"`
	UserID      string  `gorm:"size:64;index;not null" json:"user_id"`

	Images    datatypes.JSONSlice[string] `gorm:"type:json" json:"images"`
	Thumbnail string                      `gorm:"size:512" json:"thumbnail,omitempty"`

	// Category-specific dynamic fields, validated against the category
	// template when one exists.
	Specifications datatypes.JSONMap `gorm:"type:json" json:"specifications,omitempty"`

	UserType        string `gorm:"size:32" json:"user_type,omitempty"`
	AdType          string `gorm:"size:32" json:"ad_type,omitempty"`
	Condition       string `gorm:"size:32" json:"condition,omitempty"`
	IsTradePossible bool   `gorm:"not null;default:false" json:"is_trade_possible"`
	HasShipping     bool   `gorm:"not null;default:false" json:"has_shipping"`
	IsVatIncluded   bool   `gorm:"not null;default:false" json:"is_vat_included"`
	IsAffordable    bool   `gorm:"not null;default:false" json:"is_affordable"`

	ContactPhone string `gorm:"size:32" json:"contact_phone,omitempty"`
	ContactEmail string `gorm:"size:255" json:"contact_email,omitempty"`
	ViewCount    int    `gorm:"not null;default:0" json:"view_count"`

	// ClientNonce deduplicates double-submitted create requests per user.
	ClientNonce string `gorm:"size:64;index:idx_listings_user_nonce,priority:2" json:"-"`

	// PostedAt is the effective recency of the listing. It is rewritten on
	// renewal to move the listing to the top of recency-sorted views;
	// CreatedAt keeps the storage-assigned creation timestamp.
	PostedAt  time.Time `gorm:"index;not null" json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePostedAt prefers the explicit posted timestamp and falls back to
// the storage creation time for rows that predate the column.
func (l Listing) EffectivePostedAt() time.Time {
	if !l.PostedAt.IsZero() {
		return l.PostedAt
	}
	return l.CreatedAt
}

// ListingBump records a single renewal of a listing, kept for history.
type ListingBump struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	ListingID uint      `gorm:"index" json:"listing_id"`
	Type      string    `gorm:"size:32;default:RENEW" json:"type"`
	BumpedAt  time.Time `gorm:"not null" json:"bumped_at"`
}
