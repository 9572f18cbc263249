package models

import "time"

// User roles. Admins bypass posting and renewal caps; moderators may
// approve or reject pending listings.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// User holds the profile and quota counters for a marketplace account.
// ExternalID links to the identity provider; listings reference it.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExternalID string `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name       string `gorm:"size:255" json:"name"`
	Email      string `gorm:"size:255;index" json:"email,omitempty"`
	Image      string `gorm:"size:512" json:"image,omitempty"`
	Role       string `gorm:"size:32;default:USER" json:"role"`
	City       string `gorm:"size:128" json:"city,omitempty"`
	IsVerified bool   `gorm:"not null;default:false" json:"is_verified"`

	// Posting quota. ListingLimit zero means "use the configured default".
	ListingLimit        int `gorm:"not null;default:0" json:"listing_limit"`
	ListingsPostedCount int `gorm:"not null;default:0" json:"listings_posted_count"`

	// Renewal throttle state. LastRenewalMonth stores a year*12+month key so
	// the monthly reset survives year boundaries.
	MonthlyRenewalsUsed int        `gorm:"not null;default:0" json:"monthly_renewals_used"`
	LastRenewalMonth    int        `gorm:"not null;default:0" json:"last_renewal_month"`
	LastRenewalAt       *time.Time `json:"last_renewal_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
