package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/query"
)

// ListingCreateRequest is the payload to post a new listing. The listing
// enters moderation; status is never client-controlled.
type ListingCreateRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description string  `json:"description" validate:"required,min=10,max=10000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	Category    string  `json:"category" validate:"required,max=255"`
	SubCategory string  `json:"sub_category" validate:"omitempty,max=255"`
	City        string  `json:"city" validate:"required,max=128"`
	Region      string  `json:"region" validate:"omitempty,max=128"`

	Images         []string               `json:"images" validate:"omitempty,max=10,dive,url"`
	Specifications map[string]interface{} `json:"specifications"`

	UserType        string `json:"user_type" validate:"omitempty,oneof=PRIVATE BUSINESS"`
	AdType          string `json:"ad_type" validate:"omitempty,oneof=SALE BUYING RENT"`
	Condition       string `json:"condition" validate:"omitempty,oneof=NEW USED REFURBISHED"`
	IsTradePossible bool   `json:"is_trade_possible"`
	HasShipping     bool   `json:"has_shipping"`
	IsVatIncluded   bool   `json:"is_vat_included"`
	IsAffordable    bool   `json:"is_affordable"`

	ContactPhone string `json:"contact_phone" validate:"omitempty,max=32"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`

	// ClientNonce deduplicates retried submissions of the same form.
	ClientNonce string `json:"client_nonce" validate:"omitempty,max=64"`
}

// ListingQuery carries the raw query-string filters of a listing search.
// Comma-separated multi-value fields and the legacy JSON filter blob are
// normalised by ToFilters.
type ListingQuery struct {
	Status      string `query:"status"`
	Category    string `query:"category"`
	SubCategory string `query:"subCategory"`
	City        string `query:"city"`
	MinPrice    string `query:"minPrice"`
	MaxPrice    string `query:"maxPrice"`

	UserType  string `query:"userType"`
	AdType    string `query:"adType"`
	Condition string `query:"condition"`

	// Boolean flags arrive as "true"/"false"/"1"/"0" or, from older
	// clients, a bare JSON bool; anything unparseable means unset.
	IsTradePossible string `query:"isTradePossible"`
	HasShipping     string `query:"hasShipping"`
	IsVatIncluded   string `query:"isVatIncluded"`
	IsAffordable    string `query:"isAffordable"`

	DateRange string `query:"dateRange"`
	Sort      string `query:"sort"`

	// Filters is the dynamic specification blob, JSON-encoded.
	Filters string `query:"filters"`
}

// ToFilters converts the raw query into the typed filter set. The second
// result is false when the dynamic filter blob was present but malformed;
// the caller then skips that stage without failing the query.
func (q ListingQuery) ToFilters() (query.Filters, bool) {
	filters := query.Filters{
		Status:      strings.TrimSpace(q.Status),
		Category:    strings.TrimSpace(q.Category),
		SubCategory: strings.TrimSpace(q.SubCategory),
		City:        strings.TrimSpace(q.City),
		UserType:    strings.TrimSpace(q.UserType),
		AdType:      splitList(q.AdType),
		Condition:   splitList(q.Condition),
		DateRange:   strings.TrimSpace(q.DateRange),
		Sort:        strings.TrimSpace(q.Sort),
	}

	filters.MinPrice = parsePrice(q.MinPrice)
	filters.MaxPrice = parsePrice(q.MaxPrice)

	filters.IsTradePossible = parseBoolFlag(q.IsTradePossible)
	filters.HasShipping = parseBoolFlag(q.HasShipping)
	filters.IsVatIncluded = parseBoolFlag(q.IsVatIncluded)
	filters.IsAffordable = parseBoolFlag(q.IsAffordable)

	specs, ok := query.ParseSpecFilters(q.Filters)
	filters.Specs = specs
	return filters, ok
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePrice(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

func parseBoolFlag(raw string) *bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "true", "1", "yes":
		v := true
		return &v
	case "false", "0", "no":
		v := false
		return &v
	default:
		return nil
	}
}

// ListingResponse is the serialized representation of a listing.
type ListingResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category,omitempty"`
	City        string  `json:"city"`
	Region      string  `json:"region,omitempty"`
	Status      string  `json:"status"`
	UserID      string  `json:"user_id"`

	Images         []string               `json:"images"`
	Thumbnail      string                 `json:"thumbnail,omitempty"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`

	UserType        string `json:"user_type,omitempty"`
	AdType          string `json:"ad_type,omitempty"`
	Condition       string `json:"condition,omitempty"`
	IsTradePossible bool   `json:"is_trade_possible"`
	HasShipping     bool   `json:"has_shipping"`
	IsVatIncluded   bool   `json:"is_vat_included"`
	IsAffordable    bool   `json:"is_affordable"`

	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ViewCount    int    `json:"view_count"`

	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewListingResponse converts a model into a DTO.
func NewListingResponse(listing models.Listing) ListingResponse {
	return ListingResponse{
		ID:              listing.ID,
		Title:           listing.Title,
		Description:     listing.Description,
		Price:           listing.Price,
		Currency:        listing.Currency,
		Category:        listing.Category,
		SubCategory:     listing.SubCategory,
		City:            listing.City,
		Region:          listing.Region,
		Status:          listing.Status,
		UserID:          listing.UserID,
		Images:          listing.Images,
		Thumbnail:       listing.Thumbnail,
		Specifications:  listing.Specifications,
		UserType:        listing.UserType,
		AdType:          listing.AdType,
		Condition:       listing.Condition,
		IsTradePossible: listing.IsTradePossible,
		HasShipping:     listing.HasShipping,
		IsVatIncluded:   listing.IsVatIncluded,
		IsAffordable:    listing.IsAffordable,
		ContactPhone:    listing.ContactPhone,
		ContactEmail:    listing.ContactEmail,
		ViewCount:       listing.ViewCount,
		PostedAt:        listing.EffectivePostedAt(),
		CreatedAt:       listing.CreatedAt,
		UpdatedAt:       listing.UpdatedAt,
	}
}

// NewListingResponseSlice converts a slice of models into DTOs.
func NewListingResponseSlice(listings []models.Listing) []ListingResponse {
	out := make([]ListingResponse, 0, len(listings))
	for _, listing := range listings {
		out = append(out, NewListingResponse(listing))
	}
	return out
}

// RenewalResponse is the result of renewing a listing: the refreshed
// listing plus how many monthly renewals the owner has left.
type RenewalResponse struct {
	Listing          ListingResponse `json:"listing"`
	RemainingMonthly int             `json:"remaining_monthly"`
}

// ListingBumpResponse is one entry of a user's renewal history.
type ListingBumpResponse struct {
	ID        uint      `json:"id"`
	ListingID uint      `json:"listing_id"`
	Type      string    `json:"type"`
	BumpedAt  time.Time `json:"bumped_at"`
}

// NewListingBumpResponseSlice converts bump rows into DTOs.
func NewListingBumpResponseSlice(bumps []models.ListingBump) []ListingBumpResponse {
	out := make([]ListingBumpResponse, 0, len(bumps))
	for _, bump := range bumps {
		out = append(out, ListingBumpResponse{
			ID:        bump.ID,
			ListingID: bump.ListingID,
			Type:      bump.Type,
			BumpedAt:  bump.BumpedAt,
		})
	}
	return out
}

// ActivityLogResponse is one audit entry of the moderation trail.
type ActivityLogResponse struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewActivityLogResponseSlice converts audit rows into DTOs.
func NewActivityLogResponseSlice(entries []models.ActivityLog) []ActivityLogResponse {
	out := make([]ActivityLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ActivityLogResponse{
			ID:         entry.ID,
			UserID:     entry.UserID,
			Action:     entry.Action,
			TargetID:   entry.TargetID,
			TargetType: entry.TargetType,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

// RenewalStatsResponse summarises the caller's renewal throttle state.
type RenewalStatsResponse struct {
	MonthlyLimit   int        `json:"monthly_limit"`
	MonthlyUsed    int        `json:"monthly_used"`
	Remaining      int        `json:"remaining"`
	LastRenewalAt  *time.Time `json:"last_renewal_at,omitempty"`
	RenewableToday bool       `json:"renewable_today"`
	NextResetDate  time.Time  `json:"next_reset_date"`
}

// ModerationRequest is the payload for approving or rejecting a listing.
type ModerationRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}
