package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/observability"
	"github.com/noah-isme/pazar-go-api/internal/query"
	"github.com/noah-isme/pazar-go-api/internal/quota"
	"github.com/noah-isme/pazar-go-api/internal/repository"
)

var (
	// ErrListingNotOwned indicates the caller does not own the listing.
	ErrListingNotOwned = errors.New("listing not owned by caller")
	// ErrListingEmptyAfterSanitize indicates the title or description was
	// reduced to nothing by HTML sanitization.
	ErrListingEmptyAfterSanitize = errors.New("listing content empty after sanitization")
)

// ListingThrottle carries the configured quota knobs.
type ListingThrottle struct {
	ListingLimit int
	MonthlyLimit int
	Location     *time.Location
}

// ListingService exposes the listing use-cases: search through the filter
// pipeline, moderated creation, renewal throttling and moderation.
type ListingService interface {
	Search(ctx context.Context, q dto.ListingQuery) ([]dto.ListingResponse, error)
	Get(ctx context.Context, id uint) (dto.ListingResponse, error)
	Create(ctx context.Context, userID string, payload dto.ListingCreateRequest) (dto.ListingResponse, error)
	Renew(ctx context.Context, userID string, listingID uint) (dto.RenewalResponse, error)
	Approve(ctx context.Context, moderatorID string, listingID uint) (dto.ListingResponse, error)
	Reject(ctx context.Context, moderatorID string, listingID uint, reason string) (dto.ListingResponse, error)
	ListPending(ctx context.Context) ([]dto.ListingResponse, error)
	GetByUser(ctx context.Context, userID, search string) ([]dto.ListingResponse, error)
	RenewalStats(ctx context.Context, userID string) (dto.RenewalStatsResponse, error)
	BumpHistory(ctx context.Context, userID string, limit int) ([]dto.ListingBumpResponse, error)
	ModerationActivity(ctx context.Context, moderatorID, action string, limit int) ([]dto.ActivityLogResponse, error)
	Delete(ctx context.Context, userID, role string, listingID uint) error
}

type listingService struct {
	listings      repository.ListingRepository
	users         repository.UserRepository
	categories    CategoryService
	activity      repository.ActivityLogRepository
	bumps         repository.BumpRepository
	notifications NotificationService
	events        EventPublisher
	throttle      ListingThrottle
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

// NewListingService constructs a listing service.
func NewListingService(
	listings repository.ListingRepository,
	users repository.UserRepository,
	categories CategoryService,
	activity repository.ActivityLogRepository,
	bumps repository.BumpRepository,
	notifications NotificationService,
	events EventPublisher,
	throttle ListingThrottle,
	validate *validator.Validate,
	logger zerolog.Logger,
) ListingService {
	if throttle.ListingLimit <= 0 {
		throttle.ListingLimit = quota.DefaultListingLimit
	}
	if throttle.MonthlyLimit <= 0 {
		throttle.MonthlyLimit = quota.DefaultMonthlyLimit
	}
	if throttle.Location == nil {
		throttle.Location = time.UTC
	}

	return &listingService{
		listings:      listings,
		users:         users,
		categories:    categories,
		activity:      activity,
		bumps:         bumps,
		notifications: notifications,
		events:        events,
		throttle:      throttle,
		validator:     validate,
		logger:        logger.With().Str("component", "listing_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/pazar-go-api/internal/service/listing"),
		sanitizer:     bluemonday.UGCPolicy(),
		now:           time.Now,
	}
}

// Search reads the status-selected candidate set and runs the in-memory
// filter pipeline over it. A malformed dynamic filter blob skips only that
// stage; the rest of the query still runs.
func (s *listingService) Search(ctx context.Context, q dto.ListingQuery) ([]dto.ListingResponse, error) {
	filters, specsOK := q.ToFilters()
	if !specsOK {
		s.logger.Debug().Str("filters", q.Filters).Msg("malformed dynamic filters, stage skipped")
	}
	if filters.Status == "" {
		filters.Status = models.StatusActive
	}

	if err := s.validator.Struct(filters); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "listings.search", trace.WithAttributes(
		attribute.String("listing.status", filters.Status),
		attribute.String("listing.category", filters.Category),
	))
	defer span.End()

	candidates, err := s.listings.ListByStatus(ctx, filters.Status)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tree, err := s.categories.Snapshot(ctx)
	if err != nil {
		// The pipeline degrades to path heuristics without a tree.
		s.logger.Warn().Err(err).Msg("taxonomy snapshot unavailable")
		tree = nil
	}

	results := query.Apply(candidates, tree, s.now(), filters)
	observability.ListingQueries().WithLabelValues(filters.Status).Inc()
	return dto.NewListingResponseSlice(results), nil
}

func (s *listingService) Get(ctx context.Context, id uint) (dto.ListingResponse, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return dto.ListingResponse{}, err
	}
	return dto.NewListingResponse(listing), nil
}

// Create validates, sanitizes and inserts a new listing in moderation
// state. A repeated client nonce returns the already-created listing
// instead of inserting twice.
func (s *listingService) Create(ctx context.Context, userID string, payload dto.ListingCreateRequest) (dto.ListingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ListingResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "listings.create", trace.WithAttributes(
		attribute.String("listing.user_id", userID),
		attribute.String("listing.category", payload.Category),
	))
	defer span.End()

	if payload.ClientNonce != "" {
		if existing, err := s.listings.FindByClientNonce(ctx, userID, payload.ClientNonce); err == nil {
			return dto.NewListingResponse(existing), nil
		}
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	description := strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))
	if title == "" || description == "" {
		return dto.ListingResponse{}, ErrListingEmptyAfterSanitize
	}

	if err := s.categories.ValidateSpecifications(ctx, payload.Category, payload.Specifications); err != nil {
		return dto.ListingResponse{}, err
	}

	now := s.now()
	listing := models.Listing{
		Title:           title,
		Description:     description,
		Price:           payload.Price,
		Currency:        payload.Currency,
		Category:        strings.ToLower(strings.TrimSpace(payload.Category)),
		SubCategory:     strings.ToLower(strings.TrimSpace(payload.SubCategory)),
		City:            strings.TrimSpace(payload.City),
		Region:          strings.TrimSpace(payload.Region),
		Status:          models.StatusPendingApproval,
		UserID:          userID,
		Images:          datatypes.JSONSlice[string](payload.Images),
		Specifications:  datatypes.JSONMap(payload.Specifications),
		UserType:        payload.UserType,
		AdType:          payload.AdType,
		Condition:       payload.Condition,
		IsTradePossible: payload.IsTradePossible,
		HasShipping:     payload.HasShipping,
		IsVatIncluded:   payload.IsVatIncluded,
		IsAffordable:    payload.IsAffordable,
		ContactPhone:    payload.ContactPhone,
		ContactEmail:    payload.ContactEmail,
		ClientNonce:     payload.ClientNonce,
		PostedAt:        now,
	}
	if len(listing.Images) > 0 {
		listing.Thumbnail = listing.Images[0]
	}

	err := s.listings.CreateWithQuota(ctx, &listing, func(user models.User) error {
		return quota.CheckCreation(user, s.throttle.ListingLimit)
	})
	if err != nil {
		if errors.Is(err, quota.ErrListingLimitReached) {
			observability.QuotaRejections().WithLabelValues("creation").Inc()
		}
		span.RecordError(err)
		return dto.ListingResponse{}, err
	}

	s.publish(ctx, EventListingCreated, listing.ID, userID)
	return dto.NewListingResponse(listing), nil
}

// Renew moves the listing back to the top of recency-sorted views. The
// monthly cap is checked before the calendar-day rule; counters persist
// only when the renewal commits.
func (s *listingService) Renew(ctx context.Context, userID string, listingID uint) (dto.RenewalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "listings.renew", trace.WithAttributes(
		attribute.String("listing.user_id", userID),
	))
	defer span.End()

	now := s.now()
	var remaining int
	renewed, err := s.listings.Renew(ctx, listingID, now, func(listing models.Listing, user models.User) (quota.RenewalDecision, error) {
		if listing.UserID != userID {
			return quota.RenewalDecision{}, ErrListingNotOwned
		}
		decision, err := quota.CheckRenewal(user, now, s.throttle.Location, s.throttle.MonthlyLimit)
		if err == nil {
			remaining = decision.Remaining
		}
		return decision, err
	})
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrMonthlyRenewalLimit):
			observability.QuotaRejections().WithLabelValues("renewal_monthly").Inc()
		case errors.Is(err, quota.ErrDailyRenewalLimit):
			observability.QuotaRejections().WithLabelValues("renewal_daily").Inc()
		}
		span.RecordError(err)
		return dto.RenewalResponse{}, err
	}

	observability.ListingRenewals().Inc()
	s.publish(ctx, EventListingRenewed, renewed.ID, userID)
	return dto.RenewalResponse{
		Listing:          dto.NewListingResponse(renewed),
		RemainingMonthly: remaining,
	}, nil
}

// Approve moves a pending listing to active. Absent listings are a no-op;
// listings already out of moderation are returned unchanged.
func (s *listingService) Approve(ctx context.Context, moderatorID string, listingID uint) (dto.ListingResponse, error) {
	return s.moderate(ctx, moderatorID, listingID, models.StatusActive, "LISTING_APPROVED", "Your listing was approved and is now live.")
}

// Reject moves a pending listing to rejected, recording the reason in the
// owner's notification.
func (s *listingService) Reject(ctx context.Context, moderatorID string, listingID uint, reason string) (dto.ListingResponse, error) {
	message := "Your listing was rejected."
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("Your listing was rejected: %s", reason)
	}
	return s.moderate(ctx, moderatorID, listingID, models.StatusRejected, "LISTING_REJECTED", message)
}

func (s *listingService) moderate(ctx context.Context, moderatorID string, listingID uint, status, action, message string) (dto.ListingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "listings.moderate", trace.WithAttributes(
		attribute.String("listing.moderator_id", moderatorID),
		attribute.String("listing.decision", status),
	))
	defer span.End()

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ListingResponse{}, nil
		}
		return dto.ListingResponse{}, err
	}
	if listing.Status != models.StatusPendingApproval {
		return dto.NewListingResponse(listing), nil
	}

	updated, err := s.listings.UpdateStatus(ctx, listingID, status)
	if err != nil {
		span.RecordError(err)
		return dto.ListingResponse{}, err
	}

	entry := models.ActivityLog{
		UserID:     moderatorID,
		Action:     action,
		TargetID:   fmt.Sprintf("%d", listingID),
		TargetType: "listing",
	}
	if err := s.activity.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Uint("listing_id", listingID).Msg("failed to record moderation activity")
	}

	if s.notifications != nil {
		_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  updated.UserID,
			Type:    action,
			Title:   updated.Title,
			Message: message,
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("listing_id", listingID).Msg("failed to notify listing owner")
		}
	}

	kind := EventListingApproved
	if status == models.StatusRejected {
		kind = EventListingRejected
	}
	s.publish(ctx, kind, listingID, updated.UserID)

	return dto.NewListingResponse(updated), nil
}

func (s *listingService) ListPending(ctx context.Context) ([]dto.ListingResponse, error) {
	listings, err := s.listings.ListByStatus(ctx, models.StatusPendingApproval)
	if err != nil {
		return nil, err
	}
	return dto.NewListingResponseSlice(listings), nil
}

// GetByUser returns the caller's own listings in every status, optionally
// narrowed by a case-insensitive title search.
func (s *listingService) GetByUser(ctx context.Context, userID, search string) ([]dto.ListingResponse, error) {
	listings, err := s.listings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		matched := listings[:0:0]
		for _, listing := range listings {
			if strings.Contains(strings.ToLower(listing.Title), search) {
				matched = append(matched, listing)
			}
		}
		listings = matched
	}

	return dto.NewListingResponseSlice(listings), nil
}

// RenewalStats reports the caller's throttle state for the current month.
// BumpHistory returns the caller's renewal history, newest first.
func (s *listingService) BumpHistory(ctx context.Context, userID string, limit int) ([]dto.ListingBumpResponse, error) {
	bumps, err := s.bumps.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewListingBumpResponseSlice(bumps), nil
}

// ModerationActivity reads the audit trail, optionally narrowed to one
// moderator or action.
func (s *listingService) ModerationActivity(ctx context.Context, moderatorID, action string, limit int) ([]dto.ActivityLogResponse, error) {
	entries, err := s.activity.List(ctx, repository.ActivityLogFilter{
		UserID: moderatorID,
		Action: action,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewActivityLogResponseSlice(entries), nil
}

func (s *listingService) RenewalStats(ctx context.Context, userID string) (dto.RenewalStatsResponse, error) {
	user, err := s.users.GetByExternalID(ctx, userID)
	if err != nil {
		return dto.RenewalStatsResponse{}, err
	}

	now := s.now().In(s.throttle.Location)
	used := user.MonthlyRenewalsUsed
	if user.LastRenewalMonth != quota.MonthKey(now) {
		used = 0
	}

	remaining := s.throttle.MonthlyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	renewableToday := remaining > 0
	if user.LastRenewalAt != nil && quota.SameCalendarDay(*user.LastRenewalAt, now, s.throttle.Location) {
		renewableToday = false
	}

	nextReset := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.throttle.Location).AddDate(0, 1, 0)

	return dto.RenewalStatsResponse{
		MonthlyLimit:   s.throttle.MonthlyLimit,
		MonthlyUsed:    used,
		Remaining:      remaining,
		LastRenewalAt:  user.LastRenewalAt,
		RenewableToday: renewableToday,
		NextResetDate:  nextReset,
	}, nil
}

// Delete removes a listing. Only the owner or an admin may delete; the
// owner's quota slot is released either way.
func (s *listingService) Delete(ctx context.Context, userID, role string, listingID uint) error {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.UserID != userID && role != models.RoleAdmin {
		return ErrListingNotOwned
	}
	return s.listings.Delete(ctx, listingID)
}

func (s *listingService) publish(ctx context.Context, kind string, listingID uint, userID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, ChangeEvent{Kind: kind, EntityID: listingID, UserID: userID})
}
