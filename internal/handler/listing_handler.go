package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/quota"
	"github.com/noah-isme/pazar-go-api/internal/service"
	"github.com/noah-isme/pazar-go-api/internal/utils"
)

// ListingHandler wires listing HTTP routes.
type ListingHandler struct {
	service service.ListingService
	logger  zerolog.Logger
}

// NewListingHandler constructs the handler.
func NewListingHandler(service service.ListingService, logger zerolog.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		logger:  logger.With().Str("component", "listing_handler").Logger(),
	}
}

// RegisterPublic attaches unauthenticated listing endpoints.
func (h *ListingHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.search)
	router.Get("/:id<int>", h.get)
}

// RegisterAuthenticated attaches endpoints requiring a signed-in user.
func (h *ListingHandler) RegisterAuthenticated(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/mine", h.mine)
	router.Get("/renewal-stats", h.renewalStats)
	router.Get("/bump-history", h.bumpHistory)
	router.Post("/:id<int>/renew", h.renew)
	router.Delete("/:id<int>", h.delete)
}

// RegisterModeration attaches moderator-only endpoints.
func (h *ListingHandler) RegisterModeration(router fiber.Router) {
	router.Get("/pending", h.pending)
	router.Get("/activity", h.activity)
	router.Post("/:id<int>/approve", h.approve)
	router.Post("/:id<int>/reject", h.reject)
}

func (h *ListingHandler) search(c *fiber.Ctx) error {
	var query dto.ListingQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	listings, err := h.service.Search(c.Context(), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err)
	}

	return utils.SendList(c, "listings retrieved", listings, int64(len(listings)))
}

func (h *ListingHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	listing, err := h.service.Get(c.Context(), id)
	if err != nil {
		if isNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "listing not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "listing retrieved", listing)
}

func (h *ListingHandler) create(c *fiber.Ctx) error {
	var payload dto.ListingCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	listing, err := h.service.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrListingEmptyAfterSanitize), errors.Is(err, service.ErrSpecificationsInvalid):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, quota.ErrListingLimitReached):
			return utils.SendError(c, fiber.StatusForbidden, "listing limit reached")
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "account not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "listing submitted for review", listing)
}

func (h *ListingHandler) renew(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	renewal, err := h.service.Renew(c.Context(), userIDFromContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrListingNotOwned):
			return utils.SendError(c, fiber.StatusForbidden, "not your listing")
		case errors.Is(err, quota.ErrMonthlyRenewalLimit):
			return utils.SendError(c, fiber.StatusTooManyRequests, "monthly renewal limit reached")
		case errors.Is(err, quota.ErrDailyRenewalLimit):
			return utils.SendError(c, fiber.StatusTooManyRequests, "already renewed today")
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "listing not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "listing renewed", renewal)
}

func (h *ListingHandler) bumpHistory(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))

	bumps, err := h.service.BumpHistory(c.Context(), userIDFromContext(c), limit)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "bump history retrieved", bumps, int64(len(bumps)))
}

func (h *ListingHandler) mine(c *fiber.Ctx) error {
	listings, err := h.service.GetByUser(c.Context(), userIDFromContext(c), c.Query("search"))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "listings retrieved", listings, int64(len(listings)))
}

func (h *ListingHandler) renewalStats(c *fiber.Ctx) error {
	stats, err := h.service.RenewalStats(c.Context(), userIDFromContext(c))
	if err != nil {
		if isNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "account not found")
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "renewal stats retrieved", stats)
}

func (h *ListingHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), userIDFromContext(c), userRoleFromContext(c), id); err != nil {
		switch {
		case errors.Is(err, service.ErrListingNotOwned):
			return utils.SendError(c, fiber.StatusForbidden, "not your listing")
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "listing not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "listing deleted", nil)
}

func (h *ListingHandler) pending(c *fiber.Ctx) error {
	listings, err := h.service.ListPending(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "pending listings retrieved", listings, int64(len(listings)))
}

func (h *ListingHandler) activity(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.service.ModerationActivity(c.Context(), c.Query("moderatorId"), c.Query("action"), limit)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "moderation activity retrieved", entries, int64(len(entries)))
}

func (h *ListingHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	listing, err := h.service.Approve(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "listing approved", listing)
}

func (h *ListingHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// The reason body is optional; a missing or malformed body rejects
	// without one.
	var payload dto.ModerationRequest
	_ = c.BodyParser(&payload)

	listing, err := h.service.Reject(c.Context(), userIDFromContext(c), id, payload.Reason)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "listing rejected", listing)
}

func (h *ListingHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("listing handler failure")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
