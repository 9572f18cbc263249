package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/service"
	"github.com/noah-isme/pazar-go-api/internal/utils"
)

// CategoryHandler wires category HTTP routes.
type CategoryHandler struct {
	service service.CategoryService
	logger  zerolog.Logger
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(service service.CategoryService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: service,
		logger:  logger.With().Str("component", "category_handler").Logger(),
	}
}

// RegisterPublic attaches read-only category endpoints.
func (h *CategoryHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.tree)
	router.Get("/counts", h.counts)
	router.Get("/:slug", h.get)
}

// RegisterAdmin attaches category management endpoints.
func (h *CategoryHandler) RegisterAdmin(router fiber.Router) {
	router.Post("", h.create)
	router.Patch("/:id<int>", h.update)
	router.Delete("/:id<int>", h.delete)
}

func (h *CategoryHandler) tree(c *fiber.Ctx) error {
	tree, err := h.service.Tree(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "categories retrieved", tree)
}

func (h *CategoryHandler) counts(c *fiber.Ctx) error {
	counts, err := h.service.ListWithCounts(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "category counts retrieved", counts, int64(len(counts)))
}

func (h *CategoryHandler) get(c *fiber.Ctx) error {
	category, err := h.service.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		if isNotFound(err) {
			return utils.SendError(c, fiber.StatusNotFound, "category not found")
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "category retrieved", category)
}

func (h *CategoryHandler) create(c *fiber.Ctx) error {
	var payload dto.CategoryCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.Create(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "category created", category)
}

func (h *CategoryHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CategoryUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "category not found")
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "category updated", category)
}

func (h *CategoryHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryInUse):
			return utils.SendError(c, fiber.StatusConflict, "category still has active listings")
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "category not found")
		}
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "category deleted", nil)
}

func (h *CategoryHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("category handler failure")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
