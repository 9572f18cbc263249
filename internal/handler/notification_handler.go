package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pazar-go-api/internal/service"
	"github.com/noah-isme/pazar-go-api/internal/utils"
)

// NotificationHandler wires notification HTTP routes.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register attaches notification endpoints to the router group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Post("/:id<int>/read", h.markRead)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))

	notifications, err := h.service.List(c.Context(), userIDFromContext(c), limit)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "notifications retrieved", notifications, int64(len(notifications)))
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.CountUnread(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "unread count retrieved", fiber.Map{"total": count})
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.MarkRead(c.Context(), id, userIDFromContext(c)); err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "notification marked read", nil)
}

func (h *NotificationHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("notification handler failure")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
