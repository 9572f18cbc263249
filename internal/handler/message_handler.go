package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/service"
	"github.com/noah-isme/pazar-go-api/internal/utils"
)

// MessageHandler wires messaging HTTP routes. Every endpoint requires a
// signed-in user.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register attaches messaging endpoints to the router group. sendLimit
// guards the send route; nil means no route-level limiter.
func (h *MessageHandler) Register(router fiber.Router, sendLimit fiber.Handler) {
	if sendLimit == nil {
		sendLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	router.Post("", sendLimit, h.send)
	router.Get("/conversations", h.inbox)
	router.Get("/unread-count", h.unreadTotal)
	router.Get("/thread/:otherId", h.thread)
	router.Post("/read", h.markRead)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrMessageEmptyAfterSanitize):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSelfMessage):
			return utils.SendError(c, fiber.StatusBadRequest, "cannot message yourself")
		case errors.Is(err, service.ErrMessageRateLimited):
			return utils.SendError(c, fiber.StatusTooManyRequests, "sending too fast, slow down")
		case isNotFound(err):
			return utils.SendError(c, fiber.StatusNotFound, "listing not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) inbox(c *fiber.Ctx) error {
	conversations, err := h.service.Inbox(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "conversations retrieved", conversations, int64(len(conversations)))
}

func (h *MessageHandler) unreadTotal(c *fiber.Ctx) error {
	total, err := h.service.UnreadTotal(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "unread count retrieved", dto.UnreadTotalResponse{Total: total})
}

func (h *MessageHandler) thread(c *fiber.Ctx) error {
	otherID := strings.TrimSpace(c.Params("otherId"))
	if otherID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing counterpart id")
	}

	listingID, err := parseOptionalListingID(c.Query("listingId"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid listingId")
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.service.Thread(c.Context(), userIDFromContext(c), otherID, listingID, limit)
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendList(c, "messages retrieved", messages, int64(len(messages)))
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	var payload dto.MarkReadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	changed, err := h.service.MarkRead(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "messages marked read", fiber.Map{"marked": changed})
}

func parseOptionalListingID(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(parsed)
	return &id, nil
}

func (h *MessageHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Str("path", c.Path()).Msg("message handler failure")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
