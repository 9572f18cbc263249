package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/observability"
	"github.com/noah-isme/pazar-go-api/internal/repository"
)

const lastMessagePreviewLen = 120

var (
	// ErrSelfMessage indicates the sender addressed themselves.
	ErrSelfMessage = errors.New("cannot message yourself")
	// ErrMessageRateLimited indicates the per-sender send cap was hit.
	ErrMessageRateLimited = errors.New("message rate limit exceeded")
	// ErrMessageEmptyAfterSanitize indicates sanitization stripped the
	// whole message body.
	ErrMessageEmptyAfterSanitize = errors.New("message empty after sanitization")
)

// MessageThrottle carries the per-sender anti-spam knobs.
type MessageThrottle struct {
	Limit  int
	Window time.Duration
}

// MessageService exposes the conversation and messaging use-cases. Unread
// bookkeeping runs in shared-counter mode by default; per-participant mode
// keeps a counter per side instead.
type MessageService interface {
	Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	Thread(ctx context.Context, viewerID, otherID string, listingID *uint, limit int) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, readerID string, payload dto.MarkReadRequest) (int64, error)
	Inbox(ctx context.Context, viewerID string) ([]dto.ConversationResponse, error)
	UnreadTotal(ctx context.Context, viewerID string) (int64, error)
}

type messageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	listings      repository.ListingRepository
	users         repository.UserRepository
	notifications NotificationService
	events        EventPublisher
	throttle      MessageThrottle
	perSideUnread bool
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

// NewMessageService constructs a message service. perSideUnread selects
// per-participant unread counters over the shared conversation counter.
func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	listings repository.ListingRepository,
	users repository.UserRepository,
	notifications NotificationService,
	events EventPublisher,
	throttle MessageThrottle,
	perSideUnread bool,
	validate *validator.Validate,
	logger zerolog.Logger,
) MessageService {
	if throttle.Limit <= 0 {
		throttle.Limit = 30
	}
	if throttle.Window <= 0 {
		throttle.Window = time.Minute
	}

	return &messageService{
		messages:      messages,
		conversations: conversations,
		listings:      listings,
		users:         users,
		notifications: notifications,
		events:        events,
		throttle:      throttle,
		perSideUnread: perSideUnread,
		validator:     validate,
		logger:        logger.With().Str("component", "message_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/pazar-go-api/internal/service/message"),
		sanitizer:     bluemonday.StrictPolicy(),
		now:           time.Now,
	}
}

// Send persists a message, upserting its conversation and moving unread
// bookkeeping to the receiving side.
func (s *messageService) Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}
	if payload.ReceiverID == senderID {
		return dto.MessageResponse{}, ErrSelfMessage
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.MessageResponse{}, ErrMessageEmptyAfterSanitize
	}

	ctx, span := s.tracer.Start(ctx, "messages.send", trace.WithAttributes(
		attribute.String("message.sender_id", senderID),
	))
	defer span.End()

	now := s.now()
	sent, err := s.messages.CountRecentBySender(ctx, senderID, now.Add(-s.throttle.Window))
	if err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}
	if sent >= int64(s.throttle.Limit) {
		observability.MessagesRateLimited().Inc()
		return dto.MessageResponse{}, ErrMessageRateLimited
	}

	conversation, err := s.resolveConversation(ctx, senderID, payload)
	if err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	message := models.Message{
		Content:    content,
		ListingID:  payload.ListingID,
		SenderID:   senderID,
		ReceiverID: payload.ReceiverID,
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	conversation.LastMessage = preview(content)
	conversation.LastMessageAt = now
	if s.perSideUnread {
		if payload.ReceiverID == conversation.BuyerID {
			conversation.BuyerUnreadCount++
		} else {
			conversation.SellerUnreadCount++
		}
	} else {
		conversation.UnreadCount++
	}
	if err := s.conversations.Update(ctx, conversation); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if s.notifications != nil {
		_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  payload.ReceiverID,
			Type:    "MESSAGE_RECEIVED",
			Message: preview(content),
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to notify message receiver")
		}
	}

	observability.MessagesSent().Inc()
	if s.events != nil {
		s.events.Publish(ctx, ChangeEvent{Kind: EventMessageSent, EntityID: conversation.ID, UserID: payload.ReceiverID})
	}

	return dto.NewMessageResponse(message), nil
}

// resolveConversation finds the thread for the send or creates it. Listing
// conversations pin the seller to the listing owner; pair conversations
// default to support.
func (s *messageService) resolveConversation(ctx context.Context, senderID string, payload dto.MessageSendRequest) (*models.Conversation, error) {
	if payload.ListingID != nil {
		listing, err := s.listings.GetByID(ctx, *payload.ListingID)
		if err != nil {
			return nil, err
		}

		existing, err := s.conversations.FindForListing(ctx, listing.ID, senderID, payload.ReceiverID)
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		buyer, seller := senderID, payload.ReceiverID
		if senderID == listing.UserID {
			buyer, seller = payload.ReceiverID, senderID
		}
		conversation := models.Conversation{
			Type:      models.ConversationTypeListing,
			ListingID: &listing.ID,
			BuyerID:   buyer,
			SellerID:  seller,
		}
		if err := s.conversations.Create(ctx, &conversation); err != nil {
			return nil, err
		}
		return &conversation, nil
	}

	convType := payload.Type
	if convType == "" {
		convType = models.ConversationTypeSupport
	}

	existing, err := s.conversations.FindByTypeAndPair(ctx, convType, senderID, payload.ReceiverID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation := models.Conversation{
		Type:     convType,
		BuyerID:  senderID,
		SellerID: payload.ReceiverID,
	}
	if err := s.conversations.Create(ctx, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *messageService) Thread(ctx context.Context, viewerID, otherID string, listingID *uint, limit int) ([]dto.MessageResponse, error) {
	messages, err := s.messages.ListThread(ctx, listingID, viewerID, otherID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

// MarkRead flips the viewer's incoming messages in one thread and resets
// the matching conversation counter. It returns how many messages changed.
func (s *messageService) MarkRead(ctx context.Context, readerID string, payload dto.MarkReadRequest) (int64, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	changed, err := s.messages.MarkThreadRead(ctx, payload.ListingID, payload.SenderID, readerID)
	if err != nil {
		return 0, err
	}

	conversation, err := s.findThreadConversation(ctx, readerID, payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return changed, nil
		}
		return changed, err
	}

	if s.perSideUnread {
		if readerID == conversation.BuyerID {
			conversation.BuyerUnreadCount = 0
		} else {
			conversation.SellerUnreadCount = 0
		}
	} else {
		conversation.UnreadCount = 0
	}
	if err := s.conversations.Update(ctx, &conversation); err != nil {
		return changed, err
	}

	return changed, nil
}

func (s *messageService) findThreadConversation(ctx context.Context, readerID string, payload dto.MarkReadRequest) (models.Conversation, error) {
	if payload.ListingID != nil {
		return s.conversations.FindForListing(ctx, *payload.ListingID, readerID, payload.SenderID)
	}
	return s.conversations.FindByTypeAndPair(ctx, models.ConversationTypeSupport, readerID, payload.SenderID)
}

// Inbox lists the viewer's conversations with the counterpart profile and
// listing summary resolved, unread counts scoped to the viewing side.
func (s *messageService) Inbox(ctx context.Context, viewerID string) ([]dto.ConversationResponse, error) {
	conversations, err := s.conversations.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		otherIDs = append(otherIDs, otherParticipant(conversation, viewerID))
	}
	profiles, err := s.users.GetManyByExternalID(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		otherID := otherParticipant(conversation, viewerID)

		entry := dto.ConversationResponse{
			ID:            conversation.ID,
			Type:          conversation.Type,
			LastMessage:   conversation.LastMessage,
			LastMessageAt: conversation.LastMessageAt,
			UnreadCount:   s.unreadFor(conversation, viewerID),
			OtherUser:     dto.ConversationUserResponse{ID: otherID},
		}
		if profile, ok := profiles[otherID]; ok {
			entry.OtherUser.Name = profile.Name
			entry.OtherUser.Image = profile.Image
			entry.OtherUser.IsVerified = profile.IsVerified
		}
		if conversation.ListingID != nil {
			if listing, err := s.listings.GetByID(ctx, *conversation.ListingID); err == nil {
				entry.Listing = &dto.ConversationListingResponse{
					ID:        listing.ID,
					Title:     listing.Title,
					Price:     listing.Price,
					Thumbnail: listing.Thumbnail,
					Status:    listing.Status,
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *messageService) UnreadTotal(ctx context.Context, viewerID string) (int64, error) {
	return s.messages.CountUnreadForReceiver(ctx, viewerID)
}

func (s *messageService) unreadFor(conversation models.Conversation, viewerID string) int {
	if !s.perSideUnread {
		return conversation.UnreadCount
	}
	if viewerID == conversation.BuyerID {
		return conversation.BuyerUnreadCount
	}
	return conversation.SellerUnreadCount
}

func otherParticipant(conversation models.Conversation, viewerID string) string {
	if conversation.BuyerID == viewerID {
		return conversation.SellerID
	}
	return conversation.BuyerID
}

func preview(content string) string {
	if len(content) <= lastMessagePreviewLen {
		return content
	}

	// Back up to a rune boundary so the stored preview stays valid UTF-8.
	cut := lastMessagePreviewLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
