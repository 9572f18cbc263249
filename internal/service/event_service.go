package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventBufferSize = 16

// Change event kinds emitted by the marketplace core. Clients poll the API
// for state; events exist so other nodes and stream consumers can
// invalidate caches and push updates.
const (
	EventListingCreated  = "listing.created"
	EventListingRenewed  = "listing.renewed"
	EventListingApproved = "listing.approved"
	EventListingRejected = "listing.rejected"
	EventMessageSent     = "message.sent"
	EventCategoryChanged = "category.changed"
)

// ChangeEvent is the envelope fanned out over Redis and NATS.
type ChangeEvent struct {
	Kind     string    `json:"kind"`
	EntityID uint      `json:"entity_id,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
	SentAt   time.Time `json:"sent_at"`
	Source   string    `json:"source"`
}

// EventPublisher fans change events out to local subscribers and to the
// configured brokers. Both brokers are optional; a nil client skips that
// leg silently.
type EventPublisher interface {
	Publish(ctx context.Context, event ChangeEvent)
	Subscribe(kind string) (<-chan ChangeEvent, func())
	Start(ctx context.Context)
}

type eventPublisher struct {
	redis       *redis.Client
	redisChan   string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string

	mu          sync.RWMutex
	subscribers map[string]map[chan ChangeEvent]struct{}
}

// NewEventPublisher constructs the event fan-out. channelBase names the
// Redis channel and, with colons swapped for dots, the NATS subject.
func NewEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &eventPublisher{
		redis:       redisClient,
		redisChan:   channel,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
		nodeID:      uuid.NewString(),
		subscribers: make(map[string]map[chan ChangeEvent]struct{}),
	}
}

func (p *eventPublisher) Start(ctx context.Context) {
	if p.redis != nil && p.redisChan != "" {
		go p.consumeRedis(ctx)
	}
	if p.nats != nil && p.natsSubject != "" {
		go p.consumeNATS(ctx)
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event ChangeEvent) {
	event.Source = p.nodeID
	if event.SentAt.IsZero() {
		event.SentAt = time.Now()
	}

	p.broadcast(event)

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode change event")
		return
	}

	if p.redis != nil && p.redisChan != "" {
		if err := p.redis.Publish(ctx, p.redisChan, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("channel", p.redisChan).Msg("redis publish failed")
		}
	}
	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("subject", p.natsSubject).Msg("nats publish failed")
		}
	}
}

// Subscribe registers a local listener for one event kind. The returned
// cancel func must be called to release the channel.
func (p *eventPublisher) Subscribe(kind string) (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, eventBufferSize)

	p.mu.Lock()
	if p.subscribers[kind] == nil {
		p.subscribers[kind] = make(map[chan ChangeEvent]struct{})
	}
	p.subscribers[kind][ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if set, ok := p.subscribers[kind]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(p.subscribers, kind)
			}
		}
		p.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (p *eventPublisher) broadcast(event ChangeEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for ch := range p.subscribers[event.Kind] {
		select {
		case ch <- event:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
}

func (p *eventPublisher) consumeRedis(ctx context.Context) {
	sub := p.redis.Subscribe(ctx, p.redisChan)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			p.dispatchRemote([]byte(msg.Payload))
		}
	}
}

func (p *eventPublisher) consumeNATS(ctx context.Context) {
	sub, err := p.nats.Subscribe(p.natsSubject, func(msg *nats.Msg) {
		p.dispatchRemote(msg.Data)
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", p.natsSubject).Msg("nats subscribe failed")
		return
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
}

// dispatchRemote replays broker events from other nodes to local
// subscribers. Events originating here are skipped; they were already
// broadcast at publish time.
func (p *eventPublisher) dispatchRemote(payload []byte) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.logger.Warn().Err(err).Msg("failed to decode change event")
		return
	}
	if event.Source == p.nodeID {
		return
	}
	p.broadcast(event)
}
