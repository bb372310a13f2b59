package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
)

// defaultSubscriberBuffer is the per-subscriber channel capacity. A
// subscriber that falls this far behind starts losing events rather than
// stalling the pipeline.
const defaultSubscriberBuffer = 64

// Broker is an in-memory publish/subscribe hub keyed by session ID. It backs
// the SSE progress stream: each HTTP subscriber gets a buffered channel, and
// events for a session are fanned out to all of its subscribers.
//
// Delivery is best-effort. When a subscriber's buffer is full the event is
// dropped for that subscriber only.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	buffer int
	logger zerolog.Logger
}

type subscriber struct {
	ch chan domain.ProgressEvent
}

// NewBroker creates a broker with the default per-subscriber buffer.
func NewBroker(logger zerolog.Logger) *Broker {
	return &Broker{
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
		buffer: defaultSubscriberBuffer,
		logger: logger.With().Str("component", "event_broker").Logger(),
	}
}

// Subscribe registers a new subscriber for the given session and returns the
// event channel plus a cancel function. The cancel function must be called
// when the subscriber is done; it closes the channel.
func (b *Broker) Subscribe(sessionID uuid.UUID) (<-chan domain.ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan domain.ProgressEvent, b.buffer)}

	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[sessionID]; ok {
			if _, present := set[sub]; present {
				delete(set, sub)
				close(sub.ch)
			}
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
		b.mu.Unlock()
	}

	return sub.ch, cancel
}

// Emit implements Sink. Events without a session ID are ignored.
func (b *Broker) Emit(event domain.ProgressEvent) {
	if event.SessionID == uuid.Nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.SessionID] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn().
				Str("session_id", event.SessionID.String()).
				Str("event_type", event.Type).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount returns the number of live subscribers for a session.
func (b *Broker) SubscriberCount(sessionID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
