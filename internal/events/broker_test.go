package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

func recvEvent(t *testing.T, ch <-chan domain.ProgressEvent) domain.ProgressEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.ProgressEvent{}
	}
}

func TestBroker_SubscribeAndEmit(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	sessionID := uuid.New()

	ch, cancel := b.Subscribe(sessionID)
	defer cancel()

	ev := domain.NewProgressEvent(sessionID, domain.EventResearchStarted).
		WithData(map[string]interface{}{"section_index": 0})
	b.Emit(ev)

	got := recvEvent(t, ch)
	assert.Equal(t, domain.EventResearchStarted, got.Type)
	assert.Equal(t, sessionID, got.SessionID)
}

func TestBroker_FanOut(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	sessionID := uuid.New()

	ch1, cancel1 := b.Subscribe(sessionID)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(sessionID)
	defer cancel2()

	b.Emit(domain.NewProgressEvent(sessionID, domain.EventStatus).WithMessage("hello"))

	assert.Equal(t, "hello", recvEvent(t, ch1).Message)
	assert.Equal(t, "hello", recvEvent(t, ch2).Message)
}

func TestBroker_SessionIsolation(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	sessionA := uuid.New()
	sessionB := uuid.New()

	ch1, cancel1 := b.Subscribe(sessionA)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(sessionB)
	defer cancel2()

	b.Emit(domain.NewProgressEvent(sessionA, domain.EventStatus))

	recvEvent(t, ch1)
	select {
	case ev := <-ch2:
		t.Fatalf("subscriber for other session received event %q", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	sessionID := uuid.New()

	ch, cancel := b.Subscribe(sessionID)
	require.Equal(t, 1, b.SubscriberCount(sessionID))

	cancel()
	assert.Equal(t, 0, b.SubscriberCount(sessionID))

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")

	// Emitting after cancel must not panic.
	b.Emit(domain.NewProgressEvent(sessionID, domain.EventStatus))

	// Double cancel is safe.
	cancel()
}

func TestBroker_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	b.buffer = 2
	sessionID := uuid.New()

	ch, cancel := b.Subscribe(sessionID)
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Emit(domain.NewProgressEvent(sessionID, domain.EventReportChunk))
	}

	// Only the buffered events are delivered; the rest were dropped.
	assert.Len(t, ch, 2)
}

func TestBroker_EmitWithoutSessionID(t *testing.T) {
	t.Parallel()

	b := NewBroker(zerolog.Nop())
	ch, cancel := b.Subscribe(uuid.Nil)
	defer cancel()

	b.Emit(domain.ProgressEvent{Type: domain.EventStatus})

	select {
	case <-ch:
		t.Fatal("event without session id should not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()

	b1 := NewBroker(zerolog.Nop())
	b2 := NewBroker(zerolog.Nop())
	sessionID := uuid.New()

	ch1, cancel1 := b1.Subscribe(sessionID)
	defer cancel1()
	ch2, cancel2 := b2.Subscribe(sessionID)
	defer cancel2()

	sinks := Multi{b1, nil, b2, Discard}
	sinks.Emit(domain.NewProgressEvent(sessionID, domain.EventCompleted))

	assert.Equal(t, domain.EventCompleted, recvEvent(t, ch1).Type)
	assert.Equal(t, domain.EventCompleted, recvEvent(t, ch2).Type)
}
