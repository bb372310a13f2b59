// Package events distributes research progress events.
//
// The orchestrator emits one stream of domain.ProgressEvent per session.
// Sinks fan the stream out: the in-memory Broker feeds live SSE subscribers,
// and the optional Kafka sink mirrors every event onto a topic for
// downstream consumers. Emission is fire-and-forget; a slow or failing sink
// never blocks the research pipeline.
package events

import (
	"github.com/helixir/research-report-service/internal/domain"
)

// Sink receives progress events. Implementations must not block; drop or
// buffer instead.
type Sink interface {
	// Emit delivers one event. Errors are handled inside the sink.
	Emit(event domain.ProgressEvent)
}

// Multi fans one event out to several sinks in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(event domain.ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}

// Discard is a Sink that drops every event. Useful in tests and when no
// event distribution is configured.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Emit(domain.ProgressEvent) {}
