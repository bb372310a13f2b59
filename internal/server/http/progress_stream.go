package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/research-report-service/internal/domain"
)

const (
	// ssePollInterval is how often the stream re-reads the session row. The
	// broker carries live events; the poll only catches a terminal status the
	// subscriber missed, for example when it connected during teardown.
	ssePollInterval = 15 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// streamProgress handles GET /research/sessions/{sessionID}/progress (SSE).
// Events flow from the in-memory broker; a session that is already terminal
// gets a single snapshot event and the stream closes.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	// Subscribe before the snapshot read so no event can slip between the
	// two.
	eventCh, unsubscribe := s.broker.Subscribe(sessionID)
	defer unsubscribe()

	session, err := s.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if session.Status.IsTerminal() {
		sendSSEEvent(w, flusher, terminalSnapshotEvent(session))
		return
	}

	sendSSEEvent(w, flusher, domain.NewProgressEvent(sessionID, domain.EventStatus).
		WithMessage("progress stream started").
		WithData(map[string]interface{}{
			"status": string(session.Status),
		}))

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, domain.NewProgressEvent(sessionID, domain.EventError).
				WithMessage("stream max duration exceeded"))
			return

		case event, open := <-eventCh:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, event)
			if event.IsTerminal() {
				return
			}

		case <-ticker.C:
			// Re-read the authoritative row; catch terminal transitions whose
			// events this subscriber never saw.
			current, pollErr := s.sessions.GetByID(r.Context(), sessionID)
			if pollErr != nil {
				s.logger.Error().Err(pollErr).Str("session_id", sessionID.String()).Msg("failed to poll session status")
				continue
			}
			if current.Status.IsTerminal() {
				sendSSEEvent(w, flusher, terminalSnapshotEvent(current))
				return
			}
			// Keepalive comment so proxies do not drop the idle connection.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// terminalSnapshotEvent builds the single closing event for a session that is
// already in a terminal status.
func terminalSnapshotEvent(session *domain.ResearchSession) domain.ProgressEvent {
	eventType := domain.EventCompleted
	if session.Status == domain.SessionStatusCancelled {
		eventType = domain.EventCancelled
	}
	return domain.NewProgressEvent(session.ID, eventType).
		WithMessage("session is in terminal state").
		WithData(map[string]interface{}{
			"status":         string(session.Status),
			"report_content": session.ReportContent,
		})
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event domain.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}
