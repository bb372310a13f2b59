package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/orchestrator"
	"github.com/helixir/research-report-service/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

var validate = validator.New()

// startResearchRequest is the JSON request body for starting a research run.
type startResearchRequest struct {
	ChatID          string `json:"chat_id" validate:"required,uuid"`
	Query           string `json:"query" validate:"required,min=3,max=10000"`
	Model           string `json:"model,omitempty" validate:"omitempty,max=200"`
	Language        string `json:"language,omitempty" validate:"omitempty,oneof=en ko"`
	DocumentContext string `json:"document_context,omitempty" validate:"omitempty,max=200000"`
}

// updateQueryRequest is the JSON request body for revising a session's query.
type updateQueryRequest struct {
	Query string `json:"query" validate:"required,min=3,max=10000"`
}

// decodeAndValidate reads a bounded JSON body into dst and runs struct
// validation. It writes the error response itself and reports success.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first struct validation failure as a client
// facing message without echoing the offending value back.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// startResearch handles POST /research. It creates a session and starts the
// pipeline asynchronously; the session ID comes back immediately.
func (s *Server) startResearch(w http.ResponseWriter, r *http.Request) {
	var req startResearchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat_id must be a valid UUID")
		return
	}

	sessionID, err := s.research.Start(r.Context(), orchestrator.StartRequest{
		ChatID:          chatID,
		Query:           strings.TrimSpace(req.Query),
		Model:           req.Model,
		Language:        req.Language,
		DocumentContext: req.DocumentContext,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startResearchResponse{
		SessionID: sessionID.String(),
		ChatID:    chatID.String(),
		Status:    string(domain.SessionStatusPending),
		Message:   "research started",
	})
}

// getSession handles GET /research/sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	session, err := s.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainSessionToResponse(session))
}

// listSessions handles GET /research/sessions with optional filters.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	filter := repository.SessionFilter{
		Limit:  limit,
		Offset: offset,
	}

	if chatIDParam := r.URL.Query().Get("chat_id"); chatIDParam != "" {
		chatID, ok := parseUUID(w, chatIDParam, "chat_id")
		if !ok {
			return
		}
		filter.ChatID = &chatID
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filter.Status = []domain.SessionStatus{domain.SessionStatus(statusParam)}
	}

	if createdAfter := r.URL.Query().Get("created_after"); createdAfter != "" {
		t, parseErr := time.Parse(time.RFC3339, createdAfter)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}
	if createdBefore := r.URL.Query().Get("created_before"); createdBefore != "" {
		t, parseErr := time.Parse(time.RFC3339, createdBefore)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_before format: expected RFC3339")
			return
		}
		filter.CreatedBefore = &t
	}

	sessions, totalCount, err := s.sessions.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]sessionSummaryResponse, len(sessions))
	for i, sess := range sessions {
		summaries[i] = domainSessionToSummary(sess)
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{
		Sessions:      summaries,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// pauseSession handles POST /research/sessions/{sessionID}/pause.
func (s *Server) pauseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	if err := s.research.Pause(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionActionResponse{
		SessionID: sessionID.String(),
		Status:    string(domain.SessionStatusPaused),
		Message:   "pause requested",
	})
}

// resumeSession handles POST /research/sessions/{sessionID}/resume.
func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	if err := s.research.Resume(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionActionResponse{
		SessionID: sessionID.String(),
		Status:    string(domain.SessionStatusRunning),
		Message:   "research resumed",
	})
}

// cancelSession handles POST /research/sessions/{sessionID}/cancel.
func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	if err := s.research.Cancel(sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionActionResponse{
		SessionID: sessionID.String(),
		Status:    string(domain.SessionStatusCancelled),
		Message:   "cancellation requested",
	})
}

// updateSessionQuery handles PUT /research/sessions/{sessionID}/query. The
// revised query is persisted; a running session is cancelled so a fresh run
// can pick up the new query.
func (s *Server) updateSessionQuery(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	var req updateQueryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.research.UpdateQuery(r.Context(), sessionID, strings.TrimSpace(req.Query)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionActionResponse{
		SessionID: sessionID.String(),
		Message:   "query updated",
	})
}

// listChatMessages handles GET /chats/{chatID}/messages.
func (s *Server) listChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseUUID(w, chi.URLParam(r, "chatID"), "chat_id")
	if !ok {
		return
	}

	limit, offset := parsePaginationParams(r)

	messages, totalCount, err := s.messages.ListByChat(r.Context(), chatID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]messageResponse, len(messages))
	for i, m := range messages {
		responses[i] = domainMessageToResponse(m)
	}

	writeJSON(w, http.StatusOK, listMessagesResponse{
		Messages:      responses,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrSessionActive):
		writeError(w, http.StatusConflict, "another research session is already active")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not included to avoid echoing
// potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters. It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns an
// empty string if there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
