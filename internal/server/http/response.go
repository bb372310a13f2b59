package httpserver

import (
	"time"

	"github.com/helixir/research-report-service/internal/domain"
)

// Session response types for JSON serialization.

type startResearchResponse struct {
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type sessionActionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message"`
}

type planSectionResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type sourceResponse struct {
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Journal    string   `json:"journal,omitempty"`
	Year       int      `json:"year,omitempty"`
	DOI        string   `json:"doi"`
	URL        string   `json:"url"`
	Provenance string   `json:"provenance,omitempty"`
}

type sessionResponse struct {
	SessionID     string                `json:"session_id"`
	ChatID        string                `json:"chat_id"`
	Status        string                `json:"status"`
	Query         string                `json:"query"`
	Model         string                `json:"model,omitempty"`
	Language      string                `json:"language,omitempty"`
	Plan          []planSectionResponse `json:"plan,omitempty"`
	CurrentStep   int                   `json:"current_step"`
	Sources       []sourceResponse      `json:"sources,omitempty"`
	ReportContent string                `json:"report_content,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type sessionSummaryResponse struct {
	SessionID   string    `json:"session_id"`
	ChatID      string    `json:"chat_id"`
	Status      string    `json:"status"`
	Query       string    `json:"query"`
	CurrentStep int       `json:"current_step"`
	SourceCount int       `json:"source_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type listSessionsResponse struct {
	Sessions      []sessionSummaryResponse `json:"sessions"`
	NextPageToken string                   `json:"next_page_token,omitempty"`
	TotalCount    int                      `json:"total_count"`
}

type messageResponse struct {
	ID        string                 `json:"id"`
	ChatID    string                 `json:"chat_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type listMessagesResponse struct {
	Messages      []messageResponse `json:"messages"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	TotalCount    int               `json:"total_count"`
}

// Converter functions

func domainSessionToResponse(s *domain.ResearchSession) sessionResponse {
	resp := sessionResponse{
		SessionID:     s.ID.String(),
		ChatID:        s.ChatID.String(),
		Status:        string(s.Status),
		Query:         s.Query,
		Model:         s.Model,
		Language:      s.Language,
		CurrentStep:   s.CurrentStep,
		ReportContent: s.ReportContent,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}

	if s.Plan != nil {
		resp.Plan = make([]planSectionResponse, len(s.Plan.Sections))
		for i, sec := range s.Plan.Sections {
			resp.Plan[i] = planSectionResponse{
				Title:       sec.Title,
				Description: sec.Description,
			}
		}
	}

	if len(s.Sources) > 0 {
		resp.Sources = make([]sourceResponse, len(s.Sources))
		for i, src := range s.Sources {
			resp.Sources[i] = domainSourceToResponse(src)
		}
	}

	return resp
}

func domainSessionToSummary(s *domain.ResearchSession) sessionSummaryResponse {
	return sessionSummaryResponse{
		SessionID:   s.ID.String(),
		ChatID:      s.ChatID.String(),
		Status:      string(s.Status),
		Query:       s.Query,
		CurrentStep: s.CurrentStep,
		SourceCount: len(s.Sources),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func domainSourceToResponse(src *domain.AcademicSource) sourceResponse {
	return sourceResponse{
		Title:      src.Title,
		Authors:    src.AuthorNames(),
		Journal:    src.Journal,
		Year:       src.Year,
		DOI:        src.DOI,
		URL:        src.URL(),
		Provenance: string(src.Provenance),
	}
}

func domainMessageToResponse(m *domain.ChatMessage) messageResponse {
	return messageResponse{
		ID:        m.ID.String(),
		ChatID:    m.ChatID.String(),
		Role:      m.Role,
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}
