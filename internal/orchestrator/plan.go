package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helixir/research-report-service/internal/domain"
)

// planResponse is the JSON shape expected from the planning call.
type planResponse struct {
	Sections []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"sections"`
}

// parsePlan parses the planning response into a ResearchPlan. Reserved
// section titles (summary, references, locale equivalents) are dropped since
// their content is auto-generated. An unparseable response or a plan with no
// usable sections is fatal to the session.
func parsePlan(response string) (*domain.ResearchPlan, error) {
	raw := stripCodeFence(response)

	var parsed planResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlanParse, err)
	}

	plan := &domain.ResearchPlan{}
	for _, sec := range parsed.Sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" || domain.IsReservedSectionTitle(title) {
			continue
		}
		plan.Sections = append(plan.Sections, domain.PlanSection{
			Title:       title,
			Description: strings.TrimSpace(sec.Description),
		})
	}

	if len(plan.Sections) == 0 {
		return nil, fmt.Errorf("%w: no usable sections", domain.ErrPlanParse)
	}

	return plan, nil
}

// stripCodeFence removes a wrapping markdown code fence, with or without a
// language tag, that models frequently add around JSON output.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the fence line itself, which may carry a language tag.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
