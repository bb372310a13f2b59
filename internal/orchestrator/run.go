package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/citation"
	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/observability"
)

// reportPreviewLen bounds the report excerpt carried on the completed event.
const reportPreviewLen = 500

// sectionResult is one researched plan section awaiting final assembly.
type sectionResult struct {
	Title       string
	Description string
	Content     string
	Sources     []*domain.AcademicSource
}

// run executes the full pipeline for one session and maps the outcome to a
// terminal status. Cancellation is not an error; any other failure still
// closes the session record.
func (o *Orchestrator) run(ctx context.Context, as *activeSession, session *domain.ResearchSession, documentContext string) {
	start := time.Now()
	logger := observability.WithSessionContext(o.logger, session.ID.String(), session.ChatID.String())

	defer func() {
		as.cancel()
		o.clearActive(as)
		close(as.done)
	}()

	// Terminal bookkeeping must survive run-context cancellation.
	persistCtx := context.Background()

	err := o.execute(ctx, persistCtx, as, session, documentContext, logger)
	duration := time.Since(start).Seconds()

	switch {
	case errors.Is(err, domain.ErrCancelled) || (ctx.Err() != nil && errors.Is(err, context.Canceled)):
		// A cancel while an external call is in flight aborts that call with
		// context.Canceled rather than tripping a checkpoint; both paths are
		// the same user cancellation.
		if updErr := o.sessions.UpdateStatus(persistCtx, session.ID, domain.SessionStatusCancelled); updErr != nil {
			logger.Error().Err(updErr).Msg("failed to persist cancelled status")
		}
		o.emit(domain.NewProgressEvent(session.ID, domain.EventCancelled).WithMessage("research cancelled"))
		if o.metrics != nil {
			o.metrics.RecordSessionCancelled(duration)
		}
		logger.Info().Float64("duration_seconds", duration).Msg("session cancelled")

	case err != nil:
		// The session record still closes on failure; only cancellation
		// yields the cancelled status.
		if updErr := o.sessions.UpdateStatus(persistCtx, session.ID, domain.SessionStatusCompleted); updErr != nil {
			logger.Error().Err(updErr).Msg("failed to persist terminal status after error")
		}
		o.emit(domain.NewProgressEvent(session.ID, domain.EventError).WithMessage(err.Error()))
		logger.Error().Err(err).Float64("duration_seconds", duration).Msg("session failed")

	default:
		if updErr := o.sessions.UpdateStatus(persistCtx, session.ID, domain.SessionStatusCompleted); updErr != nil {
			logger.Error().Err(updErr).Msg("failed to persist completed status")
		}
		o.emit(domain.NewProgressEvent(session.ID, domain.EventCompleted).
			WithMessage("research completed").
			WithData(map[string]interface{}{
				"report_preview": truncate(session.ReportContent, reportPreviewLen),
			}))
		if o.metrics != nil {
			o.metrics.RecordSessionCompleted(duration)
		}
		logger.Info().Float64("duration_seconds", duration).Msg("session completed")
	}
}

// execute runs the plan, research, synthesis, and validation phases.
func (o *Orchestrator) execute(
	ctx context.Context,
	persistCtx context.Context,
	as *activeSession,
	session *domain.ResearchSession,
	documentContext string,
	logger zerolog.Logger,
) error {
	if err := o.sessions.UpdateStatus(persistCtx, session.ID, domain.SessionStatusRunning); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	session.Status = domain.SessionStatusRunning
	o.emit(domain.NewProgressEvent(session.ID, domain.EventStatus).WithMessage("planning research"))

	// Phase 1: plan.
	plan, err := o.plan(ctx, session, documentContext)
	if err != nil {
		return err
	}
	session.Plan = plan
	if err := o.sessions.UpdatePlan(persistCtx, session.ID, plan); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}
	o.emit(domain.NewProgressEvent(session.ID, domain.EventPlanCreated).WithData(map[string]interface{}{
		"toc":       plan.Titles(),
		"full_plan": plan,
	}))
	logger.Info().Int("sections", len(plan.Sections)).Msg("research plan created")

	// Phase 2: research each section strictly in order.
	results := make([]sectionResult, 0, len(plan.Sections))
	for i, sec := range plan.Sections {
		if err := o.checkpoint(ctx, as); err != nil {
			return err
		}

		result, err := o.researchSection(ctx, persistCtx, session, i, sec, logger)
		if err != nil {
			return err
		}
		results = append(results, result)

		if o.metrics != nil {
			o.metrics.RecordSectionResearched()
		}
	}

	if err := o.checkpoint(ctx, as); err != nil {
		return err
	}

	// Phase 3 + 4: assemble, validate citations, persist.
	return o.synthesize(ctx, persistCtx, session, results, logger)
}

// plan issues the planning request and parses the structured outline.
// Parse failure is fatal to the session.
func (o *Orchestrator) plan(ctx context.Context, session *domain.ResearchSession, documentContext string) (*domain.ResearchPlan, error) {
	prompt := buildPlanPrompt(session.Query, truncate(documentContext, o.cfg.DocumentPrefixLen), session.Language)
	response, err := o.chat(ctx, "plan", session.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning request: %w", err)
	}
	return parsePlan(response)
}

// researchSection runs keyword generation, literature search, and section
// synthesis for one plan section.
func (o *Orchestrator) researchSection(
	ctx context.Context,
	persistCtx context.Context,
	session *domain.ResearchSession,
	index int,
	sec domain.PlanSection,
	logger zerolog.Logger,
) (sectionResult, error) {
	sectionLogger := observability.WithSectionContext(logger, index, sec.Title)

	o.emit(domain.NewProgressEvent(session.ID, domain.EventResearchStarted).WithData(map[string]interface{}{
		"section_index": index,
		"topic":         sec.Title,
	}))

	session.CurrentStep = index
	if err := o.sessions.UpdateStep(persistCtx, session.ID, index); err != nil {
		return sectionResult{}, fmt.Errorf("persist step: %w", err)
	}

	// Keyword generation degrades to a deterministic literal string; the
	// pipeline never stalls because this call failed.
	o.emit(domain.NewProgressEvent(session.ID, domain.EventToolStart).WithData(map[string]interface{}{
		"tool":    domain.ToolKeywordGeneration,
		"section": sec.Title,
	}))
	keywords, err := o.chat(ctx, "keywords", session.Model, buildKeywordPrompt(sec.Title, sec.Description))
	if err != nil || keywords == "" {
		keywords = sec.Title + " " + sec.Description
		sectionLogger.Warn().Err(err).Msg("keyword generation failed, using literal fallback")
	}

	o.emit(domain.NewProgressEvent(session.ID, domain.EventToolStart).WithData(map[string]interface{}{
		"tool":  domain.ToolAcademicSearch,
		"query": keywords,
	}))
	sources := o.search.Search(ctx, keywords)
	sectionLogger.Info().Int("sources", len(sources)).Msg("section search finished")

	for _, src := range sources {
		if session.AddSource(src) {
			o.emit(domain.NewProgressEvent(session.ID, domain.EventSourceFound).WithData(map[string]interface{}{
				"title":   src.Title,
				"url":     src.URL(),
				"doi":     src.DOI,
				"journal": src.Journal,
			}))
		}
	}

	content, err := o.chat(ctx, "synthesize", session.Model, buildSynthesisPrompt(sec.Title, sec.Description, sources, session.Language))
	if err != nil {
		return sectionResult{}, fmt.Errorf("synthesize section %q: %w", sec.Title, err)
	}

	return sectionResult{
		Title:       sec.Title,
		Description: sec.Description,
		Content:     content,
		Sources:     sources,
	}, nil
}

// synthesize assembles the final report: executive summary, cleaned section
// chunks, citation validation, references, and persistence.
func (o *Orchestrator) synthesize(
	ctx context.Context,
	persistCtx context.Context,
	session *domain.ResearchSession,
	results []sectionResult,
	logger zerolog.Logger,
) error {
	// The plan should already exclude reserved titles; drop any stragglers.
	kept := results[:0]
	for _, res := range results {
		if !domain.IsReservedSectionTitle(res.Title) {
			kept = append(kept, res)
		}
	}
	results = kept

	// Zero verified sources across the whole run means nothing is citable.
	// Refuse to synthesize and deliver the placeholder instead.
	if len(session.Sources) == 0 {
		placeholder := noSourcesPlaceholder(session.Language)
		session.Sources = nil
		session.ReportContent = placeholder

		if err := o.sessions.UpdateProgress(persistCtx, session.ID, placeholder, nil); err != nil {
			return fmt.Errorf("persist placeholder report: %w", err)
		}
		o.emit(domain.NewProgressEvent(session.ID, domain.EventReportChunk).WithData(map[string]interface{}{
			"chunk": placeholder,
			"final": true,
		}))
		o.persistMessage(persistCtx, session, logger)
		logger.Info().Msg("no sources found, placeholder report delivered")
		return nil
	}

	fallback := domain.BuildFallbackMap(session.Sources)
	allowedDOIs := make([]string, 0, len(session.Sources))
	for _, src := range session.Sources {
		allowedDOIs = append(allowedDOIs, src.DOI)
	}

	summary, err := o.chat(ctx, "summary", session.Model, buildSummaryPrompt(results, allowedDOIs, session.Language))
	if err != nil {
		return fmt.Errorf("summary request: %w", err)
	}

	report := summaryHeading(session.Language) + "\n\n" + cleanModelOutput(summary)
	o.emit(domain.NewProgressEvent(session.ID, domain.EventReportChunk).WithData(map[string]interface{}{
		"chunk": report,
	}))

	for i, res := range results {
		chunk := "\n\n## " + res.Title + "\n\n" + cleanModelOutput(res.Content)
		report += chunk
		data := map[string]interface{}{"chunk": chunk}
		if i == len(results)-1 {
			data["final"] = true
		}
		o.emit(domain.NewProgressEvent(session.ID, domain.EventReportChunk).WithData(data))
	}

	// Citation validation rewrites verified citations and deletes the rest,
	// then appends the references list in first-citation order.
	filtered := citation.FilterCitations(report, fallback)
	references := citation.GenerateReferences(filtered.CitedDOIs, nil, fallback, session.Language)
	final := filtered.ProcessedContent + "\n\n" + references

	if o.metrics != nil {
		o.metrics.RecordCitations(len(filtered.CitedDOIs), len(filtered.RemovedDOIs))
	}
	logger.Info().
		Int("cited", len(filtered.CitedDOIs)).
		Int("removed", len(filtered.RemovedDOIs)).
		Msg("citation validation finished")

	// Rewriting can alter earlier text, so the validated document goes out
	// as a full replace rather than a patch.
	o.emit(domain.NewProgressEvent(session.ID, domain.EventReportReplace).WithData(map[string]interface{}{
		"content": final,
	}))

	session.ReportContent = final
	if err := o.sessions.UpdateProgress(persistCtx, session.ID, final, session.Sources); err != nil {
		return fmt.Errorf("persist final report: %w", err)
	}

	o.persistMessage(persistCtx, session, logger)
	o.generateTitle(ctx, session, logger)

	return nil
}

// persistMessage stores the final report as a durable assistant message with
// the session's source list attached as metadata. Failures are logged, not
// fatal: the session row already holds the report.
func (o *Orchestrator) persistMessage(ctx context.Context, session *domain.ResearchSession, logger zerolog.Logger) {
	message := &domain.ChatMessage{
		ID:      uuid.New(),
		ChatID:  session.ChatID,
		Role:    llm.RoleAssistant,
		Content: session.ReportContent,
		Metadata: map[string]interface{}{
			"session_id": session.ID.String(),
			"sources":    session.Sources,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := o.messages.Create(ctx, message); err != nil {
		logger.Error().Err(err).Msg("failed to persist report message")
	}
}

// generateTitle asks for a short conversation title. Best effort: a failure
// is logged and swallowed.
func (o *Orchestrator) generateTitle(ctx context.Context, session *domain.ResearchSession, logger zerolog.Logger) {
	title, err := o.chat(ctx, "title", session.Model, buildTitlePrompt(session.Query, session.Language))
	if err != nil {
		logger.Warn().Err(err).Msg("conversation title generation failed")
		return
	}

	o.emit(domain.NewProgressEvent(session.ID, domain.EventStatus).
		WithMessage("conversation title generated").
		WithData(map[string]interface{}{
			"title_generated": title,
		}))
}

// chat issues one LLM request and records usage metrics.
func (o *Orchestrator) chat(ctx context.Context, operation, model, prompt string) (string, error) {
	start := time.Now()
	resp, err := o.llm.Chat(ctx, llm.ChatRequest{
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})

	metricModel := model
	if metricModel == "" {
		metricModel = o.llm.Model()
	}

	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordLLMRequestFailed(operation, metricModel, "request_error")
		}
		return "", err
	}

	if o.metrics != nil {
		o.metrics.RecordLLMRequest(operation, metricModel, time.Since(start).Seconds(), resp.InputTokens, resp.OutputTokens)
	}
	return resp.Content, nil
}
