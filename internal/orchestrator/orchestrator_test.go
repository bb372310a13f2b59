package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/repository"
)

// Compile-time interface checks for the test doubles.
var (
	_ llm.Client                   = (*fakeLLM)(nil)
	_ Searcher                     = (*fakeSearcher)(nil)
	_ repository.SessionRepository = (*memSessionRepo)(nil)
	_ repository.MessageRepository = (*memMessageRepo)(nil)
)

// opPlan etc. identify which pipeline operation a prompt belongs to.
const (
	opPlan       = "plan"
	opKeywords   = "keywords"
	opSynthesize = "synthesize"
	opSummary    = "summary"
	opTitle      = "title"
)

// classifyPrompt maps a prompt back to its pipeline operation by its
// distinctive instruction text.
func classifyPrompt(prompt string) string {
	switch {
	case strings.Contains(prompt, `{"sections":`):
		return opPlan
	case strings.Contains(prompt, "exactly four academic literature search keywords"):
		return opKeywords
	case strings.Contains(prompt, "Verified sources:"):
		return opSynthesize
	case strings.Contains(prompt, "executive summary") || strings.Contains(prompt, "요약을"):
		return opSummary
	case strings.Contains(prompt, "short title") || strings.Contains(prompt, "짧은 제목"):
		return opTitle
	default:
		return "unknown"
	}
}

// fakeLLM dispatches chat requests to a scripted handler keyed by operation.
// ctxHandler, when set, takes precedence and also receives the call context.
type fakeLLM struct {
	mu         sync.Mutex
	handler    func(op, prompt string) (string, error)
	ctxHandler func(ctx context.Context, op, prompt string) (string, error)
	ops        []string
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	op := classifyPrompt(prompt)

	f.mu.Lock()
	f.ops = append(f.ops, op)
	handler := f.handler
	ctxHandler := f.ctxHandler
	f.mu.Unlock()

	var content string
	var err error
	if ctxHandler != nil {
		content, err = ctxHandler(ctx, op, prompt)
	} else {
		content, err = handler(op, prompt)
	}
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{Content: content, Model: "fake-model"}, nil
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake-model" }

func (f *fakeLLM) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// fakeSearcher returns scripted results per call, in call order.
type fakeSearcher struct {
	mu      sync.Mutex
	results [][]*domain.AcademicSource
	calls   int
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) []*domain.AcademicSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.calls >= len(f.results) {
		f.calls++
		return nil
	}
	res := f.results[f.calls]
	f.calls++
	return res
}

func (f *fakeSearcher) recordedQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// memSessionRepo is an in-memory SessionRepository recording status history.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ResearchSession
	history  map[uuid.UUID][]domain.SessionStatus
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: make(map[uuid.UUID]*domain.ResearchSession),
		history:  make(map[uuid.UUID][]domain.SessionStatus),
	}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.ResearchSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return domain.NewAlreadyExistsError("session", s.ID.String())
	}
	copied := *s
	r.sessions[s.ID] = &copied
	r.history[s.ID] = append(r.history[s.ID], s.Status)
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("session", id.String())
	}
	copied := *s
	return &copied, nil
}

func (r *memSessionRepo) List(_ context.Context, filter repository.SessionFilter) ([]*domain.ResearchSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ResearchSession
	for _, s := range r.sessions {
		if filter.ChatID != nil && s.ChatID != *filter.ChatID {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memSessionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewNotFoundError("session", id.String())
	}
	s.Status = status
	r.history[id] = append(r.history[id], status)
	return nil
}

func (r *memSessionRepo) UpdatePlan(_ context.Context, id uuid.UUID, plan *domain.ResearchPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewNotFoundError("session", id.String())
	}
	s.Plan = plan
	return nil
}

func (r *memSessionRepo) UpdateStep(_ context.Context, id uuid.UUID, step int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewNotFoundError("session", id.String())
	}
	s.CurrentStep = step
	return nil
}

func (r *memSessionRepo) UpdateQuery(_ context.Context, id uuid.UUID, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewNotFoundError("session", id.String())
	}
	s.Query = query
	return nil
}

func (r *memSessionRepo) UpdateProgress(_ context.Context, id uuid.UUID, report string, sources []*domain.AcademicSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewNotFoundError("session", id.String())
	}
	s.ReportContent = report
	s.Sources = sources
	return nil
}

func (r *memSessionRepo) statusHistory(id uuid.UUID) []domain.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SessionStatus(nil), r.history[id]...)
}

// memMessageRepo is an in-memory MessageRepository.
type memMessageRepo struct {
	mu       sync.Mutex
	messages []*domain.ChatMessage
}

func (r *memMessageRepo) Create(_ context.Context, m *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.messages = append(r.messages, &copied)
	return nil
}

func (r *memMessageRepo) ListByChat(_ context.Context, chatID uuid.UUID, _, _ int) ([]*domain.ChatMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChatMessage
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memMessageRepo) all() []*domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.ChatMessage(nil), r.messages...)
}

// captureSink records events and republishes them on a channel for waiting.
type captureSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
	ch     chan domain.ProgressEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan domain.ProgressEvent, 256)}
}

func (s *captureSink) Emit(event domain.ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	select {
	case s.ch <- event:
	default:
	}
}

func (s *captureSink) ofType(eventType string) []domain.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProgressEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// waitTerminal blocks until a terminal event arrives and returns it.
func (s *captureSink) waitTerminal(t *testing.T) domain.ProgressEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-s.ch:
			if e.IsTerminal() {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for a terminal event")
			return domain.ProgressEvent{}
		}
	}
}

// testHarness bundles the orchestrator with its fakes.
type testHarness struct {
	orch     *Orchestrator
	llm      *fakeLLM
	searcher *fakeSearcher
	sessions *memSessionRepo
	messages *memMessageRepo
	sink     *captureSink
}

func newHarness(handler func(op, prompt string) (string, error), results [][]*domain.AcademicSource) *testHarness {
	h := &testHarness{
		llm:      &fakeLLM{handler: handler},
		searcher: &fakeSearcher{results: results},
		sessions: newMemSessionRepo(),
		messages: &memMessageRepo{},
		sink:     newCaptureSink(),
	}
	h.orch = New(
		h.llm, h.searcher, h.sessions, h.messages, h.sink,
		Config{PollInterval: 5 * time.Millisecond},
		zerolog.Nop(), nil,
	)
	return h
}

const twoSectionPlan = `{"sections": [
	{"title": "Background", "description": "Field overview"},
	{"title": "Methods", "description": "Recent approaches"}
]}`

func happyPathHandler(op, _ string) (string, error) {
	switch op {
	case opPlan:
		return twoSectionPlan, nil
	case opKeywords:
		return "quantum, error correction, surface codes, decoherence", nil
	case opSynthesize:
		return "A verified claim (DOI: 10.1/a). A fabricated one (DOI: 10.9/fake).", nil
	case opSummary:
		return "The field is advancing (DOI: 10.1/a).", nil
	case opTitle:
		return "Quantum Research Overview", nil
	default:
		return "", errors.New("unexpected operation")
	}
}

func testSources() [][]*domain.AcademicSource {
	src1 := &domain.AcademicSource{
		Title:   "Surface codes",
		Authors: []domain.Author{{Name: "Alice Smith"}},
		Journal: "Phys Rev A",
		Year:    2012,
		DOI:     "10.1/a",
	}
	src2 := &domain.AcademicSource{
		Title:   "Decoherence",
		Authors: []domain.Author{{Name: "Bob Lee"}, {Name: "Carol Park"}},
		Journal: "Nature",
		Year:    2019,
		DOI:     "10.1/b",
	}
	duplicate := &domain.AcademicSource{Title: "Surface codes again", DOI: "10.1/A"}
	return [][]*domain.AcademicSource{
		{src1},
		{src2, duplicate},
	}
}

func TestOrchestrator_HappyPath(t *testing.T) {
	h := newHarness(happyPathHandler, testSources())
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{
		ChatID:   uuid.New(),
		Query:    "quantum error correction",
		Language: "en",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCompleted, terminal.Type)
	assert.Equal(t, id, terminal.SessionID)

	// Status lifecycle: pending at create, then running, then completed.
	assert.Equal(t, []domain.SessionStatus{
		domain.SessionStatusPending,
		domain.SessionStatusRunning,
		domain.SessionStatusCompleted,
	}, h.sessions.statusHistory(id))

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session.Plan)
	assert.Equal(t, []string{"Background", "Methods"}, session.Plan.Titles())

	// Final report: summary heading, section headings, rewritten verified
	// citation, deleted fabricated citation, references in citation order.
	report := session.ReportContent
	assert.Contains(t, report, "## Executive Summary")
	assert.Contains(t, report, "## Background")
	assert.Contains(t, report, "## Methods")
	assert.Contains(t, report, "([Smith 2012](https://doi.org/10.1/a))")
	assert.NotContains(t, report, "10.9/fake")
	assert.Contains(t, report, "## References")

	// Sources deduplicated case-insensitively across sections.
	require.Len(t, session.Sources, 2)
	assert.Equal(t, "10.1/a", session.Sources[0].DOI)
	assert.Equal(t, "10.1/b", session.Sources[1].DOI)

	// Report persisted as one assistant message with metadata.
	messages := h.messages.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "assistant", messages[0].Role)
	assert.Equal(t, report, messages[0].Content)
	assert.Equal(t, id.String(), messages[0].Metadata["session_id"])

	// Event stream shape.
	assert.Len(t, h.sink.ofType(domain.EventPlanCreated), 1)
	assert.Len(t, h.sink.ofType(domain.EventResearchStarted), 2)
	assert.Len(t, h.sink.ofType(domain.EventSourceFound), 2)
	assert.Len(t, h.sink.ofType(domain.EventReportChunk), 3)
	assert.Len(t, h.sink.ofType(domain.EventReportReplace), 1)

	// source_found events preserve search return order.
	found := h.sink.ofType(domain.EventSourceFound)
	assert.Equal(t, "10.1/a", found[0].Data["doi"])
	assert.Equal(t, "10.1/b", found[1].Data["doi"])

	// plan_created carries the table of contents and the full plan.
	planned := h.sink.ofType(domain.EventPlanCreated)[0]
	assert.Equal(t, []string{"Background", "Methods"}, planned.Data["toc"])
	assert.Equal(t, session.Plan, planned.Data["full_plan"])

	// research_started carries the section index and topic.
	started := h.sink.ofType(domain.EventResearchStarted)
	assert.Equal(t, 0, started[0].Data["section_index"])
	assert.Equal(t, "Background", started[0].Data["topic"])
	assert.Equal(t, 1, started[1].Data["section_index"])
	assert.Equal(t, "Methods", started[1].Data["topic"])

	// tool_start alternates keyword generation (with section) and academic
	// search (with the generated query).
	tools := h.sink.ofType(domain.EventToolStart)
	require.Len(t, tools, 4)
	assert.Equal(t, domain.ToolKeywordGeneration, tools[0].Data["tool"])
	assert.Equal(t, "Background", tools[0].Data["section"])
	assert.Equal(t, domain.ToolAcademicSearch, tools[1].Data["tool"])
	assert.NotEmpty(t, tools[1].Data["query"])

	// report_chunk payloads use the chunk key; only the last streamed chunk
	// carries the final flag.
	chunks := h.sink.ofType(domain.EventReportChunk)
	for _, e := range chunks {
		assert.NotEmpty(t, e.Data["chunk"])
	}
	assert.Nil(t, chunks[0].Data["final"])
	assert.Nil(t, chunks[1].Data["final"])
	assert.Equal(t, true, chunks[2].Data["final"])

	// completed carries a report preview that prefixes the final document.
	preview, ok := terminal.Data["report_preview"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, preview)
	assert.True(t, strings.HasPrefix(report, preview))

	// Title generation reports through a status event.
	var titled bool
	for _, e := range h.sink.ofType(domain.EventStatus) {
		if e.Data["title_generated"] == "Quantum Research Overview" {
			titled = true
		}
	}
	assert.True(t, titled)
}

func TestOrchestrator_NoSourcesPlaceholder(t *testing.T) {
	h := newHarness(happyPathHandler, nil) // every search returns nothing
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{
		ChatID:   uuid.New(),
		Query:    "impossibly obscure topic",
		Language: "en",
	})
	require.NoError(t, err)

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCompleted, terminal.Type)

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, noSourcesPlaceholder("en"), session.ReportContent)
	assert.Empty(t, session.Sources)

	// No summary or citation phase ran.
	assert.NotContains(t, h.llm.operations(), opSummary)
	assert.Empty(t, h.sink.ofType(domain.EventReportReplace))

	// The placeholder is still delivered as a durable message.
	messages := h.messages.all()
	require.Len(t, messages, 1)
	assert.Equal(t, noSourcesPlaceholder("en"), messages[0].Content)
}

func TestOrchestrator_KeywordFallback(t *testing.T) {
	handler := func(op, prompt string) (string, error) {
		if op == opKeywords {
			return "", errors.New("model overloaded")
		}
		return happyPathHandler(op, prompt)
	}
	h := newHarness(handler, testSources())

	_, err := h.orch.Start(context.Background(), StartRequest{
		ChatID: uuid.New(),
		Query:  "quantum error correction",
	})
	require.NoError(t, err)

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCompleted, terminal.Type)

	// The search queries fall back to the literal title + description.
	queries := h.searcher.recordedQueries()
	require.Len(t, queries, 2)
	assert.Equal(t, "Background Field overview", queries[0])
	assert.Equal(t, "Methods Recent approaches", queries[1])
}

func TestOrchestrator_PlanParseFailureIsFatal(t *testing.T) {
	handler := func(op, prompt string) (string, error) {
		if op == opPlan {
			return "1. Background\n2. Methods", nil
		}
		return happyPathHandler(op, prompt)
	}
	h := newHarness(handler, testSources())
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "topic"})
	require.NoError(t, err)

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventError, terminal.Type)
	assert.Contains(t, terminal.Message, "unparseable research plan")

	// The session record still closes.
	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, session.Status)
	assert.Empty(t, h.messages.all())
}

func TestOrchestrator_PauseResume(t *testing.T) {
	idCh := make(chan uuid.UUID, 1)
	var pauseOnce sync.Once
	var h *testHarness

	handler := func(op, prompt string) (string, error) {
		if op == opSynthesize {
			pauseOnce.Do(func() {
				id := <-idCh
				require.NoError(t, h.orch.Pause(context.Background(), id))
			})
		}
		return happyPathHandler(op, prompt)
	}
	h = newHarness(handler, testSources())
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "topic"})
	require.NoError(t, err)
	idCh <- id

	// The pause lands during section 0's synthesis call; the run halts at
	// the next checkpoint, before section 1 starts.
	require.Eventually(t, func() bool {
		return len(h.sink.ofType(domain.EventPaused)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.sink.ofType(domain.EventResearchStarted), 1)

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPaused, session.Status)

	require.NoError(t, h.orch.Resume(ctx, id))

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCompleted, terminal.Type)
	assert.Len(t, h.sink.ofType(domain.EventResearchStarted), 2)
}

func TestOrchestrator_CancelDuringPause(t *testing.T) {
	idCh := make(chan uuid.UUID, 1)
	var pauseOnce sync.Once
	var h *testHarness

	handler := func(op, prompt string) (string, error) {
		if op == opSynthesize {
			pauseOnce.Do(func() {
				id := <-idCh
				require.NoError(t, h.orch.Pause(context.Background(), id))
			})
		}
		return happyPathHandler(op, prompt)
	}
	h = newHarness(handler, testSources())
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "topic"})
	require.NoError(t, err)
	idCh <- id

	require.Eventually(t, func() bool {
		return len(h.sink.ofType(domain.EventPaused)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Cancel while paused: the pause-wait loop observes it at the next poll.
	require.NoError(t, h.orch.Cancel(id))

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCancelled, terminal.Type)

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, session.Status)
	assert.Empty(t, h.sink.ofType(domain.EventCompleted))
}

func TestOrchestrator_CancelDuringLLMCall(t *testing.T) {
	inCall := make(chan struct{})
	var once sync.Once

	h := newHarness(happyPathHandler, testSources())
	// The real providers surface ctx.Err() when the request context is
	// cancelled mid-call; the run must still classify that as cancellation.
	h.llm.ctxHandler = func(ctx context.Context, op, prompt string) (string, error) {
		if op == opSynthesize {
			once.Do(func() { close(inCall) })
			<-ctx.Done()
			return "", ctx.Err()
		}
		return happyPathHandler(op, prompt)
	}
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "topic"})
	require.NoError(t, err)

	<-inCall
	require.NoError(t, h.orch.Cancel(id))

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCancelled, terminal.Type)
	assert.Empty(t, h.sink.ofType(domain.EventError))

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, session.Status)
	assert.Empty(t, h.messages.all())
}

func TestOrchestrator_SingleActiveSession(t *testing.T) {
	release := make(chan struct{})
	handler := func(op, prompt string) (string, error) {
		if op == opPlan {
			<-release
		}
		return happyPathHandler(op, prompt)
	}
	h := newHarness(handler, testSources())
	ctx := context.Background()

	chatID := uuid.New()
	id, err := h.orch.Start(ctx, StartRequest{ChatID: chatID, Query: "first"})
	require.NoError(t, err)

	activeID, ok := h.orch.ActiveSessionID()
	assert.True(t, ok)
	assert.Equal(t, id, activeID)

	_, err = h.orch.Start(ctx, StartRequest{ChatID: chatID, Query: "second"})
	assert.ErrorIs(t, err, domain.ErrSessionActive)

	close(release)
	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCompleted, terminal.Type)

	// The slot is free again once the run finishes.
	require.Eventually(t, func() bool {
		_, active := h.orch.ActiveSessionID()
		return !active
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOrchestrator_UpdateQueryCancelsActiveRun(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	var once sync.Once
	handler := func(op, prompt string) (string, error) {
		if op == opPlan {
			once.Do(func() { close(started) })
			<-block
		}
		return happyPathHandler(op, prompt)
	}
	h := newHarness(handler, testSources())
	ctx := context.Background()

	id, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "original"})
	require.NoError(t, err)
	<-started

	require.NoError(t, h.orch.UpdateQuery(ctx, id, "revised query"))
	close(block)

	terminal := h.sink.waitTerminal(t)
	assert.Equal(t, domain.EventCancelled, terminal.Type)

	session, err := h.sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "revised query", session.Query)
	assert.Equal(t, domain.SessionStatusCancelled, session.Status)
}

func TestOrchestrator_StartValidation(t *testing.T) {
	h := newHarness(happyPathHandler, nil)
	ctx := context.Background()

	t.Run("rejects nil chat ID", func(t *testing.T) {
		_, err := h.orch.Start(ctx, StartRequest{Query: "q"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects blank query", func(t *testing.T) {
		_, err := h.orch.Start(ctx, StartRequest{ChatID: uuid.New(), Query: "   "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
