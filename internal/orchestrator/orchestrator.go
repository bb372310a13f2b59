// Package orchestrator drives the research pipeline: plan, per-section
// research, synthesis, citation validation, and persistence. One session
// runs at a time; pause and cancel are observed cooperatively at section
// and phase boundaries, never mid-call.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/events"
	"github.com/helixir/research-report-service/internal/llm"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/repository"
)

// Default orchestration parameters.
const (
	// DefaultPollInterval is the pause/cancel checkpoint polling interval.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultDocumentPrefixLen bounds each attached document's contribution
	// to the planning prompt.
	DefaultDocumentPrefixLen = 4000
)

// Searcher is the literature search dependency.
// *search.Gateway satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) []*domain.AcademicSource
}

// Config holds orchestration tuning knobs.
type Config struct {
	// PollInterval is the pause/cancel polling interval at checkpoints.
	PollInterval time.Duration

	// DocumentPrefixLen bounds attached-document text in the planning prompt.
	DocumentPrefixLen int

	// DefaultLanguage is used when a start request omits a language tag.
	DefaultLanguage string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DocumentPrefixLen <= 0 {
		c.DocumentPrefixLen = DefaultDocumentPrefixLen
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = domain.LanguageEnglish
	}
}

// activeSession is the in-memory record of the one currently running session.
type activeSession struct {
	id     uuid.UUID
	chatID uuid.UUID
	cancel context.CancelFunc
	paused atomic.Bool
	done   chan struct{}
}

// Orchestrator coordinates LLM calls, literature search, citation
// validation, event emission, and persistence for research sessions.
type Orchestrator struct {
	llm      llm.Client
	search   Searcher
	sessions repository.SessionRepository
	messages repository.MessageRepository
	sink     events.Sink
	logger   zerolog.Logger
	metrics  *observability.Metrics
	cfg      Config

	mu     sync.Mutex
	active *activeSession
}

// New creates an orchestrator. The metrics recorder may be nil.
func New(
	client llm.Client,
	searcher Searcher,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	sink events.Sink,
	cfg Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	cfg.applyDefaults()
	if sink == nil {
		sink = events.Discard
	}
	return &Orchestrator{
		llm:      client,
		search:   searcher,
		sessions: sessions,
		messages: messages,
		sink:     sink,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		metrics:  metrics,
		cfg:      cfg,
	}
}

// StartRequest carries the inputs for a new research run.
type StartRequest struct {
	ChatID   uuid.UUID
	Query    string
	Model    string
	Language string

	// DocumentContext is optional text from documents previously attached
	// to the conversation; it is truncated before prompt inclusion.
	DocumentContext string
}

// Start creates a session, begins asynchronous execution, and returns the
// session ID immediately. Returns domain.ErrSessionActive if another session
// currently occupies the run slot.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (uuid.UUID, error) {
	if req.ChatID == uuid.Nil {
		return uuid.Nil, domain.NewValidationError("chat_id", "chat ID is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return uuid.Nil, domain.NewValidationError("query", "query is required")
	}

	language := req.Language
	if language == "" {
		language = o.cfg.DefaultLanguage
	}
	language = domain.NormalizeLanguage(language)

	now := time.Now().UTC()
	session := &domain.ResearchSession{
		ID:        uuid.New(),
		ChatID:    req.ChatID,
		Status:    domain.SessionStatusPending,
		Query:     req.Query,
		Model:     req.Model,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return uuid.Nil, domain.ErrSessionActive
	}

	// The run outlives the start request, so it gets its own context.
	runCtx, cancel := context.WithCancel(context.Background())
	as := &activeSession{
		id:     session.ID,
		chatID: session.ChatID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.active = as
	o.mu.Unlock()

	if err := o.sessions.Create(ctx, session); err != nil {
		o.clearActive(as)
		cancel()
		return uuid.Nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordSessionStarted()
	}

	go o.run(runCtx, as, session, req.DocumentContext)

	return session.ID, nil
}

// Pause sets the paused flag for the active session. Pausing takes effect at
// the next cooperative checkpoint, not mid-call.
func (o *Orchestrator) Pause(ctx context.Context, id uuid.UUID) error {
	as := o.activeFor(id)
	if as == nil {
		return domain.NewNotFoundError("active session", id.String())
	}

	if as.paused.Swap(true) {
		return nil // already paused
	}

	if err := o.sessions.UpdateStatus(ctx, id, domain.SessionStatusPaused); err != nil {
		as.paused.Store(false)
		return err
	}

	if o.metrics != nil {
		o.metrics.RecordSessionPaused()
	}
	o.emit(domain.NewProgressEvent(id, domain.EventPaused).WithMessage("research paused"))
	return nil
}

// Resume clears the paused flag for the active session.
func (o *Orchestrator) Resume(ctx context.Context, id uuid.UUID) error {
	as := o.activeFor(id)
	if as == nil {
		return domain.NewNotFoundError("active session", id.String())
	}

	if !as.paused.Load() {
		return nil
	}

	if err := o.sessions.UpdateStatus(ctx, id, domain.SessionStatusRunning); err != nil {
		return err
	}
	as.paused.Store(false)

	o.emit(domain.NewProgressEvent(id, domain.EventStatus).WithMessage("research resumed"))
	return nil
}

// Cancel signals cancellation for the active session. The run observes it at
// the next checkpoint; an in-flight external call completes first.
func (o *Orchestrator) Cancel(id uuid.UUID) error {
	as := o.activeFor(id)
	if as == nil {
		return domain.NewNotFoundError("active session", id.String())
	}
	as.cancel()
	return nil
}

// UpdateQuery persists a new query for the session and cancels the current
// run if it is the active one. Restarting with the new query is the
// caller's responsibility.
func (o *Orchestrator) UpdateQuery(ctx context.Context, id uuid.UUID, query string) error {
	if err := o.sessions.UpdateQuery(ctx, id, query); err != nil {
		return err
	}

	if as := o.activeFor(id); as != nil {
		as.cancel()
	}

	o.emit(domain.NewProgressEvent(id, domain.EventStatus).WithMessage("query updated"))
	return nil
}

// ActiveSessionID returns the currently running session's ID, if any.
func (o *Orchestrator) ActiveSessionID() (uuid.UUID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return uuid.Nil, false
	}
	return o.active.id, true
}

// Wait blocks until the given session's run goroutine has finished. It
// returns immediately if the session is not active.
func (o *Orchestrator) Wait(id uuid.UUID) {
	as := o.activeFor(id)
	if as == nil {
		return
	}
	<-as.done
}

// activeFor returns the active session record if it matches id.
func (o *Orchestrator) activeFor(id uuid.UUID) *activeSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.id != id {
		return nil
	}
	return o.active
}

// clearActive releases the run slot if as still occupies it.
func (o *Orchestrator) clearActive(as *activeSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == as {
		o.active = nil
	}
}

// checkpoint is the cooperative pause/cancel yield point. It blocks while
// the session is paused, polling at the configured interval, and returns
// domain.ErrCancelled once cancellation is observed.
func (o *Orchestrator) checkpoint(ctx context.Context, as *activeSession) error {
	for {
		select {
		case <-ctx.Done():
			return domain.ErrCancelled
		default:
		}

		if !as.paused.Load() {
			return nil
		}

		select {
		case <-ctx.Done():
			return domain.ErrCancelled
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

// emit sends a progress event to the configured sink and counts it.
func (o *Orchestrator) emit(event domain.ProgressEvent) {
	o.sink.Emit(event)
	if o.metrics != nil {
		o.metrics.RecordEventEmitted(event.Type)
	}
}
