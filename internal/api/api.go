// Package api provides HTTP handlers and the main API server for the
// companion service.
//
// It exposes RESTful endpoints for dialogue turns, chart interpretation, and
// the per-character relationship surface, and runs the cron-driven proactive
// sweep over known characters.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumewell/companion/internal/dialogue"
	"github.com/lumewell/companion/internal/genai"
	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/proactive"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/relationship"
	"github.com/lumewell/companion/internal/scheduler"
	"github.com/lumewell/companion/internal/store"
	"github.com/lumewell/companion/internal/util"
)

// Server configuration defaults.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultClosenessDelta is applied per user-initiated exchange.
	DefaultClosenessDelta = 1
	// DefaultHistoryLimit caps the history replayed into a dialogue turn.
	DefaultHistoryLimit = 20
	// DefaultSweepTimeout bounds one proactive sweep pass.
	DefaultSweepTimeout = 5 * time.Minute
)

// Server wires the companion modules behind the HTTP surface.
type Server struct {
	st       store.Store
	profiles profile.Source
	rel      *relationship.Manager
	orch     *dialogue.Orchestrator
	eval     *proactive.Evaluator
	sessions *proactive.Sessions
	activity *proactive.ActivityChecker
	sched    *scheduler.Scheduler

	addr      string
	sweepSpec string
	now       func() time.Time

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithSweepSpec sets the cron expression for the proactive sweep. An empty
// spec disables the sweep.
func WithSweepSpec(spec string) Option {
	return func(s *Server) { s.sweepSpec = spec }
}

// WithEvaluator overrides the proactive trigger evaluator.
func WithEvaluator(e *proactive.Evaluator) Option {
	return func(s *Server) { s.eval = e }
}

// WithSessions overrides the proactive session registry.
func WithSessions(sessions *proactive.Sessions) Option {
	return func(s *Server) { s.sessions = sessions }
}

// WithActivityChecker overrides the domain-activity checker.
func WithActivityChecker(c *proactive.ActivityChecker) Option {
	return func(s *Server) { s.activity = c }
}

// WithServerClock injects a time source for tests.
func WithServerClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a Server over the companion modules. Proactive policy
// components default to their standard configurations when not overridden.
func NewServer(st store.Store, profiles profile.Source, rel *relationship.Manager, orch *dialogue.Orchestrator, opts ...Option) *Server {
	s := &Server{
		st:        st,
		profiles:  profiles,
		rel:       rel,
		orch:      orch,
		addr:      DefaultAddr,
		sweepSpec: scheduler.DefaultSweepSpec,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eval == nil {
		s.eval = proactive.NewEvaluator()
	}
	if s.sessions == nil {
		s.sessions = proactive.NewSessions()
	}
	if s.activity == nil {
		s.activity = proactive.NewActivityChecker(st, s.sessions)
	}
	slog.Debug("API server created", "addr", s.addr, "sweep_spec", s.sweepSpec)
	return s
}

// Handler returns the route mux; tests drive it via httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/dialogue", s.dialogueHandler)
	mux.HandleFunc("/chart/interpret", s.chartHandler)
	mux.HandleFunc("/characters", s.listCharactersHandler)
	mux.HandleFunc("/characters/", s.charactersHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the proactive sweep and serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if s.sweepSpec != "" {
		s.sched = scheduler.NewScheduler()
		if err := s.sched.AddJob(s.sweepSpec, s.proactiveSweep); err != nil {
			return fmt.Errorf("failed to schedule proactive sweep: %w", err)
		}
	}

	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	slog.Info("Companion API running", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the sweep scheduler and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sched != nil {
		s.sched.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	slog.Info("Companion API shutting down")
	return s.httpServer.Shutdown(ctx)
}

// proactiveSweep evaluates every known character and delivers a proactive
// message for each fired trigger. Failures are logged per character; one bad
// character never aborts the sweep.
func (s *Server) proactiveSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSweepTimeout)
	defer cancel()

	states, err := s.st.ListCharacterStates()
	if err != nil {
		slog.Error("Proactive sweep failed to list character states", "error", err)
		return
	}
	slog.Debug("Proactive sweep started", "characters", len(states))

	for i := range states {
		state := &states[i]
		session := s.sessions.For(state.CharacterID)
		trigger := s.eval.DetermineTrigger(state, session.LastProactiveTime())
		if trigger == "" {
			continue
		}
		if _, err := s.deliverProactive(ctx, state, trigger, ""); err != nil {
			slog.Error("Proactive sweep delivery failed", "error", err, "characterID", state.CharacterID)
		}
	}
}

// deliverProactive generates, persists, and records one proactive message.
func (s *Server) deliverProactive(ctx context.Context, state *models.CharacterState, trigger models.TriggerType, hint string) (*models.DialogueResult, error) {
	history, err := s.recentMessages(state.CharacterID)
	if err != nil {
		return nil, err
	}

	result, err := s.orch.Generate(ctx, models.DialogueRequest{
		CharacterID:     state.CharacterID,
		State:           state,
		History:         history,
		Trigger:         trigger,
		IntegrationHint: hint,
	})
	if err != nil {
		return nil, err
	}

	if err := s.persistCharacterMessage(state, result, trigger); err != nil {
		return nil, err
	}
	s.sessions.For(state.CharacterID).RecordProactiveSent()
	slog.Info("Proactive message delivered",
		"characterID", state.CharacterID, "trigger", trigger, "ai_generated", result.Metadata.AIGenerated)
	return result, nil
}

// recentMessages returns the newest messages in chronological order.
func (s *Server) recentMessages(characterID string) ([]models.ConversationMessage, error) {
	messages, err := s.st.GetMessages(characterID, store.QueryOpts{Limit: DefaultHistoryLimit})
	if err != nil {
		return nil, err
	}
	// Newest-first from the store; the prompt wants chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// persistCharacterMessage appends the character's reply to the conversation log.
func (s *Server) persistCharacterMessage(state *models.CharacterState, result *models.DialogueResult, trigger models.TriggerType) error {
	return s.st.AddMessage(models.ConversationMessage{
		ID:          util.GenerateMessageID(),
		CharacterID: state.CharacterID,
		Sender:      models.SenderCharacter,
		Content:     result.Content,
		Type:        result.Type,
		Context:     models.ContextFor(state, s.now()),
		Metadata: models.MessageMetadata{
			IsProactive: trigger.IsProactive(),
			TriggerType: trigger,
			AIGenerated: result.Metadata.AIGenerated,
			TemplateID:  result.Metadata.TemplateID,
		},
		Timestamp: s.now(),
	})
}

// statusForError maps module errors to HTTP status codes. Configuration
// errors surface as 503 so operators see them rather than a template line.
func statusForError(err error) int {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, genai.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrEmptyCharacterID),
		errors.Is(err, models.ErrInvalidMood),
		errors.Is(err, models.ErrInvalidEnergy),
		errors.Is(err, models.ErrInvalidTrigger),
		errors.Is(err, models.ErrEmptyContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
