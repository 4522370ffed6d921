// Package dialogue orchestrates a single conversational turn: prompt
// construction, the model call, response normalization, and template
// fallback.
//
// The orchestrator absorbs every generation-path failure. Transport errors,
// timeouts, empty content, and unparseable replies all degrade to a template
// line; the only errors that escape are configuration errors (a missing API
// key) and an unknown character id. Callers can therefore always render the
// returned result.
package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lumewell/companion/internal/emotion"
	"github.com/lumewell/companion/internal/genai"
	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/normalize"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/templates"
)

// Default orchestrator deadlines.
const (
	// DefaultTimeout bounds a full dialogue turn including the model call.
	DefaultTimeout = 60 * time.Second
	// DefaultChartTimeout bounds a chart interpretation; charts render
	// synchronously in the client so this stays tight.
	DefaultChartTimeout = 2 * time.Second
	// DefaultHistoryLimit caps how many recent messages are replayed.
	DefaultHistoryLimit = 20
)

// fallbackTemplateID marks results produced by the template resolver.
const fallbackTemplateID = "fallback"

// Completer is the slice of the model client the orchestrator needs;
// tests substitute a mock.
type Completer interface {
	Complete(ctx context.Context, messages []genai.Message) (string, error)
}

// Orchestrator produces dialogue turns for characters.
type Orchestrator struct {
	completer    Completer
	profiles     profile.Source
	timeout      time.Duration
	chartTimeout time.Duration
	historyLimit int
	now          func() time.Time
	resolverOpts []templates.Option

	mu        sync.Mutex
	resolvers map[string]*templates.Resolver // per-character, built from profile overrides
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the dialogue turn deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithChartTimeout overrides the chart interpretation deadline.
func WithChartTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.chartTimeout = d }
}

// WithHistoryLimit overrides how many recent messages are replayed.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) { o.historyLimit = n }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithResolverOptions forwards options to the per-character template
// resolvers; tests pin their random source.
func WithResolverOptions(opts ...templates.Option) Option {
	return func(o *Orchestrator) { o.resolverOpts = opts }
}

// NewOrchestrator creates an orchestrator. A nil completer is allowed and
// surfaces as ErrMissingAPIKey on the first dialogue turn.
func NewOrchestrator(completer Completer, profiles profile.Source, opts ...Option) *Orchestrator {
	slog.Debug("Creating dialogue Orchestrator", "has_completer", completer != nil)
	o := &Orchestrator{
		completer:    completer,
		profiles:     profiles,
		timeout:      DefaultTimeout,
		chartTimeout: DefaultChartTimeout,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		resolvers:    make(map[string]*templates.Resolver),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resolverFor returns the template resolver for a character, building it from
// the profile's pool overrides on first use.
func (o *Orchestrator) resolverFor(p *profile.Profile) *templates.Resolver {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.resolvers[p.ID]
	if !ok {
		r = templates.NewResolver(p.Templates, o.resolverOpts...)
		o.resolvers[p.ID] = r
	}
	return r
}

// Generate produces one dialogue turn. Generation-path failures degrade to a
// template line; only request validation, an unknown character id, and a
// missing API key return an error.
func (o *Orchestrator) Generate(ctx context.Context, req models.DialogueRequest) (*models.DialogueResult, error) {
	start := o.now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := o.profiles.GetProfile(req.CharacterID)
	if err != nil {
		return nil, err
	}
	resolver := o.resolverFor(p)

	if req.EmotionalState == "" && req.UserMessage != "" {
		req.EmotionalState = emotion.Detect(req.UserMessage)
	} else {
		req.EmotionalState = emotion.Normalize(req.EmotionalState)
	}

	if o.completer == nil {
		slog.Error("Dialogue Generate called without a configured model client", "characterID", req.CharacterID)
		return nil, genai.ErrMissingAPIKey
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.completer.Complete(callCtx, buildMessages(p, req, o.historyLimit))
	if err != nil {
		slog.Warn("Dialogue Generate falling back to template",
			"error", err, "characterID", req.CharacterID, "trigger", req.Trigger)
		return o.fallback(resolver, req, start), nil
	}

	payload := normalize.Normalize(raw)
	reply := strings.TrimSpace(payload.StringField("reply", strings.TrimSpace(raw)))
	if reply == "" {
		slog.Warn("Dialogue Generate got empty reply, falling back to template", "characterID", req.CharacterID)
		return o.fallback(resolver, req, start), nil
	}

	result := &models.DialogueResult{
		Content: reply,
		Type:    models.MessageTypeText,
		Metadata: models.ResultMetadata{
			AIGenerated:      true,
			ProcessingTimeMs: o.elapsedMs(start),
		},
	}
	if mood := models.Mood(payload.StringField("mood", "")); models.IsValidMood(mood) {
		result.SuggestedMood = mood
	}

	slog.Debug("Dialogue Generate succeeded",
		"characterID", req.CharacterID, "trigger", req.Trigger, "processing_ms", result.Metadata.ProcessingTimeMs)
	return result, nil
}

// InterpretChart produces a one-line interpretation of chart statistics under
// a tight deadline. It never fails past its budget: any generation failure,
// including a missing model client, yields the curated chart line.
func (o *Orchestrator) InterpretChart(ctx context.Context, characterID string, stats models.ChartStats) (*models.DialogueResult, error) {
	start := o.now()
	p, err := o.profiles.GetProfile(characterID)
	if err != nil {
		return nil, err
	}
	resolver := o.resolverFor(p)

	if o.completer != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.chartTimeout)
		defer cancel()

		raw, err := o.completer.Complete(callCtx, chartPrompt(p, stats))
		if err == nil {
			payload := normalize.Normalize(raw)
			if reply := strings.TrimSpace(payload.StringField("reply", strings.TrimSpace(raw))); reply != "" {
				return &models.DialogueResult{
					Content: reply,
					Type:    models.MessageTypeText,
					Metadata: models.ResultMetadata{
						AIGenerated:      true,
						ProcessingTimeMs: o.elapsedMs(start),
					},
				}, nil
			}
		} else {
			slog.Debug("Chart interpretation falling back to template",
				"error", err, "characterID", characterID, "chart_type", stats.ChartType)
		}
	}

	return &models.DialogueResult{
		Content: resolver.ChartLine(stats.ChartType),
		Type:    models.MessageTypeText,
		Metadata: models.ResultMetadata{
			AIGenerated:      false,
			TemplateID:       fallbackTemplateID,
			ProcessingTimeMs: o.elapsedMs(start),
		},
	}, nil
}

// fallback builds a template-backed result for a failed generation.
func (o *Orchestrator) fallback(resolver *templates.Resolver, req models.DialogueRequest, start time.Time) *models.DialogueResult {
	return &models.DialogueResult{
		Content: resolver.Select(req),
		Type:    models.MessageTypeText,
		Metadata: models.ResultMetadata{
			AIGenerated:      false,
			TemplateID:       fallbackTemplateID,
			ProcessingTimeMs: o.elapsedMs(start),
		},
	}
}

func (o *Orchestrator) elapsedMs(start time.Time) int64 {
	ms := o.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
