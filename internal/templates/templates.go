// Package templates provides the curated fallback line library and the
// deterministic-random resolver used when generation is unavailable or slow.
package templates

import (
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/lumewell/companion/internal/models"
)

// FallbackLine is the absolute last resort when every pool lookup fails.
const FallbackLine = "Hey, good to see you! How are you feeling today?"

// ChartFallbackLine is the generic chart interpretation of last resort.
const ChartFallbackLine = "Your recent numbers look steady. Keep it up!"

// Library holds the pre-authored reply pools, keyed by category and sub-key.
// Profiles may override any pool; empty pools fall through to defaults at
// selection time.
type Library struct {
	// Greetings keys pools by time-of-day bucket.
	Greetings map[models.TimeOfDay][]string `json:"greetings,omitempty"`
	// Proactive keys pools by proactive trigger type.
	Proactive map[models.TriggerType][]string `json:"proactive,omitempty"`
	// Responses keys pools by detected user emotional state.
	Responses map[string][]string `json:"responses,omitempty"`
	// Personas keys persona-flavored pools (doctor/nutritionist/psychologist).
	Personas map[string][]string `json:"personas,omitempty"`
	// Chart keys interpretation pools by chart type.
	Chart map[string][]string `json:"chart,omitempty"`
}

// Merge overlays non-empty pools from other onto a copy of l.
func (l Library) Merge(other Library) Library {
	out := Library{
		Greetings: mergePools(l.Greetings, other.Greetings),
		Proactive: mergePools(l.Proactive, other.Proactive),
		Responses: mergePools(l.Responses, other.Responses),
		Personas:  mergePools(l.Personas, other.Personas),
		Chart:     mergePools(l.Chart, other.Chart),
	}
	return out
}

func mergePools[K comparable](base, override map[K][]string) map[K][]string {
	out := make(map[K][]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// Resolver selects fallback lines from a Library. Selection is uniform
// within a pool and deterministic given the injected random source.
type Resolver struct {
	library Library
	rng     *rand.Rand
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRand injects a random source; tests use a fixed seed for determinism.
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

// WithClock injects a time source; tests pin the time-of-day bucket.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver over the given library merged onto the
// built-in defaults.
func NewResolver(library Library, opts ...Option) *Resolver {
	r := &Resolver{
		library: DefaultLibrary().Merge(library),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return r
}

// Select resolves a fallback line for the request. It never fails: an empty
// specific pool falls through to the current bucket's greetings, then morning
// greetings, then a hardcoded line.
func (r *Resolver) Select(req models.DialogueRequest) string {
	// Persona-flavored pools take precedence for triggered turns.
	if req.Trigger != "" && len(r.library.Personas) > 0 {
		if line, ok := r.pickPersona(); ok {
			slog.Debug("Template resolver selected persona line", "trigger", req.Trigger)
			return line
		}
	}

	pool := r.resolvePool(req)
	if line, ok := r.pick(pool); ok {
		return line
	}

	bucket := models.TimeOfDayAt(r.now())
	if line, ok := r.pick(r.library.Greetings[bucket]); ok {
		return line
	}
	if line, ok := r.pick(r.library.Greetings[models.TimeOfDayMorning]); ok {
		return line
	}
	slog.Warn("Template resolver exhausted all pools, using hardcoded line")
	return FallbackLine
}

// ChartLine resolves a fallback chart interpretation for the chart type.
func (r *Resolver) ChartLine(chartType string) string {
	if line, ok := r.pick(r.library.Chart[chartType]); ok {
		return line
	}
	if line, ok := r.pick(r.library.Chart["default"]); ok {
		return line
	}
	return ChartFallbackLine
}

// resolvePool maps the request to its (category, key) pool per policy order:
// time-of-day triggers, proactive triggers, emotional-state responses, then
// the current bucket's greetings.
func (r *Resolver) resolvePool(req models.DialogueRequest) []string {
	switch req.Trigger {
	case models.TriggerMorningGreeting:
		return r.library.Greetings[models.TimeOfDayMorning]
	case models.TriggerEveningGreeting:
		return r.library.Greetings[models.TimeOfDayEvening]
	case models.TriggerInactivity, models.TriggerActivityAcknowledgment:
		return r.library.Proactive[req.Trigger]
	}
	if req.EmotionalState != "" {
		return r.library.Responses[req.EmotionalState]
	}
	return r.library.Greetings[models.TimeOfDayAt(r.now())]
}

// pickPersona picks one persona uniformly, then a line uniformly from its pool.
func (r *Resolver) pickPersona() (string, bool) {
	// Stable iteration order so the same seed yields the same choice.
	personas := make([]string, 0, len(r.library.Personas))
	for name := range r.library.Personas {
		personas = append(personas, name)
	}
	sort.Strings(personas)

	if len(personas) == 0 {
		return "", false
	}
	name := personas[r.rng.IntN(len(personas))]
	return r.pick(r.library.Personas[name])
}

func (r *Resolver) pick(pool []string) (string, bool) {
	if len(pool) == 0 {
		return "", false
	}
	return pool[r.rng.IntN(len(pool))], true
}
