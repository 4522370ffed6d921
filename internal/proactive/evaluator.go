// Package proactive decides whether a character should speak unprompted.
//
// Two independent policies live here: the conversation-based evaluator
// (greeting buckets and a 4h inactivity window over conversation activity)
// and the domain-activity checker (3-day activity log window with a 24h
// conversation quiet period). They overlap in intent but deliberately stay
// separate, independently configurable policies.
package proactive

import (
	"log/slog"
	"time"

	"github.com/lumewell/companion/internal/models"
)

// Default evaluator policy windows.
const (
	// DefaultCooldown is the hard minimum gap between proactive messages.
	DefaultCooldown = 4 * time.Hour
	// DefaultInactivityThreshold is the conversation-silence window after
	// which an inactivity check-in fires.
	DefaultInactivityThreshold = 4 * time.Hour
)

// Evaluator applies the proactive trigger policy to a character state.
type Evaluator struct {
	cooldown            time.Duration
	inactivityThreshold time.Duration
	now                 func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCooldown overrides the proactive cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(e *Evaluator) { e.cooldown = d }
}

// WithInactivityThreshold overrides the conversation inactivity window.
func WithInactivityThreshold(d time.Duration) Option {
	return func(e *Evaluator) { e.inactivityThreshold = d }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an Evaluator with default policy windows.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		cooldown:            DefaultCooldown,
		inactivityThreshold: DefaultInactivityThreshold,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ShouldTrigger reports whether the character should speak now.
func (e *Evaluator) ShouldTrigger(state *models.CharacterState, lastProactiveTime time.Time) bool {
	return e.DetermineTrigger(state, lastProactiveTime) != ""
}

// DetermineTrigger returns the trigger to fire, or "" for none. Policy, in
// order: hard cooldown since the last proactive send; morning/evening bucket
// greeting; conversation inactivity past the threshold.
func (e *Evaluator) DetermineTrigger(state *models.CharacterState, lastProactiveTime time.Time) models.TriggerType {
	now := e.now()

	if !lastProactiveTime.IsZero() && now.Sub(lastProactiveTime) < e.cooldown {
		slog.Debug("Proactive trigger suppressed by cooldown",
			"characterID", state.CharacterID, "since_last", now.Sub(lastProactiveTime))
		return ""
	}

	switch models.TimeOfDayAt(now) {
	case models.TimeOfDayMorning:
		return models.TriggerMorningGreeting
	case models.TimeOfDayEvening:
		return models.TriggerEveningGreeting
	}

	// A character never interacted with counts as inactive.
	if state.LastInteractionTime.IsZero() || now.Sub(state.LastInteractionTime) >= e.inactivityThreshold {
		return models.TriggerInactivity
	}

	return ""
}
