package proactive

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/store"
)

// Default activity checker policy windows.
const (
	// DefaultActivityWindow is how far back the domain activity log is
	// inspected for qualifying entries.
	DefaultActivityWindow = 3 * 24 * time.Hour
	// DefaultQuietPeriod is the minimum conversation silence required
	// before the activity checker may fire.
	DefaultQuietPeriod = 24 * time.Hour
)

// CheckResult carries an activity-based trigger decision. Hint is advisory
// context handed to the dialogue layer, never a user-facing string.
type CheckResult struct {
	Trigger models.TriggerType
	Hint    string
}

// ActivityChecker detects characters whose person has gone quiet in the
// wellness log: no qualifying activity within the window and no conversation
// within the quiet period. It runs at most once per state load via the
// session latch; an errored check releases the latch so a later load retries.
type ActivityChecker struct {
	store          store.Store
	sessions       *Sessions
	activityWindow time.Duration
	quietPeriod    time.Duration
	now            func() time.Time
}

// ActivityOption configures an ActivityChecker.
type ActivityOption func(*ActivityChecker)

// WithActivityWindow overrides the activity log lookback window.
func WithActivityWindow(d time.Duration) ActivityOption {
	return func(c *ActivityChecker) { c.activityWindow = d }
}

// WithQuietPeriod overrides the required conversation silence.
func WithQuietPeriod(d time.Duration) ActivityOption {
	return func(c *ActivityChecker) { c.quietPeriod = d }
}

// WithActivityClock injects a time source for tests.
func WithActivityClock(now func() time.Time) ActivityOption {
	return func(c *ActivityChecker) { c.now = now }
}

// NewActivityChecker creates a checker with default windows.
func NewActivityChecker(st store.Store, sessions *Sessions, opts ...ActivityOption) *ActivityChecker {
	c := &ActivityChecker{
		store:          st,
		sessions:       sessions,
		activityWindow: DefaultActivityWindow,
		quietPeriod:    DefaultQuietPeriod,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the activity-based detection for a character. It returns a nil
// result when the latch is already claimed, when the person is active, or
// when the conversation is recent enough.
func (c *ActivityChecker) Check(characterID string, state *models.CharacterState) (*CheckResult, error) {
	session := c.sessions.For(characterID)
	if !session.BeginCheck() {
		slog.Debug("Activity check skipped, already ran this session", "characterID", characterID)
		return nil, nil
	}

	now := c.now()
	entries, err := c.store.GetActivityEntriesSince(characterID, now.Add(-c.activityWindow))
	if err != nil {
		session.FailCheck()
		slog.Error("Activity check store error", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to read activity entries for %s: %w", characterID, err)
	}
	if len(entries) > 0 {
		slog.Debug("Activity check found recent entries", "characterID", characterID, "count", len(entries))
		return nil, nil
	}

	if !state.LastInteractionTime.IsZero() && now.Sub(state.LastInteractionTime) < c.quietPeriod {
		slog.Debug("Activity check suppressed by recent conversation",
			"characterID", characterID, "since_last", now.Sub(state.LastInteractionTime))
		return nil, nil
	}

	slog.Info("Activity check fired inactivity trigger", "characterID", characterID)
	return &CheckResult{
		Trigger: models.TriggerInactivity,
		Hint:    fmt.Sprintf("No wellness activity recorded in the past %d days.", int(c.activityWindow/(24*time.Hour))),
	}, nil
}
