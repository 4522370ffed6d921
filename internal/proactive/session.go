package proactive

import (
	"log/slog"
	"sync"
	"time"
)

// LatchState is an explicit token for one-shot session checks, replacing raw
// booleans so reset-on-error semantics stay auditable.
type LatchState string

const (
	// LatchUnchecked means the check has not run this session.
	LatchUnchecked LatchState = "unchecked"
	// LatchChecked means the check ran; it must not run again until re-armed.
	LatchChecked LatchState = "checked"
	// LatchErrored means the check failed; a later attempt may retry.
	LatchErrored LatchState = "errored"
)

// Session tracks process-lifetime proactive bookkeeping for one character:
// the last time a proactive message was actually sent, and the one-shot
// check latch. Nothing here is persisted.
type Session struct {
	mu            sync.Mutex
	lastProactive time.Time
	latch         LatchState
	cooldown      time.Duration
	now           func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionCooldown overrides the re-arm cooldown.
func WithSessionCooldown(d time.Duration) SessionOption {
	return func(s *Session) { s.cooldown = d }
}

// WithSessionClock injects a time source for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates an un-latched session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		latch:    LatchUnchecked,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastProactiveTime returns when a proactive message was last sent this
// session; zero when none has been.
func (s *Session) LastProactiveTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProactive
}

// BeginCheck claims the one-shot check. It returns false when the check
// already ran this session; an errored previous attempt may retry.
func (s *Session) BeginCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latch == LatchChecked {
		return false
	}
	s.latch = LatchChecked
	return true
}

// FailCheck marks the last check as errored so a later attempt may retry.
func (s *Session) FailCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latch = LatchErrored
	slog.Debug("Proactive session check errored, latch released")
}

// RecordProactiveSent notes that a proactive message was actually delivered.
// It also claims the check latch so the activity check stays quiet until the
// session is re-armed after the cooldown.
func (s *Session) RecordProactiveSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProactive = s.now()
	s.latch = LatchChecked
}

// Rearm re-enables the one-shot check on regaining foreground visibility,
// but only when the cooldown since the last proactive send has fully elapsed.
// Brief visibility flaps therefore cannot re-trigger.
func (s *Session) Rearm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastProactive.IsZero() && s.now().Sub(s.lastProactive) < s.cooldown {
		return false
	}
	s.latch = LatchUnchecked
	slog.Debug("Proactive session check re-armed")
	return true
}

// Sessions is a keyed set of per-character sessions.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     []SessionOption
}

// NewSessions creates an empty session registry; opts apply to every
// session it creates.
func NewSessions(opts ...SessionOption) *Sessions {
	return &Sessions{sessions: make(map[string]*Session), opts: opts}
}

// For returns the session for a character id, creating it on first use.
func (s *Sessions) For(characterID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[characterID]
	if !ok {
		session = NewSession(s.opts...)
		s.sessions[characterID] = session
	}
	return session
}
