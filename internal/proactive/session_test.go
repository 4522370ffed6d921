package proactive

import (
	"testing"
	"time"
)

func TestSessionBeginCheckIsOneShot(t *testing.T) {
	s := NewSession()

	if !s.BeginCheck() {
		t.Fatal("first BeginCheck should claim the latch")
	}
	if s.BeginCheck() {
		t.Error("second BeginCheck should be refused")
	}
}

func TestSessionFailCheckAllowsRetry(t *testing.T) {
	s := NewSession()

	if !s.BeginCheck() {
		t.Fatal("first BeginCheck should claim the latch")
	}
	s.FailCheck()
	if !s.BeginCheck() {
		t.Error("BeginCheck after FailCheck should be allowed")
	}
}

func TestSessionRearmRespectsCooldown(t *testing.T) {
	current := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	s := NewSession(WithSessionClock(func() time.Time { return current }))

	s.BeginCheck()
	s.RecordProactiveSent()
	if got := s.LastProactiveTime(); !got.Equal(current) {
		t.Errorf("LastProactiveTime = %v, want %v", got, current)
	}

	// One hour later is still inside the 4h cooldown.
	current = current.Add(time.Hour)
	if s.Rearm() {
		t.Error("Rearm inside cooldown should be refused")
	}
	if s.BeginCheck() {
		t.Error("latch must stay claimed after a refused Rearm")
	}

	// Past the cooldown the latch re-arms.
	current = current.Add(4 * time.Hour)
	if !s.Rearm() {
		t.Error("Rearm past cooldown should succeed")
	}
	if !s.BeginCheck() {
		t.Error("latch should be claimable after Rearm")
	}
}

func TestSessionRearmWithoutProactiveSend(t *testing.T) {
	s := NewSession()
	s.BeginCheck()

	// No proactive message has ever been sent, so there is no cooldown.
	if !s.Rearm() {
		t.Error("Rearm with no prior send should succeed")
	}
}

func TestSessionsForReturnsSameSession(t *testing.T) {
	registry := NewSessions()

	a := registry.For("luna")
	if a != registry.For("luna") {
		t.Error("expected the same session for the same character id")
	}
	if a == registry.For("kai") {
		t.Error("expected distinct sessions per character id")
	}
}
