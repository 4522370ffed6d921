package proactive

import (
	"errors"
	"testing"
	"time"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/store"
	"github.com/lumewell/companion/internal/util"
)

// failingStore wraps a Store and makes activity reads fail.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error) {
	return nil, f.err
}

func newActivityFixture(t *testing.T) (*ActivityChecker, store.Store, func() time.Time) {
	t.Helper()
	st := store.NewInMemoryStore()
	now := clockAt(14)
	checker := NewActivityChecker(st, NewSessions(WithSessionClock(now)), WithActivityClock(now))
	return checker, st, now
}

func TestActivityCheckFiresWhenQuiet(t *testing.T) {
	checker, _, now := newActivityFixture(t)

	state := &models.CharacterState{
		CharacterID:         "luna",
		LastInteractionTime: now().Add(-48 * time.Hour),
	}
	result, err := checker.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a check result")
	}
	if result.Trigger != models.TriggerInactivity {
		t.Errorf("trigger = %q, want inactivity", result.Trigger)
	}
	if result.Hint == "" {
		t.Error("expected an advisory hint")
	}
}

func TestActivityCheckSuppressedByRecentEntry(t *testing.T) {
	checker, st, now := newActivityFixture(t)

	entry := models.ActivityEntry{
		ID:          util.GenerateActivityID(),
		CharacterID: "luna",
		Kind:        "exercise",
		Timestamp:   now().Add(-12 * time.Hour),
	}
	if err := st.AddActivityEntry(entry); err != nil {
		t.Fatalf("AddActivityEntry: %v", err)
	}

	state := &models.CharacterState{
		CharacterID:         "luna",
		LastInteractionTime: now().Add(-48 * time.Hour),
	}
	result, err := checker.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected suppression by recent activity, got %+v", result)
	}
}

func TestActivityCheckSuppressedByRecentConversation(t *testing.T) {
	checker, _, now := newActivityFixture(t)

	state := &models.CharacterState{
		CharacterID:         "luna",
		LastInteractionTime: now().Add(-2 * time.Hour),
	}
	result, err := checker.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected suppression by recent conversation, got %+v", result)
	}
}

func TestActivityCheckRunsOncePerSession(t *testing.T) {
	checker, _, now := newActivityFixture(t)

	state := &models.CharacterState{
		CharacterID:         "luna",
		LastInteractionTime: now().Add(-48 * time.Hour),
	}
	result, err := checker.Check("luna", state)
	if err != nil || result == nil {
		t.Fatalf("first check should fire, got result=%v err=%v", result, err)
	}

	result, err = checker.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("latched second check should stay silent, got %+v", result)
	}
}

func TestActivityCheckStoreErrorReleasesLatch(t *testing.T) {
	now := clockAt(14)
	storeErr := errors.New("connection refused")
	sessions := NewSessions(WithSessionClock(now))
	failing := NewActivityChecker(&failingStore{err: storeErr}, sessions, WithActivityClock(now))

	state := &models.CharacterState{CharacterID: "luna"}
	if _, err := failing.Check("luna", state); !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}

	// The errored latch must allow a retry on a healthy store.
	healthy := NewActivityChecker(store.NewInMemoryStore(), sessions, WithActivityClock(now))
	result, err := healthy.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if result == nil {
		t.Error("retry after store error should fire")
	}
}

func TestActivityCheckCustomWindows(t *testing.T) {
	st := store.NewInMemoryStore()
	now := clockAt(14)
	checker := NewActivityChecker(st, NewSessions(WithSessionClock(now)),
		WithActivityClock(now),
		WithActivityWindow(time.Hour),
		WithQuietPeriod(10*time.Minute),
	)

	// Entry outside the shrunk window no longer counts as activity.
	entry := models.ActivityEntry{
		ID:          util.GenerateActivityID(),
		CharacterID: "luna",
		Kind:        "meal",
		Timestamp:   now().Add(-2 * time.Hour),
	}
	if err := st.AddActivityEntry(entry); err != nil {
		t.Fatalf("AddActivityEntry: %v", err)
	}

	state := &models.CharacterState{
		CharacterID:         "luna",
		LastInteractionTime: now().Add(-30 * time.Minute),
	}
	result, err := checker.Check("luna", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Trigger != models.TriggerInactivity {
		t.Errorf("expected inactivity with shrunk windows, got %+v", result)
	}
}
