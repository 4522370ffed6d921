package relationship

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/store"
)

func newTestManager(t *testing.T, hour int) (*Manager, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	profiles, err := profile.NewSource()
	if err != nil {
		t.Fatalf("failed to create profile source: %v", err)
	}
	now := func() time.Time {
		return time.Date(2024, 5, 10, hour, 0, 0, 0, time.UTC)
	}
	return NewManager(st, profiles, WithClock(now)), st
}

func TestGetCreatesFromProfileDefaults(t *testing.T) {
	m, _ := newTestManager(t, 14)

	state, err := m.Get("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Mood != models.MoodHappy {
		t.Errorf("mood = %q, want profile default happy", state.Mood)
	}
	if state.Closeness != 0 {
		t.Errorf("closeness = %d, want 0", state.Closeness)
	}
	if state.Stage != "stranger" {
		t.Errorf("stage = %q, want stranger", state.Stage)
	}
	if state.TotalInteractions != 0 {
		t.Errorf("total interactions = %d, want 0", state.TotalInteractions)
	}
}

func TestGetUnknownCharacterSurfaces(t *testing.T) {
	m, _ := newTestManager(t, 14)
	if _, err := m.Get("nobody"); !errors.Is(err, profile.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestIncrementClosenessClampsAndRecomputesStage(t *testing.T) {
	m, st := newTestManager(t, 14)

	// Seed closeness near the ceiling.
	state, err := m.Get("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state.Closeness = 98
	if err := st.SaveCharacterState(*state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err = m.IncrementCloseness("luna", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Closeness != 100 {
		t.Errorf("closeness = %d, want clamped 100", state.Closeness)
	}
	if state.Stage != "confidant" {
		t.Errorf("stage = %q, want confidant", state.Stage)
	}
	if state.TotalInteractions != 1 {
		t.Errorf("total interactions = %d, want 1", state.TotalInteractions)
	}
	if state.LastInteractionTime.IsZero() {
		t.Error("last interaction time not set")
	}
}

func TestIncrementClosenessNegativeDelta(t *testing.T) {
	m, _ := newTestManager(t, 14)

	state, err := m.IncrementCloseness("luna", -50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Closeness != 0 {
		t.Errorf("closeness = %d, want clamped 0", state.Closeness)
	}
	if state.Stage != "stranger" {
		t.Errorf("stage = %q, want stranger", state.Stage)
	}
}

func TestUpdateMoodRejectsInvalid(t *testing.T) {
	m, _ := newTestManager(t, 14)

	if _, err := m.UpdateMood("luna", "furious"); !errors.Is(err, models.ErrInvalidMood) {
		t.Errorf("expected ErrInvalidMood, got %v", err)
	}

	state, err := m.UpdateMood("luna", models.MoodCalm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Mood != models.MoodCalm {
		t.Errorf("mood = %q, want calm", state.Mood)
	}
}

func TestUpdateEnergyByTimeOfDay(t *testing.T) {
	// 8:00 is the morning bucket: the default schedule maps it to high.
	m, _ := newTestManager(t, 8)

	state, err := m.UpdateEnergyByTimeOfDay("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Energy != models.EnergyHigh {
		t.Errorf("energy = %q, want high for morning", state.Energy)
	}

	// 23:00 is the night bucket.
	m, _ = newTestManager(t, 23)
	state, err = m.UpdateEnergyByTimeOfDay("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Energy != models.EnergyLow {
		t.Errorf("energy = %q, want low for night", state.Energy)
	}
}

func TestResetPreservingCloseness(t *testing.T) {
	m, _ := newTestManager(t, 14)

	if _, err := m.IncrementCloseness("luna", 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateMood("luna", models.MoodTired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := m.Reset("luna", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Mood != models.MoodHappy {
		t.Errorf("mood = %q, want profile default", state.Mood)
	}
	if state.Closeness != 60 {
		t.Errorf("closeness = %d, want preserved 60", state.Closeness)
	}
	if state.Stage != "friend" {
		t.Errorf("stage = %q, want friend", state.Stage)
	}
	if state.TotalInteractions != 1 {
		t.Errorf("total interactions = %d, want preserved", state.TotalInteractions)
	}
}

func TestResetClearingCloseness(t *testing.T) {
	m, _ := newTestManager(t, 14)

	if _, err := m.IncrementCloseness("luna", 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := m.Reset("luna", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Closeness != 0 {
		t.Errorf("closeness = %d, want 0", state.Closeness)
	}
	if state.Stage != "stranger" {
		t.Errorf("stage = %q, want stranger", state.Stage)
	}
	if state.TotalInteractions != 0 {
		t.Errorf("total interactions = %d, want 0", state.TotalInteractions)
	}
	if !state.LastInteractionTime.IsZero() {
		t.Error("last interaction time should be cleared")
	}
}

// Concurrent increments must serialize per character: no update may be lost.
func TestIncrementClosenessConcurrent(t *testing.T) {
	m, _ := newTestManager(t, 14)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.IncrementCloseness("luna", 1); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := m.Get("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Closeness != 30 {
		t.Errorf("closeness = %d, want 30 (lost updates)", state.Closeness)
	}
	if state.TotalInteractions != 30 {
		t.Errorf("total interactions = %d, want 30", state.TotalInteractions)
	}
}

func TestDelete(t *testing.T) {
	m, st := newTestManager(t, 14)

	if _, err := m.Get("luna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Delete("luna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, err := st.GetCharacterState("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != nil {
		t.Error("state survived delete")
	}
}
