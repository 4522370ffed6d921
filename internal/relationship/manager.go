// Package relationship implements the per-character relationship state machine.
//
// One record exists per character id, created on first use and mutated only
// here. Closeness is always clamped to its bounds, and the relationship stage
// is never set independently: every mutation recomputes it from closeness via
// the profile's ascending threshold table. All read-modify-write operations
// serialize per character id so concurrent mutations cannot lose updates.
package relationship

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/store"
)

// Manager owns character relationship state backed by a Store.
type Manager struct {
	store    store.Store
	profiles profile.Source
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-character-id serialization
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects a time source; tests pin transitions to fixed instants.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a relationship manager.
func NewManager(st store.Store, profiles profile.Source, opts ...Option) *Manager {
	slog.Debug("Creating relationship Manager")
	m := &Manager{
		store:    st,
		profiles: profiles,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lockFor returns the mutex serializing mutations for one character id.
func (m *Manager) lockFor(characterID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[characterID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[characterID] = lock
	}
	return lock
}

// Get returns the character's state, creating it from profile defaults on
// first use. An unknown character id is surfaced, never defaulted.
func (m *Manager) Get(characterID string) (*models.CharacterState, error) {
	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()
	return m.getOrCreateLocked(characterID)
}

// getOrCreateLocked loads or initializes state. Caller holds the per-id lock.
func (m *Manager) getOrCreateLocked(characterID string) (*models.CharacterState, error) {
	state, err := m.store.GetCharacterState(characterID)
	if err != nil {
		slog.Error("Relationship Get store error", "error", err, "characterID", characterID)
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	p, err := m.profiles.GetProfile(characterID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	state = &models.CharacterState{
		CharacterID: characterID,
		Mood:        p.DefaultMood,
		Closeness:   models.MinCloseness,
		Energy:      p.DefaultEnergy,
		Stage:       models.StageForCloseness(p.StageThresholds, models.MinCloseness),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveCharacterState(*state); err != nil {
		slog.Error("Relationship failed to persist initial state", "error", err, "characterID", characterID)
		return nil, err
	}
	slog.Info("Relationship state created", "characterID", characterID, "stage", state.Stage)
	return state, nil
}

// IncrementCloseness applies a closeness delta, clamping into bounds and
// recomputing the stage. It also counts the interaction and updates the
// last-interaction time.
func (m *Manager) IncrementCloseness(characterID string, delta int) (*models.CharacterState, error) {
	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.getOrCreateLocked(characterID)
	if err != nil {
		return nil, err
	}
	p, err := m.profiles.GetProfile(characterID)
	if err != nil {
		return nil, err
	}

	old := state.Closeness
	state.Closeness = models.ClampCloseness(state.Closeness + delta)
	state.Stage = models.StageForCloseness(p.StageThresholds, state.Closeness)
	state.LastInteractionTime = m.now()
	state.TotalInteractions++
	state.UpdatedAt = state.LastInteractionTime

	if err := m.store.SaveCharacterState(*state); err != nil {
		slog.Error("Relationship IncrementCloseness save failed", "error", err, "characterID", characterID)
		return nil, err
	}
	slog.Debug("Relationship IncrementCloseness succeeded",
		"characterID", characterID, "delta", delta, "old", old, "new", state.Closeness, "stage", state.Stage)
	return state, nil
}

// UpdateMood sets the character's mood after enum validation.
func (m *Manager) UpdateMood(characterID string, mood models.Mood) (*models.CharacterState, error) {
	if !models.IsValidMood(mood) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidMood, mood)
	}

	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.getOrCreateLocked(characterID)
	if err != nil {
		return nil, err
	}
	state.Mood = mood
	state.UpdatedAt = m.now()

	if err := m.store.SaveCharacterState(*state); err != nil {
		slog.Error("Relationship UpdateMood save failed", "error", err, "characterID", characterID)
		return nil, err
	}
	slog.Debug("Relationship UpdateMood succeeded", "characterID", characterID, "mood", mood)
	return state, nil
}

// UpdateEnergyByTimeOfDay sets energy from the profile's time-bucket mapping.
func (m *Manager) UpdateEnergyByTimeOfDay(characterID string) (*models.CharacterState, error) {
	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.getOrCreateLocked(characterID)
	if err != nil {
		return nil, err
	}
	p, err := m.profiles.GetProfile(characterID)
	if err != nil {
		return nil, err
	}

	bucket := models.TimeOfDayAt(m.now())
	energy, ok := p.EnergySchedule[bucket]
	if !ok {
		energy = p.DefaultEnergy
	}
	state.Energy = energy
	state.UpdatedAt = m.now()

	if err := m.store.SaveCharacterState(*state); err != nil {
		slog.Error("Relationship UpdateEnergyByTimeOfDay save failed", "error", err, "characterID", characterID)
		return nil, err
	}
	slog.Debug("Relationship UpdateEnergyByTimeOfDay succeeded", "characterID", characterID, "bucket", bucket, "energy", energy)
	return state, nil
}

// Reset reverts mood and energy to profile defaults. Closeness is preserved
// when requested; otherwise the relationship restarts from zero with the
// stage recomputed and the interaction bookkeeping cleared.
func (m *Manager) Reset(characterID string, preserveCloseness bool) (*models.CharacterState, error) {
	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.getOrCreateLocked(characterID)
	if err != nil {
		return nil, err
	}
	p, err := m.profiles.GetProfile(characterID)
	if err != nil {
		return nil, err
	}

	state.Mood = p.DefaultMood
	state.Energy = p.DefaultEnergy
	if !preserveCloseness {
		state.Closeness = models.MinCloseness
		state.TotalInteractions = 0
		state.LastInteractionTime = time.Time{}
	}
	state.Stage = models.StageForCloseness(p.StageThresholds, state.Closeness)
	state.UpdatedAt = m.now()

	if err := m.store.SaveCharacterState(*state); err != nil {
		slog.Error("Relationship Reset save failed", "error", err, "characterID", characterID)
		return nil, err
	}
	slog.Info("Relationship Reset succeeded", "characterID", characterID, "preserveCloseness", preserveCloseness)
	return state, nil
}

// Delete removes the character's state entirely.
func (m *Manager) Delete(characterID string) error {
	lock := m.lockFor(characterID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteCharacterState(characterID); err != nil {
		slog.Error("Relationship Delete failed", "error", err, "characterID", characterID)
		return err
	}
	slog.Info("Relationship state deleted", "characterID", characterID)
	return nil
}
