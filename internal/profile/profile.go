// Package profile provides the read-only character profile source.
//
// Profiles carry a character's personality, relationship-stage thresholds,
// template pool overrides, and energy schedule. Sources are memory-cached for
// the process lifetime; an unknown character id is a fatal condition that is
// always surfaced and never silently defaulted.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/templates"
)

// ErrProfileNotFound indicates an unknown character id. Callers must treat
// this as fatal for the requesting operation.
var ErrProfileNotFound = errors.New("character profile not found")

// Profile describes one companion character.
type Profile struct {
	ID                 string                                  `json:"id"`
	Name               string                                  `json:"name"`
	Personality        []string                                `json:"personality,omitempty"`         // trait list, e.g. "warm", "playful"
	CommunicationStyle string                                  `json:"communication_style,omitempty"` // short free-text style description
	StageThresholds    []models.StageThreshold                 `json:"stage_thresholds,omitempty"`
	DefaultMood        models.Mood                             `json:"default_mood,omitempty"`
	DefaultEnergy      models.EnergyLevel                      `json:"default_energy,omitempty"`
	EnergySchedule     map[models.TimeOfDay]models.EnergyLevel `json:"energy_schedule,omitempty"`
	Templates          templates.Library                       `json:"templates,omitempty"`
}

// Source resolves character profiles by id.
type Source interface {
	GetProfile(id string) (*Profile, error)
}

// DefaultStageThresholds returns the ascending stage table used when a
// profile does not define its own.
func DefaultStageThresholds() []models.StageThreshold {
	return []models.StageThreshold{
		{MinCloseness: 0, Stage: "stranger"},
		{MinCloseness: 20, Stage: "acquaintance"},
		{MinCloseness: 45, Stage: "friend"},
		{MinCloseness: 70, Stage: "close_friend"},
		{MinCloseness: 90, Stage: "confidant"},
	}
}

// DefaultEnergySchedule returns the built-in time-bucket to energy mapping.
func DefaultEnergySchedule() map[models.TimeOfDay]models.EnergyLevel {
	return map[models.TimeOfDay]models.EnergyLevel{
		models.TimeOfDayMorning:   models.EnergyHigh,
		models.TimeOfDayAfternoon: models.EnergyMedium,
		models.TimeOfDayEvening:   models.EnergyMedium,
		models.TimeOfDayNight:     models.EnergyLow,
	}
}

// builtinProfiles returns the characters shipped with the service.
func builtinProfiles() []Profile {
	return []Profile{
		{
			ID:                 "luna",
			Name:               "Luna",
			Personality:        []string{"warm", "attentive", "gently encouraging"},
			CommunicationStyle: "casual, caring, uses short sentences and the occasional emoji",
			DefaultMood:        models.MoodHappy,
			DefaultEnergy:      models.EnergyMedium,
			Templates: templates.Library{
				Personas: map[string][]string{
					"doctor": {
						"As your doctor friend would say: steady routines beat heroic sprints. How are you holding up?",
						"Quick check-up from me: hydration, sleep, movement. How are we doing on those?",
					},
					"nutritionist": {
						"Your friendly nutritionist here! Had anything colorful on your plate today?",
						"Small swaps add up. Maybe some fruit with lunch today?",
					},
					"psychologist": {
						"Checking in on the inside weather. How's your mood right now?",
						"Naming a feeling is the first step to easing it. What's present for you today?",
					},
				},
			},
		},
		{
			ID:                 "kai",
			Name:               "Kai",
			Personality:        []string{"upbeat", "practical", "a little cheeky"},
			CommunicationStyle: "direct and energetic, keeps replies short",
			DefaultMood:        models.MoodEnergetic,
			DefaultEnergy:      models.EnergyHigh,
		},
	}
}

// StaticSource is an in-memory, process-lifetime profile cache built from the
// built-in characters plus optional JSON profile files.
type StaticSource struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// Opts holds configuration for a StaticSource.
type Opts struct {
	Dir      string
	Profiles []Profile
}

// Option configures a StaticSource.
type Option func(*Opts)

// WithProfileDir loads additional profiles from *.json files in dir.
func WithProfileDir(dir string) Option {
	return func(o *Opts) { o.Dir = dir }
}

// WithProfiles registers additional in-memory profiles (used by tests).
func WithProfiles(profiles ...Profile) Option {
	return func(o *Opts) { o.Profiles = append(o.Profiles, profiles...) }
}

// NewSource creates a StaticSource. Profiles from a configured directory
// override built-ins with the same id.
func NewSource(opts ...Option) (*StaticSource, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &StaticSource{profiles: make(map[string]*Profile)}
	for _, p := range builtinProfiles() {
		s.add(p)
	}
	for _, p := range cfg.Profiles {
		s.add(p)
	}

	if cfg.Dir != "" {
		if err := s.loadDir(cfg.Dir); err != nil {
			return nil, err
		}
	}

	slog.Debug("Profile source created", "profiles", len(s.profiles))
	return s, nil
}

// GetProfile resolves a profile by id. Unknown ids yield ErrProfileNotFound.
func (s *StaticSource) GetProfile(id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		slog.Error("Profile source unknown character id", "characterID", id)
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p, nil
}

// IDs returns all known character ids, sorted.
func (s *StaticSource) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *StaticSource) add(p Profile) {
	normalizeProfile(&p)
	s.mu.Lock()
	s.profiles[p.ID] = &p
	s.mu.Unlock()
}

// loadDir reads every *.json file in dir as one Profile.
func (s *StaticSource) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read profile directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read profile file %s: %w", path, err)
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse profile file %s: %w", path, err)
		}
		if p.ID == "" {
			return fmt.Errorf("profile file %s is missing an id", path)
		}
		s.add(p)
		slog.Debug("Profile loaded from file", "characterID", p.ID, "path", path)
	}
	return nil
}

// normalizeProfile fills defaults and sorts the threshold table ascending so
// stage derivation can scan it in order.
func normalizeProfile(p *Profile) {
	if len(p.StageThresholds) == 0 {
		p.StageThresholds = DefaultStageThresholds()
	}
	sort.Slice(p.StageThresholds, func(i, j int) bool {
		return p.StageThresholds[i].MinCloseness < p.StageThresholds[j].MinCloseness
	})
	if p.DefaultMood == "" || !models.IsValidMood(p.DefaultMood) {
		p.DefaultMood = models.MoodCalm
	}
	if p.DefaultEnergy == "" || !models.IsValidEnergyLevel(p.DefaultEnergy) {
		p.DefaultEnergy = models.EnergyMedium
	}
	if len(p.EnergySchedule) == 0 {
		p.EnergySchedule = DefaultEnergySchedule()
	}
	if p.Name == "" {
		p.Name = p.ID
	}
}
