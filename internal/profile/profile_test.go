package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumewell/companion/internal/models"
)

func TestBuiltinProfiles(t *testing.T) {
	src, err := NewSource()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := src.GetProfile("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Luna" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.StageThresholds) == 0 {
		t.Error("defaults not applied to built-in profile")
	}
	if len(p.EnergySchedule) == 0 {
		t.Error("energy schedule default not applied")
	}
}

func TestGetProfileUnknownID(t *testing.T) {
	src, err := NewSource()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.GetProfile("nobody"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestLoadProfileDir(t *testing.T) {
	dir := t.TempDir()
	profileJSON := `{
		"id": "mira",
		"name": "Mira",
		"default_mood": "calm",
		"stage_thresholds": [
			{"min_closeness": 50, "stage": "late"},
			{"min_closeness": 0, "stage": "early"}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "mira.json"), []byte(profileJSON), 0644); err != nil {
		t.Fatalf("failed to write profile file: %v", err)
	}

	src, err := NewSource(WithProfileDir(dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := src.GetProfile("mira")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Thresholds must come back sorted ascending.
	if p.StageThresholds[0].Stage != "early" || p.StageThresholds[1].Stage != "late" {
		t.Errorf("thresholds not sorted: %+v", p.StageThresholds)
	}
	if p.DefaultEnergy != models.EnergyMedium {
		t.Errorf("default energy not applied: %q", p.DefaultEnergy)
	}
}

func TestLoadProfileDirRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name": "NoID"}`), 0644); err != nil {
		t.Fatalf("failed to write profile file: %v", err)
	}
	if _, err := NewSource(WithProfileDir(dir)); err == nil {
		t.Error("expected error for profile without id")
	}
}

func TestWithProfilesOverridesBuiltin(t *testing.T) {
	src, err := NewSource(WithProfiles(Profile{ID: "luna", Name: "Custom Luna"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := src.GetProfile("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Custom Luna" {
		t.Errorf("override not applied, name = %q", p.Name)
	}
}

func TestIDsSorted(t *testing.T) {
	src, err := NewSource(WithProfiles(Profile{ID: "aaa"}, Profile{ID: "zzz"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := src.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("ids not sorted: %v", ids)
		}
	}
}
