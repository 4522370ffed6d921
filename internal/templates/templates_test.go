package templates

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/lumewell/companion/internal/models"
)

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, 5, 10, hour, 0, 0, 0, time.UTC)
	}
}

func newTestResolver(hour int) *Resolver {
	return NewResolver(Library{},
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(fixedClock(hour)),
	)
}

// Select must return a non-empty line for every trigger and emotional state
// the service can produce.
func TestSelectTotalCoverage(t *testing.T) {
	r := newTestResolver(14)

	triggers := []models.TriggerType{
		models.TriggerUserInitiated,
		models.TriggerMorningGreeting,
		models.TriggerEveningGreeting,
		models.TriggerInactivity,
		models.TriggerActivityAcknowledgment,
	}
	for _, trigger := range triggers {
		if line := r.Select(models.DialogueRequest{CharacterID: "x", Trigger: trigger}); line == "" {
			t.Errorf("empty line for trigger %q", trigger)
		}
	}

	for _, state := range []string{"stressed", "sad", "anxious", "tired", "happy"} {
		if line := r.Select(models.DialogueRequest{CharacterID: "x", EmotionalState: state}); line == "" {
			t.Errorf("empty line for emotional state %q", state)
		}
	}

	// Unknown emotional state falls through to the bucket greeting.
	if line := r.Select(models.DialogueRequest{CharacterID: "x", EmotionalState: "bewildered"}); line == "" {
		t.Error("empty line for unknown emotional state")
	}

	// A bare request resolves via the current time bucket.
	if line := r.Select(models.DialogueRequest{CharacterID: "x"}); line == "" {
		t.Error("empty line for bare request")
	}
}

func TestSelectDeterministicWithFixedSeed(t *testing.T) {
	req := models.DialogueRequest{CharacterID: "x", Trigger: models.TriggerInactivity}

	a := newTestResolver(14).Select(req)
	b := newTestResolver(14).Select(req)
	if a != b {
		t.Errorf("same seed produced different lines: %q vs %q", a, b)
	}
}

func TestSelectMorningTriggerUsesMorningPool(t *testing.T) {
	// Evening clock, but an explicit morning trigger wins over the bucket.
	r := newTestResolver(20)
	line := r.Select(models.DialogueRequest{CharacterID: "x", Trigger: models.TriggerMorningGreeting})

	found := false
	for _, candidate := range DefaultLibrary().Greetings[models.TimeOfDayMorning] {
		if line == candidate {
			found = true
		}
	}
	if !found {
		t.Errorf("line %q not from the morning pool", line)
	}
}

func TestSelectPersonaPoolsTakePrecedence(t *testing.T) {
	r := NewResolver(Library{
		Personas: map[string][]string{
			"doctor": {"persona line"},
		},
	}, WithRand(rand.New(rand.NewPCG(1, 2))), WithClock(fixedClock(14)))

	line := r.Select(models.DialogueRequest{CharacterID: "x", Trigger: models.TriggerInactivity})
	if line != "persona line" {
		t.Errorf("expected persona line, got %q", line)
	}

	// Without a trigger the persona pools are not consulted.
	line = r.Select(models.DialogueRequest{CharacterID: "x", EmotionalState: "sad"})
	if line == "persona line" {
		t.Error("persona pool used for non-triggered request")
	}
}

func TestSelectExhaustedPoolsFallBack(t *testing.T) {
	// A library with explicitly empty pools still yields the hardcoded line.
	r := &Resolver{
		library: Library{},
		rng:     rand.New(rand.NewPCG(1, 2)),
		now:     fixedClock(14),
	}
	if line := r.Select(models.DialogueRequest{CharacterID: "x"}); line != FallbackLine {
		t.Errorf("expected hardcoded fallback, got %q", line)
	}
}

func TestChartLine(t *testing.T) {
	r := newTestResolver(14)

	for _, chartType := range []string{"weight", "calories", "sleep", "mood"} {
		if line := r.ChartLine(chartType); line == "" {
			t.Errorf("empty chart line for %q", chartType)
		}
	}

	// Unknown chart types use the default pool.
	line := r.ChartLine("blood_pressure")
	if line == "" {
		t.Error("empty chart line for unknown type")
	}

	// Nothing at all still yields the hardcoded line.
	bare := &Resolver{library: Library{}, rng: rand.New(rand.NewPCG(1, 2)), now: fixedClock(14)}
	if line := bare.ChartLine("weight"); line != ChartFallbackLine {
		t.Errorf("expected hardcoded chart fallback, got %q", line)
	}
}

func TestLibraryMerge(t *testing.T) {
	base := DefaultLibrary()
	merged := base.Merge(Library{
		Greetings: map[models.TimeOfDay][]string{
			models.TimeOfDayMorning: {"custom morning"},
		},
	})

	if got := merged.Greetings[models.TimeOfDayMorning]; len(got) != 1 || got[0] != "custom morning" {
		t.Errorf("override not applied: %v", got)
	}
	if len(merged.Greetings[models.TimeOfDayEvening]) == 0 {
		t.Error("non-overridden pools must survive the merge")
	}
	// Empty override pools do not erase defaults.
	merged = base.Merge(Library{Greetings: map[models.TimeOfDay][]string{models.TimeOfDayMorning: {}}})
	if len(merged.Greetings[models.TimeOfDayMorning]) == 0 {
		t.Error("empty override erased the default pool")
	}
}
