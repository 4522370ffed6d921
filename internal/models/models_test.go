package models

import (
	"testing"
	"time"
)

func TestClampCloseness(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-10, 0},
		{0, 0},
		{50, 50},
		{100, 100},
		{103, 100},
		{1000, 100},
	}
	for _, c := range cases {
		if got := ClampCloseness(c.in); got != c.want {
			t.Errorf("ClampCloseness(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestStageForCloseness(t *testing.T) {
	thresholds := []StageThreshold{
		{MinCloseness: 0, Stage: "stranger"},
		{MinCloseness: 20, Stage: "acquaintance"},
		{MinCloseness: 45, Stage: "friend"},
		{MinCloseness: 70, Stage: "close_friend"},
		{MinCloseness: 90, Stage: "confidant"},
	}

	cases := []struct {
		closeness int
		want      string
	}{
		{0, "stranger"},
		{19, "stranger"},
		{20, "acquaintance"},
		{44, "acquaintance"},
		{45, "friend"},
		{89, "close_friend"},
		{90, "confidant"},
		{100, "confidant"},
	}
	for _, c := range cases {
		if got := StageForCloseness(thresholds, c.closeness); got != c.want {
			t.Errorf("StageForCloseness(%d) = %q, want %q", c.closeness, got, c.want)
		}
	}
}

func TestStageForClosenessEmptyTable(t *testing.T) {
	if got := StageForCloseness(nil, 50); got != "" {
		t.Errorf("expected empty stage for empty table, got %q", got)
	}
}

func TestTimeOfDayForHour(t *testing.T) {
	cases := []struct {
		hour int
		want TimeOfDay
	}{
		{0, TimeOfDayNight},
		{5, TimeOfDayNight},
		{6, TimeOfDayMorning},
		{11, TimeOfDayMorning},
		{12, TimeOfDayAfternoon},
		{17, TimeOfDayAfternoon},
		{18, TimeOfDayEvening},
		{21, TimeOfDayEvening},
		{22, TimeOfDayNight},
		{23, TimeOfDayNight},
	}
	for _, c := range cases {
		if got := TimeOfDayForHour(c.hour); got != c.want {
			t.Errorf("TimeOfDayForHour(%d) = %q, want %q", c.hour, got, c.want)
		}
	}
}

func TestTriggerTypeIsProactive(t *testing.T) {
	if TriggerUserInitiated.IsProactive() {
		t.Error("user_initiated should not be proactive")
	}
	for _, trigger := range []TriggerType{TriggerMorningGreeting, TriggerEveningGreeting, TriggerInactivity, TriggerActivityAcknowledgment} {
		if !trigger.IsProactive() {
			t.Errorf("%s should be proactive", trigger)
		}
	}
}

func TestDialogueRequestValidate(t *testing.T) {
	req := DialogueRequest{CharacterID: "luna", UserMessage: "hi"}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	req = DialogueRequest{UserMessage: "hi"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for empty character id")
	}

	req = DialogueRequest{CharacterID: "luna", Trigger: "made_up"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid trigger")
	}
}

func TestContextFor(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	ctx := ContextFor(nil, now)
	if ctx.TimeOfDay != TimeOfDayMorning {
		t.Errorf("nil state context: got %q, want morning", ctx.TimeOfDay)
	}

	state := &CharacterState{Mood: MoodHappy, Closeness: 42, Energy: EnergyHigh, Stage: "friend"}
	ctx = ContextFor(state, now)
	if ctx.Mood != MoodHappy || ctx.Closeness != 42 || ctx.Energy != EnergyHigh || ctx.Stage != "friend" {
		t.Errorf("unexpected context snapshot: %+v", ctx)
	}
}

func TestPayloadStringField(t *testing.T) {
	p := ObjectPayload(map[string]interface{}{"reply": "hello", "count": 3.0})
	if got := p.StringField("reply", "def"); got != "hello" {
		t.Errorf("got %q, want hello", got)
	}
	if got := p.StringField("count", "def"); got != "def" {
		t.Errorf("non-string field should yield default, got %q", got)
	}
	if got := p.StringField("missing", "def"); got != "def" {
		t.Errorf("missing field should yield default, got %q", got)
	}

	raw := RawPayload("just text")
	if got := raw.StringField("reply", "def"); got != "def" {
		t.Errorf("raw payload should yield default, got %q", got)
	}
}

func TestPayloadStringSliceField(t *testing.T) {
	p := ObjectPayload(map[string]interface{}{
		"suggestions": []interface{}{"walk", 7.0, "sleep"},
	})
	got := p.StringSliceField("suggestions")
	if len(got) != 2 || got[0] != "walk" || got[1] != "sleep" {
		t.Errorf("unexpected slice: %v", got)
	}
	if p.StringSliceField("missing") != nil {
		t.Error("missing field should yield nil")
	}
}
