package emotion

import "testing"

func TestDetect(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"I'm so stressed about the deadline", "stressed"},
		{"Feeling really OVERWHELMED right now", "stressed"},
		{"I'm worried about tomorrow", "anxious"},
		{"been crying all day", "sad"},
		{"so exhausted, no energy left", "tired"},
		{"today was amazing!", "happy"},
		{"最近压力好大", "stressed"},
		{"我有点焦虑", "anxious"},
		{"今天好难过", "sad"},
		{"我好累", "tired"},
		{"今天太好了", "happy"},
		{"just logged my lunch", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Detect(c.message); got != c.want {
			t.Errorf("Detect(%q) = %q, want %q", c.message, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"stressed", "stressed"},
		{"  Happy  ", "happy"},
		{"TIRED", "tired"},
		{"furious", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsValidState(t *testing.T) {
	if !IsValidState("anxious") {
		t.Error("anxious should be valid")
	}
	if IsValidState("melancholy") {
		t.Error("melancholy should be rejected")
	}
}

func TestBuildGuide(t *testing.T) {
	if guide := BuildGuide("sad"); guide == "" {
		t.Error("expected a guide for a known state")
	}
	if guide := BuildGuide("unknown"); guide != "" {
		t.Errorf("expected empty guide for unknown state, got %q", guide)
	}
	if guide := BuildGuide(""); guide != "" {
		t.Errorf("expected empty guide for empty state, got %q", guide)
	}
}
