// Package emotion provides a fixed whitelist of user emotional-state tags,
// keyword-based detection over user messages, and prompt-guide construction
// for the dialogue layer.
package emotion

import (
	"strings"
)

// AllStates is the hard-coded set of recognized emotional states. The set
// mirrors the fallback response categories so every detected state has a
// template pool behind it.
var AllStates = map[string]bool{
	"stressed": true,
	"sad":      true,
	"anxious":  true,
	"tired":    true,
	"happy":    true,
}

// keywordTable maps surface cues to states. Matching is substring-based over
// the lowercased message; Chinese cues need no lowering but ride the same
// pass. First state whose cue matches wins, scanned in a fixed order.
var keywordTable = []struct {
	state string
	cues  []string
}{
	{"stressed", []string{"stressed", "stress", "overwhelmed", "pressure", "压力", "好累啊忙"}},
	{"anxious", []string{"anxious", "anxiety", "worried", "nervous", "scared", "焦虑", "担心", "紧张"}},
	{"sad", []string{"sad", "down", "depressed", "unhappy", "crying", "难过", "伤心", "沮丧"}},
	{"tired", []string{"tired", "exhausted", "sleepy", "fatigued", "no energy", "累", "疲惫", "困"}},
	{"happy", []string{"happy", "great", "excited", "wonderful", "amazing", "开心", "高兴", "太好了"}},
}

// IsValidState reports whether the tag is in the whitelist.
func IsValidState(state string) bool {
	return AllStates[strings.TrimSpace(strings.ToLower(state))]
}

// Normalize lowercases and trims a tag, returning "" for unknown states.
// Callers pass through client-supplied tags; anything off the whitelist is
// dropped rather than surfaced.
func Normalize(state string) string {
	state = strings.TrimSpace(strings.ToLower(state))
	if AllStates[state] {
		return state
	}
	return ""
}

// Detect scans a user message for emotional cues and returns the detected
// state, or "" when nothing matches.
func Detect(message string) string {
	if message == "" {
		return ""
	}
	lowered := strings.ToLower(message)
	for _, row := range keywordTable {
		for _, cue := range row.cues {
			if strings.Contains(lowered, cue) {
				return row.state
			}
		}
	}
	return ""
}

// BuildGuide produces a compact instruction snippet for injection into the
// system prompt. It returns an empty string for an unknown or empty state.
func BuildGuide(state string) string {
	state = Normalize(state)
	if state == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("The user currently seems ")
	b.WriteString(state)
	b.WriteString(". ")
	switch state {
	case "stressed":
		b.WriteString("Acknowledge the pressure they are under and keep your reply calm and grounding.")
	case "anxious":
		b.WriteString("Be reassuring and steady; avoid adding new worries or open-ended questions.")
	case "sad":
		b.WriteString("Lead with empathy before anything practical. Do not rush to fix things.")
	case "tired":
		b.WriteString("Keep it short and gentle; suggest rest rather than new tasks.")
	case "happy":
		b.WriteString("Match their energy and celebrate with them.")
	}
	return b.String()
}
