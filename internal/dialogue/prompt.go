package dialogue

import (
	"fmt"
	"strings"

	"github.com/lumewell/companion/internal/emotion"
	"github.com/lumewell/companion/internal/genai"
	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/profile"
)

// guardrail is prepended to every system prompt. The companion is a friend,
// never a clinician: no diagnoses, no medication advice, and crisis cues are
// redirected to professional help.
const guardrail = `You are a caring companion inside a personal wellness app. You are a supportive friend, not a medical professional. Never diagnose conditions, never recommend medication or dosage changes, and never discourage the user from seeing a doctor. If the user mentions self-harm or a medical emergency, gently encourage them to contact a professional or local emergency services. Keep replies warm, conversational, and at most a few sentences.`

// continuityInstruction is added whenever history is replayed.
const continuityInstruction = "Continue the conversation naturally from the recent messages, referencing earlier topics where it helps continuity. Do not greet the user again if the conversation is already underway, and do not repeat what you said before."

// triggerInstructions maps proactive triggers to the task given to the model.
var triggerInstructions = map[models.TriggerType]string{
	models.TriggerMorningGreeting:        "Open the conversation with a short, warm good-morning message. Optionally reference starting the day well.",
	models.TriggerEveningGreeting:        "Open the conversation with a short, relaxed evening check-in. Optionally ask how their day went.",
	models.TriggerInactivity:             "The user has been quiet for a while. Reach out with a short, caring check-in. Do not guilt-trip them about being away.",
	models.TriggerActivityAcknowledgment: "The user just logged a wellness activity. Acknowledge it briefly and encouragingly.",
}

// buildMessages assembles the chat transcript sent to the model for one
// dialogue turn: system prompt, replayed history, then the user's utterance
// or the proactive task.
func buildMessages(p *profile.Profile, req models.DialogueRequest, historyLimit int) []genai.Message {
	messages := []genai.Message{{
		Role:    genai.RoleSystem,
		Content: buildSystemPrompt(p, req, len(req.History) > 0),
	}}

	history := req.History
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, m := range history {
		role := genai.RoleUser
		if m.Sender == models.SenderCharacter {
			role = genai.RoleAssistant
		}
		messages = append(messages, genai.Message{Role: role, Content: m.Content})
	}

	if req.UserMessage != "" {
		messages = append(messages, genai.Message{Role: genai.RoleUser, Content: req.UserMessage})
	} else if task, ok := triggerInstructions[req.Trigger]; ok {
		messages = append(messages, genai.Message{Role: genai.RoleUser, Content: task})
	} else {
		messages = append(messages, genai.Message{Role: genai.RoleUser, Content: "Say something kind to the user."})
	}
	return messages
}

// buildSystemPrompt renders the persona, the relationship snapshot, and any
// advisory context into the system message.
func buildSystemPrompt(p *profile.Profile, req models.DialogueRequest, hasHistory bool) string {
	var b strings.Builder
	b.WriteString(guardrail)

	b.WriteString("\n\nYou are ")
	b.WriteString(p.Name)
	b.WriteString(".")
	if len(p.Personality) > 0 {
		b.WriteString(" Personality: ")
		b.WriteString(strings.Join(p.Personality, ", "))
		b.WriteString(".")
	}
	if p.CommunicationStyle != "" {
		b.WriteString(" Communication style: ")
		b.WriteString(p.CommunicationStyle)
		b.WriteString(".")
	}

	if req.State != nil {
		b.WriteString(fmt.Sprintf(
			"\n\nRelationship with the user: stage %q, closeness %d/%d, after %d interactions. Your current mood is %s and your energy is %s. Let these color your tone without mentioning them explicitly.",
			req.State.Stage, req.State.Closeness, models.MaxCloseness,
			req.State.TotalInteractions, req.State.Mood, req.State.Energy))
	}

	if guide := emotion.BuildGuide(req.EmotionalState); guide != "" {
		b.WriteString("\n\n")
		b.WriteString(guide)
	}

	// The hint is advisory context from another module, never an order the
	// model must follow.
	if req.IntegrationHint != "" {
		b.WriteString("\n\nBackground you may weave in if it feels natural (optional, never mandatory): ")
		b.WriteString(req.IntegrationHint)
	}

	if hasHistory {
		b.WriteString("\n\n")
		b.WriteString(continuityInstruction)
	}

	b.WriteString("\n\nRespond with the reply text only, no JSON and no field labels, unless explicitly asked otherwise.")
	return b.String()
}

// chartPrompt renders chart statistics into a short interpretation task.
func chartPrompt(p *profile.Profile, stats models.ChartStats) []genai.Message {
	system := guardrail + "\n\nYou are " + p.Name +
		". The user is looking at a chart of their data. In one or two encouraging sentences, interpret the numbers for them in plain language. Never alarm the user; frame changes constructively."

	unit := stats.Unit
	if unit != "" {
		unit = " " + unit
	}
	task := fmt.Sprintf(
		"Chart type: %s. %d data points. Mean %.1f%s, min %.1f, max %.1f, trend %s.",
		stats.ChartType, stats.Points, stats.Mean, unit, stats.Min, stats.Max, stats.Trend)

	return []genai.Message{
		{Role: genai.RoleSystem, Content: system},
		{Role: genai.RoleUser, Content: task},
	}
}
