// Package models defines the core data structures for the companion service.
//
// It includes character relationship state, conversation messages, dialogue
// requests and results, and chart statistics, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Mood represents the character's current emotional tone.
type Mood string

const (
	// MoodHappy indicates a cheerful, upbeat character tone.
	MoodHappy Mood = "happy"
	// MoodConcerned indicates a caring, slightly worried tone.
	MoodConcerned Mood = "concerned"
	// MoodEnergetic indicates a high-spirited, lively tone.
	MoodEnergetic Mood = "energetic"
	// MoodTired indicates a subdued, low-energy tone.
	MoodTired Mood = "tired"
	// MoodCalm indicates a relaxed, even tone.
	MoodCalm Mood = "calm"
)

// IsValidMood checks if the given mood is supported.
func IsValidMood(m Mood) bool {
	switch m {
	case MoodHappy, MoodConcerned, MoodEnergetic, MoodTired, MoodCalm:
		return true
	default:
		return false
	}
}

// EnergyLevel represents the character's current energy level.
type EnergyLevel string

const (
	// EnergyLow indicates low character energy.
	EnergyLow EnergyLevel = "low"
	// EnergyMedium indicates medium character energy.
	EnergyMedium EnergyLevel = "medium"
	// EnergyHigh indicates high character energy.
	EnergyHigh EnergyLevel = "high"
)

// IsValidEnergyLevel checks if the given energy level is supported.
func IsValidEnergyLevel(e EnergyLevel) bool {
	switch e {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return true
	default:
		return false
	}
}

// TimeOfDay identifies a fixed clock-hour bucket of the day.
type TimeOfDay string

const (
	// TimeOfDayMorning covers hours [6, 12).
	TimeOfDayMorning TimeOfDay = "morning"
	// TimeOfDayAfternoon covers hours [12, 18).
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	// TimeOfDayEvening covers hours [18, 22).
	TimeOfDayEvening TimeOfDay = "evening"
	// TimeOfDayNight covers the remaining hours.
	TimeOfDayNight TimeOfDay = "night"
)

// TimeOfDayForHour maps a clock hour (0-23) to its bucket.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 6 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 18:
		return TimeOfDayAfternoon
	case hour >= 18 && hour < 22:
		return TimeOfDayEvening
	default:
		return TimeOfDayNight
	}
}

// TimeOfDayAt maps a wall-clock time to its bucket.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return TimeOfDayForHour(t.Hour())
}

// TriggerType describes why a dialogue turn was produced.
type TriggerType string

const (
	// TriggerUserInitiated indicates a turn prompted by a user message.
	TriggerUserInitiated TriggerType = "user_initiated"
	// TriggerMorningGreeting indicates a proactive morning greeting.
	TriggerMorningGreeting TriggerType = "morning_greeting"
	// TriggerEveningGreeting indicates a proactive evening greeting.
	TriggerEveningGreeting TriggerType = "evening_greeting"
	// TriggerInactivity indicates a proactive check-in after user inactivity.
	TriggerInactivity TriggerType = "inactivity"
	// TriggerActivityAcknowledgment indicates a reaction to a logged activity.
	TriggerActivityAcknowledgment TriggerType = "activity_acknowledgment"
)

// IsValidTriggerType checks if the given trigger type is supported.
func IsValidTriggerType(t TriggerType) bool {
	switch t {
	case TriggerUserInitiated, TriggerMorningGreeting, TriggerEveningGreeting,
		TriggerInactivity, TriggerActivityAcknowledgment:
		return true
	default:
		return false
	}
}

// IsProactive reports whether the trigger describes an unprompted character turn.
func (t TriggerType) IsProactive() bool {
	switch t {
	case TriggerMorningGreeting, TriggerEveningGreeting, TriggerInactivity, TriggerActivityAcknowledgment:
		return true
	default:
		return false
	}
}

// Sender identifies who authored a conversation message.
type Sender string

const (
	// SenderUser indicates a message written by the user.
	SenderUser Sender = "user"
	// SenderCharacter indicates a message spoken by the character.
	SenderCharacter Sender = "character"
)

// MessageType defines the rendering type of a conversation message.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeChoices is a message offering selectable replies.
	MessageTypeChoices MessageType = "choices"
	// MessageTypeImage is a message carrying an image reference.
	MessageTypeImage MessageType = "image"
)

// Closeness bounds for the relationship-intimacy score.
const (
	// MinCloseness is the lower bound of the closeness score.
	MinCloseness = 0
	// MaxCloseness is the upper bound of the closeness score.
	MaxCloseness = 100
)

// ClampCloseness clamps a closeness value into [MinCloseness, MaxCloseness].
func ClampCloseness(v int) int {
	if v < MinCloseness {
		return MinCloseness
	}
	if v > MaxCloseness {
		return MaxCloseness
	}
	return v
}

// StageThreshold maps a minimum closeness value to a relationship stage.
type StageThreshold struct {
	MinCloseness int    `json:"min_closeness"` // lowest closeness at which the stage applies
	Stage        string `json:"stage"`         // stage name, e.g. "acquaintance"
}

// StageForCloseness returns the stage of the highest threshold that is <= the
// given closeness. Thresholds must be sorted ascending by MinCloseness. An
// empty table yields an empty stage.
func StageForCloseness(thresholds []StageThreshold, closeness int) string {
	stage := ""
	for _, th := range thresholds {
		if closeness >= th.MinCloseness {
			stage = th.Stage
		} else {
			break
		}
	}
	return stage
}

// Validation errors shared across modules.
var (
	ErrEmptyCharacterID = errors.New("character id cannot be empty")
	ErrInvalidMood      = errors.New("invalid mood")
	ErrInvalidEnergy    = errors.New("invalid energy level")
	ErrInvalidTrigger   = errors.New("invalid trigger type")
	ErrEmptyContent     = errors.New("message content cannot be empty")
)

// CharacterState holds the persistent relationship state for one character.
// It is mutated only by the relationship manager; the stage field is always
// recomputed from closeness and never set independently.
type CharacterState struct {
	CharacterID         string      `json:"character_id"`
	Mood                Mood        `json:"mood"`
	Closeness           int         `json:"closeness"` // always within [0, 100]
	Energy              EnergyLevel `json:"energy"`
	Stage               string      `json:"stage"` // derived from closeness via the profile threshold table
	LastInteractionTime time.Time   `json:"last_interaction_time"`
	TotalInteractions   int         `json:"total_interactions"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// MessageContext captures the relationship state at the moment a message was sent.
type MessageContext struct {
	Mood      Mood        `json:"mood,omitempty"`
	Closeness int         `json:"closeness"`
	Energy    EnergyLevel `json:"energy,omitempty"`
	TimeOfDay TimeOfDay   `json:"time_of_day,omitempty"`
	Stage     string      `json:"stage,omitempty"`
}

// ContextFor builds a message context snapshot from a character state.
func ContextFor(state *CharacterState, now time.Time) MessageContext {
	if state == nil {
		return MessageContext{TimeOfDay: TimeOfDayAt(now)}
	}
	return MessageContext{
		Mood:      state.Mood,
		Closeness: state.Closeness,
		Energy:    state.Energy,
		TimeOfDay: TimeOfDayAt(now),
		Stage:     state.Stage,
	}
}

// MessageMetadata records how a character message was produced.
type MessageMetadata struct {
	IsProactive bool        `json:"is_proactive,omitempty"`
	TriggerType TriggerType `json:"trigger_type,omitempty"`
	AIGenerated bool        `json:"ai_generated,omitempty"`
	TemplateID  string      `json:"template_id,omitempty"`
}

// ConversationMessage is one immutable entry in a character's conversation log.
type ConversationMessage struct {
	ID          string          `json:"id"`
	CharacterID string          `json:"character_id"`
	Sender      Sender          `json:"sender"`
	Content     string          `json:"content"`
	Type        MessageType     `json:"type"`
	Choices     []string        `json:"choices,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Context     MessageContext  `json:"context"`
	Metadata    MessageMetadata `json:"metadata"`
	Timestamp   time.Time       `json:"timestamp"`
}

// DialogueRequest carries everything the orchestrator needs for one turn.
// It is ephemeral and never persisted.
type DialogueRequest struct {
	CharacterID     string                `json:"character_id"`
	State           *CharacterState       `json:"state,omitempty"`
	History         []ConversationMessage `json:"history,omitempty"`
	UserMessage     string                `json:"user_message,omitempty"`
	Trigger         TriggerType           `json:"trigger,omitempty"`
	EmotionalState  string                `json:"emotional_state,omitempty"`  // detected user emotional state, e.g. "stressed"
	IntegrationHint string                `json:"integration_hint,omitempty"` // collaborative suggestion from another module
}

// Validate performs basic validation on a DialogueRequest.
func (r *DialogueRequest) Validate() error {
	if r.CharacterID == "" {
		return ErrEmptyCharacterID
	}
	if r.Trigger != "" && !IsValidTriggerType(r.Trigger) {
		return ErrInvalidTrigger
	}
	return nil
}

// ResultMetadata records how a dialogue result was produced.
type ResultMetadata struct {
	AIGenerated      bool   `json:"ai_generated"`
	TemplateID       string `json:"template_id,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// DialogueResult is the orchestrator's reply for one turn.
type DialogueResult struct {
	Content       string         `json:"content"`
	Type          MessageType    `json:"type"`
	SuggestedMood Mood           `json:"suggested_mood,omitempty"`
	Metadata      ResultMetadata `json:"metadata"`
}

// TrendDirection describes the direction of a chart series.
type TrendDirection string

const (
	// TrendUp indicates an increasing series.
	TrendUp TrendDirection = "up"
	// TrendDown indicates a decreasing series.
	TrendDown TrendDirection = "down"
	// TrendStable indicates a flat series.
	TrendStable TrendDirection = "stable"
)

// ChartStats holds aggregate statistics of a rendered health chart.
type ChartStats struct {
	ChartType string         `json:"chart_type"` // e.g. "weight", "calories", "sleep", "mood"
	Mean      float64        `json:"mean"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Trend     TrendDirection `json:"trend"`
	Unit      string         `json:"unit,omitempty"`
	Points    int            `json:"points"` // number of data points aggregated
}

// ActivityEntry is a minimal record of a domain activity (symptom log, food
// entry, ...) consulted by the activity-based inactivity detector.
type ActivityEntry struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Kind        string    `json:"kind"` // e.g. "symptom", "food", "exercise"
	Timestamp   time.Time `json:"timestamp"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the uniform envelope returned by all HTTP handlers.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success builds an ok-status API response carrying a result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// Error builds an error-status API response carrying a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
