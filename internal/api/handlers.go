package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/util"
)

// dialogueRequestBody is the wire body for POST /dialogue.
type dialogueRequestBody struct {
	CharacterID    string             `json:"character_id"`
	UserMessage    string             `json:"user_message,omitempty"`
	Trigger        models.TriggerType `json:"trigger,omitempty"`
	EmotionalState string             `json:"emotional_state,omitempty"`
}

// dialogueResponseBody pairs the reply with the post-turn relationship state.
type dialogueResponseBody struct {
	Reply *models.DialogueResult `json:"reply"`
	State *models.CharacterState `json:"state"`
}

// dialogueHandler handles POST /dialogue: one full conversational turn.
func (s *Server) dialogueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.dialogueHandler: processing dialogue request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.dialogueHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body dialogueRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Server.dialogueHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if body.CharacterID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: character_id"))
		return
	}
	if body.Trigger == "" {
		body.Trigger = models.TriggerUserInitiated
	}

	state, err := s.rel.Get(body.CharacterID)
	if err != nil {
		slog.Warn("Server.dialogueHandler: state lookup failed", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}

	history, err := s.recentMessages(body.CharacterID)
	if err != nil {
		slog.Error("Server.dialogueHandler: failed to load history", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation history"))
		return
	}

	if body.UserMessage != "" {
		userMsg := models.ConversationMessage{
			ID:          util.GenerateMessageID(),
			CharacterID: body.CharacterID,
			Sender:      models.SenderUser,
			Content:     body.UserMessage,
			Type:        models.MessageTypeText,
			Context:     models.ContextFor(state, s.now()),
			Timestamp:   s.now(),
		}
		if err := s.st.AddMessage(userMsg); err != nil {
			slog.Error("Server.dialogueHandler: failed to persist user message", "error", err, "characterID", body.CharacterID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store message"))
			return
		}
	}

	result, err := s.orch.Generate(r.Context(), models.DialogueRequest{
		CharacterID:    body.CharacterID,
		State:          state,
		History:        history,
		UserMessage:    body.UserMessage,
		Trigger:        body.Trigger,
		EmotionalState: body.EmotionalState,
	})
	if err != nil {
		slog.Error("Server.dialogueHandler: generation failed", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}

	if err := s.persistCharacterMessage(state, result, body.Trigger); err != nil {
		slog.Error("Server.dialogueHandler: failed to persist reply", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store message"))
		return
	}

	// Caller-side relationship mutation: the turn counts as an interaction,
	// and a suggested mood is applied after the reply is stored.
	state, err = s.rel.IncrementCloseness(body.CharacterID, DefaultClosenessDelta)
	if err != nil {
		slog.Error("Server.dialogueHandler: closeness update failed", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update relationship state"))
		return
	}
	if result.SuggestedMood != "" {
		if updated, moodErr := s.rel.UpdateMood(body.CharacterID, result.SuggestedMood); moodErr != nil {
			slog.Warn("Server.dialogueHandler: suggested mood rejected", "error", moodErr, "characterID", body.CharacterID)
		} else {
			state = updated
		}
	}

	slog.Info("Server.dialogueHandler: turn completed",
		"characterID", body.CharacterID, "trigger", body.Trigger,
		"ai_generated", result.Metadata.AIGenerated, "processing_ms", result.Metadata.ProcessingTimeMs)
	writeJSONResponse(w, http.StatusOK, models.Success(dialogueResponseBody{Reply: result, State: state}))
}

// chartRequestBody is the wire body for POST /chart/interpret.
type chartRequestBody struct {
	CharacterID string            `json:"character_id"`
	Stats       models.ChartStats `json:"stats"`
}

// chartHandler handles POST /chart/interpret: a one-line, tightly-bounded
// interpretation of chart statistics. It never persists anything.
func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chartHandler: processing chart request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chartHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body chartRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Server.chartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if body.CharacterID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: character_id"))
		return
	}

	result, err := s.orch.InterpretChart(r.Context(), body.CharacterID, body.Stats)
	if err != nil {
		slog.Warn("Server.chartHandler: interpretation failed", "error", err, "characterID", body.CharacterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}

	slog.Debug("Server.chartHandler: interpretation completed",
		"characterID", body.CharacterID, "chart_type", body.Stats.ChartType,
		"ai_generated", result.Metadata.AIGenerated)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// listCharactersHandler handles GET /characters: all stored character states.
func (s *Server) listCharactersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listCharactersHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	states, err := s.st.ListCharacterStates()
	if err != nil {
		slog.Error("Server.listCharactersHandler: failed to list states", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list character states"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(states))
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if _, err := s.st.ListCharacterStates(); err != nil {
		slog.Warn("Health check: store unavailable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
