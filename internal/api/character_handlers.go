package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lumewell/companion/internal/models"
	"github.com/lumewell/companion/internal/store"
	"github.com/lumewell/companion/internal/util"
)

// charactersHandler routes /characters/{id}/... to its subresource handler.
func (s *Server) charactersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.charactersHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/characters/")
	segments := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing character id"))
		return
	}
	characterID := segments[0]

	if len(segments) != 2 {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown character endpoint"))
		return
	}

	switch segments[1] {
	case "state":
		s.stateHandler(w, r, characterID)
	case "mood":
		s.moodHandler(w, r, characterID)
	case "closeness":
		s.closenessHandler(w, r, characterID)
	case "energy":
		s.energyHandler(w, r, characterID)
	case "reset":
		s.resetHandler(w, r, characterID)
	case "messages":
		s.messagesHandler(w, r, characterID)
	case "proactive":
		s.proactiveHandler(w, r, characterID)
	case "activity":
		s.activityHandler(w, r, characterID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown character endpoint"))
	}
}

// stateHandler handles GET and DELETE /characters/{id}/state.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	switch r.Method {
	case http.MethodGet:
		state, err := s.rel.Get(characterID)
		if err != nil {
			writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(state))
	case http.MethodDelete:
		if err := s.rel.Delete(characterID); err != nil {
			writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
	default:
		w.Header().Set("Allow", "GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// moodHandler handles POST /characters/{id}/mood.
func (s *Server) moodHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Mood models.Mood `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state, err := s.rel.UpdateMood(characterID, body.Mood)
	if err != nil {
		slog.Warn("Server.moodHandler: update failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// closenessHandler handles POST /characters/{id}/closeness.
func (s *Server) closenessHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state, err := s.rel.IncrementCloseness(characterID, body.Delta)
	if err != nil {
		slog.Warn("Server.closenessHandler: update failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// energyHandler handles POST /characters/{id}/energy: recompute energy from
// the profile's time-of-day schedule.
func (s *Server) energyHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state, err := s.rel.UpdateEnergyByTimeOfDay(characterID)
	if err != nil {
		slog.Warn("Server.energyHandler: update failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// resetHandler handles POST /characters/{id}/reset.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		PreserveCloseness bool `json:"preserve_closeness"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
	}

	state, err := s.rel.Reset(characterID, body.PreserveCloseness)
	if err != nil {
		slog.Warn("Server.resetHandler: reset failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// messagesHandler handles GET and DELETE /characters/{id}/messages.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
				return
			}
			limit = parsed
		}
		messages, err := s.st.GetMessages(characterID, store.QueryOpts{Limit: limit})
		if err != nil {
			slog.Error("Server.messagesHandler: fetch failed", "error", err, "characterID", characterID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch messages"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(messages))
	case http.MethodDelete:
		if err := s.st.DeleteMessages(characterID); err != nil {
			slog.Error("Server.messagesHandler: delete failed", "error", err, "characterID", characterID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete messages"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
	default:
		w.Header().Set("Allow", "GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// proactiveEvent is the wire body for POST /characters/{id}/proactive.
type proactiveEvent struct {
	// Event is "mount" for a fresh character load or "foreground" when the
	// app regains visibility.
	Event string `json:"event"`
}

// proactiveResponseBody reports whether a proactive message was produced.
type proactiveResponseBody struct {
	Triggered bool                   `json:"triggered"`
	Trigger   models.TriggerType     `json:"trigger,omitempty"`
	Reply     *models.DialogueResult `json:"reply,omitempty"`
}

// proactiveHandler handles POST /characters/{id}/proactive: the host app
// reports a mount or foreground event and a proactive message is generated
// when the trigger policy fires.
func (s *Server) proactiveHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var event proactiveEvent
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
	}

	state, err := s.rel.Get(characterID)
	if err != nil {
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}

	session := s.sessions.For(characterID)
	if event.Event == "foreground" && !session.Rearm() {
		slog.Debug("Server.proactiveHandler: re-arm refused by cooldown", "characterID", characterID)
		writeJSONResponse(w, http.StatusOK, models.Success(proactiveResponseBody{Triggered: false}))
		return
	}

	trigger := s.eval.DetermineTrigger(state, session.LastProactiveTime())
	hint := ""
	if trigger == "" {
		check, checkErr := s.activity.Check(characterID, state)
		if checkErr != nil {
			slog.Error("Server.proactiveHandler: activity check failed", "error", checkErr, "characterID", characterID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate activity"))
			return
		}
		if check != nil {
			trigger = check.Trigger
			hint = check.Hint
		}
	}
	if trigger == "" {
		writeJSONResponse(w, http.StatusOK, models.Success(proactiveResponseBody{Triggered: false}))
		return
	}

	result, err := s.deliverProactive(r.Context(), state, trigger, hint)
	if err != nil {
		slog.Error("Server.proactiveHandler: delivery failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(proactiveResponseBody{
		Triggered: true,
		Trigger:   trigger,
		Reply:     result,
	}))
}

// activityHandler handles POST /characters/{id}/activity: record a wellness
// activity entry for the domain-activity inactivity detector.
func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request, characterID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if body.Kind == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: kind"))
		return
	}

	entry := models.ActivityEntry{
		ID:          util.GenerateActivityID(),
		CharacterID: characterID,
		Kind:        body.Kind,
		Timestamp:   s.now(),
	}
	if err := s.st.AddActivityEntry(entry); err != nil {
		slog.Error("Server.activityHandler: store failed", "error", err, "characterID", characterID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store activity entry"))
		return
	}

	slog.Debug("Server.activityHandler: activity recorded", "characterID", characterID, "kind", body.Kind)
	writeJSONResponse(w, http.StatusCreated, models.Success(entry))
}
