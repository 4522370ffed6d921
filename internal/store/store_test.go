package store

import (
	"testing"
	"time"

	"github.com/lumewell/companion/internal/models"
)

// exerciseStore runs the shared backend contract against any Store.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	// Messages round-trip with query options.
	for i := 0; i < 5; i++ {
		msg := models.ConversationMessage{
			ID:          "m_" + string(rune('a'+i)),
			CharacterID: "luna",
			Sender:      models.SenderUser,
			Content:     "message",
			Type:        models.MessageTypeText,
			Context:     models.MessageContext{Closeness: i, TimeOfDay: models.TimeOfDayAfternoon},
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AddMessage(msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	messages, err := s.GetMessages("luna", QueryOpts{})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	// Default ordering is newest first.
	if messages[0].ID != "m_e" {
		t.Errorf("expected newest first, got %s", messages[0].ID)
	}

	messages, err = s.GetMessages("luna", QueryOpts{Limit: 2, Ascending: true})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "m_a" {
		t.Errorf("ascending limited query wrong: %+v", messages)
	}

	messages, err = s.GetMessages("luna", QueryOpts{Since: base.Add(3 * time.Minute)})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("since filter: expected 2, got %d", len(messages))
	}

	if got, _ := s.GetMessages("nobody", QueryOpts{}); len(got) != 0 {
		t.Errorf("expected no messages for unknown character, got %d", len(got))
	}

	// Character state: absent, save, read back, list, delete.
	state, err := s.GetCharacterState("luna")
	if err != nil {
		t.Fatalf("GetCharacterState: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state before save")
	}

	saved := models.CharacterState{
		CharacterID:         "luna",
		Mood:                models.MoodHappy,
		Closeness:           42,
		Energy:              models.EnergyHigh,
		Stage:               "friend",
		LastInteractionTime: base,
		TotalInteractions:   7,
		CreatedAt:           base,
		UpdatedAt:           base,
	}
	if err := s.SaveCharacterState(saved); err != nil {
		t.Fatalf("SaveCharacterState: %v", err)
	}

	state, err = s.GetCharacterState("luna")
	if err != nil {
		t.Fatalf("GetCharacterState: %v", err)
	}
	if state == nil || state.Closeness != 42 || state.Mood != models.MoodHappy || state.TotalInteractions != 7 {
		t.Errorf("state round-trip mismatch: %+v", state)
	}
	if !state.LastInteractionTime.Equal(base) {
		t.Errorf("last interaction time mismatch: %v", state.LastInteractionTime)
	}

	// Upsert replaces.
	saved.Closeness = 50
	if err := s.SaveCharacterState(saved); err != nil {
		t.Fatalf("SaveCharacterState upsert: %v", err)
	}
	state, _ = s.GetCharacterState("luna")
	if state.Closeness != 50 {
		t.Errorf("upsert did not apply, closeness = %d", state.Closeness)
	}

	states, err := s.ListCharacterStates()
	if err != nil {
		t.Fatalf("ListCharacterStates: %v", err)
	}
	if len(states) != 1 {
		t.Errorf("expected 1 state, got %d", len(states))
	}

	// Activity entries.
	entry := models.ActivityEntry{ID: "a_1", CharacterID: "luna", Kind: "food", Timestamp: base}
	if err := s.AddActivityEntry(entry); err != nil {
		t.Fatalf("AddActivityEntry: %v", err)
	}
	entries, err := s.GetActivityEntriesSince("luna", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetActivityEntriesSince: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "food" {
		t.Errorf("activity round-trip mismatch: %+v", entries)
	}
	entries, _ = s.GetActivityEntriesSince("luna", base.Add(time.Hour))
	if len(entries) != 0 {
		t.Errorf("since filter on activity: expected 0, got %d", len(entries))
	}

	// Deletions.
	if err := s.DeleteMessages("luna"); err != nil {
		t.Fatalf("DeleteMessages: %v", err)
	}
	if got, _ := s.GetMessages("luna", QueryOpts{}); len(got) != 0 {
		t.Error("messages survived deletion")
	}
	if err := s.DeleteCharacterState("luna"); err != nil {
		t.Fatalf("DeleteCharacterState: %v", err)
	}
	if state, _ := s.GetCharacterState("luna"); state != nil {
		t.Error("state survived deletion")
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestDetectDSNType(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/db", "postgres"},
		{"postgresql://user:pw@localhost/db", "postgres"},
		{"host=localhost dbname=companion", "postgres"},
		{"redis://localhost:6379/0", "redis"},
		{"/var/lib/companion/companion.db", "sqlite"},
		{"companion.db", "sqlite"},
	}
	for _, c := range cases {
		if got := DetectDSNType(c.dsn); got != c.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", c.dsn, got, c.want)
		}
	}
}
