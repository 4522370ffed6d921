package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lumewell/companion/internal/models"
)

// marshalOrNil marshals v to a JSON string, or nil for a NULL column when v
// is empty.
func marshalOrNil(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case models.MessageContext:
		// always persisted; context snapshots are small
	case models.MessageMetadata:
		if t == (models.MessageMetadata{}) {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column value: %w", err)
	}
	return string(data), nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanMessage scans one messages row into a ConversationMessage.
func scanMessage(rows *sql.Rows) (models.ConversationMessage, error) {
	var m models.ConversationMessage
	var choicesJSON, imageURL, contextJSON, metadataJSON sql.NullString

	err := rows.Scan(&m.ID, &m.CharacterID, &m.Sender, &m.Content, &m.Type,
		&choicesJSON, &imageURL, &contextJSON, &metadataJSON, &m.Timestamp)
	if err != nil {
		return m, fmt.Errorf("failed to scan message row: %w", err)
	}

	m.ImageURL = imageURL.String
	if choicesJSON.Valid && choicesJSON.String != "" {
		if err := json.Unmarshal([]byte(choicesJSON.String), &m.Choices); err != nil {
			return m, fmt.Errorf("failed to decode message choices: %w", err)
		}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &m.Context); err != nil {
			return m, fmt.Errorf("failed to decode message context: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &m.Metadata); err != nil {
			return m, fmt.Errorf("failed to decode message metadata: %w", err)
		}
	}
	return m, nil
}

// scanCharacterState scans one character_states row.
func scanCharacterState(scanner interface {
	Scan(dest ...interface{}) error
}) (models.CharacterState, error) {
	var st models.CharacterState
	var lastInteraction sql.NullTime

	err := scanner.Scan(&st.CharacterID, &st.Mood, &st.Closeness, &st.Energy, &st.Stage,
		&lastInteraction, &st.TotalInteractions, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return st, err
	}
	if lastInteraction.Valid {
		st.LastInteractionTime = lastInteraction.Time
	}
	return st, nil
}
