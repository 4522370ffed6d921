// Package store provides storage backends for the companion service.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/lumewell/companion/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists companion data in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddMessage appends a conversation message.
func (s *SQLiteStore) AddMessage(msg models.ConversationMessage) error {
	choices, err := marshalOrNil(msg.Choices)
	if err != nil {
		return err
	}
	contextJSON, err := marshalOrNil(msg.Context)
	if err != nil {
		return err
	}
	metadata, err := marshalOrNil(msg.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO messages (id, character_id, sender, content, type, choices, image_url, context, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.CharacterID, msg.Sender, msg.Content, msg.Type,
		choices, nilIfEmpty(msg.ImageURL), contextJSON, metadata, msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "characterID", msg.CharacterID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.CharacterID, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "characterID", msg.CharacterID, "messageID", msg.ID)
	return nil
}

// GetMessages returns messages for a character honoring the query options.
func (s *SQLiteStore) GetMessages(characterID string, opts QueryOpts) ([]models.ConversationMessage, error) {
	query := `SELECT id, character_id, sender, content, type, choices, image_url, context, metadata, timestamp
		FROM messages WHERE character_id = ?`
	args := []interface{}{characterID}

	if !opts.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, opts.Since)
	}
	if !opts.Until.IsZero() {
		query += ` AND timestamp < ?`
		args = append(args, opts.Until)
	}
	if opts.Ascending {
		query += ` ORDER BY timestamp ASC`
	} else {
		query += ` ORDER BY timestamp DESC`
	}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore GetMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("SQLiteStore GetMessages succeeded", "characterID", characterID, "count", len(messages))
	return messages, nil
}

// DeleteMessages removes all messages for a character.
func (s *SQLiteStore) DeleteMessages(characterID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE character_id = ?`, characterID)
	if err != nil {
		slog.Error("SQLiteStore DeleteMessages failed", "error", err, "characterID", characterID)
		return fmt.Errorf("failed to delete messages for %s: %w", characterID, err)
	}
	slog.Debug("SQLiteStore DeleteMessages succeeded", "characterID", characterID)
	return nil
}

// GetCharacterState retrieves the state for a character, or (nil, nil) when absent.
func (s *SQLiteStore) GetCharacterState(characterID string) (*models.CharacterState, error) {
	row := s.db.QueryRow(`SELECT character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at
		FROM character_states WHERE character_id = ?`, characterID)

	st, err := scanCharacterState(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetCharacterState not found", "characterID", characterID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCharacterState failed", "error", err, "characterID", characterID)
		return nil, err
	}
	return &st, nil
}

// SaveCharacterState stores or replaces the state for a character.
func (s *SQLiteStore) SaveCharacterState(state models.CharacterState) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO character_states
		(character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.CharacterID, state.Mood, state.Closeness, state.Energy, state.Stage,
		nullableTime(state.LastInteractionTime), state.TotalInteractions, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveCharacterState failed", "error", err, "characterID", state.CharacterID)
		return fmt.Errorf("failed to save state for %s: %w", state.CharacterID, err)
	}
	slog.Debug("SQLiteStore SaveCharacterState succeeded", "characterID", state.CharacterID)
	return nil
}

// ListCharacterStates returns all stored character states.
func (s *SQLiteStore) ListCharacterStates() ([]models.CharacterState, error) {
	rows, err := s.db.Query(`SELECT character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at
		FROM character_states ORDER BY character_id`)
	if err != nil {
		slog.Error("SQLiteStore ListCharacterStates query failed", "error", err)
		return nil, fmt.Errorf("failed to query character states: %w", err)
	}
	defer rows.Close()

	var states []models.CharacterState
	for rows.Next() {
		st, err := scanCharacterState(rows)
		if err != nil {
			slog.Error("SQLiteStore ListCharacterStates scan failed", "error", err)
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// DeleteCharacterState removes the state for a character.
func (s *SQLiteStore) DeleteCharacterState(characterID string) error {
	_, err := s.db.Exec(`DELETE FROM character_states WHERE character_id = ?`, characterID)
	if err != nil {
		slog.Error("SQLiteStore DeleteCharacterState failed", "error", err, "characterID", characterID)
		return err
	}
	slog.Debug("SQLiteStore DeleteCharacterState succeeded", "characterID", characterID)
	return nil
}

// AddActivityEntry appends a domain activity entry.
func (s *SQLiteStore) AddActivityEntry(entry models.ActivityEntry) error {
	_, err := s.db.Exec(`INSERT INTO activity_entries (id, character_id, kind, timestamp) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.CharacterID, entry.Kind, entry.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddActivityEntry failed", "error", err, "characterID", entry.CharacterID)
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	return nil
}

// GetActivityEntriesSince returns activity entries at or after since.
func (s *SQLiteStore) GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error) {
	rows, err := s.db.Query(`SELECT id, character_id, kind, timestamp FROM activity_entries
		WHERE character_id = ? AND timestamp >= ? ORDER BY timestamp ASC`, characterID, since)
	if err != nil {
		slog.Error("SQLiteStore GetActivityEntriesSince query failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to query activity entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.CharacterID, &e.Kind, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// nullableTime maps a zero time to a NULL column value.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
