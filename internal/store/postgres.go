// Package store provides storage backends for the companion service.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lumewell/companion/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists companion data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddMessage appends a conversation message.
func (s *PostgresStore) AddMessage(msg models.ConversationMessage) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.CharacterID, msg.Sender, msg.Content, msg.Type,
		choices, nilIfEmpty(msg.ImageURL), contextJSON, metadata, msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "characterID", msg.CharacterID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.CharacterID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "characterID", msg.CharacterID, "messageID", msg.ID)
	return nil
}

// GetMessages returns messages for a character honoring the query options.
func (s *PostgresStore) GetMessages(characterID string, opts QueryOpts) ([]models.ConversationMessage, error) {
	query := `SELECT id, character_id, sender, content, type, choices, image_url, context, metadata, timestamp
		FROM messages WHERE character_id = $1`
	args := []interface{}{characterID}

	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		query += fmt.Sprintf(` AND timestamp >= $%d`, len(args))
	}
	if !opts.Until.IsZero() {
		args = append(args, opts.Until)
		query += fmt.Sprintf(` AND timestamp < $%d`, len(args))
	}
	if opts.Ascending {
		query += ` ORDER BY timestamp ASC`
	} else {
		query += ` ORDER BY timestamp DESC`
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore GetMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("PostgresStore GetMessages succeeded", "characterID", characterID, "count", len(messages))
	return messages, nil
}

// DeleteMessages removes all messages for a character.
func (s *PostgresStore) DeleteMessages(characterID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE character_id = $1`, characterID)
	if err != nil {
		slog.Error("PostgresStore DeleteMessages failed", "error", err, "characterID", characterID)
		return fmt.Errorf("failed to delete messages for %s: %w", characterID, err)
	}
	return nil
}

// GetCharacterState retrieves the state for a character, or (nil, nil) when absent.
func (s *PostgresStore) GetCharacterState(characterID string) (*models.CharacterState, error) {
	row := s.db.QueryRow(`SELECT character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at
		FROM character_states WHERE character_id = $1`, characterID)

	st, err := scanCharacterState(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetCharacterState not found", "characterID", characterID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCharacterState failed", "error", err, "characterID", characterID)
		return nil, err
	}
	return &st, nil
}

// SaveCharacterState stores or replaces the state for a character.
func (s *PostgresStore) SaveCharacterState(state models.CharacterState) error {
	_, err := s.db.Exec(`INSERT INTO character_states
		(character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (character_id) DO UPDATE SET
			mood = EXCLUDED.mood,
			closeness = EXCLUDED.closeness,
			energy = EXCLUDED.energy,
			stage = EXCLUDED.stage,
			last_interaction_time = EXCLUDED.last_interaction_time,
			total_interactions = EXCLUDED.total_interactions,
			updated_at = EXCLUDED.updated_at`,
		state.CharacterID, state.Mood, state.Closeness, state.Energy, state.Stage,
		nullableTime(state.LastInteractionTime), state.TotalInteractions, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveCharacterState failed", "error", err, "characterID", state.CharacterID)
		return fmt.Errorf("failed to save state for %s: %w", state.CharacterID, err)
	}
	return nil
}

// ListCharacterStates returns all stored character states.
func (s *PostgresStore) ListCharacterStates() ([]models.CharacterState, error) {
	rows, err := s.db.Query(`SELECT character_id, mood, closeness, energy, stage, last_interaction_time, total_interactions, created_at, updated_at
		FROM character_states ORDER BY character_id`)
	if err != nil {
		slog.Error("PostgresStore ListCharacterStates query failed", "error", err)
		return nil, fmt.Errorf("failed to query character states: %w", err)
	}
	defer rows.Close()

	var states []models.CharacterState
	for rows.Next() {
		st, err := scanCharacterState(rows)
		if err != nil {
			slog.Error("PostgresStore ListCharacterStates scan failed", "error", err)
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// DeleteCharacterState removes the state for a character.
func (s *PostgresStore) DeleteCharacterState(characterID string) error {
	_, err := s.db.Exec(`DELETE FROM character_states WHERE character_id = $1`, characterID)
	if err != nil {
		slog.Error("PostgresStore DeleteCharacterState failed", "error", err, "characterID", characterID)
		return err
	}
	return nil
}

// AddActivityEntry appends a domain activity entry.
func (s *PostgresStore) AddActivityEntry(entry models.ActivityEntry) error {
	_, err := s.db.Exec(`INSERT INTO activity_entries (id, character_id, kind, timestamp) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.CharacterID, entry.Kind, entry.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddActivityEntry failed", "error", err, "characterID", entry.CharacterID)
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	return nil
}

// GetActivityEntriesSince returns activity entries at or after since.
func (s *PostgresStore) GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error) {
	rows, err := s.db.Query(`SELECT id, character_id, kind, timestamp FROM activity_entries
		WHERE character_id = $1 AND timestamp >= $2 ORDER BY timestamp ASC`, characterID, since)
	if err != nil {
		slog.Error("PostgresStore GetActivityEntriesSince query failed", "error", err, "characterID", characterID)
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

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
