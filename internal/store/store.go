// Package store provides storage backends for the companion service.
//
// It persists conversation messages, character relationship state, and
// activity entries behind a narrow interface with in-memory, SQLite,
// PostgreSQL, and Redis implementations.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lumewell/companion/internal/models"
)

// QueryOpts narrows a message query.
type QueryOpts struct {
	Limit     int       // maximum messages returned; 0 means no limit
	Ascending bool      // oldest-first when true, newest-first otherwise
	Since     time.Time // inclusive lower bound; zero means unbounded
	Until     time.Time // exclusive upper bound; zero means unbounded
}

// Store is the persistence interface consumed by the companion modules.
// GetCharacterState returns (nil, nil) when no state exists for the id.
type Store interface {
	AddMessage(msg models.ConversationMessage) error
	GetMessages(characterID string, opts QueryOpts) ([]models.ConversationMessage, error)
	DeleteMessages(characterID string) error

	GetCharacterState(characterID string) (*models.CharacterState, error)
	SaveCharacterState(state models.CharacterState) error
	ListCharacterStates() ([]models.CharacterState, error)
	DeleteCharacterState(characterID string) error

	AddActivityEntry(entry models.ActivityEntry) error
	GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error)

	Close() error
}

// InMemoryStore is a thread-safe in-memory Store used by tests and as the
// default backend when no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]models.ConversationMessage
	states   map[string]models.CharacterState
	activity map[string][]models.ActivityEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string][]models.ConversationMessage),
		states:   make(map[string]models.CharacterState),
		activity: make(map[string][]models.ActivityEntry),
	}
}

// AddMessage appends a conversation message.
func (s *InMemoryStore) AddMessage(msg models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.CharacterID] = append(s.messages[msg.CharacterID], msg)
	return nil
}

// GetMessages returns messages for a character honoring the query options.
func (s *InMemoryStore) GetMessages(characterID string, opts QueryOpts) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ConversationMessage
	for _, msg := range s.messages[characterID] {
		if !opts.Since.IsZero() && msg.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && !msg.Timestamp.Before(opts.Until) {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if opts.Ascending {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[j].Timestamp.Before(out[i].Timestamp)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// DeleteMessages removes all messages for a character.
func (s *InMemoryStore) DeleteMessages(characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, characterID)
	return nil
}

// GetCharacterState returns the stored state, or (nil, nil) when absent.
func (s *InMemoryStore) GetCharacterState(characterID string) (*models.CharacterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[characterID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// SaveCharacterState stores or replaces the state for a character.
func (s *InMemoryStore) SaveCharacterState(state models.CharacterState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.CharacterID] = state
	return nil
}

// ListCharacterStates returns all stored character states.
func (s *InMemoryStore) ListCharacterStates() ([]models.CharacterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CharacterState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	return out, nil
}

// DeleteCharacterState removes the state for a character.
func (s *InMemoryStore) DeleteCharacterState(characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, characterID)
	return nil
}

// AddActivityEntry appends a domain activity entry.
func (s *InMemoryStore) AddActivityEntry(entry models.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[entry.CharacterID] = append(s.activity[entry.CharacterID], entry)
	return nil
}

// GetActivityEntriesSince returns activity entries at or after since.
func (s *InMemoryStore) GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ActivityEntry
	for _, entry := range s.activity[characterID] {
		if !entry.Timestamp.Before(since) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	slog.Debug("InMemoryStore closed")
	return nil
}
