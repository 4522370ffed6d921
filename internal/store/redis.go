// Package store provides storage backends for the companion service.
//
// This file implements a Redis-backed store. Messages and activity entries
// are kept as per-character lists of JSON documents; character state is a
// JSON value with a set index over known character ids.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumewell/companion/internal/models"
)

// redisKeyPrefix namespaces all companion keys.
const redisKeyPrefix = "companion"

// RedisStore persists companion data in Redis.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore creates a Redis store from the provided options.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisAddr == "" {
		slog.Error("RedisStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", cfg.RedisAddr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	slog.Debug("RedisStore connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return &RedisStore{client: client, ctx: ctx}, nil
}

func messagesKey(characterID string) string {
	return fmt.Sprintf("%s:messages:%s", redisKeyPrefix, characterID)
}

func stateKey(characterID string) string {
	return fmt.Sprintf("%s:state:%s", redisKeyPrefix, characterID)
}

func activityKey(characterID string) string {
	return fmt.Sprintf("%s:activity:%s", redisKeyPrefix, characterID)
}

// charactersKey indexes ids that have stored state.
func charactersKey() string {
	return redisKeyPrefix + ":characters"
}

// AddMessage appends a conversation message.
func (s *RedisStore) AddMessage(msg models.ConversationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.client.RPush(s.ctx, messagesKey(msg.CharacterID), data).Err(); err != nil {
		slog.Error("RedisStore AddMessage failed", "error", err, "characterID", msg.CharacterID)
		return fmt.Errorf("failed to push message for %s: %w", msg.CharacterID, err)
	}
	slog.Debug("RedisStore AddMessage succeeded", "characterID", msg.CharacterID, "messageID", msg.ID)
	return nil
}

// GetMessages returns messages for a character honoring the query options.
// The per-character list is read fully and filtered in memory; conversation
// logs per character stay small.
func (s *RedisStore) GetMessages(characterID string, opts QueryOpts) ([]models.ConversationMessage, error) {
	items, err := s.client.LRange(s.ctx, messagesKey(characterID), 0, -1).Result()
	if err != nil {
		slog.Error("RedisStore GetMessages failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to read messages for %s: %w", characterID, err)
	}

	var messages []models.ConversationMessage
	for _, item := range items {
		var m models.ConversationMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			slog.Error("RedisStore GetMessages decode failed", "error", err, "characterID", characterID)
			return nil, fmt.Errorf("failed to decode stored message: %w", err)
		}
		if !opts.Since.IsZero() && m.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && !m.Timestamp.Before(opts.Until) {
			continue
		}
		messages = append(messages, m)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if opts.Ascending {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		}
		return messages[j].Timestamp.Before(messages[i].Timestamp)
	})
	if opts.Limit > 0 && len(messages) > opts.Limit {
		messages = messages[:opts.Limit]
	}
	return messages, nil
}

// DeleteMessages removes all messages for a character.
func (s *RedisStore) DeleteMessages(characterID string) error {
	if err := s.client.Del(s.ctx, messagesKey(characterID)).Err(); err != nil {
		slog.Error("RedisStore DeleteMessages failed", "error", err, "characterID", characterID)
		return fmt.Errorf("failed to delete messages for %s: %w", characterID, err)
	}
	return nil
}

// GetCharacterState retrieves the state for a character, or (nil, nil) when absent.
func (s *RedisStore) GetCharacterState(characterID string) (*models.CharacterState, error) {
	val, err := s.client.Get(s.ctx, stateKey(characterID)).Result()
	if errors.Is(err, redis.Nil) {
		slog.Debug("RedisStore GetCharacterState not found", "characterID", characterID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetCharacterState failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to read state for %s: %w", characterID, err)
	}

	var st models.CharacterState
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("failed to decode stored state: %w", err)
	}
	return &st, nil
}

// SaveCharacterState stores or replaces the state for a character.
func (s *RedisStore) SaveCharacterState(state models.CharacterState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(s.ctx, stateKey(state.CharacterID), data, 0).Err(); err != nil {
		slog.Error("RedisStore SaveCharacterState failed", "error", err, "characterID", state.CharacterID)
		return fmt.Errorf("failed to save state for %s: %w", state.CharacterID, err)
	}
	if err := s.client.SAdd(s.ctx, charactersKey(), state.CharacterID).Err(); err != nil {
		return fmt.Errorf("failed to index character %s: %w", state.CharacterID, err)
	}
	return nil
}

// ListCharacterStates returns all stored character states.
func (s *RedisStore) ListCharacterStates() ([]models.CharacterState, error) {
	ids, err := s.client.SMembers(s.ctx, charactersKey()).Result()
	if err != nil {
		slog.Error("RedisStore ListCharacterStates failed", "error", err)
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	sort.Strings(ids)

	var states []models.CharacterState
	for _, id := range ids {
		st, err := s.GetCharacterState(id)
		if err != nil {
			return nil, err
		}
		if st != nil {
			states = append(states, *st)
		}
	}
	return states, nil
}

// DeleteCharacterState removes the state for a character.
func (s *RedisStore) DeleteCharacterState(characterID string) error {
	if err := s.client.Del(s.ctx, stateKey(characterID)).Err(); err != nil {
		slog.Error("RedisStore DeleteCharacterState failed", "error", err, "characterID", characterID)
		return fmt.Errorf("failed to delete state for %s: %w", characterID, err)
	}
	if err := s.client.SRem(s.ctx, charactersKey(), characterID).Err(); err != nil {
		return fmt.Errorf("failed to unindex character %s: %w", characterID, err)
	}
	return nil
}

// AddActivityEntry appends a domain activity entry.
func (s *RedisStore) AddActivityEntry(entry models.ActivityEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity entry: %w", err)
	}
	if err := s.client.RPush(s.ctx, activityKey(entry.CharacterID), data).Err(); err != nil {
		slog.Error("RedisStore AddActivityEntry failed", "error", err, "characterID", entry.CharacterID)
		return fmt.Errorf("failed to push activity entry: %w", err)
	}
	return nil
}

// GetActivityEntriesSince returns activity entries at or after since.
func (s *RedisStore) GetActivityEntriesSince(characterID string, since time.Time) ([]models.ActivityEntry, error) {
	items, err := s.client.LRange(s.ctx, activityKey(characterID), 0, -1).Result()
	if err != nil {
		slog.Error("RedisStore GetActivityEntriesSince failed", "error", err, "characterID", characterID)
		return nil, fmt.Errorf("failed to read activity entries: %w", err)
	}

	var entries []models.ActivityEntry
	for _, item := range items {
		var e models.ActivityEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode stored activity entry: %w", err)
		}
		if !e.Timestamp.Before(since) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis connection")
	return s.client.Close()
}
