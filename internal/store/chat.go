// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/ragcore/internal/model"
)

const defaultSessionTTL = 6 * time.Hour

// ChatStore holds a session's message buffer in Redis (TTL-bounded,
// evicted by token budget) and, for non-temporary sessions, persists
// title/timestamp metadata in SQLite so it survives past the TTL.
type ChatStore struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

func NewChatStore(redisClient *redis.Client, db *sql.DB) *ChatStore {
	return &ChatStore{redis: redisClient, db: db, ttl: defaultSessionTTL}
}

func sessionKey(sessionID string) string { return fmt.Sprintf("chat:%s:messages", sessionID) }

// AppendMessage pushes a single message onto the session buffer,
// resetting the TTL, without enforcing the token budget on its own —
// callers that append a user/assistant turn must use AppendTurn so
// eviction happens once per turn rather than once per message (a
// per-message eviction pass can evict an odd number of messages across
// a turn and leave a dangling assistant message with no question,
// breaking invariant #5's "len(messages) mod 2 == 0").
func (s *ChatStore) AppendMessage(ctx context.Context, sessionID string, msg model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat store: encode message: %w", err)
	}
	key := sessionKey(sessionID)
	if err := s.redis.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("chat store: append: %w", err)
	}
	s.redis.Expire(ctx, key, s.ttl)
	return nil
}

// AppendTurn appends the user question and assistant answer as one
// unit, then runs a single eviction pass over the resulting history,
// so the stored message count is always even after a turn completes
// (spec.md:351, invariant #5).
func (s *ChatStore) AppendTurn(ctx context.Context, sessionID string, user, assistant model.ChatMessage, tokenBudget int) error {
	if err := s.AppendMessage(ctx, sessionID, user); err != nil {
		return err
	}
	if err := s.AppendMessage(ctx, sessionID, assistant); err != nil {
		return err
	}
	if tokenBudget > 0 {
		return s.evictToBudget(ctx, sessionID, tokenBudget)
	}
	return nil
}

// evictToBudget drops the oldest user/assistant pairs — never a lone
// half-pair — until the session's approximate token count is back
// under budget. Any leading system messages (persistent instructions)
// are pinned and never counted as eviction candidates.
func (s *ChatStore) evictToBudget(ctx context.Context, sessionID string, tokenBudget int) error {
	msgs, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		return err
	}

	total := approxTokenCount(msgs)
	if total <= tokenBudget {
		return nil
	}

	lead := 0
	for lead < len(msgs) && msgs[lead].Role == model.RoleSystem {
		lead++
	}

	drop := lead
	for drop+1 < len(msgs) && total > tokenBudget {
		total -= approxTokenCount(msgs[drop : drop+2])
		drop += 2
	}
	if drop == lead {
		return nil
	}

	survivors := append(append([]model.ChatMessage{}, msgs[:lead]...), msgs[drop:]...)
	return s.replaceHistory(ctx, sessionID, survivors)
}

// replaceHistory overwrites a session's stored buffer wholesale,
// used by evictToBudget since the messages being dropped may not sit
// at the front of the Redis list (a pinned leading system message
// does).
func (s *ChatStore) replaceHistory(ctx context.Context, sessionID string, msgs []model.ChatMessage) error {
	key := sessionKey(sessionID)
	if err := s.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("chat store: evict: %w", err)
	}
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("chat store: encode message: %w", err)
		}
		if err := s.redis.RPush(ctx, key, data).Err(); err != nil {
			return fmt.Errorf("chat store: evict: %w", err)
		}
	}
	s.redis.Expire(ctx, key, s.ttl)
	return nil
}

func approxTokenCount(msgs []model.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += len(strings.Fields(m.Content))
	}
	return total
}

// GetHistory returns the session's full message buffer in order.
func (s *ChatStore) GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	raw, err := s.redis.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("chat store: history: %w", err)
	}
	msgs := make([]model.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear deletes a session's message buffer (but not its persisted
// metadata, if any).
func (s *ChatStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("chat store: clear: %w", err)
	}
	return nil
}

// EnsureSession upserts a non-temporary session's metadata row so its
// identity survives past the Redis buffer's TTL.
func (s *ChatStore) EnsureSession(ctx context.Context, meta model.SessionMetadata) error {
	if meta.IsTemporary || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, updated_at, is_archived)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, meta.SessionID, meta.Title, meta.CreatedAt, meta.UpdatedAt)
	if err != nil {
		return fmt.Errorf("chat store: persist session %s: %w", meta.SessionID, err)
	}
	return nil
}
