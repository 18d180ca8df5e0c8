// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/model"
)

func newTestChatStore(t *testing.T) *ChatStore {
	t.Helper()
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:6379"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return NewChatStore(client, nil)
}

func words(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = "w"
	}
	return strings.Join(ws, " ")
}

// TestAppendTurn_EvictionNeverLeavesOddMessageCount is the repro from
// the review: budget=12, existing history U0(4 words)/A0(4 words), a
// turn appending Q(3 words) then Ans(5 words) pushes the total to 16,
// over budget. Per-message eviction would stop after popping only U0
// (16-4=12<=12), leaving 3 messages (a dangling assistant turn with no
// question) and breaking invariant #5 (spec.md:351). AppendTurn must
// evict whole pairs, leaving an even count.
func TestAppendTurn_EvictionNeverLeavesOddMessageCount(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()
	sessionID := "test-session-" + time.Now().Format("20060102150405.000000000")
	defer s.Clear(ctx, sessionID)

	if err := s.AppendMessage(ctx, sessionID, model.ChatMessage{Role: model.RoleUser, Content: words(4)}); err != nil {
		t.Fatalf("seed U0: %v", err)
	}
	if err := s.AppendMessage(ctx, sessionID, model.ChatMessage{Role: model.RoleAssistant, Content: words(4)}); err != nil {
		t.Fatalf("seed A0: %v", err)
	}

	q := model.ChatMessage{Role: model.RoleUser, Content: words(3)}
	ans := model.ChatMessage{Role: model.RoleAssistant, Content: words(5)}
	if err := s.AppendTurn(ctx, sessionID, q, ans, 12); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	msgs, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(msgs)%2 != 0 {
		t.Fatalf("expected an even message count after eviction, got %d: %+v", len(msgs), msgs)
	}
	for i := 0; i+1 < len(msgs); i += 2 {
		if msgs[i].Role != model.RoleUser || msgs[i+1].Role != model.RoleAssistant {
			t.Fatalf("expected user/assistant pairs, got %+v", msgs)
		}
	}
}

func TestAppendTurn_PinsLeadingSystemMessage(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()
	sessionID := "test-session-sys-" + time.Now().Format("20060102150405.000000000")
	defer s.Clear(ctx, sessionID)

	if err := s.AppendMessage(ctx, sessionID, model.ChatMessage{Role: model.RoleSystem, Content: words(2)}); err != nil {
		t.Fatalf("seed system message: %v", err)
	}
	if err := s.AppendMessage(ctx, sessionID, model.ChatMessage{Role: model.RoleUser, Content: words(4)}); err != nil {
		t.Fatalf("seed U0: %v", err)
	}
	if err := s.AppendMessage(ctx, sessionID, model.ChatMessage{Role: model.RoleAssistant, Content: words(4)}); err != nil {
		t.Fatalf("seed A0: %v", err)
	}

	q := model.ChatMessage{Role: model.RoleUser, Content: words(3)}
	ans := model.ChatMessage{Role: model.RoleAssistant, Content: words(5)}
	if err := s.AppendTurn(ctx, sessionID, q, ans, 10); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	msgs, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(msgs) == 0 || msgs[0].Role != model.RoleSystem {
		t.Fatalf("expected the leading system message to survive eviction, got %+v", msgs)
	}
}
