// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package chat implements the 4.L conversational query engine:
// condense -> retrieve -> rerank -> compose -> generate, with both a
// one-shot Query and a streaming QueryStream entry point.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/rerank"
	"github.com/northbound/ragcore/internal/store"
)

const excerptLen = 200

// Retriever is the subset of internal/retriever.Retriever this engine
// depends on, kept narrow for testability.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error)
}

// Engine wires condensation, retrieval, reranking, composition and
// generation into the single conversational turn spec 4.L describes.
type Engine struct {
	retriever Retriever
	reranker  rerank.Reranker
	llm       llm.Provider
	chat      *store.ChatStore
	topK      int
	minScore  float64
}

// Config bundles the tunables an Engine needs from retrieval config.
type Config struct {
	TopK     int
	MinScore float64
}

func New(retriever Retriever, reranker rerank.Reranker, provider llm.Provider, chatStore *store.ChatStore, cfg Config) *Engine {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	return &Engine{retriever: retriever, reranker: reranker, llm: provider, chat: chatStore, topK: topK, minScore: cfg.MinScore}
}

// Answer is the result of a non-streamed turn.
type Answer struct {
	Text    string
	Sources []model.Source
}

// Event is one SSE frame: Name is the event type ("token", "sources",
// "done", "error"), Data its JSON-encodable payload.
type Event struct {
	Name string
	Data interface{}
}

// Query runs a full non-streamed turn and persists both the user and
// assistant turns to chat memory, unless isTemporary is set (spec 4.L
// step 2/8), in which case no history is read and nothing is written.
func (e *Engine) Query(ctx context.Context, sessionID, question string, tokenBudget int, isTemporary bool) (Answer, error) {
	condensed, sources, err := e.prepareTurn(ctx, sessionID, question, isTemporary)
	if err != nil {
		return Answer{}, err
	}

	if len(sources) == 0 {
		text := model.AbstentionPhrase
		e.persistTurn(ctx, sessionID, question, text, tokenBudget, isTemporary)
		return Answer{Text: text, Sources: []model.Source{}}, nil
	}

	prompt := e.buildPrompt(condensed, sources)
	text, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("chat: generate: %w", err)
	}

	e.persistTurn(ctx, sessionID, question, text, tokenBudget, isTemporary)
	return Answer{Text: text, Sources: sources}, nil
}

// QueryStream runs a full turn emitting SSE-shaped events as it goes:
// a "sources" event once retrieval completes, a "token" event per
// generated token, and a final "done" event. No partial turn is
// persisted if generation fails or ctx is cancelled mid-stream,
// matching the teacher's all-or-nothing posture toward turn history.
func (e *Engine) QueryStream(ctx context.Context, sessionID, question string, tokenBudget int, isTemporary bool, emit func(Event)) error {
	condensed, sources, err := e.prepareTurn(ctx, sessionID, question, isTemporary)
	if err != nil {
		emit(Event{Name: "error", Data: map[string]string{"message": err.Error()}})
		emit(Event{Name: "done", Data: map[string]string{}})
		return err
	}

	if len(sources) == 0 {
		emit(Event{Name: "token", Data: map[string]string{"text": model.AbstentionPhrase}})
		emit(Event{Name: "done", Data: map[string]string{}})
		e.persistTurn(ctx, sessionID, question, model.AbstentionPhrase, tokenBudget, isTemporary)
		return nil
	}

	emit(Event{Name: "sources", Data: map[string]interface{}{"sources": sources, "session_id": sessionID}})

	prompt := e.buildPrompt(condensed, sources)
	tokens, err := e.llm.StreamComplete(ctx, prompt)
	if err != nil {
		emit(Event{Name: "error", Data: map[string]string{"message": err.Error()}})
		emit(Event{Name: "done", Data: map[string]string{}})
		return err
	}

	var full strings.Builder
	for tok := range tokens {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if tok.Text != "" {
			full.WriteString(tok.Text)
			emit(Event{Name: "token", Data: map[string]string{"text": tok.Text}})
		}
		if tok.Done {
			break
		}
	}

	answer := full.String()
	emit(Event{Name: "done", Data: map[string]string{}})
	e.persistTurn(ctx, sessionID, question, answer, tokenBudget, isTemporary)
	return nil
}

// prepareTurn condenses the question against prior history, retrieves
// and reranks candidates, and converts survivors into deduplicated
// Sources. Returns an empty source list (not an error) when nothing
// clears the score floor, which callers treat as an abstention.
func (e *Engine) prepareTurn(ctx context.Context, sessionID, question string, isTemporary bool) (string, []model.Source, error) {
	condensed := question
	if e.chat != nil && !isTemporary {
		history, err := e.chat.GetHistory(ctx, sessionID)
		if err != nil {
			logger.Warnf("chat: history lookup failed, proceeding without it: %v", err)
		} else if len(history) > 0 {
			rendered, err := llm.RenderCondense(historyText(history), question)
			if err == nil {
				if c, err := e.llm.Complete(ctx, llm.Prompt{User: rendered, MaxTokens: 128, Temperature: 0.0}); err == nil {
					condensed = strings.TrimSpace(c)
				}
			}
		}
	}

	candidates, err := e.retriever.Retrieve(ctx, condensed, e.topK)
	if err != nil {
		return "", nil, fmt.Errorf("chat: retrieve: %w", err)
	}

	if e.reranker != nil {
		candidates, err = e.reranker.Rerank(ctx, condensed, candidates, 0)
		if err != nil {
			logger.Warnf("chat: rerank failed, falling back to retrieval order: %v", err)
		}
	}

	return condensed, dedupeSources(candidates, e.minScore), nil
}

func (e *Engine) persistTurn(ctx context.Context, sessionID, question, answer string, tokenBudget int, isTemporary bool) {
	if e.chat == nil || isTemporary {
		return
	}
	user := model.ChatMessage{Role: model.RoleUser, Content: question}
	assistant := model.ChatMessage{Role: model.RoleAssistant, Content: answer}
	if err := e.chat.AppendTurn(ctx, sessionID, user, assistant, tokenBudget); err != nil {
		logger.Warnf("chat: persist turn failed: %v", err)
	}
}

func (e *Engine) buildPrompt(question string, sources []model.Source) llm.Prompt {
	var ctxBuilder strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&ctxBuilder, "[%d] %s\n%s\n\n", i+1, s.DocumentName, s.FullText)
	}
	user := fmt.Sprintf("Context:\n%s\nQuestion: %s", ctxBuilder.String(), question)
	return llm.Prompt{System: llm.SystemAnswerPrompt, User: user, MaxTokens: 1024, Temperature: 0.2}
}

// dedupeSources keeps the highest-scoring chunk per document, drops
// anything under minScore, and builds the client-facing Source shape
// (200-char excerpt, matching the teacher's truncate() convention).
func dedupeSources(candidates []model.ScoredChunk, minScore float64) []model.Source {
	best := map[string]model.ScoredChunk{}
	order := []string{}
	for _, c := range candidates {
		if float64(c.Score) < minScore {
			continue
		}
		if existing, ok := best[c.Chunk.DocumentID]; !ok || c.Score > existing.Score {
			if _, seen := best[c.Chunk.DocumentID]; !seen {
				order = append(order, c.Chunk.DocumentID)
			}
			best[c.Chunk.DocumentID] = c
		}
	}

	out := make([]model.Source, 0, len(order))
	for _, docID := range order {
		c := best[docID]
		name := ""
		if v, ok := c.Chunk.Metadata[model.MetaFileName]; ok {
			name = v.AsString()
		}
		path := ""
		if v, ok := c.Chunk.Metadata[model.MetaPath]; ok {
			path = v.AsString()
		}
		out = append(out, model.Source{
			DocumentID:   docID,
			DocumentName: name,
			Excerpt:      truncate(c.Chunk.Text, excerptLen),
			FullText:     c.Chunk.Text,
			Path:         path,
			Score:        c.Score,
		})
	}
	return out
}

func historyText(msgs []model.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// truncate returns the first n characters of s, appending "…" if
// truncated, matching the teacher's own convention for source excerpts.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
