// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northbound/ragcore/internal/app"
	"github.com/northbound/ragcore/internal/chat"
	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/rerank"
	"github.com/northbound/ragcore/internal/vectordb"
)

type fakeRetriever struct{ hits []model.ScoredChunk }

func (f fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error) {
	return f.hits, nil
}

type fakeLLM struct{ answer string }

func (f fakeLLM) Complete(ctx context.Context, p llm.Prompt) (string, error) { return f.answer, nil }

func (f fakeLLM) StreamComplete(ctx context.Context, p llm.Prompt) (<-chan llm.Token, error) {
	ch := make(chan llm.Token, 2)
	ch <- llm.Token{Text: f.answer}
	ch <- llm.Token{Done: true}
	close(ch)
	return ch, nil
}

func newTestState(hits []model.ScoredChunk, answer string) *app.State {
	retr := fakeRetriever{hits: hits}
	engine := chat.New(retr, rerank.Noop{}, fakeLLM{answer: answer}, nil, chat.Config{TopK: 10})
	return &app.State{
		Config:   &config.Config{},
		VectorDB: vectordb.NewMockVectorDB(),
		Embedder: embeddings.NewMockEmbedder(8),
		Engine:   engine,
	}
}

func TestHealthReportsDegradedSubsystems(t *testing.T) {
	state := newTestState(nil, "")
	h := &HealthHandler{state: state}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["redis"] != false || body["sqlite"] != false {
		t.Fatalf("expected degraded-mode fields to be false, got %v", body)
	}
}

func TestDocumentsListReturnsEmptySet(t *testing.T) {
	state := newTestState(nil, "")
	h := &DocumentsHandler{state: state}

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Documents []model.DocumentSummary `json:"documents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Documents) != 0 {
		t.Fatalf("expected no documents from an empty mock store, got %d", len(body.Documents))
	}
}

func TestChatQueryAbstainsWithNoSources(t *testing.T) {
	state := newTestState(nil, "should not be used")
	h := &ChatHandler{state: state}

	reqBody := strings.NewReader(`{"query":"what is in the handbook?","session_id":"s1"}`)
	req := httptest.NewRequest(http.MethodPost, "/query", reqBody)
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != model.AbstentionPhrase {
		t.Fatalf("expected abstention phrase, got %q", resp.Answer)
	}
}

func TestChatQueryGeneratesMissingSessionID(t *testing.T) {
	state := newTestState(nil, "")
	h := &ChatHandler{state: state}

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hi"}`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for missing session_id, got %d", rec.Code)
	}
	var resp ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected a generated session_id in the response")
	}
}

func TestChatHistoryWithNoChatStoreReturnsEmpty(t *testing.T) {
	state := newTestState(nil, "")
	h := &ChatHandler{state: state}

	req := httptest.NewRequest(http.MethodGet, "/chat/history/s1", nil)
	req.SetPathValue("session_id", "s1")
	rec := httptest.NewRecorder()
	h.History(rec, req)

	var body struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Messages) != 0 {
		t.Fatalf("expected empty history with no chat store, got %d", len(body.Messages))
	}
}

func TestDocumentsDeleteRejectsMissingID(t *testing.T) {
	state := newTestState(nil, "")
	h := &DocumentsHandler{state: state}

	req := httptest.NewRequest(http.MethodDelete, "/documents/", nil)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rec.Code)
	}
}
