// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package chat

import (
	"context"
	"testing"

	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/rerank"
)

type fakeRetriever struct {
	hits []model.ScoredChunk
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) ([]model.ScoredChunk, error) {
	return f.hits, nil
}

type fakeLLM struct {
	completion string
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Prompt) (string, error) {
	return f.completion, nil
}

func (f *fakeLLM) StreamComplete(_ context.Context, _ llm.Prompt) (<-chan llm.Token, error) {
	ch := make(chan llm.Token, 2)
	ch <- llm.Token{Text: f.completion}
	ch <- llm.Token{Done: true}
	close(ch)
	return ch, nil
}

func chunkWithDoc(docID, name, text string, score float32) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.Chunk{
			DocumentID: docID,
			Text:       text,
			Metadata: model.Metadata{
				model.MetaFileName: model.String(name),
			},
		},
		Score: score,
	}
}

func TestQueryAbstainsWhenNoSourcesSurvive(t *testing.T) {
	retriever := &fakeRetriever{}
	e := New(retriever, rerank.Noop{}, &fakeLLM{completion: "unused"}, nil, Config{TopK: 5})

	answer, err := e.Query(context.Background(), "sess-1", "what is the refund policy?", 0, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.Text != model.AbstentionPhrase {
		t.Fatalf("expected abstention phrase, got %q", answer.Text)
	}
}

func TestQueryDedupesSourcesByDocument(t *testing.T) {
	retriever := &fakeRetriever{hits: []model.ScoredChunk{
		chunkWithDoc("doc-1", "policy.pdf", "refunds within 30 days", 0.9),
		chunkWithDoc("doc-1", "policy.pdf", "a weaker chunk from the same doc", 0.4),
		chunkWithDoc("doc-2", "terms.pdf", "other terms", 0.8),
	}}
	e := New(retriever, rerank.Noop{}, &fakeLLM{completion: "Refunds are available within 30 days."}, nil, Config{TopK: 5})

	answer, err := e.Query(context.Background(), "sess-1", "what is the refund policy?", 0, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 deduplicated sources, got %d", len(answer.Sources))
	}
	for _, s := range answer.Sources {
		if s.DocumentID == "doc-1" && s.Score != 0.9 {
			t.Fatalf("expected doc-1's highest-scoring chunk to survive dedup, got score %v", s.Score)
		}
	}
}

func TestQueryStreamEmitsTokenThenDone(t *testing.T) {
	retriever := &fakeRetriever{hits: []model.ScoredChunk{chunkWithDoc("doc-1", "policy.pdf", "refunds within 30 days", 0.9)}}
	e := New(retriever, rerank.Noop{}, &fakeLLM{completion: "Refunds are available."}, nil, Config{TopK: 5})

	var events []Event
	err := e.QueryStream(context.Background(), "sess-1", "refund policy?", 0, false, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("QueryStream: %v", err)
	}

	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	if len(names) < 3 || names[0] != "sources" || names[len(names)-2] != "token" || names[len(names)-1] != "done" {
		t.Fatalf("expected sources...token, done event sequence, got %v", names)
	}
}
