// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package rerank

import (
	"context"
	"testing"

	"github.com/northbound/ragcore/internal/model"
)

func TestNoopTruncatesToTopN(t *testing.T) {
	var candidates []model.ScoredChunk
	for i := 0; i < 10; i++ {
		candidates = append(candidates, model.ScoredChunk{Chunk: model.Chunk{ID: string(rune('a' + i))}})
	}
	out, err := (Noop{}).Rerank(context.Background(), "q", candidates, 3)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
}

func TestDefaultTopNMatchesMaxFiveOrHalf(t *testing.T) {
	cases := map[int]int{4: 5, 10: 5, 20: 10, 100: 50}
	for k, want := range cases {
		if got := defaultTopN(k); got != want {
			t.Errorf("defaultTopN(%d) = %d, want %d", k, got, want)
		}
	}
}
