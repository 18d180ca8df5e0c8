// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retriever

import (
	"testing"

	"github.com/northbound/ragcore/internal/model"
)

func chunk(id string) model.Chunk { return model.Chunk{ID: id} }

func TestFusePrefersItemsRankedHighInBoth(t *testing.T) {
	dense := []model.ScoredChunk{
		{Chunk: chunk("a"), Score: 0.9},
		{Chunk: chunk("b"), Score: 0.8},
		{Chunk: chunk("c"), Score: 0.7},
	}
	sparseHits := []model.ScoredChunk{
		{Chunk: chunk("b"), Score: 5},
		{Chunk: chunk("d"), Score: 4},
		{Chunk: chunk("a"), Score: 3},
	}

	out := fuse(dense, sparseHits, 60, 10)
	if len(out) != 4 {
		t.Fatalf("expected 4 fused candidates, got %d", len(out))
	}
	// b is rank 2 dense + rank 1 sparse; a is rank 1 dense + rank 3
	// sparse. b's combined rank sum is better, so it should lead.
	if out[0].Chunk.ID != "b" {
		t.Fatalf("expected b to rank first, got %s", out[0].Chunk.ID)
	}
}

func TestFuseTieBreaksByDenseScoreThenID(t *testing.T) {
	dense := []model.ScoredChunk{
		{Chunk: chunk("z"), Score: 0.5},
		{Chunk: chunk("y"), Score: 0.4},
	}
	// Without a tie, RRF decides: y (dense rank 2 + sparse rank 1)
	// outranks z (dense rank 1 only).
	sparseA := []model.ScoredChunk{{Chunk: chunk("y"), Score: 1}}

	out := fuse(dense, sparseA, 60, 10)
	if out[0].Chunk.ID != "y" {
		t.Fatalf("expected y (dense+sparse) to outrank z (dense only), got %s", out[0].Chunk.ID)
	}

	// z and y swap ranks between the two lists, so both score exactly
	// 1/61 + 1/62 and the higher dense score (z) breaks the tie.
	sparseB := []model.ScoredChunk{
		{Chunk: chunk("y"), Score: 2},
		{Chunk: chunk("z"), Score: 1},
	}
	out = fuse(dense, sparseB, 60, 10)
	if out[0].Chunk.ID != "z" {
		t.Fatalf("expected z (higher dense score) to win the RRF tie, got %s", out[0].Chunk.ID)
	}

	// With equal dense scores as well, the lower chunk ID wins.
	denseEq := []model.ScoredChunk{
		{Chunk: chunk("n"), Score: 0.5},
		{Chunk: chunk("m"), Score: 0.5},
	}
	sparseC := []model.ScoredChunk{
		{Chunk: chunk("m"), Score: 2},
		{Chunk: chunk("n"), Score: 1},
	}
	out = fuse(denseEq, sparseC, 60, 10)
	if out[0].Chunk.ID != "m" {
		t.Fatalf("expected m (lower chunk ID) to win the full tie, got %s", out[0].Chunk.ID)
	}
}

func TestFuseTruncatesToTopK(t *testing.T) {
	var dense []model.ScoredChunk
	for i := 0; i < 20; i++ {
		dense = append(dense, model.ScoredChunk{Chunk: chunk(string(rune('a' + i))), Score: float32(20-i) / 20})
	}
	out := fuse(dense, nil, 60, 5)
	if len(out) != 5 {
		t.Fatalf("expected 5 results, got %d", len(out))
	}
}
