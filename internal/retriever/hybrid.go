// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package retriever implements the 4.J hybrid retriever: dense
// (vector similarity) and sparse (BM25) candidates fused by
// Reciprocal Rank Fusion.
package retriever

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/sparse"
	"github.com/northbound/ragcore/internal/vectordb"
)

// DefaultRRFK is the fallback rank-fusion constant when config leaves
// it unset.
const DefaultRRFK = 60

// Retriever combines dense and sparse retrieval via RRF, falling back
// to dense-only when the sparse index is disabled or empty.
type Retriever struct {
	embedder embeddings.Embedder
	vectorDB vectordb.VectorDB
	sparse   *sparse.Index
	hybrid   bool
	rrfK     int
}

// New builds a Retriever. Pass a nil sparse index (or hybrid=false) to
// run dense-only.
func New(embedder embeddings.Embedder, vectorDB vectordb.VectorDB, sparseIndex *sparse.Index, hybrid bool, rrfK int) *Retriever {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &Retriever{embedder: embedder, vectorDB: vectorDB, sparse: sparseIndex, hybrid: hybrid, rrfK: rrfK}
}

// Retrieve fans out to dense and (if enabled) sparse retrieval
// concurrently via errgroup, then fuses the two ranked lists with
// Reciprocal Rank Fusion: RRF(c) = sum(1 / (rrf_k + rank_R(c))) summed
// over every retriever R that returned c, ties broken by dense score
// then chunk ID.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		topK = 10
	}

	var dense []model.ScoredChunk
	var sparseHits []model.ScoredChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedder.EmbedText(gctx, query)
		if err != nil {
			return err
		}
		hits, err := r.vectorDB.Query(gctx, vec, topK*4)
		if err != nil {
			return err
		}
		dense = hits
		return nil
	})
	if r.hybrid && r.sparse != nil {
		g.Go(func() error {
			sparseHits = r.sparse.Retrieve(query, topK*4)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !r.hybrid || r.sparse == nil || len(sparseHits) == 0 {
		if len(dense) > topK {
			dense = dense[:topK]
		}
		return dense, nil
	}

	return fuse(dense, sparseHits, r.rrfK, topK), nil
}

type fusedEntry struct {
	chunk      model.Chunk
	denseScore float32
	rrfScore   float64
}

// fuse implements Reciprocal Rank Fusion across the dense and sparse
// ranked lists.
func fuse(dense, sparseHits []model.ScoredChunk, rrfK, topK int) []model.ScoredChunk {
	entries := map[string]*fusedEntry{}

	for rank, sc := range dense {
		e, ok := entries[sc.Chunk.ID]
		if !ok {
			e = &fusedEntry{chunk: sc.Chunk, denseScore: sc.Score}
			entries[sc.Chunk.ID] = e
		}
		e.denseScore = sc.Score
		e.rrfScore += 1.0 / float64(rrfK+rank+1)
	}
	for rank, sc := range sparseHits {
		e, ok := entries[sc.Chunk.ID]
		if !ok {
			e = &fusedEntry{chunk: sc.Chunk}
			entries[sc.Chunk.ID] = e
		}
		e.rrfScore += 1.0 / float64(rrfK+rank+1)
	}

	out := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].rrfScore != out[j].rrfScore {
			return out[i].rrfScore > out[j].rrfScore
		}
		if out[i].denseScore != out[j].denseScore {
			return out[i].denseScore > out[j].denseScore
		}
		return out[i].chunk.ID < out[j].chunk.ID
	})
	if len(out) > topK {
		out = out[:topK]
	}

	result := make([]model.ScoredChunk, len(out))
	for i, e := range out {
		result[i] = model.ScoredChunk{Chunk: e.chunk, Score: float32(e.rrfScore)}
	}
	return result
}
