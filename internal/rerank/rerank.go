// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package rerank implements the 4.K reranker: a cross-encoder-style
// scoring pass over the hybrid retriever's candidates before they're
// composed into a prompt.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/northbound/ragcore/internal/model"
)

// Reranker narrows a candidate set down to the most relevant
// subset. Passthrough implementations are used when reranking is
// disabled in config.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []model.ScoredChunk, topN int) ([]model.ScoredChunk, error)
}

// Noop returns the input candidates unchanged (truncated to topN),
// used when config.RerankerConfig.Enabled is false.
type Noop struct{}

func (Noop) Rerank(_ context.Context, _ string, candidates []model.ScoredChunk, topN int) ([]model.ScoredChunk, error) {
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

// HTTPReranker calls an external cross-encoder scoring endpoint,
// following the same hand-rolled net/http client idiom as
// internal/llm's provider clients since no reranker SDK exists
// anywhere in the retrieval pack.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

// Config is the subset of fields an HTTPReranker constructor needs.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewHTTPReranker(cfg Config) *HTTPReranker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Rerank scores every candidate against the query via the configured
// endpoint and returns the topN by relevance score, descending.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []model.ScoredChunk, topN int) ([]model.ScoredChunk, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if topN <= 0 {
		topN = defaultTopN(len(candidates))
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Text
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("rerank: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: endpoint returned status %d", resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	sort.Slice(parsed.Results, func(i, j int) bool {
		return parsed.Results[i].RelevanceScore > parsed.Results[j].RelevanceScore
	})

	if len(parsed.Results) > topN {
		parsed.Results = parsed.Results[:topN]
	}

	out := make([]model.ScoredChunk, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		out = append(out, model.ScoredChunk{
			Chunk: candidates[res.Index].Chunk,
			Score: float32(res.RelevanceScore),
		})
	}
	return out, nil
}

// defaultTopN mirrors spec 4.K's "max(5, k/2)" rule when the caller
// doesn't pin an explicit top_n.
func defaultTopN(k int) int {
	half := k / 2
	if half < 5 {
		return 5
	}
	return half
}
