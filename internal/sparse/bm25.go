// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package sparse implements a from-scratch Okapi BM25 index over chunk
// text. No BM25 library appears anywhere in the retrieval pack, so this
// is first-party code; see DESIGN.md for the justification.
package sparse

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/northbound/ragcore/internal/model"
)

const (
	k1 = 1.2
	b  = 0.75
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

type postingList map[string][]int // term -> doc indices containing it

type bm25Index struct {
	chunks    []model.Chunk
	docLens   []int
	avgDocLen float64
	postings  postingList
	termFreq  []map[string]int // per-doc term frequency
	docFreq   map[string]int   // term -> number of docs containing it
}

func buildIndex(chunks []model.Chunk) *bm25Index {
	idx := &bm25Index{
		chunks:   chunks,
		docLens:  make([]int, len(chunks)),
		termFreq: make([]map[string]int, len(chunks)),
		postings: postingList{},
		docFreq:  map[string]int{},
	}

	var totalLen int
	for i, c := range chunks {
		terms := tokenize(c.Text)
		idx.docLens[i] = len(terms)
		totalLen += len(terms)

		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		idx.termFreq[i] = freq
		for t := range freq {
			idx.postings[t] = append(idx.postings[t], i)
			idx.docFreq[t]++
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

func (idx *bm25Index) score(queryTerms []string, docIdx int) float64 {
	if idx.avgDocLen == 0 {
		return 0
	}
	docLen := float64(idx.docLens[docIdx])
	var score float64
	n := float64(len(idx.chunks))
	for _, term := range queryTerms {
		freq, ok := idx.termFreq[docIdx][term]
		if !ok {
			continue
		}
		df := float64(idx.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		tf := float64(freq)
		numerator := tf * (k1 + 1)
		denominator := tf + k1*(1-b+b*(docLen/idx.avgDocLen))
		score += idf * (numerator / denominator)
	}
	return score
}

// Index is a lock-free-reads BM25 index, swapped atomically on Refresh
// so retrieval never blocks on a rebuild, per spec 4.I/§9's "atomic
// pointer swap" guidance.
type Index struct {
	ptr atomic.Pointer[bm25Index]
}

// NewIndex returns an empty index; call Refresh to populate it.
func NewIndex() *Index {
	idx := &Index{}
	idx.ptr.Store(buildIndex(nil))
	return idx
}

// ChunkSource supplies the full chunk set to rebuild from, satisfied
// by vectordb.VectorDB.ListAllChunks.
type ChunkSource interface {
	ListAllChunks(ctx context.Context) ([]model.Chunk, error)
}

// Refresh rebuilds the index from the current chunk set and swaps it
// in atomically.
func (idx *Index) Refresh(ctx context.Context, src ChunkSource) error {
	chunks, err := src.ListAllChunks(ctx)
	if err != nil {
		return err
	}
	idx.ptr.Store(buildIndex(chunks))
	return nil
}

// Retrieve returns the top-k chunks by BM25 score for the query.
func (idx *Index) Retrieve(query string, k int) []model.ScoredChunk {
	snapshot := idx.ptr.Load()
	if snapshot == nil || len(snapshot.chunks) == 0 {
		return nil
	}
	if k <= 0 {
		k = 10
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	seen := map[int]bool{}
	for _, t := range queryTerms {
		for _, docIdx := range snapshot.postings[t] {
			if seen[docIdx] {
				continue
			}
			seen[docIdx] = true
			hits = append(hits, hit{idx: docIdx, score: snapshot.score(queryTerms, docIdx)})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return snapshot.chunks[hits[i].idx].ID < snapshot.chunks[hits[j].idx].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]model.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = model.ScoredChunk{Chunk: snapshot.chunks[h.idx], Score: float32(h.score)}
	}
	return out
}
