// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/northbound/ragcore/internal/model"
)

// MockVectorDB is an in-memory implementation used for offline mode
// (no Qdrant reachable) and for tests, generalizing the teacher's
// no-op mock into a real brute-force cosine search so retrieval logic
// built on top of VectorDB can be exercised without a live Qdrant.
type MockVectorDB struct {
	mu     sync.RWMutex
	chunks map[string]model.Chunk
}

// NewMockVectorDB creates an in-memory vector store.
func NewMockVectorDB() *MockVectorDB {
	return &MockVectorDB{chunks: make(map[string]model.Chunk)}
}

func (m *MockVectorDB) UpsertBatch(ctx context.Context, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MockVectorDB) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}

	scored := make([]model.ScoredChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		scored = append(scored, model.ScoredChunk{Chunk: c, Score: normalizeCosine(cosine(vector, c.Embedding))})
	}

	// insertion sort is adequate: topK is small and this path only
	// serves offline/test mode, never production traffic.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func (m *MockVectorDB) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MockVectorDB) ListDocuments(ctx context.Context, sortBy, order string) ([]model.DocumentSummary, error) {
	m.mu.RLock()
	chunks := make([]model.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		chunks = append(chunks, c)
	}
	m.mu.RUnlock()

	byDoc := map[string]*model.DocumentSummary{}
	for _, c := range chunks {
		d, ok := byDoc[c.DocumentID]
		if !ok {
			d = &model.DocumentSummary{DocumentID: c.DocumentID}
			if v, ok := c.Metadata[model.MetaFileName]; ok {
				d.FileName = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaFileType]; ok {
				d.FileType = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaPath]; ok {
				d.Path = v.AsString()
			}
			if v, ok := c.Metadata[model.MetaFileSizeBytes]; ok {
				if i, ok := v.Int(); ok {
					d.SizeBytes = i
				}
			}
			if v, ok := c.Metadata[model.MetaUploadedAt]; ok {
				if ts, err := time.Parse(time.RFC3339, v.AsString()); err == nil {
					d.UploadedAt = ts
				}
			}
			byDoc[c.DocumentID] = d
		}
		d.Chunks++
	}
	out := make([]model.DocumentSummary, 0, len(byDoc))
	for _, d := range byDoc {
		out = append(out, *d)
	}
	sortDocuments(out, sortBy, order)
	return out, nil
}

func (m *MockVectorDB) ListAllChunks(ctx context.Context) ([]model.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	return out, nil
}

func (m *MockVectorDB) CheckHashes(ctx context.Context, hashes []string) (map[string]HashMatch, error) {
	want := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		want[h] = true
	}
	out := make(map[string]HashMatch, len(hashes))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chunks {
		v, ok := c.Metadata[model.MetaFileHash]
		if !ok {
			continue
		}
		h := v.AsString()
		if _, ok := out[h]; ok || !want[h] {
			continue
		}
		match := HashMatch{DocumentID: c.DocumentID}
		if fn, ok := c.Metadata[model.MetaFileName]; ok {
			match.FileName = fn.AsString()
		}
		out[h] = match
	}
	return out, nil
}

func (m *MockVectorDB) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}
