// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/extractor"
	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/sparse"
	"github.com/northbound/ragcore/internal/store"
	"github.com/northbound/ragcore/internal/vectordb"
)

// IngestJobType is the queue.Job.Type value the upload handler
// enqueues and this handler dequeues.
const IngestJobType = "ingest_document"

// IngestPayload is the JSON body of an ingest_document job. TempPath
// points at a file kept on disk across retries by the upload handler;
// it is this handler's job to remove it once it either succeeds or
// exhausts its retries, never before.
type IngestPayload struct {
	BatchID       string    `json:"batch_id"`
	TaskID        string    `json:"task_id"`
	DocumentID    string    `json:"document_id"`
	FileName      string    `json:"file_name"`
	TempPath      string    `json:"temp_path"`
	StoragePath   string    `json:"storage_path"`
	FileHash      string    `json:"file_hash"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Contextualize bool      `json:"contextualize"`
	Attempt       int       `json:"attempt"`
}

const (
	maxTaskAttempts  = 3
	taskBackoffBase  = 5 * time.Second
	taskBackoffCap   = 60 * time.Second
	chunkRetryLimit  = 3
	chunkBackoffBase = 2 * time.Second
)

// IngestDeps bundles everything the ingestion handler needs, wired
// once at startup in cmd/server/main.go.
type IngestDeps struct {
	Embedder     embeddings.Embedder
	VectorDB     vectordb.VectorDB
	Progress     *store.ProgressStore
	SparseIndex  *sparse.Index
	LLM          llm.Provider
	Contextualize bool
	ChunkTokens  int
	ChunkOverlap int
	Queue        queue.Queue
}

// NewIngestHandler builds the 4.H ingestion pipeline as a HandlerFunc:
// extract -> embed+upsert per chunk (with retry) -> refresh sparse
// index -> report status. Task-level failures are requeued with
// backoff by re-enqueuing an incremented-attempt payload instead of
// panicking the worker, mirroring the teacher's workerLoop tolerance
// of handler errors (it only logs and continues).
func NewIngestHandler(deps IngestDeps) HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		if job.Type != IngestJobType {
			return nil
		}

		var p IngestPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("ingest: decode payload: %w", err)
		}

		err := processIngest(ctx, deps, p)
		if err == nil {
			return nil
		}

		if p.Attempt+1 >= maxTaskAttempts {
			logger.Errorf("ingest: %s: giving up after %d attempts: %v", p.FileName, p.Attempt+1, err)
			_ = deps.Progress.UpdateTaskStatus(ctx, p.BatchID, p.TaskID, model.TaskError, scrubPath(err, p.TempPath, p.FileName))
			os.Remove(p.TempPath)
			return err
		}

		p.Attempt++
		backoff := taskBackoffBase * time.Duration(math.Pow(2, float64(p.Attempt-1)))
		if backoff > taskBackoffCap {
			backoff = taskBackoffCap
		}
		backoff += time.Duration(rand.Int63n(int64(time.Second)))
		logger.Warnf("ingest: %s: attempt %d failed, retrying in %s: %v", p.FileName, p.Attempt, backoff, err)

		go func(p IngestPayload, delay time.Duration) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			payload, marshalErr := json.Marshal(p)
			if marshalErr != nil {
				logger.Errorf("ingest: %s: re-enqueue encode failed: %v", p.FileName, marshalErr)
				return
			}
			if enqErr := deps.Queue.Enqueue(ctx, queue.Job{
				Type:      IngestJobType,
				Payload:   payload,
				CreatedAt: time.Now(),
			}); enqErr != nil {
				logger.Errorf("ingest: %s: re-enqueue failed: %v", p.FileName, enqErr)
			}
		}(p, backoff)

		// Temp file stays on disk; only the final failed attempt
		// removes it (handled above) or a successful run removes it.
		return nil
	}
}

func processIngest(ctx context.Context, deps IngestDeps, p IngestPayload) error {
	if err := deps.Progress.UpdateTaskStatus(ctx, p.BatchID, p.TaskID, model.TaskProcessing, ""); err != nil {
		logger.Warnf("ingest: %s: progress update failed: %v", p.FileName, err)
	}

	chunks, err := extractor.Extract(ctx, extractor.Request{
		Path:          p.TempPath,
		DocumentID:    p.DocumentID,
		FileName:      p.FileName,
		FileHash:      p.FileHash,
		FileSizeBytes: p.FileSizeBytes,
		StoragePath:   p.StoragePath,
		UploadedAt:    p.UploadedAt,
		TokenBudget:   deps.ChunkTokens,
		TokenOverlap:  deps.ChunkOverlap,
		Contextualize: p.Contextualize && deps.Contextualize,
		LLM:           deps.LLM,
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if err := deps.Progress.SetTaskTotalChunks(ctx, p.BatchID, p.TaskID, len(chunks)); err != nil {
		logger.Warnf("ingest: %s: set total chunks failed: %v", p.FileName, err)
	}

	for _, c := range chunks {
		if err := embedAndUpsertWithRetry(ctx, deps, c); err != nil {
			return fmt.Errorf("chunk %d: %w", c.ChunkIndex, err)
		}
		if err := deps.Progress.IncrementTaskChunkProgress(ctx, p.BatchID, p.TaskID); err != nil {
			logger.Warnf("ingest: %s: increment progress failed: %v", p.FileName, err)
		}
	}

	// Refreshing the sparse index is best-effort: a stale BM25 index
	// still serves queries, it just misses this document until the
	// next refresh.
	if deps.SparseIndex != nil {
		if err := deps.SparseIndex.Refresh(ctx, deps.VectorDB); err != nil {
			logger.Warnf("ingest: %s: sparse index refresh failed: %v", p.FileName, err)
		}
	}

	if err := persistOriginal(p.TempPath, p.StoragePath); err != nil {
		// Best-effort: the chunks are already durable in the vector
		// store, so a failure to keep a copy of the original around
		// doesn't fail the whole ingest, it just means /documents/{id}
		// has no original file to serve back.
		logger.Warnf("ingest: %s: persist original failed: %v", p.FileName, err)
	}

	if err := deps.Progress.UpdateTaskStatus(ctx, p.BatchID, p.TaskID, model.TaskCompleted, ""); err != nil {
		logger.Warnf("ingest: %s: final status update failed: %v", p.FileName, err)
	}

	os.Remove(p.TempPath)
	return nil
}

// persistOriginal copies the staged upload into its permanent
// content-addressed location, {storage_root}/{document_id}/{filename},
// so a deleted chunk set still has the original byte-for-byte file
// available until the document itself is deleted (spec 4.H step 5).
func persistOriginal(tempPath, storagePath string) error {
	if storagePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	src, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(storagePath)
	if err != nil {
		return fmt.Errorf("create storage file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy to storage: %w", err)
	}
	return nil
}

// embedAndUpsertWithRetry retries the embed+upsert step with
// exponential backoff, separate from the task-level retry, since a
// single transient embedding-API blip shouldn't re-run extraction for
// the whole file. Only connection-level failures (refused/reset
// connections, EOF, timeouts) are worth retrying; anything else (a
// malformed request, an auth failure) will fail the same way every
// time, so it's returned immediately instead of burning the retry
// budget, mirroring internal/llm's TransientError/FatalError split.
func embedAndUpsertWithRetry(ctx context.Context, deps IngestDeps, c model.Chunk) error {
	var lastErr error
	for attempt := 0; attempt < chunkRetryLimit; attempt++ {
		if attempt > 0 {
			wait := chunkBackoffBase * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		vec, err := deps.Embedder.EmbedText(ctx, c.Text)
		if err != nil {
			lastErr = fmt.Errorf("embed: %w", err)
			if isTransientIngestError(err) {
				continue
			}
			return lastErr
		}
		c.Embedding = vec

		if err := deps.VectorDB.UpsertBatch(ctx, []model.Chunk{c}); err != nil {
			lastErr = fmt.Errorf("upsert: %w", err)
			if isTransientIngestError(err) {
				continue
			}
			return lastErr
		}
		return nil
	}
	return lastErr
}

// isTransientIngestError reports whether err looks like a connection
// blip (refused/reset, EOF, timeout) worth retrying, as opposed to a
// request the embedding API or vector store will reject every time.
func isTransientIngestError(err error) bool {
	if llm.IsTransient(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded)
}

// scrubPath replaces the worker's temp file path with the original
// filename before an error reaches progress state visible to clients,
// since the temp path is an internal storage detail.
func scrubPath(err error, tempPath, fileName string) string {
	msg := err.Error()
	if tempPath == "" {
		return msg
	}
	return strings.ReplaceAll(msg, tempPath, fileName)
}
