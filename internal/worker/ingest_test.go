// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package worker

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/sparse"
	"github.com/northbound/ragcore/internal/store"
	"github.com/northbound/ragcore/internal/vectordb"
)

func TestScrubPathReplacesTempPathWithFilename(t *testing.T) {
	err := &exampleErr{msg: "extract: /tmp/ingest-8123.pdf: no content extracted"}
	got := scrubPath(err, "/tmp/ingest-8123.pdf", "report.pdf")
	want := "extract: report.pdf: no content extracted"
	if got != want {
		t.Fatalf("scrubPath() = %q, want %q", got, want)
	}
}

func TestScrubPathNoTempPath(t *testing.T) {
	err := &exampleErr{msg: "boom"}
	if got := scrubPath(err, "", "report.pdf"); got != "boom" {
		t.Fatalf("scrubPath() = %q, want %q", got, "boom")
	}
}

type exampleErr struct{ msg string }

func (e *exampleErr) Error() string { return e.msg }

func TestNewIngestHandlerIgnoresOtherJobTypes(t *testing.T) {
	deps := IngestDeps{
		Embedder: embeddings.NewMockEmbedder(8),
		VectorDB: vectordb.NewMockVectorDB(),
	}
	handler := NewIngestHandler(deps)
	err := handler(context.Background(), queue.Job{Type: "some_other_job", Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("expected nil error for non-ingest job, got %v", err)
	}
}

// TestIngestHandlerEndToEnd exercises extract -> embed -> upsert ->
// progress against a real Redis instance and a temp text file, and is
// skipped when no Redis is reachable, matching the teacher's
// integration test style in redis_queue_test.go.
func TestIngestHandlerEndToEnd(t *testing.T) {
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:6379"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	f, err := os.CreateTemp("", "ingest-*.txt")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString("The quick brown fox jumps over the lazy dog. It ran very fast."); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	q, err := queue.NewRedisQueue(client, "test:ingest:queue:"+time.Now().Format("20060102150405"))
	if err != nil {
		t.Fatalf("NewRedisQueue: %v", err)
	}

	progress := store.NewProgressStore(client)
	batchID := "batch-" + time.Now().Format("20060102150405")
	taskID := "task-" + time.Now().Format("20060102150405")
	if _, err := progress.CreateBatch(ctx, batchID, []store.TaskRef{{TaskID: taskID, Filename: "fox.txt"}}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	deps := IngestDeps{
		Embedder:     embeddings.NewMockEmbedder(8),
		VectorDB:     vectordb.NewMockVectorDB(),
		Progress:     progress,
		SparseIndex:  sparse.NewIndex(),
		ChunkTokens:  500,
		ChunkOverlap: 50,
		Queue:        q,
	}

	payload, err := json.Marshal(IngestPayload{
		BatchID:       batchID,
		TaskID:        taskID,
		DocumentID:    "doc-1",
		FileName:      "fox.txt",
		TempPath:      f.Name(),
		StoragePath:   "/documents/fox.txt",
		FileHash:      "deadbeef",
		FileSizeBytes: 64,
		UploadedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	handler := NewIngestHandler(deps)
	if err := handler(ctx, queue.Job{Type: IngestJobType, Payload: payload, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	batch, err := progress.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Completed != 1 {
		t.Fatalf("expected 1 completed task, got %d", batch.Completed)
	}

	count, err := deps.VectorDB.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected at least one chunk upserted")
	}
}
