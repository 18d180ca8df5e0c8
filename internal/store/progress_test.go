// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/model"
)

func newTestProgressStore(t *testing.T) (*ProgressStore, func()) {
	t.Helper()
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:6379"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	s := NewProgressStore(client)
	return s, func() {}
}

// TestGetBatch_CompletedCountsErrorTasks covers spec.md:76's batch
// invariant: a task that terminates as error is still "completed" for
// the purposes of batch.completed, same as batchDone() in
// internal/server/ingest_handler.go. Without this, a batch containing
// one failed file would never reach completed == total.
func TestGetBatch_CompletedCountsErrorTasks(t *testing.T) {
	s, cleanup := newTestProgressStore(t)
	defer cleanup()
	ctx := context.Background()

	batchID := "test-batch-" + time.Now().Format("20060102150405.000000000")
	defer s.client.Del(ctx, batchKey(batchID), batchDocKey(batchID))

	if _, err := s.CreateBatch(ctx, batchID, []TaskRef{
		{TaskID: "t-ok", Filename: "ok.txt"},
		{TaskID: "t-bad", Filename: "bad.pdf"},
	}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	if err := s.UpdateTaskStatus(ctx, batchID, "t-ok", model.TaskCompleted, ""); err != nil {
		t.Fatalf("UpdateTaskStatus(ok): %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, batchID, "t-bad", model.TaskError, "extract: no content"); err != nil {
		t.Fatalf("UpdateTaskStatus(bad): %v", err)
	}

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Total != 2 {
		t.Fatalf("Total = %d, want 2", batch.Total)
	}
	if batch.Completed != 2 {
		t.Fatalf("Completed = %d, want 2 (both terminal tasks, one completed one error)", batch.Completed)
	}
}

func TestGetBatch_CompletedNeverCountsInFlightTasks(t *testing.T) {
	s, cleanup := newTestProgressStore(t)
	defer cleanup()
	ctx := context.Background()

	batchID := "test-batch-inflight-" + time.Now().Format("20060102150405.000000000")
	defer s.client.Del(ctx, batchKey(batchID), batchDocKey(batchID))

	if _, err := s.CreateBatch(ctx, batchID, []TaskRef{
		{TaskID: "t-1", Filename: "one.txt"},
		{TaskID: "t-2", Filename: "two.txt"},
	}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, batchID, "t-1", model.TaskProcessing, ""); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Completed != 0 {
		t.Fatalf("Completed = %d, want 0 (pending/processing tasks are not terminal)", batch.Completed)
	}
}
