// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package store holds the Redis-backed keyed TTL state used by
// ingestion progress tracking (4.F) and chat memory (4.G), generalizing
// the teacher's Redis usage in internal/queue/redis_queue.go and
// internal/config/redis.go from a plain job queue into keyed state with
// atomic per-field increments and a sliding TTL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/ragcore/internal/model"
)

const defaultBatchTTL = 24 * time.Hour

// TaskRef is one file's task identity within a batch: a server-assigned
// task_id distinct from the filename, so two uploads sharing a filename
// never collide into the same task (spec §3 Batch & Task).
type TaskRef struct {
	TaskID   string
	Filename string
}

// ProgressStore tracks batch/task ingestion progress in Redis, one hash
// per batch keyed by batch_id. The task list (task_id -> filename) is
// written once at batch creation as an immutable JSON scaffold;
// everything that changes after that point — status, total_chunks,
// completed_chunks, error — lives as its own hash field, set with a
// single atomic HSET/HINCRBY rather than a read-modify-write of the
// whole document, so two workers finishing different tasks in the same
// batch can never stomp on each other's update.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, ttl: defaultBatchTTL}
}

func batchKey(batchID string) string    { return fmt.Sprintf("batch:%s", batchID) }
func batchDocKey(batchID string) string { return fmt.Sprintf("batch:%s:doc", batchID) }

func statusField(taskID string) string          { return fmt.Sprintf("task:%s:status", taskID) }
func totalChunksField(taskID string) string      { return fmt.Sprintf("task:%s:total_chunks", taskID) }
func completedChunksField(taskID string) string  { return fmt.Sprintf("task:%s:completed_chunks", taskID) }
func errorField(taskID string) string            { return fmt.Sprintf("task:%s:error", taskID) }

// CreateBatch writes the initial per-file task list for a new upload.
func (s *ProgressStore) CreateBatch(ctx context.Context, batchID string, tasks []TaskRef) (model.BatchState, error) {
	state := model.BatchState{
		BatchID: batchID,
		Total:   len(tasks),
		Tasks:   make(map[string]model.TaskState, len(tasks)),
	}
	for _, t := range tasks {
		state.Tasks[t.TaskID] = model.TaskState{TaskID: t.TaskID, Filename: t.Filename, Status: model.TaskPending}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return model.BatchState{}, fmt.Errorf("progress: encode %s: %w", batchID, err)
	}
	if err := s.client.Set(ctx, batchDocKey(batchID), data, s.ttl).Err(); err != nil {
		return model.BatchState{}, fmt.Errorf("progress: save %s: %w", batchID, err)
	}
	s.client.Expire(ctx, batchKey(batchID), s.ttl)
	return state, nil
}

// SetTaskTotalChunks records how many chunks a task will process, used
// as the denominator for progress percentages.
func (s *ProgressStore) SetTaskTotalChunks(ctx context.Context, batchID, taskID string, total int) error {
	key := batchKey(batchID)
	if err := s.client.HSet(ctx, key, totalChunksField(taskID), total).Err(); err != nil {
		return fmt.Errorf("progress: set total chunks %s/%s: %w", batchID, taskID, err)
	}
	s.client.Expire(ctx, key, s.ttl)
	return nil
}

// IncrementTaskChunkProgress atomically advances a task's completed
// chunk count by one, via HINCRBY against a per-task progress field so
// concurrent chunk workers never lose an increment to a read-modify-write
// race.
func (s *ProgressStore) IncrementTaskChunkProgress(ctx context.Context, batchID, taskID string) error {
	key := batchKey(batchID)
	if err := s.client.HIncrBy(ctx, key, completedChunksField(taskID), 1).Err(); err != nil {
		return fmt.Errorf("progress: increment %s/%s: %w", batchID, taskID, err)
	}
	s.client.Expire(ctx, key, s.ttl)
	return nil
}

// UpdateTaskStatus transitions a task's status (pending -> processing
// -> completed|error). Like IncrementTaskChunkProgress, this is a
// single HSET against the task's own hash field, not a read-modify-write
// of the shared batch document, so statuses can't be lost the same way
// chunk counters can't.
func (s *ProgressStore) UpdateTaskStatus(ctx context.Context, batchID, taskID string, status model.TaskStatus, errMsg string) error {
	key := batchKey(batchID)
	if err := s.client.HSet(ctx, key, statusField(taskID), string(status)).Err(); err != nil {
		return fmt.Errorf("progress: set status %s/%s: %w", batchID, taskID, err)
	}
	if errMsg != "" {
		if err := s.client.HSet(ctx, key, errorField(taskID), errMsg).Err(); err != nil {
			return fmt.Errorf("progress: set error %s/%s: %w", batchID, taskID, err)
		}
	}
	s.client.Expire(ctx, key, s.ttl)
	return nil
}

// GetBatch reads the current snapshot of a batch's progress: the
// immutable task scaffold overlaid with whatever per-task hash fields
// have been written since.
func (s *ProgressStore) GetBatch(ctx context.Context, batchID string) (model.BatchState, error) {
	raw, err := s.client.Get(ctx, batchDocKey(batchID)).Result()
	if err == redis.Nil {
		return model.BatchState{}, fmt.Errorf("progress: batch %s not found", batchID)
	}
	if err != nil {
		return model.BatchState{}, fmt.Errorf("progress: get batch %s: %w", batchID, err)
	}

	var state model.BatchState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return model.BatchState{}, fmt.Errorf("progress: decode batch %s: %w", batchID, err)
	}

	vals, err := s.client.HGetAll(ctx, batchKey(batchID)).Result()
	if err == nil {
		for taskID, t := range state.Tasks {
			if v, ok := vals[statusField(taskID)]; ok {
				t.Status = model.TaskStatus(v)
			}
			if v, ok := vals[totalChunksField(taskID)]; ok {
				fmt.Sscanf(v, "%d", &t.TotalChunks)
			}
			if v, ok := vals[completedChunksField(taskID)]; ok {
				fmt.Sscanf(v, "%d", &t.CompletedChunks)
			}
			if v, ok := vals[errorField(taskID)]; ok && v != "" {
				if t.Data == nil {
					t.Data = map[string]string{}
				}
				t.Data["error"] = v
			}
			state.Tasks[taskID] = t
		}
	}

	state.Completed = 0
	state.CompletedChunks = 0
	state.TotalChunks = 0
	for _, t := range state.Tasks {
		if t.Status == model.TaskCompleted || t.Status == model.TaskError {
			state.Completed++
		}
		state.CompletedChunks += t.CompletedChunks
		state.TotalChunks += t.TotalChunks
	}

	return state, nil
}
