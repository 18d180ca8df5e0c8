// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/app"
	"github.com/northbound/ragcore/internal/extractor"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/store"
	"github.com/northbound/ragcore/internal/worker"
)

// IngestHandler serves the upload/batch-progress surface (spec 4.H/4.M):
// POST /upload accepts a multipart batch, persists each file to
// temporary storage, enqueues one ingest_document job per file, and
// returns a batch id the client polls or streams progress for.
// Replaces the teacher's IngestHandler, which decoded a single
// pre-extracted text body and embedded it synchronously in the HTTP
// request instead of going through a queue at all.
type IngestHandler struct {
	state *app.State
}

func NewIngestHandler(state *app.State) *IngestHandler {
	return &IngestHandler{state: state}
}

const maxUploadBytes = 200 << 20 // 200MB per batch

// Upload handles POST /upload (multipart/form-data, field name "files").
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.state.Queue == nil || h.state.Progress == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion queue unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	storageRoot := h.state.Config.Storage.Root
	if err := os.MkdirAll(storageRoot, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prepare storage")
		return
	}

	batchID := uuid.NewString()
	type taskRef struct {
		TaskID   string `json:"task_id"`
		Filename string `json:"filename"`
	}
	tasks := make([]taskRef, 0, len(files))
	storeTasks := make([]store.TaskRef, 0, len(files))
	for _, fh := range files {
		taskID := uuid.NewString()
		tasks = append(tasks, taskRef{TaskID: taskID, Filename: fh.Filename})
		storeTasks = append(storeTasks, store.TaskRef{TaskID: taskID, Filename: fh.Filename})
	}
	if _, err := h.state.Progress.CreateBatch(r.Context(), batchID, storeTasks); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create batch")
		return
	}

	accepted := 0
	for i, fh := range files {
		taskID := tasks[i].TaskID
		if !extractor.IsSupportedFile(fh.Filename) {
			_ = h.state.Progress.UpdateTaskStatus(r.Context(), batchID, taskID, model.TaskError, "unsupported file type")
			continue
		}
		if err := h.stageFile(r, batchID, taskID, storageRoot, fh); err != nil {
			logger.Errorf("upload: %s: %v", fh.Filename, err)
			_ = h.state.Progress.UpdateTaskStatus(r.Context(), batchID, taskID, model.TaskError, err.Error())
			continue
		}
		accepted++
	}
	if accepted == 0 {
		writeError(w, http.StatusBadRequest, "all files were rejected")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "queued",
		"batch_id": batchID,
		"tasks":    tasks,
	})
}

func (h *IngestHandler) stageFile(r *http.Request, batchID, taskID, storageRoot string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "ingest-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("copy upload: %w", err)
	}
	fileHash := hex.EncodeToString(hasher.Sum(nil))

	documentID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileHash)).String()
	storagePath := filepath.Join(storageRoot, documentID, fh.Filename)

	payload, err := json.Marshal(worker.IngestPayload{
		BatchID:       batchID,
		TaskID:        taskID,
		DocumentID:    documentID,
		FileName:      fh.Filename,
		TempPath:      tmp.Name(),
		StoragePath:   storagePath,
		FileHash:      fileHash,
		FileSizeBytes: size,
		UploadedAt:    time.Now(),
		Contextualize: true,
	})
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("encode job: %w", err)
	}

	return h.state.Queue.Enqueue(r.Context(), queue.Job{
		Type:      worker.IngestJobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}

type fileCheckEntry struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
}

// CheckFiles handles POST /files/check, reporting per filename whether
// a chunk with the same file_hash already exists in the vector store,
// so a client can skip re-uploading identical files.
func (h *IngestHandler) CheckFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Files []fileCheckEntry `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hashes := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		hashes = append(hashes, f.Hash)
	}
	existing, err := h.state.VectorDB.CheckHashes(r.Context(), hashes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check hashes")
		return
	}

	results := make(map[string]map[string]interface{}, len(req.Files))
	for _, f := range req.Files {
		match, ok := existing[f.Hash]
		if !ok {
			results[f.Filename] = map[string]interface{}{"exists": false}
			continue
		}
		results[f.Filename] = map[string]interface{}{
			"exists":                true,
			"existing_document_id":  match.DocumentID,
			"existing_filename":     match.FileName,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// GetBatch handles GET /batches/{id}, a single progress snapshot.
func (h *IngestHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.state.Progress == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking unavailable")
		return
	}
	batch, err := h.state.Progress.GetBatch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// StreamBatch handles GET /batches/{id}/stream, polling the progress
// store every 500ms and emitting an SSE "progress" event on each poll,
// changed or not, until every
// task reaches a terminal state, using the same sendEvent framing as the
// chat handler's QueryStream.
func (h *IngestHandler) StreamBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.state.Progress == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			batch, err := h.state.Progress.GetBatch(r.Context(), id)
			if err != nil {
				sendEvent(w, flusher, "error", fmt.Sprintf(`{"message":%q}`, err.Error()))
				return
			}
			data, _ := json.Marshal(batch)
			sendEvent(w, flusher, "progress", string(data))
			if batchDone(batch) {
				sendEvent(w, flusher, "complete", string(data))
				return
			}
		}
	}
}

func batchDone(batch model.BatchState) bool {
	for _, t := range batch.Tasks {
		if t.Status != model.TaskCompleted && t.Status != model.TaskError {
			return false
		}
	}
	return true
}
