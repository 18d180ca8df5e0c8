// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/northbound/ragcore/internal/app"
	"github.com/northbound/ragcore/internal/logger"
)

// DocumentsHandler serves the document registry surface (spec 4.M):
// listing with sort options and per-document deletion, both backed by
// the vector store adapter rather than a separate registry table,
// since chunk payloads are the source of truth for document metadata
// (see the vectordb design note).
type DocumentsHandler struct {
	state *app.State
}

// List handles GET /documents?sort_by=&order=.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort_by")
	order := r.URL.Query().Get("order")

	docs, err := h.state.VectorDB.ListDocuments(r.Context(), sortBy, order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// Delete handles DELETE /documents/{id}, removing every chunk
// belonging to the document and refreshing the sparse index so a
// deleted document stops surfacing in BM25 results immediately rather
// than waiting for the next ingest.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.state.VectorDB.DeleteByDocument(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	if storageRoot := h.state.Config.Storage.Root; storageRoot != "" {
		// Best-effort: the chunks are already gone, so a leftover
		// original on disk is orphaned storage, not a failed delete.
		if err := os.RemoveAll(filepath.Join(storageRoot, id)); err != nil {
			logger.Warnf("documents: %s: failed to remove stored original: %v", id, err)
		}
	}

	if h.state.SparseIndex != nil {
		if err := h.state.SparseIndex.Refresh(r.Context(), h.state.VectorDB); err != nil {
			// Best-effort: a stale sparse index just means the deleted
			// document's chunks linger in BM25 results until the next
			// refresh, not a failed deletion.
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "success",
				"message": "document deleted; sparse index refresh failed and will retry on next ingest",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "document deleted"})
}
