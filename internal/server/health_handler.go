// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/ragcore/internal/app"
)

// HealthHandler serves the operational-status endpoints: liveness,
// sanitized config, and model info, generalizing
// cmd/hive-server/main.go's "/api/v1/config" GET handler (which the
// teacher paired with a POST save-config handler this system has no
// equivalent of, since config here is file/env-loaded at startup, not
// edited through the API).
type HealthHandler struct {
	state *app.State
}

// Health reports whether the process is up and which optional
// subsystems are connected.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "healthy",
		"redis":  h.state.Redis != nil,
		"sqlite": h.state.DB != nil,
	}
	writeJSON(w, http.StatusOK, status)
}

// GetConfig returns the non-secret subset of the running config, so a
// UI can render current settings without ever seeing an API key.
func (h *HealthHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.state.Config
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"max_upload_size_mb": maxUploadBytes / (1 << 20),
		"llm_provider":       cfg.LLM.Provider,
		"llm_model":          cfg.LLM.Model,
		"embedding_provider": cfg.Embedding.Provider,
		"embedding_model":    cfg.Embedding.Model,
		"reranker_enabled":   cfg.Reranker.Enabled,
		"hybrid_enabled":     cfg.Retrieval.HybridEnabled,
		"top_k":              cfg.Retrieval.TopK,
	})
}

// ModelsInfo reports the active LLM and embedding model identifiers,
// used by clients to label generated answers (spec 4.L's DonePayload
// "model" field, generalized into its own endpoint here).
func (h *HealthHandler) ModelsInfo(w http.ResponseWriter, r *http.Request) {
	cfg := h.state.Config
	hosting := "cloud"
	if cfg.LLM.Provider == "local" {
		hosting = "local"
	}
	resp := map[string]interface{}{
		"llm_model":           cfg.LLM.Model,
		"llm_hosting":         hosting,
		"embedding_model":     cfg.Embedding.Model,
		"reranker_enabled":    cfg.Reranker.Enabled,
		"embedding_dimension": h.state.Embedder.Dimension(),
	}
	if cfg.Reranker.Enabled {
		resp["reranker_model"] = cfg.Reranker.Model
	}
	writeJSON(w, http.StatusOK, resp)
}
