// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package server implements the HTTP API surface, generalizing the
// teacher's bare net/http mux in cmd/hive-server/main.go's routes()
// into the full query/ingest/document/chat contract. Auth, tenant, and
// org_id plumbing present in the teacher's handlers is dropped — this
// system has no multi-tenant concept.
package server

import (
	"net/http"

	"github.com/northbound/ragcore/internal/app"
)

// NewRouter builds the complete HTTP API surface over a wired
// app.State, one ServeMux pattern per endpoint exactly as the
// teacher's routes() registered each path with mux.HandleFunc.
func NewRouter(state *app.State) http.Handler {
	mux := http.NewServeMux()

	health := &HealthHandler{state: state}
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /config", health.GetConfig)
	mux.HandleFunc("GET /models/info", health.ModelsInfo)

	chatH := &ChatHandler{state: state}
	mux.HandleFunc("POST /query", chatH.Query)
	mux.HandleFunc("POST /query/stream", chatH.QueryStream)
	mux.HandleFunc("GET /chat/history/{session_id}", chatH.History)
	mux.HandleFunc("POST /chat/clear", chatH.Clear)

	ingest := NewIngestHandler(state)
	mux.HandleFunc("POST /upload", ingest.Upload)
	mux.HandleFunc("POST /files/check", ingest.CheckFiles)
	mux.HandleFunc("GET /batches/{id}", ingest.GetBatch)
	mux.HandleFunc("GET /batches/{id}/stream", ingest.StreamBatch)

	docs := &DocumentsHandler{state: state}
	mux.HandleFunc("GET /documents", docs.List)
	mux.HandleFunc("DELETE /documents/{id}", docs.Delete)

	return withJSONErrorRecovery(mux)
}

// withJSONErrorRecovery turns a panicking handler into a 500 JSON
// response instead of taking the whole process down, matching the
// teacher's own defensive posture of never letting one bad request
// crash the server (see worker.go's "log and continue" loop for the
// same philosophy applied to the job queue).
func withJSONErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
