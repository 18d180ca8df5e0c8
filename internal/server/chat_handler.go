// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/app"
	"github.com/northbound/ragcore/internal/chat"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
)

// ChatHandler serves the query/chat surface (spec 4.L/4.M), a
// ground-up replacement for the teacher's ChatHandler: the teacher's
// version read an authenticated *database.User and organization_id out
// of request context and called a placeholder "Based on the context: ..."
// answer generator; this system has no multi-tenant auth layer, and
// answer generation goes through the real internal/chat.Engine.
type ChatHandler struct {
	state *app.State
}

// ChatRequest is the request body for both /query and /query/stream.
type ChatRequest struct {
	Query         string `json:"query"`
	SessionID     string `json:"session_id"`
	TokenBudget   int    `json:"token_budget,omitempty"`
	IsTemporary   bool   `json:"is_temporary,omitempty"`
	IncludeChunks bool   `json:"include_chunks,omitempty"`
}

// ChatResponse is the /query response body.
type ChatResponse struct {
	Answer    string         `json:"answer"`
	SessionID string         `json:"session_id"`
	Sources   []model.Source `json:"sources"`
}

// Query handles POST /query, a non-streamed conversational turn.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := h.state.Engine.Query(r.Context(), req.SessionID, req.Query, req.TokenBudget, req.IsTemporary)
	if err != nil {
		logger.Errorf("chat: query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:    answer.Text,
		SessionID: req.SessionID,
		Sources:   answer.Sources,
	})
}

// QueryStream handles POST /query/stream, emitting Server-Sent Events
// as the turn progresses: "sources" once retrieval completes, "token"
// per generated token, then a final "done". Each frame is written as
// `event: <name>\ndata: <json>\n\n` followed by an immediate Flush so
// the client sees it without buffering.
func (h *ChatHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	emit := func(ev chat.Event) {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			data = []byte(`{}`)
		}
		sendEvent(w, flusher, ev.Name, string(data))
	}

	if err := h.state.Engine.QueryStream(r.Context(), req.SessionID, req.Query, req.TokenBudget, req.IsTemporary, emit); err != nil {
		logger.Warnf("chat: stream ended with error: %v", err)
	}
}

// History handles GET /chat/history/{session_id}.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" || h.state.Chat == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"messages": []model.ChatMessage{}})
		return
	}
	msgs, err := h.state.Chat.GetHistory(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// Clear handles POST /chat/clear.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if h.state.Chat == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "session cleared"})
		return
	}
	if err := h.state.Chat.Clear(r.Context(), req.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "session cleared"})
}

func sendEvent(w http.ResponseWriter, f http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	f.Flush()
}
