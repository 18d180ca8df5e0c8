// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type googleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newGoogleProvider(cfg Config) *googleProvider {
	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	return &googleProvider{apiKey: cfg.APIKey, model: cfg.Model, baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (g *googleProvider) Complete(ctx context.Context, p Prompt) (string, error) {
	body := googleRequest{
		Contents: []googleContent{{Role: "user", Parts: []googlePart{{Text: p.User}}}},
	}
	if p.System != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: p.System}}}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", &FatalError{Err: err}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return "", &FatalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		wrapped := fmt.Errorf("google API error (status %d): %s", resp.StatusCode, string(b))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &TransientError{Err: wrapped}
		}
		return "", &FatalError{Err: wrapped}
	}

	var parsed googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decode google response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &TransientError{Err: fmt.Errorf("google returned no candidates")}
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// StreamComplete is non-streamed for the same reason as the Anthropic
// provider: the streamGenerateContent wire shape doesn't share the
// OpenAI/Ollama chunk framing this gateway standardizes on.
func (g *googleProvider) StreamComplete(ctx context.Context, p Prompt) (<-chan Token, error) {
	text, err := g.Complete(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make(chan Token, 2)
	out <- Token{Text: text}
	out <- Token{Done: true}
	close(out)
	return out, nil
}
