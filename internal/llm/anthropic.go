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

type anthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newAnthropicProvider(cfg Config) *anthropicProvider {
	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1/messages"
	}
	return &anthropicProvider{apiKey: cfg.APIKey, model: cfg.Model, baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type anthropicRequest struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	Messages  []chatMessage    `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropicProvider) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	body := anthropicRequest{
		Model:     a.model,
		System:    p.System,
		Messages:  []chatMessage{{Role: "user", Content: p.User}},
		MaxTokens: maxTokens,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", &FatalError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewReader(data))
	if err != nil {
		return "", &FatalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		wrapped := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(b))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &TransientError{Err: wrapped}
		}
		return "", &FatalError{Err: wrapped}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decode anthropic response: %w", err)}
	}
	if len(parsed.Content) == 0 {
		return "", &TransientError{Err: fmt.Errorf("anthropic returned no content blocks")}
	}
	return parsed.Content[0].Text, nil
}

// StreamComplete falls back to a single non-streamed chunk. Anthropic's
// SSE event-block framing is distinct enough from the OpenAI/Ollama
// shape that wiring true token streaming isn't worth the surface for a
// provider this gateway treats as one option among several; callers
// that need streaming should prefer local/openai.
func (a *anthropicProvider) StreamComplete(ctx context.Context, p Prompt) (<-chan Token, error) {
	text, err := a.Complete(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make(chan Token, 2)
	out <- Token{Text: text}
	out <- Token{Done: true}
	close(out)
	return out, nil
}
