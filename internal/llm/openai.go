// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// openAIProvider speaks the OpenAI chat-completions wire shape, reused
// as-is for moonshot and deepseek against their own base URLs since
// both are OpenAI-compatible, per spec §4.B.
type openAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newOpenAIProvider(cfg Config, baseURL string) *openAIProvider {
	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	return &openAIProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *openAIProvider) messages(p Prompt) []chatMessage {
	msgs := []chatMessage{}
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.User})
	return msgs
}

func (o *openAIProvider) Complete(ctx context.Context, p Prompt) (string, error) {
	reqBody := chatRequest{
		Model:       o.model,
		Messages:    o.messages(p),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	resp, err := o.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &TransientError{Err: fmt.Errorf("openai returned no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *openAIProvider) StreamComplete(ctx context.Context, p Prompt) (<-chan Token, error) {
	reqBody := chatRequest{
		Model:       o.model,
		Messages:    o.messages(p),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		Stream:      true,
	}
	resp, err := o.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	out := make(chan Token)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				select {
				case out <- Token{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			select {
			case out <- Token{Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (o *openAIProvider) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &FatalError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, &FatalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		wrapped := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(b))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &TransientError{Err: wrapped}
		}
		return nil, &FatalError{Err: wrapped}
	}
	return resp, nil
}
