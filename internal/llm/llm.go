// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package llm provides a provider-agnostic gateway to chat-completion
// backends (local Ollama, OpenAI, Anthropic, Google, DeepSeek,
// Moonshot), used for condensation, contextual-prefix generation,
// and the final answer turn.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Prompt is one completion request: a system instruction plus the
// rendered user turn. Providers are responsible for mapping this onto
// their own chat message shape.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Token is one piece of a streamed completion.
type Token struct {
	Text string
	Done bool
}

// Provider is implemented once per backend.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	StreamComplete(ctx context.Context, p Prompt) (<-chan Token, error)
}

// TransientError marks a failure the caller should retry (timeouts,
// 429/5xx responses). FatalError marks one it should not (4xx other
// than 429, malformed request). The ingestion worker (4.H) branches on
// these via IsTransient instead of string-matching errors.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("llm: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

type FatalError struct{ Err error }

func (e *FatalError) Error() string { return fmt.Sprintf("llm: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a
// TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Config is the subset of config.LLMConfig a provider needs; kept
// separate from the config package to avoid an import cycle since
// config has no business knowing about providers.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     int64 // seconds
	MaxTokens   int
	Temperature float64
}

// NewProvider selects an implementation by name, the same switch
// shape embeddings.NewEmbedder uses for its own provider set.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "local", "ollama":
		return newOllamaProvider(cfg), nil
	case "openai":
		return newOpenAIProvider(cfg, "https://api.openai.com/v1/chat/completions"), nil
	case "moonshot":
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.moonshot.cn/v1/chat/completions"
		}
		return newOpenAIProvider(cfg, base), nil
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	case "google":
		return newGoogleProvider(cfg), nil
	case "deepseek":
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.deepseek.com/chat/completions"
		}
		return newOpenAIProvider(cfg, base), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
