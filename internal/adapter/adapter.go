// Package adapter provides a unified interface for LLM providers and embedders.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider name constants.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// Chat roles used in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnknownProvider is returned by New for a provider outside the supported set.
var ErrUnknownProvider = errors.New("adapter: unknown provider")

// StreamChunk is a single token or error delivered during streaming.
type StreamChunk struct {
	Text  string
	Error error
}

// Message is one prior turn replayed to the model as chat history.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest holds the parameters for a completion call.
type CompletionRequest struct {
	SystemPrompt string
	Context      string
	History      []Message
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float64
	Stream       bool
}

// ModelInfo describes the capabilities of a model.
type ModelInfo struct {
	Name               string
	Provider           string
	MaxContextWindow   int
	SupportsStreaming  bool
	EmbeddingModel     string
	EmbeddingDimension int // 0 if not an embedding model or unknown
}

// LLMAdapter is the common interface all provider adapters implement.
type LLMAdapter interface {
	// Complete sends a prompt and streams the response.
	Complete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Info returns metadata about the adapter/model.
	Info() ModelInfo
}

// Embedder is a narrower interface for components that only need embedding,
// not full chat completion. An LLMAdapter satisfies this interface.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options carries the provider-specific settings resolved from configuration.
type Options struct {
	APIKey     string // empty = read from env in the concrete adapter
	Host       string // Ollama base URL
	Model      string // completion model; provider default when empty
	EmbedModel string // embedding model (Ollama)
}

// New constructs the LLMAdapter for the named provider.
func New(provider string, opts Options) (LLMAdapter, error) {
	switch provider {
	case ProviderClaude:
		return NewClaude(opts.APIKey, opts.Model), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.APIKey, opts.Model), nil
	case ProviderGemini:
		return NewGemini(opts.APIKey, opts.Model), nil
	case ProviderOllama:
		host := opts.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		embedModel := opts.EmbedModel
		if embedModel == "" {
			embedModel = "nomic-embed-text"
		}
		return NewOllama(host, opts.Model, embedModel), nil
	case ProviderLocal:
		return NewLocal(DefaultLocalDimension), nil
	default:
		return nil, fmt.Errorf("%w %q; valid providers: claude, openai, gemini, ollama, local", ErrUnknownProvider, provider)
	}
}

// Collect drains a completion stream into a single string, returning the
// first error delivered on the channel.
func Collect(stream <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return sb.String(), chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}
