// Package rag answers support questions from retrieved knowledge base chunks.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/ingest"
	"github.com/ragdesk/ragdesk/internal/prompt"
)

const (
	DefaultTopK = 3
	// MaxSources is how many retrieved chunks are returned for display.
	MaxSources = 2
	// PreviewLength caps each source preview, in characters.
	PreviewLength = 200
)

// Retriever finds the chunks most relevant to a query. *index.Index
// implements it.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]index.Result, error)
}

// Completer generates text. Every adapter.LLMAdapter implements it.
type Completer interface {
	Complete(ctx context.Context, req adapter.CompletionRequest) (<-chan adapter.StreamChunk, error)
}

// ResponseError reports a retrieval or generation failure while answering.
type ResponseError struct {
	Op  string // "retrieve" or "generate"
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("rag: %s: %v", e.Op, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Source is a shortened retrieved chunk shown alongside an answer.
type Source struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
	Category string `json:"category"`
}

// Answer is the responder's output.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Options tunes a Responder.
type Options struct {
	TopK        int
	Model       string
	MaxTokens   int
	Temperature float64
}

// Responder retrieves context and asks the language model for an answer.
// It has no side effects beyond the calls it makes.
type Responder struct {
	llm       Completer
	formatter *prompt.Formatter
	opts      Options
}

// NewResponder creates a Responder.
func NewResponder(llm Completer, formatter *prompt.Formatter, opts Options) *Responder {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if formatter == nil {
		formatter = prompt.NewFormatter(nil, 0)
	}
	return &Responder{llm: llm, formatter: formatter, opts: opts}
}

// Respond answers query using the top retrieved chunks and the chat history
// in memory. Failures are returned as *ResponseError without retry.
func (r *Responder) Respond(ctx context.Context, query string, memory conversation.Memory, idx Retriever) (Answer, error) {
	return r.respond(ctx, query, memory, idx, nil)
}

// RespondStream is Respond with the completion streamed: onText receives
// each piece of the answer as the provider produces it. The returned Answer
// holds the full text. After a generate failure onText may already have
// seen part of an answer.
func (r *Responder) RespondStream(ctx context.Context, query string, memory conversation.Memory, idx Retriever, onText func(string)) (Answer, error) {
	return r.respond(ctx, query, memory, idx, onText)
}

func (r *Responder) respond(ctx context.Context, query string, memory conversation.Memory, idx Retriever, onText func(string)) (Answer, error) {
	results, err := idx.Query(ctx, query, r.opts.TopK)
	if err != nil {
		return Answer{}, &ResponseError{Op: "retrieve", Err: err}
	}

	chunks := make([]ingest.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}

	req := r.formatter.Request(query, chunks, memory)
	req.Model = r.opts.Model
	req.MaxTokens = r.opts.MaxTokens
	req.Temperature = r.opts.Temperature
	req.Stream = onText != nil

	stream, err := r.llm.Complete(ctx, req)
	if err != nil {
		return Answer{}, &ResponseError{Op: "generate", Err: err}
	}

	if onText == nil {
		text, err := adapter.Collect(stream)
		if err != nil {
			return Answer{}, &ResponseError{Op: "generate", Err: err}
		}
		return Answer{Text: text, Sources: sources(chunks)}, nil
	}

	var sb strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return Answer{}, &ResponseError{Op: "generate", Err: chunk.Error}
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			onText(chunk.Text)
		}
	}
	return Answer{Text: sb.String(), Sources: sources(chunks)}, nil
}

func sources(chunks []ingest.Chunk) []Source {
	n := min(len(chunks), MaxSources)
	out := make([]Source, n)
	for i, c := range chunks[:n] {
		out[i] = Source{Content: preview(c.Text), SourceID: c.SourceID, Category: c.Category}
	}
	return out
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= PreviewLength {
		return s
	}
	return string(r[:PreviewLength])
}
