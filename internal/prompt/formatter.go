package prompt

import (
	"strings"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/ingest"
)

// SystemPrompt instructs the model how to use retrieved context.
const SystemPrompt = `You are a helpful customer support assistant. Use the following context to answer the question.
If you don't know the answer, say so politely and offer to connect them with a human agent.

Provide a clear, concise, and helpful answer. If the question involves multiple topics, address each one.`

const contextSeparator = "\n\n"

// Counter measures and trims text in tokens. *Tokenizer implements it.
type Counter interface {
	Count(s string) int
	Truncate(s string, maxTokens int) string
}

// Formatter renders retrieved chunks and chat history into a completion request.
type Formatter struct {
	counter   Counter
	maxTokens int
}

// NewFormatter creates a Formatter. With a nil counter or a non-positive
// maxTokens the context is not limited.
func NewFormatter(counter Counter, maxTokens int) *Formatter {
	return &Formatter{counter: counter, maxTokens: maxTokens}
}

// FormatContext joins chunk texts in retrieval order. When a budget is set,
// chunks are added while they fit and the first one that does not is cut to
// the remaining tokens.
func (f *Formatter) FormatContext(chunks []ingest.Chunk) string {
	if f.counter == nil || f.maxTokens <= 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		return strings.Join(texts, contextSeparator)
	}

	var b strings.Builder
	remaining := f.maxTokens
	for _, c := range chunks {
		sep := ""
		if b.Len() > 0 {
			sep = contextSeparator
		}
		n := f.counter.Count(sep + c.Text)
		if n > remaining {
			if room := remaining - f.counter.Count(sep); room > 0 {
				b.WriteString(sep)
				b.WriteString(f.counter.Truncate(c.Text, room))
			}
			break
		}
		b.WriteString(sep)
		b.WriteString(c.Text)
		remaining -= n
	}
	return b.String()
}

// Request builds the completion request for question.
func (f *Formatter) Request(question string, chunks []ingest.Chunk, history []adapter.Message) adapter.CompletionRequest {
	return adapter.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Context:      f.FormatContext(chunks),
		History:      history,
		UserMessage:  question,
	}
}
