package adapter

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultLocalDimension is the vector width of the local hashing embedder.
const DefaultLocalDimension = 256

var localTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

var localStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "we": {}, "what": {}, "with": {}, "you": {},
	"your": {},
}

// localAdapter embeds text by hashing word stems into a fixed number of
// buckets. It needs no network access and is deterministic, which makes it
// suitable for offline indexes and tests. It cannot generate text.
type localAdapter struct {
	dimension int
}

// NewLocal creates the feature-hashing embedder.
func NewLocal(dimension int) LLMAdapter {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &localAdapter{dimension: dimension}
}

func (l *localAdapter) Info() ModelInfo {
	return ModelInfo{
		Name:               "feature-hashing",
		Provider:           ProviderLocal,
		EmbeddingModel:     "feature-hashing",
		EmbeddingDimension: l.dimension,
	}
}

func (l *localAdapter) Complete(_ context.Context, _ CompletionRequest) (<-chan StreamChunk, error) {
	return nil, errors.New("local adapter: completion not supported; choose claude, openai, gemini or ollama as the model")
}

func (l *localAdapter) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *localAdapter) embed(text string) []float32 {
	vec := make([]float32, l.dimension)
	for _, tok := range localTokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := localStopwords[tok]; stop {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(stem(tok)))
		vec[h.Sum32()%uint32(l.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// stem strips a plural "s" so "invoices" and "invoice" share a bucket.
func stem(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}
