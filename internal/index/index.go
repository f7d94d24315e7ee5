// Package index holds embedded knowledge base chunks and answers nearest
// neighbour queries by cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/ingest"
)

const DefaultBatchSize = 32

var (
	// ErrBuild is returned when an index cannot be built from its chunks.
	ErrBuild = errors.New("index: build failed")
	// ErrNotFound is returned by Load when no persisted index exists.
	ErrNotFound = errors.New("index: not found")
	// ErrCorrupt is returned by Load for unreadable or inconsistent files.
	ErrCorrupt = errors.New("index: corrupt")
	// ErrEmbedderMismatch is returned by Load when the index was built by a
	// different embedder than the one supplied for queries.
	ErrEmbedderMismatch = errors.New("index: embedder mismatch")
)

// Record pairs a chunk with its embedding.
type Record struct {
	Chunk  ingest.Chunk
	Vector []float32
}

// Result is a single query match.
type Result struct {
	Chunk ingest.Chunk
	Score float64
}

// Index is an ordered, immutable set of records. It is safe for concurrent
// queries; a rebuild produces a new Index.
type Index struct {
	embedder adapter.Embedder
	dim      int
	records  []Record
}

// BuildOptions tunes Build.
type BuildOptions struct {
	BatchSize int
	// Progress, when set, is called after each batch with the number of
	// chunks embedded so far.
	Progress func(done, total int)
}

// Build embeds chunks through embedder and returns the resulting index.
func Build(ctx context.Context, embedder adapter.Embedder, chunks []ingest.Chunk, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrBuild)
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	idx := &Index{embedder: embedder, records: make([]Record, 0, len(chunks))}
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}
		vecs, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embed: %v", ErrBuild, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", ErrBuild, len(vecs), len(texts))
		}

		for i, v := range vecs {
			if idx.dim == 0 {
				idx.dim = len(v)
			}
			if len(v) == 0 || len(v) != idx.dim {
				return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrBuild, start+i, len(v), idx.dim)
			}
			idx.records = append(idx.records, Record{Chunk: chunks[start+i], Vector: v})
		}

		if opts.Progress != nil {
			opts.Progress(end, len(chunks))
		}
	}
	return idx, nil
}

// Query returns the k records most similar to text, best first. Ties keep
// insertion order.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	vecs, err := idx.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != idx.dim {
		return nil, fmt.Errorf("index: query embedding does not match index dimension %d", idx.dim)
	}
	q := vecs[0]

	results := make([]Result, len(idx.records))
	for i, r := range idx.records {
		results[i] = Result{Chunk: r.Chunk, Score: cosineSimilarity(q, r.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of records.
func (idx *Index) Len() int { return len(idx.records) }

// Dimension returns the embedding dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Records returns a copy of the records in insertion order.
func (idx *Index) Records() []Record {
	out := make([]Record, len(idx.records))
	copy(out, idx.records)
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
