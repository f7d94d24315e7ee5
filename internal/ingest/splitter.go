// Package ingest turns knowledge base documents into overlapping text chunks.
package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// separators are tried largest first; "" splits into single characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Document is one knowledge base file with its metadata.
type Document struct {
	Text     string
	Source   string // file name, e.g. "billing.txt"
	Category string // file name without extension
}

// Chunk is a piece of a document. Offset is the rune position of the chunk
// within its document.
type Chunk struct {
	Text     string
	SourceID string
	Category string
	Offset   int
}

// Splitter performs recursive character splitting with overlap. Lengths are
// measured in runes.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a Splitter, applying defaults for non-positive values.
// An overlap that does not fit inside a chunk is dropped.
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Splitter{Size: size, Overlap: overlap}
}

// piece is a contiguous run of the document. Pieces produced by atomize
// concatenate back to the original text exactly.
type piece struct {
	text   string
	offset int
	runes  int
}

// Split breaks doc into chunks of at most Size runes. Each chunk after the
// first begins with the trailing (at most Overlap runes) pieces of its
// predecessor. Separators are kept, so removing each chunk's overlap and
// concatenating yields doc.Text.
func (s Splitter) Split(doc Document) []Chunk {
	if doc.Text == "" {
		return nil
	}

	atoms := s.atomize(doc.Text, 0, separators)

	var chunks []Chunk
	var window []piece
	total := 0

	emit := func() {
		var sb strings.Builder
		for _, p := range window {
			sb.WriteString(p.text)
		}
		chunks = append(chunks, Chunk{
			Text:     sb.String(),
			SourceID: doc.Source,
			Category: doc.Category,
			Offset:   window[0].offset,
		})
	}

	for _, a := range atoms {
		if total+a.runes > s.Size && len(window) > 0 {
			emit()
			// Keep a tail of at most Overlap runes that still leaves room for a.
			for len(window) > 0 && (total > s.Overlap || total+a.runes > s.Size) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, a)
		total += a.runes
	}
	if len(window) > 0 {
		emit()
	}

	return chunks
}

// atomize splits text on the first separator it contains, recursing into any
// piece that is still longer than Size with the remaining separators.
func (s Splitter) atomize(text string, offset int, seps []string) []piece {
	sep, rest := seps[0], seps[1:]
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var out []piece
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		n := utf8.RuneCountInString(part)
		if n > s.Size && len(rest) > 0 {
			out = append(out, s.atomize(part, offset, rest)...)
		} else {
			out = append(out, piece{text: part, offset: offset, runes: n})
		}
		offset += n
	}
	return out
}

// SplitAll splits every document in order.
func (s Splitter) SplitAll(docs []Document) []Chunk {
	var chunks []Chunk
	for _, d := range docs {
		chunks = append(chunks, s.Split(d)...)
	}
	return chunks
}
