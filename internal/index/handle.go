package index

import "sync/atomic"

// Handle holds the index currently serving queries. Readers never block a
// swap and always see a complete index.
type Handle struct {
	p atomic.Pointer[Index]
}

// NewHandle returns a Handle serving idx, which may be nil.
func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	if idx != nil {
		h.p.Store(idx)
	}
	return h
}

// Current returns the serving index, or nil when none is loaded.
func (h *Handle) Current() *Index {
	return h.p.Load()
}

// Swap replaces the serving index.
func (h *Handle) Swap(idx *Index) {
	h.p.Store(idx)
}
