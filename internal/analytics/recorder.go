package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Key is the KV key holding the JSON-encoded State.
const Key = "analytics"

// KV is the durable store the Recorder persists to. Writes replace the
// whole value.
type KV interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
}

// Recorder serialises every load, mutate and store cycle so concurrent
// requests in one process never lose updates.
type Recorder struct {
	mu sync.Mutex
	kv KV
}

// NewRecorder returns a Recorder persisting to kv.
func NewRecorder(kv KV) *Recorder {
	return &Recorder{kv: kv}
}

// RecordQuery counts one answered query.
func (r *Recorder) RecordQuery(ctx context.Context, intentName string, seconds float64) error {
	return r.update(ctx, func(s State) State { return RecordQuery(s, intentName, seconds) })
}

// RecordFeedback appends a satisfaction rating.
func (r *Recorder) RecordFeedback(ctx context.Context, rating int) error {
	return r.update(ctx, func(s State) State { return RecordFeedback(s, rating) })
}

// Summary loads the current state and summarises it.
func (r *Recorder) Summary(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(s), nil
}

// State returns a snapshot of the persisted state.
func (r *Recorder) State(ctx context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Recorder) update(ctx context.Context, fn func(State) State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fn(s))
	if err != nil {
		return fmt.Errorf("analytics: encode: %w", err)
	}
	if err := r.kv.Write(ctx, Key, data); err != nil {
		return fmt.Errorf("analytics: store: %w", err)
	}
	return nil
}

func (r *Recorder) load(ctx context.Context) (State, error) {
	data, ok, err := r.kv.Read(ctx, Key)
	if err != nil {
		return State{}, fmt.Errorf("analytics: load: %w", err)
	}
	if !ok {
		return NewState(), nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("analytics: decode: %w", err)
	}
	return s.clone(), nil
}
