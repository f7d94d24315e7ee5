package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/ingest"
)

type fakeLLM struct {
	answer    string
	pieces    []string
	err       error
	streamErr error
	calls     int
	last      adapter.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan adapter.StreamChunk, len(f.pieces)+1)
	for _, p := range f.pieces {
		ch <- adapter.StreamChunk{Text: p}
	}
	if f.streamErr != nil {
		ch <- adapter.StreamChunk{Error: f.streamErr}
	} else if f.answer != "" {
		ch <- adapter.StreamChunk{Text: f.answer}
	}
	close(ch)
	return ch, nil
}

type fakeRetriever struct {
	results []index.Result
	err     error
	k       int
}

func (f *fakeRetriever) Query(_ context.Context, _ string, k int) ([]index.Result, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results[:min(k, len(f.results))], nil
}

func results(texts ...string) []index.Result {
	out := make([]index.Result, len(texts))
	for i, t := range texts {
		out[i] = index.Result{Chunk: ingest.Chunk{Text: t, SourceID: "faq.txt", Category: "faq"}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestRespond(t *testing.T) {
	long := strings.Repeat("é", 250)
	llm := &fakeLLM{answer: "Refunds take 5 business days."}
	ret := &fakeRetriever{results: results(long, "second chunk", "third chunk", "fourth chunk")}
	memory := conversation.BuildMemory([]conversation.Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello! How can I help?"},
	})

	ans, err := NewResponder(llm, nil, Options{Temperature: 0.7}).Respond(context.Background(), "refund?", memory, ret)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if ans.Text != "Refunds take 5 business days." {
		t.Errorf("answer: %q", ans.Text)
	}
	if ret.k != DefaultTopK {
		t.Errorf("retrieved k=%d, want %d", ret.k, DefaultTopK)
	}
	if len(ans.Sources) != MaxSources {
		t.Fatalf("sources: got %d, want %d", len(ans.Sources), MaxSources)
	}
	if n := utf8.RuneCountInString(ans.Sources[0].Content); n != PreviewLength {
		t.Errorf("preview length: got %d runes, want %d", n, PreviewLength)
	}
	if ans.Sources[1].Content != "second chunk" || ans.Sources[1].SourceID != "faq.txt" {
		t.Errorf("second source: %+v", ans.Sources[1])
	}

	if llm.calls != 1 {
		t.Errorf("expected exactly one completion call, got %d", llm.calls)
	}
	if len(llm.last.History) != 2 || llm.last.History[1].Role != "assistant" {
		t.Errorf("history not forwarded: %+v", llm.last.History)
	}
	if !strings.Contains(llm.last.Context, "third chunk") || strings.Contains(llm.last.Context, "fourth chunk") {
		t.Errorf("context should hold exactly the top 3 chunks: %q", llm.last.Context)
	}
	if llm.last.UserMessage != "refund?" || llm.last.Temperature != 0.7 {
		t.Errorf("request: %+v", llm.last)
	}
}

func TestRespondStream(t *testing.T) {
	llm := &fakeLLM{pieces: []string{"Refunds ", "take ", "5 days."}}
	var got []string
	ans, err := NewResponder(llm, nil, Options{}).RespondStream(context.Background(), "refund?", nil,
		&fakeRetriever{results: results("refund policy")}, func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("RespondStream: %v", err)
	}
	if !llm.last.Stream {
		t.Error("expected a streaming completion request")
	}
	if strings.Join(got, "|") != "Refunds |take |5 days." {
		t.Errorf("streamed pieces: %q", got)
	}
	if ans.Text != "Refunds take 5 days." || len(ans.Sources) != 1 {
		t.Errorf("answer: %+v", ans)
	}
}

func TestRespondStream_FailureMidStream(t *testing.T) {
	llm := &fakeLLM{pieces: []string{"Refunds "}, streamErr: errors.New("connection reset")}
	var got strings.Builder
	_, err := NewResponder(llm, nil, Options{}).RespondStream(context.Background(), "refund?", nil,
		&fakeRetriever{results: results("refund policy")}, func(s string) { got.WriteString(s) })

	var rerr *ResponseError
	if !errors.As(err, &rerr) || rerr.Op != "generate" {
		t.Fatalf("expected generate ResponseError, got %v", err)
	}
	if got.String() != "Refunds " {
		t.Errorf("partial text: %q", got.String())
	}
}

func TestRespond_NotStreamed(t *testing.T) {
	llm := &fakeLLM{answer: "ok"}
	if _, err := NewResponder(llm, nil, Options{}).Respond(context.Background(), "q", nil, &fakeRetriever{results: results("a")}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if llm.last.Stream {
		t.Error("Respond must not request streaming")
	}
}

func TestRespond_FewerChunksThanSources(t *testing.T) {
	ans, err := NewResponder(&fakeLLM{answer: "ok"}, nil, Options{}).
		Respond(context.Background(), "q", nil, &fakeRetriever{results: results("only")})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(ans.Sources) != 1 {
		t.Errorf("sources: got %d, want 1", len(ans.Sources))
	}
}

func TestRespond_Failures(t *testing.T) {
	boom := errors.New("backend unreachable")
	tests := []struct {
		name string
		llm  *fakeLLM
		ret  *fakeRetriever
		op   string
	}{
		{"retrieval", &fakeLLM{}, &fakeRetriever{err: boom}, "retrieve"},
		{"completion", &fakeLLM{err: boom}, &fakeRetriever{results: results("a")}, "generate"},
		{"stream", &fakeLLM{streamErr: boom}, &fakeRetriever{results: results("a")}, "generate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResponder(tt.llm, nil, Options{}).Respond(context.Background(), "q", nil, tt.ret)
			var rerr *ResponseError
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *ResponseError, got %v", err)
			}
			if rerr.Op != tt.op {
				t.Errorf("op: got %q, want %q", rerr.Op, tt.op)
			}
			if !errors.Is(err, boom) {
				t.Error("underlying cause should be preserved")
			}
			if tt.op == "retrieve" && tt.llm.calls != 0 {
				t.Error("model must not be called when retrieval fails")
			}
		})
	}
}

func TestRespond_BillingScenario(t *testing.T) {
	ctx := context.Background()
	splitter := ingest.NewSplitter(200, 20)
	chunks := splitter.SplitAll([]ingest.Document{
		{
			Text:     "Invoices are emailed on the first day of each month. If your invoice is wrong, contact billing and we will issue a corrected invoice. Refunds for duplicate charges are processed within five business days.",
			Source:   "billing.txt",
			Category: "billing",
		},
		{
			Text:     "Installation errors usually mean the installer could not reach the update server. Check your firewall, then run the installer again. Error code 1603 indicates missing permissions during installation.",
			Source:   "tech.txt",
			Category: "tech",
		},
	})

	idx, err := index.Build(ctx, adapter.NewLocal(adapter.DefaultLocalDimension), chunks, index.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	llm := &fakeLLM{answer: "Please contact billing."}
	ans, err := NewResponder(llm, nil, Options{}).Respond(ctx, "my invoice is wrong", nil, idx)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	top, _ := idx.Query(ctx, "my invoice is wrong", 3)
	found := false
	for _, r := range top {
		if r.Chunk.SourceID == "billing.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("billing.txt not in top-3: %+v", top)
	}
	if ans.Sources[0].SourceID != "billing.txt" {
		t.Errorf("first source: got %q, want billing.txt", ans.Sources[0].SourceID)
	}
}
