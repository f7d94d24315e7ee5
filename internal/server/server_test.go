package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/ingest"
	"github.com/ragdesk/ragdesk/internal/rag"
)

type fakeAnswerer struct {
	mu       sync.Mutex
	answer   rag.Answer
	err      error
	memories []conversation.Memory
}

func (f *fakeAnswerer) Respond(_ context.Context, _ string, memory conversation.Memory, _ rag.Retriever) (rag.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories = append(f.memories, memory)
	return f.answer, f.err
}

func (f *fakeAnswerer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.memories)
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	answerer *fakeAnswerer
	sessions *conversation.Store
	recorder *analytics.Recorder
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Build(context.Background(), adapter.NewLocal(64), []ingest.Chunk{
		{Text: "Refunds are issued within 5 business days.", SourceID: "billing.txt", Category: "billing"},
	}, index.BuildOptions{})
	require.NoError(t, err)
	return idx
}

func newTestEnv(t *testing.T, idx *index.Index) *testEnv {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		answerer: &fakeAnswerer{answer: rag.Answer{
			Text:    "Refunds take 5 business days.",
			Sources: []rag.Source{{Content: "Refunds are issued within 5 business days.", SourceID: "billing.txt"}},
		}},
		sessions: conversation.NewStore(database),
		recorder: analytics.NewRecorder(db.NewKV(database)),
	}
	env.server = New(Deps{
		Responder: env.answerer,
		Index:     index.NewHandle(idx),
		Sessions:  env.sessions,
		Analytics: env.recorder,
	}, ":0", 0)
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChat_AnswersAndRecords(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	rec := env.do(t, http.MethodPost, "/chat", `{"message":"I was charged twice on my invoice"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, conversation.ValidSessionID(cookie.Value))

	var body struct {
		Response     string              `json:"response"`
		Intent       map[string]any      `json:"intent"`
		Entities     map[string][]string `json:"entities"`
		ResponseTime float64             `json:"response_time"`
		Sources      []map[string]string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Refunds take 5 business days.", body.Response)
	assert.Equal(t, "billing", body.Intent["primary_intent"])
	assert.GreaterOrEqual(t, body.ResponseTime, 0.0)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "Refunds are issued within 5 business days.", body.Sources[0]["content"])

	ctx := context.Background()
	log, err := env.sessions.Load(ctx, cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, []conversation.Turn{
		{Role: "user", Content: "I was charged twice on my invoice"},
		{Role: "assistant", Content: "Refunds take 5 business days."},
	}, log.Turns)

	sum, err := env.recorder.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalQueries)
	assert.Equal(t, 1, sum.IntentDistribution["billing"])
}

func TestChat_HistoryAndClear(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	first := env.do(t, http.MethodPost, "/chat", `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, first.Code)
	cookie := sessionCookie(t, first)

	second := env.do(t, http.MethodPost, "/chat", `{"message":"and my refund?"}`, cookie)
	require.Equal(t, http.StatusOK, second.Code)

	cleared := env.do(t, http.MethodPost, "/clear", "", cookie)
	require.Equal(t, http.StatusOK, cleared.Code)
	assert.Equal(t, "success", decode(t, cleared)["status"])

	third := env.do(t, http.MethodPost, "/chat", `{"message":"start over"}`, cookie)
	require.Equal(t, http.StatusOK, third.Code)

	require.Len(t, env.answerer.memories, 3)
	assert.Empty(t, env.answerer.memories[0])
	assert.Equal(t, conversation.Memory{
		{Role: adapter.RoleUser, Content: "hello"},
		{Role: adapter.RoleAssistant, Content: "Refunds take 5 business days."},
	}, env.answerer.memories[1])
	assert.Empty(t, env.answerer.memories[2])
}

func TestChat_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	a := env.do(t, http.MethodPost, "/chat", `{"message":"first user"}`, nil)
	b := env.do(t, http.MethodPost, "/chat", `{"message":"second user"}`, nil)
	require.Equal(t, http.StatusOK, a.Code)
	require.Equal(t, http.StatusOK, b.Code)
	assert.NotEqual(t, sessionCookie(t, a).Value, sessionCookie(t, b).Value)

	env.do(t, http.MethodPost, "/chat", `{"message":"again"}`, sessionCookie(t, b))
	require.Len(t, env.answerer.memories, 3)
	require.Len(t, env.answerer.memories[2], 2)
	assert.Equal(t, "second user", env.answerer.memories[2][0].Content)
}

func TestChat_MissingMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty message", `{"message":""}`},
		{"not json", `message=hi`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testIndex(t))

			rec := env.do(t, http.MethodPost, "/chat", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "No message provided", decode(t, rec)["error"])
			assert.Zero(t, env.answerer.calls())

			sum, err := env.recorder.Summary(context.Background())
			require.NoError(t, err)
			assert.Zero(t, sum.TotalQueries)
		})
	}
}

func TestChat_NoIndexLoaded(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/chat", `{"message":"hello"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec), "error")
	assert.Zero(t, env.answerer.calls())
}

func TestChat_ResponderFailure(t *testing.T) {
	env := newTestEnv(t, testIndex(t))
	env.answerer.err = &rag.ResponseError{Op: "generate", Err: errors.New("upstream unavailable")}

	rec := env.do(t, http.MethodPost, "/chat", `{"message":"hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "upstream unavailable")

	ctx := context.Background()
	log, err := env.sessions.Load(ctx, sessionCookie(t, rec).Value)
	require.NoError(t, err)
	assert.Empty(t, log.Turns)

	sum, err := env.recorder.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalQueries)
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	rec := env.do(t, http.MethodPost, "/feedback", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []string{`{"rating":0}`, `{"rating":6}`, `{"rating":-3}`} {
		rec = env.do(t, http.MethodPost, "/feedback", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, decode(t, rec)["error"], "between 1 and 5")
	}

	for _, body := range []string{`{"rating":4}`, `{"rating":5}`} {
		rec = env.do(t, http.MethodPost, "/feedback", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", decode(t, rec)["status"])
	}

	rec = env.do(t, http.MethodGet, "/analytics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, 4.5, got["avg_satisfaction"])
	assert.Equal(t, 0.0, got["total_queries"])
	assert.Len(t, got["intent_distribution"], 5)
}

func TestClear_WithoutSession(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	rec := env.do(t, http.MethodPost, "/clear", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode(t, rec)["status"])
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, testIndex(t))

	rec := env.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/chat")
	sessionCookie(t, rec)

	rec = env.do(t, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	got := decode(t, env.do(t, http.MethodGet, "/health", "", nil))
	assert.Equal(t, false, got["index_loaded"])

	env.server.Index.Swap(testIndex(t))
	got = decode(t, env.do(t, http.MethodGet, "/health", "", nil))
	assert.Equal(t, true, got["index_loaded"])
	assert.Equal(t, 1.0, got["index_records"])
}
