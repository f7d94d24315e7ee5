// Package server exposes the support assistant over HTTP.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/intent"
	"github.com/ragdesk/ragdesk/internal/rag"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "ragdesk_session"

// Satisfaction ratings accepted by /feedback.
const (
	MinRating = 1
	MaxRating = 5
)

//go:embed static/index.html
var indexHTML []byte

// Sessions persists per-session turn logs. *conversation.Store implements it.
type Sessions interface {
	Load(ctx context.Context, id string) (*conversation.Log, error)
	AppendExchange(ctx context.Context, id, question, answer string) error
	Clear(ctx context.Context, id string) error
}

// Analytics records and reports usage. *analytics.Recorder implements it.
type Analytics interface {
	RecordQuery(ctx context.Context, intentName string, seconds float64) error
	RecordFeedback(ctx context.Context, rating int) error
	Summary(ctx context.Context) (analytics.Summary, error)
}

// Answerer produces answers. *rag.Responder implements it.
type Answerer interface {
	Respond(ctx context.Context, query string, memory conversation.Memory, idx rag.Retriever) (rag.Answer, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Responder Answerer
	Index     *index.Handle
	Sessions  Sessions
	Analytics Analytics
	Logger    *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	Deps
	addr          string
	sessionMaxAge time.Duration
}

// New creates a Server listening on addr. Sessions idle longer than
// sessionMaxAge lose their cookie; zero keeps it for the browser session.
func New(deps Deps, addr string, sessionMaxAge time.Duration) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Index == nil {
		deps.Index = index.NewHandle(nil)
	}
	return &Server{Deps: deps, addr: addr, sessionMaxAge: sessionMaxAge}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /feedback", s.handleFeedback)
	mux.HandleFunc("GET /analytics", s.handleAnalytics)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /health", s.handleHealth)
	return loggingMiddleware(s.Logger, mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("server starting", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

type chatRequest struct {
	Message string `json:"message"`
}

type sourceJSON struct {
	Content string `json:"content"`
}

type chatResponse struct {
	Response     string          `json:"response"`
	Intent       intent.Result   `json:"intent"`
	Entities     intent.Entities `json:"entities"`
	ResponseTime float64         `json:"response_time"`
	Sources      []sourceJSON    `json:"sources"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	idx := s.Index.Current()
	if idx == nil {
		writeError(w, http.StatusServiceUnavailable, "knowledge base index is not loaded")
		return
	}

	ctx := r.Context()
	id := s.session(w, r)
	log, err := s.Sessions.Load(ctx, id)
	if err != nil {
		s.fail(w, "load session", err)
		return
	}
	memory := conversation.BuildMemory(log.Turns)

	var (
		classified intent.Result
		entities   intent.Entities
		answer     rag.Answer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classified = intent.Classify(req.Message)
		entities = intent.ExtractEntities(req.Message)
		return nil
	})
	g.Go(func() error {
		var err error
		answer, err = s.Responder.Respond(gctx, req.Message, memory, idx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, "respond", err)
		return
	}

	elapsed := time.Since(start).Seconds()

	if err := s.Sessions.AppendExchange(ctx, id, req.Message, answer.Text); err != nil {
		s.fail(w, "save session", err)
		return
	}
	if err := s.Analytics.RecordQuery(ctx, classified.PrimaryIntent, elapsed); err != nil {
		s.fail(w, "record analytics", err)
		return
	}

	resp := chatResponse{
		Response:     answer.Text,
		Intent:       classified,
		Entities:     entities,
		ResponseTime: math.Round(elapsed*100) / 100,
		Sources:      make([]sourceJSON, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		resp.Sources[i] = sourceJSON{Content: src.Content}
	}
	writeJSON(w, http.StatusOK, resp)
}

type feedbackRequest struct {
	Rating *int `json:"rating"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rating == nil {
		writeError(w, http.StatusBadRequest, "No rating provided")
		return
	}
	if *req.Rating < MinRating || *req.Rating > MaxRating {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating))
		return
	}
	if err := s.Analytics.RecordFeedback(r.Context(), *req.Rating); err != nil {
		s.fail(w, "record feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Analytics.Summary(r.Context())
	if err != nil {
		s.fail(w, "summarize analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && conversation.ValidSessionID(c.Value) {
		if err := s.Sessions.Clear(r.Context(), c.Value); err != nil {
			s.fail(w, "clear session", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "index_loaded": false, "index_records": 0}
	if idx := s.Index.Current(); idx != nil {
		status["index_loaded"] = true
		status["index_records"] = idx.Len()
	}
	writeJSON(w, http.StatusOK, status)
}

// session returns the caller's session token, issuing a new cookie when
// the request carries none or an invalid one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && conversation.ValidSessionID(c.Value) {
		return c.Value
	}
	id := conversation.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.Logger.Error("request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
