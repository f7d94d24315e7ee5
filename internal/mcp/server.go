// Package mcp exposes the knowledge base and classifiers as MCP tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/index"
)

// DefaultTopK is the search depth when a caller omits top_k.
const DefaultTopK = 3

// Summarizer reports analytics. *analytics.Recorder implements it.
type Summarizer interface {
	Summary(ctx context.Context) (analytics.Summary, error)
}

// Counter reports session totals. *conversation.Store implements it.
type Counter interface {
	Count(ctx context.Context) (conversation.Stats, error)
}

// Server holds what the tool handlers read from.
type Server struct {
	index     *index.Handle
	analytics Summarizer
	sessions  Counter
	version   string
}

// NewServer creates a tool server. sessions may be nil.
func NewServer(idx *index.Handle, summarizer Summarizer, sessions Counter, version string) *Server {
	return &Server{index: idx, analytics: summarizer, sessions: sessions, version: version}
}

// MCPServer builds the protocol server with every tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("ragdesk", s.version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("search_knowledge_base",
		mcp.WithDescription("Search the support knowledge base for passages relevant to a question."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The customer question or search text")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to return (default 3)")),
	), s.handleSearch)

	srv.AddTool(mcp.NewTool("classify_query",
		mcp.WithDescription("Classify a customer message into billing, technical, account, complaints or general."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The customer message")),
	), s.handleClassify)

	srv.AddTool(mcp.NewTool("extract_entities",
		mcp.WithDescription("Extract account numbers, dates, emails and product names from a customer message."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The customer message")),
	), s.handleExtract)

	srv.AddTool(mcp.NewTool("get_analytics",
		mcp.WithDescription("Report query volume, response times, satisfaction and intent distribution."),
	), s.handleAnalytics)

	return srv
}

// ServeStdio serves tools on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}
