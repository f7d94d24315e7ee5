package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ragdesk/ragdesk/internal/export"
	"github.com/ragdesk/ragdesk/internal/intent"
)

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	topK := req.GetInt("top_k", DefaultTopK)
	if topK <= 0 {
		topK = DefaultTopK
	}

	idx := s.index.Current()
	if idx == nil {
		return mcp.NewToolResultError("knowledge base index is not loaded; run `ragdesk ingest` first"), nil
	}

	results, err := idx.Query(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s (%s, score %.3f)\n\n%s\n\n", i+1, r.Chunk.SourceID, r.Chunk.Category, r.Score, r.Chunk.Text)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleClassify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	return jsonResult(intent.Classify(query))
}

func (s *Server) handleExtract(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	return jsonResult(intent.ExtractEntities(query))
}

func (s *Server) handleAnalytics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.analytics.Summary(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read analytics: %v", err)), nil
	}

	data := export.ReportData{Summary: sum, GeneratedAt: time.Now()}
	if s.sessions != nil {
		if stats, err := s.sessions.Count(ctx); err == nil {
			data.Sessions = stats
		}
	}
	if idx := s.index.Current(); idx != nil {
		data.IndexRecords = idx.Len()
	}

	exp, _ := export.Get("markdown")
	out, err := exp.Export(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render analytics: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
