// Package mcpadapter exposes retrieval as MCP tools for agent runtimes.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/hybrid-retrieval/internal/adapters/dto"
	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
	"github.com/kirillkom/hybrid-retrieval/internal/core/ports"
)

const (
	serverName    = "hybrid-retrieval"
	serverVersion = "0.1.0"

	toolSearch  = "hybrid_search"
	toolRelated = "related_documents"
	toolStats   = "corpus_stats"
)

type Server struct {
	searcher ports.HybridSearcher
	related  ports.RelatedRecommender
	stats    ports.CorpusStatsReader

	searchDefaults  domain.SearchOptions
	relatedDefaults domain.SearchOptions
	logger          *slog.Logger

	mcp *server.MCPServer
}

func NewServer(
	searchDefaults, relatedDefaults domain.SearchOptions,
	searcher ports.HybridSearcher,
	related ports.RelatedRecommender,
	stats ports.CorpusStatsReader,
	logger *slog.Logger,
) (*Server, error) {
	if searcher == nil || related == nil || stats == nil {
		return nil, errors.New("mcp server: search, related and stats services are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher:        searcher,
		related:         related,
		stats:           stats,
		searchDefaults:  searchDefaults,
		relatedDefaults: relatedDefaults,
		logger:          logger,
		mcp:             server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	searchOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Hybrid semantic and keyword search over document chunks. Returns fused, ranked chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or keyword query")),
	}, filterParams()...)
	s.mcp.AddTool(mcp.NewTool(toolSearch, searchOpts...), s.handleSearch)

	relatedOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Recommend other documents similar to the given document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Anchor document id")),
	}, filterParams()...)
	s.mcp.AddTool(mcp.NewTool(toolRelated, relatedOpts...), s.handleRelated)

	s.mcp.AddTool(mcp.NewTool(toolStats,
		mcp.WithDescription("Count documents and chunks in the corpus."),
		mcp.WithString("project_scope", mcp.Description("Restrict counts to a project scope")),
	), s.handleStats)
}

func filterParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("project_scope", mcp.Description("Restrict results to a project scope")),
		mcp.WithNumber("similarity_threshold", mcp.Description("Minimum similarity in [0,1]")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results")),
		mcp.WithArray("document_types",
			mcp.Description("Allowed document types"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("date_from", mcp.Description("Earliest creation date, RFC3339 or YYYY-MM-DD")),
		mcp.WithString("date_to", mcp.Description("Latest creation date, RFC3339 or YYYY-MM-DD")),
	}
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	filters, err := filtersFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.searcher.Search(ctx, stringArg(args, "query"), filters.Options(s.searchDefaults))
	if err != nil {
		return s.toolError(toolSearch, err), nil
	}
	return jsonResult(dto.NewResultsResponse(results))
}

func (s *Server) handleRelated(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	filters, err := filtersFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.related.Related(ctx, stringArg(args, "document_id"), filters.Options(s.relatedDefaults))
	if err != nil {
		return s.toolError(toolRelated, err), nil
	}
	return jsonResult(dto.NewResultsResponse(results))
}

func (s *Server) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.stats.Stats(ctx, stringArg(req.GetArguments(), "project_scope"))
	if err != nil {
		return s.toolError(toolStats, err), nil
	}
	return jsonResult(stats)
}

// toolError reports failures as tool results so the calling agent can react to them.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	kind := dto.ErrorKind(err)
	if kind != "invalid_input" {
		s.logger.Error("mcp_tool_failed", "tool", tool, "kind", kind, "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// filtersFromArgs only sets fields present in args so missing ones fall back to defaults.
func filtersFromArgs(args map[string]any) (dto.Filters, error) {
	f := dto.Filters{ProjectScope: stringArg(args, "project_scope")}

	if v, ok := args["similarity_threshold"]; ok && v != nil {
		threshold, ok := v.(float64)
		if !ok {
			return dto.Filters{}, errors.New("similarity_threshold must be a number")
		}
		f.SimilarityThreshold = &threshold
	}
	if v, ok := args["max_results"]; ok && v != nil {
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) {
			return dto.Filters{}, errors.New("max_results must be an integer")
		}
		if math.Abs(n) > math.MaxInt32 {
			return dto.Filters{}, errors.New("max_results is out of range")
		}
		limit := int(n)
		f.MaxResults = &limit
	}
	if v, ok := args["document_types"]; ok && v != nil {
		items, ok := v.([]any)
		if !ok {
			return dto.Filters{}, errors.New("document_types must be an array of strings")
		}
		for _, item := range items {
			t, ok := item.(string)
			if !ok {
				return dto.Filters{}, errors.New("document_types must be an array of strings")
			}
			f.DocumentTypes = append(f.DocumentTypes, t)
		}
	}

	var err error
	if f.DateFrom, err = timeArg(args, "date_from", false); err != nil {
		return dto.Filters{}, err
	}
	if f.DateTo, err = timeArg(args, "date_to", true); err != nil {
		return dto.Filters{}, err
	}
	return f, nil
}

func timeArg(args map[string]any, key string, upper bool) (*time.Time, error) {
	v := stringArg(args, key)
	if v == "" {
		return nil, nil
	}
	ts, err := dto.ParseDateBound(v, upper)
	if err != nil {
		return nil, fmt.Errorf("%s %w", key, err)
	}
	return &ts, nil
}
