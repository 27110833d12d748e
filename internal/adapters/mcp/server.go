// Package mcpadapter exposes the recommender use cases as MCP tools.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

const (
	toolRecommend = "recommend_apartments"
	toolNearby    = "nearby_apartments"
	toolCatalog   = "describe_catalog"
)

type Server struct {
	recommender ports.Recommender
	nearby      ports.NearbyFinder
	catalog     ports.CatalogReader
	logger      *slog.Logger
}

func NewServer(recommender ports.Recommender, nearby ports.NearbyFinder, catalog ports.CatalogReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		recommender: recommender,
		nearby:      nearby,
		catalog:     catalog,
		logger:      logger,
	}
}

// MCPServer builds the protocol server with every tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("apartment-recommender", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool(toolRecommend,
		mcp.WithDescription("Rank the apartments most similar to a given property using weighted similarity spaces."),
		mcp.WithString("property", mcp.Required(), mcp.Description("Property identifier; close misspellings are resolved")),
		mcp.WithNumber("top_n", mcp.Description("Number of results, defaults to 7"), mcp.Min(0)),
		mcp.WithArray("weights",
			mcp.Description("One non-negative weight per similarity space, in catalog order"),
			mcp.Items(map[string]any{"type": "number", "minimum": 0}),
		),
	), s.handleRecommend)

	srv.AddTool(mcp.NewTool(toolNearby,
		mcp.WithDescription("List apartments strictly within a radius of a landmark location, nearest first."),
		mcp.WithString("location", mcp.Required(), mcp.Description("Location name; close misspellings are resolved")),
		mcp.WithNumber("radius_km", mcp.Description("Radius in kilometers, defaults to 5"), mcp.Min(0)),
	), s.handleNearby)

	srv.AddTool(mcp.NewTool(toolCatalog,
		mcp.WithDescription("Describe the loaded catalog: properties, locations and similarity spaces with default weights."),
	), s.handleDescribe)

	return srv
}

// ServeStdio blocks serving the tools on stdin/stdout until ctx is done.
func (s *Server) ServeStdio(ctx context.Context, version string) error {
	stdio := server.NewStdioServer(s.MCPServer(version))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) handleRecommend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	property, err := req.RequireString("property")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weights, err := floatSlice(req.GetArguments()["weights"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.recommender.Recommend(ctx, property, req.GetInt("top_n", 0), weights)
	s.logCall(toolRecommend, start, err)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rec)
}

func (s *Server) handleNearby(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	location, err := req.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.nearby.Nearby(ctx, location, req.GetFloat("radius_km", 0))
	s.logCall(toolNearby, start, err)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleDescribe(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	summary, err := s.catalog.Describe(ctx)
	s.logCall(toolCatalog, start, err)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(summary)
}

func (s *Server) logCall(tool string, start time.Time, err error) {
	attrs := []any{
		"tool", tool,
		"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		s.logger.Warn("mcp_tool_call", append(attrs, "kind", domain.KindName(err), "error", err.Error())...)
		return
	}
	s.logger.Info("mcp_tool_call", attrs...)
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.KindName(err), err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// floatSlice accepts the decoded JSON array form of the weights argument.
func floatSlice(raw any) ([]float64, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("weights must be an array of numbers")
	}
	out := make([]float64, len(items))
	for i, item := range items {
		v, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("weights[%d] must be a number", i)
		}
		out[i] = v
	}
	return out, nil
}
