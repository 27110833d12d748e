package mcpadapter

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

type recommenderFake struct {
	err      error
	property string
	topN     int
	weights  []float64
}

func (f *recommenderFake) Recommend(_ context.Context, property string, topN int, weights []float64) (*domain.Recommendation, error) {
	f.property, f.topN, f.weights = property, topN, weights
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{
		Target:  "Sector-1-A",
		Exact:   true,
		Results: []domain.ScoredProperty{{Rank: 1, Property: "Sector-1-B", Score: 0.9}},
	}, nil
}

type nearbyFake struct {
	err      error
	location string
	radiusKM float64
}

func (f *nearbyFake) Nearby(_ context.Context, location string, radiusKM float64) (*domain.NearbyResult, error) {
	f.location, f.radiusKM = location, radiusKM
	if f.err != nil {
		return nil, f.err
	}
	return &domain.NearbyResult{Location: "Downtown", RadiusKM: radiusKM, Results: []domain.NearbyProperty{}}, nil
}

type catalogFake struct{}

func (catalogFake) Describe(context.Context) (*domain.CatalogSummary, error) {
	return &domain.CatalogSummary{Properties: []string{"Sector-1-A"}, Size: 1}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestRecommendToolPassesArguments(t *testing.T) {
	rec := &recommenderFake{}
	srv := NewServer(rec, &nearbyFake{}, catalogFake{}, nil)

	result, err := srv.handleRecommend(context.Background(), callRequest(toolRecommend, map[string]any{
		"property": "Sector-1-A",
		"top_n":    float64(3),
		"weights":  []any{float64(1), float64(0), float64(0)},
	}))
	if err != nil {
		t.Fatalf("handleRecommend() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if rec.property != "Sector-1-A" || rec.topN != 3 || !reflect.DeepEqual(rec.weights, []float64{1, 0, 0}) {
		t.Fatalf("unexpected use case input: %+v", rec)
	}

	var decoded domain.Recommendation
	if err := json.Unmarshal([]byte(resultText(t, result)), &decoded); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Property != "Sector-1-B" {
		t.Fatalf("unexpected result: %+v", decoded)
	}
}

func TestRecommendToolWithoutWeightsUsesDefaults(t *testing.T) {
	rec := &recommenderFake{}
	srv := NewServer(rec, &nearbyFake{}, catalogFake{}, nil)

	if _, err := srv.handleRecommend(context.Background(), callRequest(toolRecommend, map[string]any{"property": "A"})); err != nil {
		t.Fatalf("handleRecommend() error = %v", err)
	}
	if rec.weights != nil || rec.topN != 0 {
		t.Fatalf("expected defaults, got topN=%d weights=%v", rec.topN, rec.weights)
	}
}

func TestRecommendToolRejectsBadArguments(t *testing.T) {
	srv := NewServer(&recommenderFake{}, &nearbyFake{}, catalogFake{}, nil)

	for _, args := range []map[string]any{
		{},
		{"property": "A", "weights": "30,20,8"},
		{"property": "A", "weights": []any{"heavy"}},
	} {
		result, err := srv.handleRecommend(context.Background(), callRequest(toolRecommend, args))
		if err != nil {
			t.Fatalf("handleRecommend() error = %v", err)
		}
		if !result.IsError {
			t.Fatalf("args %v: expected tool error result", args)
		}
	}
}

func TestNearbyToolReportsLookupFailureAsToolError(t *testing.T) {
	nearby := &nearbyFake{err: domain.WrapError(domain.ErrNotFound, "nearby", &domain.LookupError{Axis: "location", Requested: "Mall"})}
	srv := NewServer(&recommenderFake{}, nearby, catalogFake{}, nil)

	result, err := srv.handleNearby(context.Background(), callRequest(toolNearby, map[string]any{"location": "Mall", "radius_km": 2.5}))
	if err != nil {
		t.Fatalf("handleNearby() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error result")
	}
	if text := resultText(t, result); !strings.HasPrefix(text, "not_found:") || !strings.Contains(text, "Mall") {
		t.Fatalf("unexpected error text %q", text)
	}
	if nearby.radiusKM != 2.5 {
		t.Fatalf("expected radius 2.5, got %v", nearby.radiusKM)
	}
}

func TestDescribeToolReturnsSummary(t *testing.T) {
	srv := NewServer(&recommenderFake{}, &nearbyFake{}, catalogFake{}, nil)

	result, err := srv.handleDescribe(context.Background(), callRequest(toolCatalog, nil))
	if err != nil {
		t.Fatalf("handleDescribe() error = %v", err)
	}
	if !strings.Contains(resultText(t, result), `"Sector-1-A"`) {
		t.Fatalf("expected property list in result")
	}
}

func TestMCPServerBuilds(t *testing.T) {
	srv := NewServer(&recommenderFake{}, &nearbyFake{}, catalogFake{}, nil)
	if srv.MCPServer("test") == nil {
		t.Fatalf("expected server")
	}
	if floats, err := floatSlice(nil); err != nil || floats != nil {
		t.Fatalf("nil weights must stay nil, got %v %v", floats, err)
	}
	if _, err := floatSlice([]any{1}); err == nil {
		t.Fatalf("expected error for non-float element")
	}
}
