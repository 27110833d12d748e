package httpadapter

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kirillkom/apartment-recommender/internal/config"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
	"github.com/kirillkom/apartment-recommender/internal/observability/metrics"
)

const (
	serviceName  = "api"
	maxBodyBytes = 1 << 20
)

// Readiness reports whether the catalog has been loaded.
type Readiness interface {
	Ready() bool
}

type Router struct {
	cfg         config.Config
	recommender ports.Recommender
	nearby      ports.NearbyFinder
	catalog     ports.CatalogReader
	readiness   Readiness
	metrics     *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	recommender ports.Recommender,
	nearby ports.NearbyFinder,
	catalog ports.CatalogReader,
	readiness Readiness,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:         cfg,
		recommender: recommender,
		nearby:      nearby,
		catalog:     catalog,
		readiness:   readiness,
		metrics:     httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("GET /v1/catalog", rt.describeCatalog)
	mux.HandleFunc("POST /v1/recommendations", rt.recommend)
	mux.HandleFunc("POST /v1/nearby", rt.nearbyQuery)
	mux.HandleFunc("GET /v1/properties/{name}/similar", rt.similarProperties)
	mux.HandleFunc("GET /v1/locations/{name}/nearby", rt.locationNearby)

	var handler http.Handler = mux
	handler = openAPIValidationMiddleware(handler)
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	if rt.readiness != nil && !rt.readiness.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) describeCatalog(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.catalog.Describe(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string    `json:"property"`
		TopN     int       `json:"top_n"`
		Weights  []float64 `json:"weights"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: "invalid_input"})
		return
	}
	rt.serveRecommendation(w, r, "recommendations", req.Property, req.TopN, req.Weights)
}

func (rt *Router) similarProperties(w http.ResponseWriter, r *http.Request) {
	topN := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("top_n")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "top_n must be an integer", Kind: "invalid_input"})
			return
		}
		topN = parsed
	}
	rt.serveRecommendation(w, r, "similar", r.PathValue("name"), topN, nil)
}

func (rt *Router) serveRecommendation(w http.ResponseWriter, r *http.Request, endpoint, property string, topN int, weights []float64) {
	start := time.Now()
	rec, err := rt.recommender.Recommend(r.Context(), property, topN, weights)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRecommendation(serviceName, endpoint, rec.Exact, len(rec.Results), time.Since(start))
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) nearbyQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string  `json:"location"`
		RadiusKM float64 `json:"radius_km"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: "invalid_input"})
		return
	}
	rt.serveNearby(w, r, "nearby", req.Location, req.RadiusKM)
}

func (rt *Router) locationNearby(w http.ResponseWriter, r *http.Request) {
	radiusKM := 0.0
	if raw := strings.TrimSpace(r.URL.Query().Get("radius_km")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "radius_km must be a number", Kind: "invalid_input"})
			return
		}
		radiusKM = parsed
	}
	rt.serveNearby(w, r, "location_nearby", r.PathValue("name"), radiusKM)
}

func (rt *Router) serveNearby(w http.ResponseWriter, r *http.Request, endpoint, location string, radiusKM float64) {
	start := time.Now()
	result, err := rt.nearby.Nearby(r.Context(), location, radiusKM)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordNearby(serviceName, endpoint, result.Exact, len(result.Results), time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeJSON encodes before committing the status so an unencodable payload
// turns into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("response_encode_failed", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response", Kind: "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
