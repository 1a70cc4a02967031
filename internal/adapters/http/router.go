package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/regulation-hybrid-search/internal/config"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
	"github.com/kirillkom/regulation-hybrid-search/internal/observability/metrics"
)

const (
	serviceName     = "regsearch-api"
	maxRequestBytes = 1 << 20
)

type Router struct {
	cfg     config.Config
	search  ports.HybridSearchService
	health  ports.HealthReporter
	metrics *metrics.HTTPServerMetrics
}

// NewRouter accepts nil health and metrics; the corresponding endpoints then
// report unavailability or are not mounted.
func NewRouter(
	cfg config.Config,
	search ports.HybridSearchService,
	health ports.HealthReporter,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		search:  search,
		health:  health,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/hybrid-search", rt.hybridSearch)
	api.HandleFunc("POST /v1/query-expansion", rt.queryExpansion)
	api.HandleFunc("GET /v1/hybrid-search/health", rt.searchHealth)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureMaxWait, rt.onReject("backpressure"))
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject("rate_limit"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(slog.Default(), handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type hybridSearchRequest struct {
	Query                string   `json:"query"`
	MaxChunks            *int     `json:"max_chunks"`
	VectorWeight         *float64 `json:"vector_weight"`
	GraphWeight          *float64 `json:"graph_weight"`
	KeywordWeight        *float64 `json:"keyword_weight"`
	EnableQueryExpansion *bool    `json:"enable_query_expansion"`
	MaxRelatedNodes      *int     `json:"max_related_nodes"`
}

func (rt *Router) toFusionRequest(req hybridSearchRequest) domain.FusionRequest {
	return domain.FusionRequest{
		Query:                req.Query,
		MaxChunks:            valueOr(req.MaxChunks, rt.cfg.DefaultMaxChunks),
		VectorWeight:         valueOr(req.VectorWeight, rt.cfg.DefaultVectorWeight),
		GraphWeight:          valueOr(req.GraphWeight, rt.cfg.DefaultGraphWeight),
		KeywordWeight:        valueOr(req.KeywordWeight, rt.cfg.DefaultKeywordWeight),
		EnableQueryExpansion: valueOr(req.EnableQueryExpansion, true),
		MaxRelatedNodes:      valueOr(req.MaxRelatedNodes, rt.cfg.DefaultMaxRelatedNodes),
	}
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	var req hybridSearchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := rt.search.Search(r.Context(), rt.toFusionRequest(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type queryExpansionRequest struct {
	Query           string `json:"query"`
	MaxRelatedNodes *int   `json:"max_related_nodes"`
}

func (rt *Router) queryExpansion(w http.ResponseWriter, r *http.Request) {
	var req queryExpansionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	expanded, err := rt.search.ExpandQuery(r.Context(), req.Query, valueOr(req.MaxRelatedNodes, rt.cfg.DefaultMaxRelatedNodes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expanded)
}

func (rt *Router) searchHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health == nil {
		writeJSON(w, http.StatusServiceUnavailable, domain.HealthStatus{Error: "health reporter is not configured"})
		return
	}
	status := rt.health.Health(r.Context())
	code := http.StatusOK
	if !status.Initialized {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_response_encode_failed", "error", err)
	}
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
