package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/application/query"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
	"github.com/schoolpulse/growth-analytics-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":          "Growth Analytics API",
		"version":       "v1",
		"description":   "Cross-cohort growth analytics for the school administration dashboard",
		"academic_year": timeutil.AcademicYearLabel(time.Now()),
		"current_term":  timeutil.TermLabelFor(time.Now()),
		"endpoints": map[string]string{
			"health":       "/health",
			"periods":      "/api/v1/growth/periods",
			"distribution": "/api/v1/growth/distribution",
			"scatter":      "/api/v1/growth/scatter",
			"heatmap":      "/api/v1/ability/heatmap",
		},
	}

	writeJSON(w, r, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
// Ready means the datastore answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pinger != nil {
		if err := s.deps.Pinger.Ping(r.Context()); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "datastore unreachable")
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// GROWTH ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// credential extracts the caller's API key. The query handlers own
// verification; the HTTP layer only transports the key.
func (s *Server) credential(r *http.Request) string {
	return r.Header.Get(s.config.APIKeyHeader)
}

// handleListGrowthPeriods serves GET /api/v1/growth/periods.
func (s *Server) handleListGrowthPeriods(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListGrowthPeriodsHandler.Handle(r.Context(), query.ListGrowthPeriodsQuery{
		Credential: s.credential(r),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetGrowthDistribution serves GET /api/v1/growth/distribution.
//
// Query parameters: from, to (term labels, required), min_grade, max_grade,
// course, overlay (bool).
func (s *Server) handleGetGrowthDistribution(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetGrowthDistributionHandler.Handle(r.Context(), query.GetGrowthDistributionQuery{
		Credential:         s.credential(r),
		FromTerm:           getQueryParam(r, "from", ""),
		ToTerm:             getQueryParam(r, "to", ""),
		MinGrade:           getQueryParamInt(r, "min_grade", 0),
		MaxGrade:           getQueryParamInt(r, "max_grade", 0),
		Course:             getQueryParam(r, "course", ""),
		IncludeNormOverlay: getQueryParamBool(r, "overlay"),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetGrowthScatter serves GET /api/v1/growth/scatter.
func (s *Server) handleGetGrowthScatter(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetGrowthScatterHandler.Handle(r.Context(), query.GetGrowthScatterQuery{
		Credential: s.credential(r),
		FromTerm:   getQueryParam(r, "from", ""),
		ToTerm:     getQueryParam(r, "to", ""),
		MinGrade:   getQueryParamInt(r, "min_grade", 0),
		MaxGrade:   getQueryParamInt(r, "max_grade", 0),
		Course:     getQueryParam(r, "course", ""),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetAbilityHeatmap serves GET /api/v1/ability/heatmap.
func (s *Server) handleGetAbilityHeatmap(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetAbilityHeatmapHandler.Handle(r.Context(), query.GetAbilityHeatmapQuery{
		Credential: s.credential(r),
		TermLabel:  getQueryParam(r, "term", ""),
		MinGrade:   getQueryParamInt(r, "min_grade", 0),
		MaxGrade:   getQueryParamInt(r, "max_grade", 0),
		Course:     getQueryParam(r, "course", ""),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// writeQueryError maps the error taxonomy onto HTTP statuses. "No data" is
// never an error and never reaches this path: empty cohorts return 200 with
// an empty payload from the handlers themselves.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsUnauthorized(err):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsStorageFault(err):
		s.logger.Error("datastore failure",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "storage_fault", "assessment datastore unavailable")
	default:
		s.logger.Error("unhandled query error",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATION WEBHOOK
// ══════════════════════════════════════════════════════════════════════════════

// invalidationRequest is the webhook payload posted by the roster and
// import subsystems after they mutate assessment data.
type invalidationRequest struct {
	// Scope selects what to clear: "all" or one of "periods",
	// "distribution", "scatter", "heatmap". Empty means "all".
	Scope string `json:"scope"`
}

// scopePrefixes maps webhook scopes to cache key prefixes.
var scopePrefixes = map[string]string{
	"periods":      cache.PrefixPeriods,
	"distribution": cache.PrefixDistribution,
	"scatter":      cache.PrefixScatter,
	"heatmap":      cache.PrefixHeatmap,
}

// handleCacheInvalidation serves POST /webhook/cache/invalidate.
func (s *Server) handleCacheInvalidation(w http.ResponseWriter, r *http.Request) {
	if !s.validWebhookSecret(r) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
		return
	}

	var req invalidationRequest
	if r.Body != nil {
		// An empty or absent body means a full clear.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	scope := strings.ToLower(strings.TrimSpace(req.Scope))
	var err error
	switch {
	case scope == "" || scope == "all":
		err = s.deps.ResultCache.Clear(r.Context())
	default:
		prefix, ok := scopePrefixes[scope]
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "unknown invalidation scope")
			return
		}
		err = s.deps.ResultCache.ClearByPrefix(r.Context(), prefix)
	}
	if err != nil {
		s.logger.Error("cache invalidation failed",
			logger.String("scope", scope),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "invalidation failed")
		return
	}

	s.logger.Info("result cache invalidated", logger.String("scope", scope))
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "invalidated", "scope": scope})
}

// validWebhookSecret checks the shared webhook secret in constant time.
func (s *Server) validWebhookSecret(r *http.Request) bool {
	if s.config.WebhookSecret == "" {
		return false
	}
	presented := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.config.WebhookSecret)) == 1
}
