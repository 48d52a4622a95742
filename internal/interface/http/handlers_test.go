package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/growth-analytics-hub/internal/application/query"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/norms"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/auth"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type stubAuth struct{}

func (stubAuth) RequireAuthenticated(_ context.Context, credential string) (auth.CallerIdentity, error) {
	if credential != "good-key" {
		return auth.CallerIdentity{}, shared.ErrInvalidCredential
	}
	return auth.CallerIdentity{CallerID: uuid.New(), Name: "dashboard"}, nil
}

type stubRepo struct {
	records []assessment.Record
	labels  []string
	err     error
}

func (s *stubRepo) FetchRecords(context.Context, assessment.RecordFilter) ([]assessment.Record, error) {
	return s.records, s.err
}

func (s *stubRepo) ListTermLabels(context.Context) ([]string, error) {
	return s.labels, s.err
}

type emptyNormSource struct{}

func (emptyNormSource) GetNorm(context.Context, string, assessment.Grade, assessment.Season, assessment.Course) (norms.Baseline, bool, error) {
	return norms.Baseline{}, false, nil
}

func newTestServer(t *testing.T, repo *stubRepo) (*Server, cache.ResultCache) {
	t.Helper()

	opts := logger.DefaultOptions()
	opts.Level = logger.LevelFatal
	log := logger.New(opts)

	resultCache := cache.NewMemoryCache(cache.DefaultTTL)
	gate := stubAuth{}

	config := DefaultConfig()
	config.RateLimitPerMinute = 0
	config.WebhookSecret = "hook-secret"

	server := NewServer(config, Dependencies{
		ListGrowthPeriodsHandler:     query.NewListGrowthPeriodsHandler(gate, repo, resultCache, log),
		GetGrowthDistributionHandler: query.NewGetGrowthDistributionHandler(gate, repo, norms.NewComposer(emptyNormSource{}), resultCache, log),
		GetGrowthScatterHandler:      query.NewGetGrowthScatterHandler(gate, repo, resultCache, log),
		GetAbilityHeatmapHandler:     query.NewGetAbilityHeatmapHandler(gate, repo, resultCache, log),
		ResultCache:                  resultCache,
		Logger:                       log,
	})
	return server, resultCache
}

func doRequest(server *Server, method, target, apiKey string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func TestUnauthorizedMapsTo401(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	rec := doRequest(server, http.MethodGet, "/api/v1/growth/periods", "bad-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/v1/growth/periods", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidationMapsTo400(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	rec := doRequest(server, http.MethodGet, "/api/v1/growth/distribution?from=garbage&to=also-garbage", "good-key", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageFaultMapsTo502(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{err: shared.ErrRecordFetchFailed})

	rec := doRequest(server, http.MethodGet, "/api/v1/growth/periods", "good-key", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEmptyCohortMapsTo200(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	rec := doRequest(server, http.MethodGet,
		"/api/v1/growth/distribution?from=Fall+2024-2025&to=Spring+2024-2025", "good-key", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	rec := doRequest(server, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// ══════════════════════════════════════════════════════════════════════════════
// INVALIDATION WEBHOOK
// ══════════════════════════════════════════════════════════════════════════════

func TestCacheInvalidationWebhook(t *testing.T) {
	server, resultCache := newTestServer(t, &stubRepo{})
	ctx := context.Background()

	require.NoError(t, resultCache.Set(ctx, cache.PeriodsKey(), "cached"))
	require.NoError(t, resultCache.Set(ctx, cache.PrefixHeatmap+"x", "cached"))

	req := httptest.NewRequest(http.MethodPost, "/webhook/cache/invalidate", strings.NewReader(`{"scope":"heatmap"}`))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Only the heatmap family was cleared.
	has, err := resultCache.Has(ctx, cache.PrefixHeatmap+"x")
	require.NoError(t, err)
	assert.False(t, has)
	has, err = resultCache.Has(ctx, cache.PeriodsKey())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCacheInvalidationRequiresSecret(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/cache/invalidate", strings.NewReader(`{"scope":"all"}`))
	req.Header.Set("X-Webhook-Secret", "wrong")
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCacheInvalidationRejectsUnknownScope(t *testing.T) {
	server, _ := newTestServer(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/cache/invalidate", strings.NewReader(`{"scope":"everything"}`))
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
