package query

import (
	"context"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/growth"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
	"github.com/schoolpulse/growth-analytics-hub/pkg/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROWTH SCATTER QUERY
// One point per matched student: starting ability against measured growth,
// with the Pearson correlation and least-squares trend line ready to draw.
// ══════════════════════════════════════════════════════════════════════════════

// GetGrowthScatterQuery filters one scatter aggregation.
type GetGrowthScatterQuery struct {
	Credential string

	FromTerm string
	ToTerm   string

	MinGrade int
	MaxGrade int

	Course string
}

// ScatterPointDTO is one student's (starting ability, growth) point.
type ScatterPointDTO struct {
	StudentKey string  `json:"student_key"`
	StartGrade int     `json:"start_grade"`
	StartScore float64 `json:"start_score"`
	Growth     float64 `json:"growth"`
}

// RegressionDTO is the trend line and its strength. With fewer than two
// points, or a flat axis, slope and correlation degrade to 0 and the
// intercept to the mean growth.
type RegressionDTO struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	Correlation float64 `json:"correlation"`
}

// GetGrowthScatterResult is the scatter payload.
type GetGrowthScatterResult struct {
	Period     PeriodOptionDTO   `json:"period"`
	Points     []ScatterPointDTO `json:"points"`
	Regression RegressionDTO     `json:"regression"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetGrowthScatterHandler handles scatter requests.
type GetGrowthScatterHandler struct {
	authGate    Authenticator
	recordRepo  assessment.RecordRepository
	resultCache cache.ResultCache
	log         *logger.Logger
}

// NewGetGrowthScatterHandler creates the scatter handler.
func NewGetGrowthScatterHandler(
	authGate Authenticator,
	recordRepo assessment.RecordRepository,
	resultCache cache.ResultCache,
	log *logger.Logger,
) *GetGrowthScatterHandler {
	return &GetGrowthScatterHandler{
		authGate:    authGate,
		recordRepo:  recordRepo,
		resultCache: resultCache,
		log:         log,
	}
}

// Handle runs the scatter aggregation.
func (h *GetGrowthScatterHandler) Handle(ctx context.Context, query GetGrowthScatterQuery) (*GetGrowthScatterResult, error) {
	if _, err := h.authGate.RequireAuthenticated(ctx, query.Credential); err != nil {
		return nil, err
	}

	filter, err := resolveCohortFilter(query.FromTerm, query.ToTerm, query.MinGrade, query.MaxGrade, query.Course)
	if err != nil {
		return nil, err
	}

	key := cache.ScatterKey(filter.period.From.Label(), filter.period.To.Label(),
		filter.minGrade, filter.maxGrade, filter.course)

	var cached GetGrowthScatterResult
	if hit, err := h.resultCache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	observations, err := fetchObservations(ctx, h.recordRepo, filter)
	if err != nil {
		return nil, err
	}

	result := h.buildResult(filter.period, observations)

	if err := h.resultCache.Set(ctx, key, result); err != nil {
		h.log.Warn("failed to cache scatter result", logger.CacheKey(key), logger.Err(err))
	}

	return result, nil
}

// buildResult converts observations to points and fits the trend line over
// (starting ability, growth).
func (h *GetGrowthScatterHandler) buildResult(period assessment.GrowthPeriod, observations []growth.Observation) *GetGrowthScatterResult {
	points := make([]ScatterPointDTO, len(observations))
	for i, obs := range observations {
		points[i] = ScatterPointDTO{
			StudentKey: obs.StudentKey,
			StartGrade: obs.StartGrade.Int(),
			StartScore: obs.AverageStart,
			Growth:     obs.AverageGrowth,
		}
	}

	xs := growth.StartValues(observations)
	ys := growth.GrowthValues(observations)
	line := stats.LinearRegression(xs, ys)

	return &GetGrowthScatterResult{
		Period: toPeriodDTO(period),
		Points: points,
		Regression: RegressionDTO{
			Slope:       line.Slope,
			Intercept:   line.Intercept,
			Correlation: stats.PearsonCorrelation(xs, ys),
		},
		GeneratedAt: time.Now().UTC(),
	}
}
