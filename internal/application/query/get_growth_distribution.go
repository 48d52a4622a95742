package query

import (
	"context"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/growth"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/norms"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
	"github.com/schoolpulse/growth-analytics-hub/pkg/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROWTH DISTRIBUTION QUERY
// Buckets the matched cohort's growth into the six fixed ranges, computes
// summary statistics, and optionally attaches the norm comparison overlay.
// ══════════════════════════════════════════════════════════════════════════════

// normOverlaySpread bounds the sampled overlay at mean ± 4 standard
// deviations, wide enough that the curve visually reaches zero.
const normOverlaySpread = 4.0

// normOverlayPoints is the sample resolution of the overlay curve.
const normOverlayPoints = 60

// GetGrowthDistributionQuery filters one growth-distribution aggregation.
type GetGrowthDistributionQuery struct {
	Credential string

	// FromTerm and ToTerm are the period's term labels. Both must parse.
	FromTerm string
	ToTerm   string

	// MinGrade and MaxGrade bound the cohort (0 = open side).
	MinGrade int
	MaxGrade int

	// Course restricts to one course; empty averages both.
	Course string

	// IncludeNormOverlay attaches the composed norm curve when available.
	IncludeNormOverlay bool
}

// GrowthSummaryDTO is the headline statistics of the matched cohort.
type GrowthSummaryDTO struct {
	ObservationCount int     `json:"observation_count"`
	MeanGrowth       float64 `json:"mean_growth"`
	StdDevGrowth     float64 `json:"std_dev_growth"`
}

// NormOverlayDTO is the composed comparison baseline with its curve.
type NormOverlayDTO struct {
	Baseline norms.Baseline        `json:"baseline"`
	PerGrade []norms.GradeBaseline `json:"per_grade"`
	Curve    []stats.CurvePoint    `json:"curve"`
}

// GetGrowthDistributionResult is the distribution payload.
type GetGrowthDistributionResult struct {
	Period  PeriodOptionDTO             `json:"period"`
	Buckets []growth.DistributionBucket `json:"buckets"`
	Summary GrowthSummaryDTO            `json:"summary"`

	// NormOverlay is nil when not requested, when the cohort is empty, or
	// when no observed grade has a norm entry.
	NormOverlay *NormOverlayDTO `json:"norm_overlay,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetGrowthDistributionHandler handles growth-distribution requests.
type GetGrowthDistributionHandler struct {
	authGate    Authenticator
	recordRepo  assessment.RecordRepository
	composer    *norms.Composer
	resultCache cache.ResultCache
	log         *logger.Logger
}

// NewGetGrowthDistributionHandler creates the distribution handler.
func NewGetGrowthDistributionHandler(
	authGate Authenticator,
	recordRepo assessment.RecordRepository,
	composer *norms.Composer,
	resultCache cache.ResultCache,
	log *logger.Logger,
) *GetGrowthDistributionHandler {
	return &GetGrowthDistributionHandler{
		authGate:    authGate,
		recordRepo:  recordRepo,
		composer:    composer,
		resultCache: resultCache,
		log:         log,
	}
}

// Handle runs the distribution aggregation.
func (h *GetGrowthDistributionHandler) Handle(ctx context.Context, query GetGrowthDistributionQuery) (*GetGrowthDistributionResult, error) {
	if _, err := h.authGate.RequireAuthenticated(ctx, query.Credential); err != nil {
		return nil, err
	}

	filter, err := resolveCohortFilter(query.FromTerm, query.ToTerm, query.MinGrade, query.MaxGrade, query.Course)
	if err != nil {
		return nil, err
	}

	key := cache.DistributionKey(filter.period.From.Label(), filter.period.To.Label(),
		filter.minGrade, filter.maxGrade, filter.course)
	if query.IncludeNormOverlay {
		key += "|overlay"
	}

	var cached GetGrowthDistributionResult
	if hit, err := h.resultCache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	observations, err := fetchObservations(ctx, h.recordRepo, filter)
	if err != nil {
		return nil, err
	}

	result := &GetGrowthDistributionResult{
		Period:      toPeriodDTO(filter.period),
		Buckets:     growth.BucketGrowth(observations),
		Summary:     summarize(observations),
		GeneratedAt: time.Now().UTC(),
	}

	if query.IncludeNormOverlay && len(observations) > 0 {
		overlay, err := h.composeOverlay(ctx, filter, observations)
		if err != nil {
			return nil, err
		}
		result.NormOverlay = overlay
	}

	if err := h.resultCache.Set(ctx, key, result); err != nil {
		h.log.Warn("failed to cache distribution result", logger.CacheKey(key), logger.Err(err))
	}

	return result, nil
}

// composeOverlay builds the norm comparison curve for the observed cohort.
// A missing norm table entry is an absence: the overlay is simply omitted.
func (h *GetGrowthDistributionHandler) composeOverlay(ctx context.Context, filter cohortFilter, observations []growth.Observation) (*NormOverlayDTO, error) {
	counts := gradeCounts(observations)

	composed, ok, err := h.composer.GrowthBaseline(ctx, filter.period, counts, filter.course)
	if err != nil {
		return nil, err
	}
	if !ok {
		h.log.Warn("no norm entries for observed grades",
			logger.TermLabel(filter.period.From.Label()),
			logger.CourseName(filter.course.String()),
		)
		return nil, nil
	}

	spread := normOverlaySpread * composed.Baseline.StdDev
	curve := composed.OverlayCurve(
		composed.Baseline.Mean-spread,
		composed.Baseline.Mean+spread,
		growth.GrowthBucketWidth,
		normOverlayPoints,
	)

	return &NormOverlayDTO{
		Baseline: composed.Baseline,
		PerGrade: composed.PerGrade,
		Curve:    curve,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED COHORT HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// fetchObservations loads the period's records and pairs them into growth
// observations. An empty cohort is a normal outcome.
func fetchObservations(ctx context.Context, repo assessment.RecordRepository, filter cohortFilter) ([]growth.Observation, error) {
	records, err := repo.FetchRecords(ctx, assessment.RecordFilter{
		TermLabels: []string{filter.period.From.Label(), filter.period.To.Label()},
		MinGrade:   filter.minGrade,
		MaxGrade:   filter.maxGrade,
		Course:     filter.course,
	})
	if err != nil {
		return nil, shared.WrapError("query", "FetchObservations", shared.ErrStorageFault, "record fetch failed", err)
	}

	return growth.BuildObservations(records, filter.period.From, filter.period.To), nil
}

// summarize computes the headline statistics over average growth.
func summarize(observations []growth.Observation) GrowthSummaryDTO {
	values := growth.GrowthValues(observations)
	return GrowthSummaryDTO{
		ObservationCount: len(observations),
		MeanGrowth:       stats.Mean(values),
		StdDevGrowth:     stats.SampleStdDev(values),
	}
}

// gradeCounts tallies observations per starting grade, the weights for
// cross-grade norm composition.
func gradeCounts(observations []growth.Observation) map[assessment.Grade]int {
	counts := make(map[assessment.Grade]int)
	for _, obs := range observations {
		counts[obs.StartGrade]++
	}
	return counts
}
