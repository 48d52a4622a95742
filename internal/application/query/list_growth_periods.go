package query

import (
	"context"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST GROWTH PERIODS QUERY
// Discovers the terms present in the datastore and derives the selectable
// growth periods. The dashboard's period picker is built from this result.
// ══════════════════════════════════════════════════════════════════════════════

// ListGrowthPeriodsQuery carries the caller's credential; period discovery
// takes no other parameters.
type ListGrowthPeriodsQuery struct {
	Credential string
}

// ListGrowthPeriodsResult is the period picker payload.
type ListGrowthPeriodsResult struct {
	// Terms lists the parseable term labels, most recent first.
	Terms []string `json:"terms"`

	// Periods lists every ordered (from, to) pair, most recent first.
	Periods []PeriodOptionDTO `json:"periods"`

	// GeneratedAt is when the result was computed (cache hits keep the
	// original timestamp).
	GeneratedAt time.Time `json:"generated_at"`
}

// ListGrowthPeriodsHandler handles period discovery.
type ListGrowthPeriodsHandler struct {
	authGate    Authenticator
	recordRepo  assessment.RecordRepository
	resultCache cache.ResultCache
	log         *logger.Logger
}

// NewListGrowthPeriodsHandler creates the period discovery handler.
func NewListGrowthPeriodsHandler(
	authGate Authenticator,
	recordRepo assessment.RecordRepository,
	resultCache cache.ResultCache,
	log *logger.Logger,
) *ListGrowthPeriodsHandler {
	return &ListGrowthPeriodsHandler{
		authGate:    authGate,
		recordRepo:  recordRepo,
		resultCache: resultCache,
		log:         log,
	}
}

// Handle runs period discovery.
func (h *ListGrowthPeriodsHandler) Handle(ctx context.Context, query ListGrowthPeriodsQuery) (*ListGrowthPeriodsResult, error) {
	if _, err := h.authGate.RequireAuthenticated(ctx, query.Credential); err != nil {
		return nil, err
	}

	key := cache.PeriodsKey()
	var cached ListGrowthPeriodsResult
	if hit, err := h.resultCache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	labels, err := h.recordRepo.ListTermLabels(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "ListGrowthPeriods", shared.ErrStorageFault, "term discovery failed", err)
	}

	terms := assessment.ParseTerms(labels)
	if dropped := len(labels) - len(terms); dropped > 0 {
		h.log.Warn("dropped malformed term labels during period discovery",
			logger.Int("dropped", dropped),
			logger.Int("total", len(labels)),
		)
	}

	result := h.buildResult(terms)

	if err := h.resultCache.Set(ctx, key, result); err != nil {
		h.log.Warn("failed to cache period discovery result", logger.CacheKey(key), logger.Err(err))
	}

	return result, nil
}

// buildResult derives every ordered term pair as a selectable period.
func (h *ListGrowthPeriodsHandler) buildResult(terms []assessment.Term) *ListGrowthPeriodsResult {
	assessment.SortTermsAscending(terms)

	var periods []PeriodOptionDTO
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			periods = append(periods, toPeriodDTO(assessment.NewGrowthPeriod(terms[i], terms[j])))
		}
	}

	// Most recent first: the picker defaults to the latest period.
	reversePeriods(periods)

	assessment.SortTermsDescending(terms)
	labels := make([]string, len(terms))
	for i, t := range terms {
		labels[i] = t.Label()
	}

	return &ListGrowthPeriodsResult{
		Terms:       labels,
		Periods:     periods,
		GeneratedAt: time.Now().UTC(),
	}
}

func reversePeriods(periods []PeriodOptionDTO) {
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}
}
