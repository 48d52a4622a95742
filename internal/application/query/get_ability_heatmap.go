package query

import (
	"context"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/growth"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ABILITY HEATMAP QUERY
// A grade × score-range grid of ability scores for a single term, the
// dashboard's at-a-glance view of where each grade's cohort sits.
// ══════════════════════════════════════════════════════════════════════════════

// The heatmap grid is fixed: 10-point buckets over the score range the
// assessments report in. Fixed geometry keeps grids comparable across terms
// and keeps the cache key independent of presentation.
const (
	heatmapBucketWidth = 10.0
	heatmapMinScore    = 140.0
	heatmapMaxScore    = 260.0
)

// GetAbilityHeatmapQuery filters one heatmap aggregation.
type GetAbilityHeatmapQuery struct {
	Credential string

	// TermLabel selects the single term to grid. Must parse.
	TermLabel string

	MinGrade int
	MaxGrade int

	// Course restricts to one course; empty includes both.
	Course string
}

// GetAbilityHeatmapResult is the heatmap payload.
type GetAbilityHeatmapResult struct {
	TermLabel string                `json:"term_label"`
	Heatmap   growth.AbilityHeatmap `json:"heatmap"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetAbilityHeatmapHandler handles heatmap requests.
type GetAbilityHeatmapHandler struct {
	authGate    Authenticator
	recordRepo  assessment.RecordRepository
	resultCache cache.ResultCache
	log         *logger.Logger
}

// NewGetAbilityHeatmapHandler creates the heatmap handler.
func NewGetAbilityHeatmapHandler(
	authGate Authenticator,
	recordRepo assessment.RecordRepository,
	resultCache cache.ResultCache,
	log *logger.Logger,
) *GetAbilityHeatmapHandler {
	return &GetAbilityHeatmapHandler{
		authGate:    authGate,
		recordRepo:  recordRepo,
		resultCache: resultCache,
		log:         log,
	}
}

// Handle runs the heatmap aggregation.
func (h *GetAbilityHeatmapHandler) Handle(ctx context.Context, query GetAbilityHeatmapQuery) (*GetAbilityHeatmapResult, error) {
	if _, err := h.authGate.RequireAuthenticated(ctx, query.Credential); err != nil {
		return nil, err
	}

	term, ok := assessment.ParseTerm(query.TermLabel)
	if !ok {
		return nil, shared.ErrInvalidTermLabel
	}
	minGrade, maxGrade, err := resolveGradeRange(query.MinGrade, query.MaxGrade)
	if err != nil {
		return nil, err
	}
	course, err := resolveCourse(query.Course)
	if err != nil {
		return nil, err
	}

	key := cache.HeatmapKey(term.Label(), minGrade, maxGrade, course)

	var cached GetAbilityHeatmapResult
	if hit, err := h.resultCache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	records, err := h.recordRepo.FetchRecords(ctx, assessment.RecordFilter{
		TermLabels: []string{term.Label()},
		MinGrade:   minGrade,
		MaxGrade:   maxGrade,
		Course:     course,
	})
	if err != nil {
		return nil, shared.WrapError("query", "GetAbilityHeatmap", shared.ErrStorageFault, "record fetch failed", err)
	}

	result := &GetAbilityHeatmapResult{
		TermLabel:   term.Label(),
		Heatmap:     buildHeatmap(records),
		GeneratedAt: time.Now().UTC(),
	}

	if err := h.resultCache.Set(ctx, key, result); err != nil {
		h.log.Warn("failed to cache heatmap result", logger.CacheKey(key), logger.Err(err))
	}

	return result, nil
}

// buildHeatmap grids active students' scores by grade. A student tested in
// both courses contributes both scores to their grade's row.
func buildHeatmap(records []assessment.Record) growth.AbilityHeatmap {
	scores := make(map[assessment.Grade][]float64)
	for _, rec := range records {
		if !rec.StudentActive {
			continue
		}
		scores[rec.Grade] = append(scores[rec.Grade], rec.AbilityScore)
	}

	return growth.BucketAbility(scores, heatmapBucketWidth, heatmapMinScore, heatmapMaxScore)
}
