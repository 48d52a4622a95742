// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
//
// Every handler runs the same pipeline: authenticate the caller, check the
// result cache, fetch raw records, compute, cache the result. "No data" is a
// renderable empty result, never an error.
package query

import (
	"context"
	"fmt"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator gates every entry point before any computation runs.
type Authenticator interface {
	RequireAuthenticated(ctx context.Context, credential string) (auth.CallerIdentity, error)
}

// PeriodOptionDTO is a selectable growth period.
type PeriodOptionDTO struct {
	// From and To are the period's term labels.
	From string `json:"from"`
	To   string `json:"to"`

	// Label is the display form, e.g. "Fall 2024-2025 to Spring 2024-2025".
	Label string `json:"label"`

	// PeriodType is derived from the two seasons, never chosen by callers.
	PeriodType string `json:"period_type"`
}

func toPeriodDTO(p assessment.GrowthPeriod) PeriodOptionDTO {
	return PeriodOptionDTO{
		From:       p.From.Label(),
		To:         p.To.Label(),
		Label:      p.Label(),
		PeriodType: string(p.Type),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED FILTER VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// cohortFilter is the validated common filter of the growth queries.
type cohortFilter struct {
	period   assessment.GrowthPeriod
	minGrade assessment.Grade
	maxGrade assessment.Grade
	course   assessment.Course
}

// resolveCohortFilter validates the raw request filter. Requested term
// labels must parse; unlike datastore labels there is no tolerant fallback
// for caller input.
func resolveCohortFilter(fromLabel, toLabel string, minGrade, maxGrade int, course string) (cohortFilter, error) {
	from, ok := assessment.ParseTerm(fromLabel)
	if !ok {
		return cohortFilter{}, shared.ErrInvalidTermLabel
	}
	to, ok := assessment.ParseTerm(toLabel)
	if !ok {
		return cohortFilter{}, shared.ErrInvalidTermLabel
	}
	if !from.Before(to) {
		return cohortFilter{}, shared.NewDomainError("query", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("from-term %q must precede to-term %q", fromLabel, toLabel))
	}

	lo, hi, err := resolveGradeRange(minGrade, maxGrade)
	if err != nil {
		return cohortFilter{}, err
	}

	c, err := resolveCourse(course)
	if err != nil {
		return cohortFilter{}, err
	}

	return cohortFilter{
		period:   assessment.NewGrowthPeriod(from, to),
		minGrade: lo,
		maxGrade: hi,
		course:   c,
	}, nil
}

// resolveGradeRange applies defaults (zero value = unbounded side) and
// validates the requested grade window.
func resolveGradeRange(minGrade, maxGrade int) (assessment.Grade, assessment.Grade, error) {
	if minGrade == 0 {
		minGrade = int(assessment.MinGrade)
	}
	if maxGrade == 0 {
		maxGrade = int(assessment.MaxGrade)
	}

	lo, err := assessment.NewGrade(minGrade)
	if err != nil {
		return 0, 0, err
	}
	hi, err := assessment.NewGrade(maxGrade)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, shared.NewDomainError("query", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("min grade %d exceeds max grade %d", lo, hi))
	}
	return lo, hi, nil
}

// resolveCourse parses an optional course filter; empty means both courses.
func resolveCourse(course string) (assessment.Course, error) {
	if course == "" {
		return "", nil
	}
	return assessment.ParseCourse(course)
}
