// Package norms composes externally supplied normative tables into the
// comparison baselines drawn over growth distributions. The norm table
// itself is a read-only lookup collaborator; nothing here computes norms.
package norms

import (
	"context"
	"math"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/pkg/stats"
)

// ═══════════════════════════════════════════════════════════════════════════
// Baselines
// ═══════════════════════════════════════════════════════════════════════════

// Baseline is an expected mean/spread pair, either single-course or
// combined.
type Baseline struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// GradeBaseline is a baseline for a single grade together with the size of
// the observed cohort at that grade, which weights the cross-grade
// combination.
type GradeBaseline struct {
	Grade       assessment.Grade `json:"grade"`
	Baseline    Baseline         `json:"baseline"`
	SampleCount int              `json:"sample_count"`
}

// CombineCourses combines two single-course baselines into one: the mean is
// the arithmetic mean of the course means and the stdDev is
// sqrt((sd1²+sd2²)/2).
//
// The stdDev formula assumes course independence and equal weighting. It is
// a simplification baked into the system that downstream norm bands are
// calibrated against, so it is reproduced verbatim rather than replaced
// with a pooled-variance formula.
func CombineCourses(a, b Baseline) Baseline {
	return Baseline{
		Mean:   (a.Mean + b.Mean) / 2,
		StdDev: math.Sqrt((a.StdDev*a.StdDev + b.StdDev*b.StdDev) / 2),
	}
}

// CombineGrades combines per-grade baselines into a single baseline
// weighted by sample count: mean = Σ(mean_g·n_g)/Σn_g and
// stdDev = sqrt(Σ(sd_g²·n_g)/Σn_g). Entries with a zero sample count carry
// no weight. Returns ok=false when nothing carries weight.
func CombineGrades(perGrade []GradeBaseline) (Baseline, bool) {
	var totalCount int
	var weightedMean, weightedVariance float64

	for _, gb := range perGrade {
		n := float64(gb.SampleCount)
		totalCount += gb.SampleCount
		weightedMean += gb.Baseline.Mean * n
		weightedVariance += gb.Baseline.StdDev * gb.Baseline.StdDev * n
	}

	if totalCount == 0 {
		return Baseline{}, false
	}

	return Baseline{
		Mean:   weightedMean / float64(totalCount),
		StdDev: math.Sqrt(weightedVariance / float64(totalCount)),
	}, true
}

// ═══════════════════════════════════════════════════════════════════════════
// Norm source collaborator
// ═══════════════════════════════════════════════════════════════════════════

// Source is the read-only norm-table collaborator. A missing entry is an
// explicit absence (ok=false); only hard lookup failures return an error.
type Source interface {
	GetNorm(ctx context.Context, academicYear string, grade assessment.Grade, season assessment.Season, course assessment.Course) (Baseline, bool, error)
}

// ═══════════════════════════════════════════════════════════════════════════
// Composer
// ═══════════════════════════════════════════════════════════════════════════

// Composed is a fully combined baseline with its per-grade breakdown.
// PerGrade only lists grades that had at least one matching norm entry;
// grades without entries are excluded from the weighted sums and from the
// breakdown alike.
type Composed struct {
	Baseline Baseline `json:"baseline"`

	PerGrade []GradeBaseline `json:"per_grade"`

	// TotalCount is the summed observed cohort size behind the weighting,
	// used to scale the overlay curve to histogram area.
	TotalCount int `json:"total_count"`
}

// OverlayCurve samples a normal overlay from the composed baseline, scaled
// to the observed total count so the overlay is comparable in area to the
// real histogram.
func (c Composed) OverlayCurve(minX, maxX, binWidth float64, numPoints int) []stats.CurvePoint {
	return stats.GaussianCurve(c.Baseline.Mean, c.Baseline.StdDev, minX, maxX, c.TotalCount, binWidth, numPoints)
}

// Composer builds comparison baselines from the norm source.
type Composer struct {
	source Source
}

// NewComposer creates a Composer over the given norm source.
func NewComposer(source Source) *Composer {
	return &Composer{source: source}
}

// GrowthBaseline composes the comparison baseline for a growth period.
// Norm entries are keyed by the period's starting academic year and season.
// sampleCounts holds the observed cohort size per starting grade and
// provides the cross-grade weights; grades observed but absent from the
// norm table are excluded entirely.
//
// When course is empty the two-course combined baseline is used per grade;
// a grade with only one course's entry falls back to that single course.
// Returns ok=false when no observed grade has a norm entry.
func (c *Composer) GrowthBaseline(ctx context.Context, period assessment.GrowthPeriod, sampleCounts map[assessment.Grade]int, course assessment.Course) (Composed, bool, error) {
	year := period.From.YearLabel
	season := period.From.Season

	var perGrade []GradeBaseline
	for grade := assessment.MinGrade; grade <= assessment.MaxGrade; grade++ {
		count := sampleCounts[grade]
		if count == 0 {
			continue
		}

		baseline, ok, err := c.gradeBaseline(ctx, year, grade, season, course)
		if err != nil {
			return Composed{}, false, err
		}
		if !ok {
			continue
		}

		perGrade = append(perGrade, GradeBaseline{
			Grade:       grade,
			Baseline:    baseline,
			SampleCount: count,
		})
	}

	combined, ok := CombineGrades(perGrade)
	if !ok {
		return Composed{}, false, nil
	}

	total := 0
	for _, gb := range perGrade {
		total += gb.SampleCount
	}

	return Composed{
		Baseline:   combined,
		PerGrade:   perGrade,
		TotalCount: total,
	}, true, nil
}

// gradeBaseline resolves one grade's baseline for the requested course
// selection.
func (c *Composer) gradeBaseline(ctx context.Context, year string, grade assessment.Grade, season assessment.Season, course assessment.Course) (Baseline, bool, error) {
	if course != "" {
		return c.source.GetNorm(ctx, year, grade, season, course)
	}

	reading, okReading, err := c.source.GetNorm(ctx, year, grade, season, assessment.CourseReading)
	if err != nil {
		return Baseline{}, false, err
	}
	language, okLanguage, err := c.source.GetNorm(ctx, year, grade, season, assessment.CourseLanguageUsage)
	if err != nil {
		return Baseline{}, false, err
	}

	switch {
	case okReading && okLanguage:
		return CombineCourses(reading, language), true, nil
	case okReading:
		return reading, true, nil
	case okLanguage:
		return language, true, nil
	default:
		return Baseline{}, false, nil
	}
}
