package norms

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
)

// normKey identifies one norm-table entry in the fake source.
type normKey struct {
	year   string
	grade  assessment.Grade
	season assessment.Season
	course assessment.Course
}

// fakeSource is an in-memory norm table.
type fakeSource struct {
	entries map[normKey]Baseline
	err     error
}

func (f *fakeSource) GetNorm(_ context.Context, year string, grade assessment.Grade, season assessment.Season, course assessment.Course) (Baseline, bool, error) {
	if f.err != nil {
		return Baseline{}, false, f.err
	}
	b, ok := f.entries[normKey{year, grade, season, course}]
	return b, ok, nil
}

func fallToSpring(t *testing.T) assessment.GrowthPeriod {
	t.Helper()
	from, ok := assessment.ParseTerm("Fall 2024-2025")
	require.True(t, ok)
	to, ok := assessment.ParseTerm("Spring 2024-2025")
	require.True(t, ok)
	return assessment.NewGrowthPeriod(from, to)
}

func TestCombineCourses(t *testing.T) {
	combined := CombineCourses(
		Baseline{Mean: 10, StdDev: 6},
		Baseline{Mean: 14, StdDev: 8},
	)
	assert.InDelta(t, 12.0, combined.Mean, 1e-9)
	// sqrt((36+64)/2) = sqrt(50)
	assert.InDelta(t, math.Sqrt(50), combined.StdDev, 1e-9)
}

func TestCombineGradesWeighted(t *testing.T) {
	combined, ok := CombineGrades([]GradeBaseline{
		{Grade: 3, Baseline: Baseline{Mean: 200, StdDev: 10}, SampleCount: 50},
		{Grade: 4, Baseline: Baseline{Mean: 210, StdDev: 12}, SampleCount: 50},
	})
	require.True(t, ok)
	assert.InDelta(t, 205.0, combined.Mean, 1e-9)
	// sqrt((100+144)/2) = 11.045...
	assert.InDelta(t, math.Sqrt(122), combined.StdDev, 1e-9)
	assert.InDelta(t, 11.045, combined.StdDev, 0.001)
}

func TestCombineGradesUnequalWeights(t *testing.T) {
	combined, ok := CombineGrades([]GradeBaseline{
		{Grade: 3, Baseline: Baseline{Mean: 200, StdDev: 10}, SampleCount: 30},
		{Grade: 4, Baseline: Baseline{Mean: 210, StdDev: 12}, SampleCount: 10},
	})
	require.True(t, ok)
	// (200*30 + 210*10) / 40
	assert.InDelta(t, 202.5, combined.Mean, 1e-9)
	// sqrt((100*30 + 144*10) / 40)
	assert.InDelta(t, math.Sqrt(111), combined.StdDev, 1e-9)
}

func TestCombineGradesEmpty(t *testing.T) {
	_, ok := CombineGrades(nil)
	assert.False(t, ok)

	// Zero-count entries carry no weight.
	_, ok = CombineGrades([]GradeBaseline{
		{Grade: 3, Baseline: Baseline{Mean: 200, StdDev: 10}, SampleCount: 0},
	})
	assert.False(t, ok)
}

func TestGrowthBaselineCombinesCoursesAndGrades(t *testing.T) {
	period := fallToSpring(t)
	source := &fakeSource{entries: map[normKey]Baseline{
		{"2024-2025", 3, assessment.SeasonFall, assessment.CourseReading}:       {Mean: 14, StdDev: 7},
		{"2024-2025", 3, assessment.SeasonFall, assessment.CourseLanguageUsage}: {Mean: 12, StdDev: 5},
		{"2024-2025", 4, assessment.SeasonFall, assessment.CourseReading}:       {Mean: 10, StdDev: 6},
		{"2024-2025", 4, assessment.SeasonFall, assessment.CourseLanguageUsage}: {Mean: 8, StdDev: 6},
	}}
	composer := NewComposer(source)

	counts := map[assessment.Grade]int{3: 40, 4: 60}
	composed, ok, err := composer.GrowthBaseline(context.Background(), period, counts, "")
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, composed.PerGrade, 2)
	assert.Equal(t, assessment.Grade(3), composed.PerGrade[0].Grade)
	assert.InDelta(t, 13.0, composed.PerGrade[0].Baseline.Mean, 1e-9)
	assert.InDelta(t, 9.0, composed.PerGrade[1].Baseline.Mean, 1e-9)
	assert.Equal(t, 100, composed.TotalCount)

	// Weighted mean: (13*40 + 9*60) / 100
	assert.InDelta(t, 10.6, composed.Baseline.Mean, 1e-9)
}

func TestGrowthBaselineExcludesGradesWithoutNorms(t *testing.T) {
	period := fallToSpring(t)
	source := &fakeSource{entries: map[normKey]Baseline{
		{"2024-2025", 4, assessment.SeasonFall, assessment.CourseReading}: {Mean: 10, StdDev: 6},
	}}
	composer := NewComposer(source)

	// Grade 5 has observations but no norm entry: it must not appear in
	// the per-grade breakdown nor dilute the weighted sums.
	counts := map[assessment.Grade]int{4: 20, 5: 80}
	composed, ok, err := composer.GrowthBaseline(context.Background(), period, counts, assessment.CourseReading)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, composed.PerGrade, 1)
	assert.Equal(t, assessment.Grade(4), composed.PerGrade[0].Grade)
	assert.Equal(t, 20, composed.TotalCount)
	assert.InDelta(t, 10.0, composed.Baseline.Mean, 1e-9)
}

func TestGrowthBaselineSingleCourseFallback(t *testing.T) {
	period := fallToSpring(t)
	source := &fakeSource{entries: map[normKey]Baseline{
		// Only reading has an entry for this grade.
		{"2024-2025", 4, assessment.SeasonFall, assessment.CourseReading}: {Mean: 10, StdDev: 6},
	}}
	composer := NewComposer(source)

	composed, ok, err := composer.GrowthBaseline(context.Background(), period, map[assessment.Grade]int{4: 10}, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 10.0, composed.Baseline.Mean, 1e-9)
	assert.InDelta(t, 6.0, composed.Baseline.StdDev, 1e-9)
}

func TestGrowthBaselineAbsentWhenNoNorms(t *testing.T) {
	period := fallToSpring(t)
	composer := NewComposer(&fakeSource{entries: map[normKey]Baseline{}})

	_, ok, err := composer.GrowthBaseline(context.Background(), period, map[assessment.Grade]int{4: 10}, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrowthBaselinePropagatesSourceFailure(t *testing.T) {
	period := fallToSpring(t)
	composer := NewComposer(&fakeSource{err: errors.New("lookup failed")})

	_, _, err := composer.GrowthBaseline(context.Background(), period, map[assessment.Grade]int{4: 10}, "")
	assert.Error(t, err)
}

func TestOverlayCurveScaledToObservedTotal(t *testing.T) {
	composed := Composed{
		Baseline:   Baseline{Mean: 5, StdDev: 5},
		TotalCount: 120,
	}

	points := composed.OverlayCurve(-10, 20, 5, 31)
	require.Len(t, points, 31)

	// Peak lands on the mean and scales with totalCount * binWidth.
	peak := points[0]
	for _, p := range points {
		if p.Y > peak.Y {
			peak = p
		}
	}
	assert.InDelta(t, 5.0, peak.X, 1e-9)
	expected := 120.0 * 5.0 * 1.0 / (5.0 * math.Sqrt(2*math.Pi))
	assert.InDelta(t, expected, peak.Y, 1e-9)
}
