package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type fakeAuth struct {
	allow string
}

func (f *fakeAuth) RequireAuthenticated(_ context.Context, credential string) (auth.CallerIdentity, error) {
	if credential != f.allow {
		return auth.CallerIdentity{}, shared.ErrInvalidCredential
	}
	return auth.CallerIdentity{CallerID: uuid.New(), Name: "test-caller"}, nil
}

type fakeRepo struct {
	records []assessment.Record
	labels  []string
	err     error

	fetchCalls int
}

func (f *fakeRepo) FetchRecords(_ context.Context, filter assessment.RecordFilter) ([]assessment.Record, error) {
	f.fetchCalls++
	if f.err != nil {
		return nil, f.err
	}

	filter = filter.Normalize()
	wanted := make(map[string]bool, len(filter.TermLabels))
	for _, l := range filter.TermLabels {
		wanted[l] = true
	}

	var out []assessment.Record
	for _, r := range f.records {
		if !wanted[r.TermLabel] {
			continue
		}
		if r.Grade < filter.MinGrade || r.Grade > filter.MaxGrade {
			continue
		}
		if filter.Course != "" && r.Course != filter.Course {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) ListTermLabels(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.labels, nil
}

type fakeNormSource struct {
	norms map[string]norms.Baseline
}

func normKey(year string, grade assessment.Grade, season assessment.Season, course assessment.Course) string {
	return fmt.Sprintf("%s/%s/%s/%d", year, season, course, grade)
}

func (f *fakeNormSource) GetNorm(_ context.Context, year string, grade assessment.Grade, season assessment.Season, course assessment.Course) (norms.Baseline, bool, error) {
	b, ok := f.norms[normKey(year, grade, season, course)]
	return b, ok, nil
}

func rec(student string, grade int, course assessment.Course, term string, score float64) assessment.Record {
	return assessment.Record{
		StudentKey:    student,
		Grade:         assessment.Grade(grade),
		Course:        course,
		TermLabel:     term,
		AbilityScore:  score,
		StudentActive: true,
	}
}

const (
	fallTerm   = "Fall 2024-2025"
	springTerm = "Spring 2024-2025"
	goodKey    = "test-key"
)

func testLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.LevelError
	return logger.New(opts)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST GROWTH PERIODS
// ══════════════════════════════════════════════════════════════════════════════

func TestListGrowthPeriods(t *testing.T) {
	repo := &fakeRepo{labels: []string{springTerm, "garbage", fallTerm, "Fall 2023-2024"}}
	h := NewListGrowthPeriodsHandler(&fakeAuth{allow: goodKey}, repo, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), ListGrowthPeriodsQuery{Credential: goodKey})
	require.NoError(t, err)

	// Malformed label dropped, remainder most recent first.
	assert.Equal(t, []string{springTerm, fallTerm, "Fall 2023-2024"}, result.Terms)

	// Three terms yield three ordered pairs.
	require.Len(t, result.Periods, 3)
	assert.Equal(t, PeriodOptionDTO{
		From:       fallTerm,
		To:         springTerm,
		Label:      fallTerm + " to " + springTerm,
		PeriodType: "fall-to-spring",
	}, result.Periods[0])
}

func TestListGrowthPeriods_Unauthorized(t *testing.T) {
	h := NewListGrowthPeriodsHandler(&fakeAuth{allow: goodKey}, &fakeRepo{}, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	_, err := h.Handle(context.Background(), ListGrowthPeriodsQuery{Credential: "wrong"})
	require.Error(t, err)
	assert.True(t, shared.IsUnauthorized(err))
}

func TestListGrowthPeriods_StorageFault(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	h := NewListGrowthPeriodsHandler(&fakeAuth{allow: goodKey}, repo, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	_, err := h.Handle(context.Background(), ListGrowthPeriodsQuery{Credential: goodKey})
	require.Error(t, err)
	assert.True(t, shared.IsStorageFault(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// GROWTH DISTRIBUTION
// ══════════════════════════════════════════════════════════════════════════════

func distributionFixture() *fakeRepo {
	return &fakeRepo{records: []assessment.Record{
		rec("s1", 4, assessment.CourseReading, fallTerm, 200),
		rec("s1", 4, assessment.CourseReading, springTerm, 207),
		rec("s2", 4, assessment.CourseReading, fallTerm, 210),
		rec("s2", 4, assessment.CourseReading, springTerm, 212),
		rec("s3", 5, assessment.CourseReading, fallTerm, 220),
		rec("s3", 5, assessment.CourseReading, springTerm, 238),
	}}
}

func TestGetGrowthDistribution(t *testing.T) {
	repo := distributionFixture()
	composer := norms.NewComposer(&fakeNormSource{})
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, repo, composer, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthDistributionQuery{
		Credential: goodKey,
		FromTerm:   fallTerm,
		ToTerm:     springTerm,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.ObservationCount)
	assert.InDelta(t, 9.0, result.Summary.MeanGrowth, 1e-9) // (7+2+18)/3

	// Deltas 7, 2, 18 land in "5 to 10", "0 to 5", "> 15".
	require.Len(t, result.Buckets, 6)
	counts := map[string]int{}
	for _, b := range result.Buckets {
		counts[b.RangeLabel] = b.Count
	}
	assert.Equal(t, 1, counts["0 to 5"])
	assert.Equal(t, 1, counts["5 to 10"])
	assert.Equal(t, 1, counts["> 15"])

	assert.Nil(t, result.NormOverlay)
}

func TestGetGrowthDistribution_CacheHitSkipsFetch(t *testing.T) {
	repo := distributionFixture()
	composer := norms.NewComposer(&fakeNormSource{})
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, repo, composer, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	query := GetGrowthDistributionQuery{Credential: goodKey, FromTerm: fallTerm, ToTerm: springTerm}

	first, err := h.Handle(context.Background(), query)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.fetchCalls)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
}

func TestGetGrowthDistribution_NormOverlay(t *testing.T) {
	repo := distributionFixture()
	source := &fakeNormSource{norms: map[string]norms.Baseline{
		normKey("2024-2025", 4, assessment.SeasonFall, assessment.CourseReading):       {Mean: 8, StdDev: 3},
		normKey("2024-2025", 4, assessment.SeasonFall, assessment.CourseLanguageUsage): {Mean: 6, StdDev: 4},
		normKey("2024-2025", 5, assessment.SeasonFall, assessment.CourseReading):       {Mean: 7, StdDev: 3},
		normKey("2024-2025", 5, assessment.SeasonFall, assessment.CourseLanguageUsage): {Mean: 5, StdDev: 4},
	}}
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, repo, norms.NewComposer(source), cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthDistributionQuery{
		Credential:         goodKey,
		FromTerm:           fallTerm,
		ToTerm:             springTerm,
		IncludeNormOverlay: true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.NormOverlay)
	// Grades 4 (n=2) and 5 (n=1): two-course means 7 and 6, weighted (7*2+6)/3.
	assert.InDelta(t, 20.0/3, result.NormOverlay.Baseline.Mean, 1e-9)
	assert.Len(t, result.NormOverlay.PerGrade, 2)
	assert.NotEmpty(t, result.NormOverlay.Curve)
}

func TestGetGrowthDistribution_OverlayAbsentWhenNoNorms(t *testing.T) {
	repo := distributionFixture()
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, repo, norms.NewComposer(&fakeNormSource{}), cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthDistributionQuery{
		Credential:         goodKey,
		FromTerm:           fallTerm,
		ToTerm:             springTerm,
		IncludeNormOverlay: true,
	})
	require.NoError(t, err)
	assert.Nil(t, result.NormOverlay)
}

func TestGetGrowthDistribution_EmptyCohortIsRenderable(t *testing.T) {
	repo := &fakeRepo{}
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, repo, norms.NewComposer(&fakeNormSource{}), cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthDistributionQuery{
		Credential: goodKey,
		FromTerm:   fallTerm,
		ToTerm:     springTerm,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Summary.ObservationCount)
	require.Len(t, result.Buckets, 6)
	for _, b := range result.Buckets {
		assert.Zero(t, b.Count)
	}
}

func TestGetGrowthDistribution_Validation(t *testing.T) {
	h := NewGetGrowthDistributionHandler(&fakeAuth{allow: goodKey}, &fakeRepo{}, norms.NewComposer(&fakeNormSource{}), cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	tests := []struct {
		name  string
		query GetGrowthDistributionQuery
	}{
		{"malformed from term", GetGrowthDistributionQuery{Credential: goodKey, FromTerm: "nope", ToTerm: springTerm}},
		{"malformed to term", GetGrowthDistributionQuery{Credential: goodKey, FromTerm: fallTerm, ToTerm: "Summer 2024-2025"}},
		{"reversed period", GetGrowthDistributionQuery{Credential: goodKey, FromTerm: springTerm, ToTerm: fallTerm}},
		{"grade out of range", GetGrowthDistributionQuery{Credential: goodKey, FromTerm: fallTerm, ToTerm: springTerm, MinGrade: 9}},
		{"unknown course", GetGrowthDistributionQuery{Credential: goodKey, FromTerm: fallTerm, ToTerm: springTerm, Course: "math"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GROWTH SCATTER
// ══════════════════════════════════════════════════════════════════════════════

func TestGetGrowthScatter(t *testing.T) {
	// Growth is exactly 0.1*start - 15: a perfect linear fit.
	repo := &fakeRepo{records: []assessment.Record{
		rec("s1", 4, assessment.CourseReading, fallTerm, 200),
		rec("s1", 4, assessment.CourseReading, springTerm, 205),
		rec("s2", 4, assessment.CourseReading, fallTerm, 210),
		rec("s2", 4, assessment.CourseReading, springTerm, 216),
		rec("s3", 5, assessment.CourseReading, fallTerm, 220),
		rec("s3", 5, assessment.CourseReading, springTerm, 227),
	}}
	h := NewGetGrowthScatterHandler(&fakeAuth{allow: goodKey}, repo, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthScatterQuery{
		Credential: goodKey,
		FromTerm:   fallTerm,
		ToTerm:     springTerm,
	})
	require.NoError(t, err)

	require.Len(t, result.Points, 3)
	assert.Equal(t, ScatterPointDTO{StudentKey: "s1", StartGrade: 4, StartScore: 200, Growth: 5}, result.Points[0])

	assert.InDelta(t, 1.0, result.Regression.Correlation, 1e-9)
	assert.InDelta(t, 0.1, result.Regression.Slope, 1e-9)
	assert.InDelta(t, -15.0, result.Regression.Intercept, 1e-9)
}

func TestGetGrowthScatter_DegenerateRegression(t *testing.T) {
	// Every student starts at the same score: flat x axis.
	repo := &fakeRepo{records: []assessment.Record{
		rec("s1", 4, assessment.CourseReading, fallTerm, 200),
		rec("s1", 4, assessment.CourseReading, springTerm, 204),
		rec("s2", 4, assessment.CourseReading, fallTerm, 200),
		rec("s2", 4, assessment.CourseReading, springTerm, 210),
	}}
	h := NewGetGrowthScatterHandler(&fakeAuth{allow: goodKey}, repo, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetGrowthScatterQuery{
		Credential: goodKey,
		FromTerm:   fallTerm,
		ToTerm:     springTerm,
	})
	require.NoError(t, err)

	assert.Zero(t, result.Regression.Slope)
	assert.Zero(t, result.Regression.Correlation)
	assert.InDelta(t, 7.0, result.Regression.Intercept, 1e-9) // mean growth
}

// ══════════════════════════════════════════════════════════════════════════════
// ABILITY HEATMAP
// ══════════════════════════════════════════════════════════════════════════════

func TestGetAbilityHeatmap(t *testing.T) {
	inactive := rec("s9", 4, assessment.CourseReading, fallTerm, 200)
	inactive.StudentActive = false

	repo := &fakeRepo{records: []assessment.Record{
		rec("s1", 4, assessment.CourseReading, fallTerm, 195),
		rec("s1", 4, assessment.CourseLanguageUsage, fallTerm, 201),
		rec("s2", 5, assessment.CourseReading, fallTerm, 222),
		inactive,
	}}
	h := NewGetAbilityHeatmapHandler(&fakeAuth{allow: goodKey}, repo, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	result, err := h.Handle(context.Background(), GetAbilityHeatmapQuery{
		Credential: goodKey,
		TermLabel:  fallTerm,
	})
	require.NoError(t, err)

	assert.Equal(t, fallTerm, result.TermLabel)
	// Inactive student excluded; s1 contributes both course scores.
	assert.Equal(t, 3, result.Heatmap.TotalCount)
	require.Len(t, result.Heatmap.Rows, 2)
	assert.Equal(t, assessment.Grade(4), result.Heatmap.Rows[0].Grade)
	assert.Equal(t, assessment.Grade(5), result.Heatmap.Rows[1].Grade)
}

func TestGetAbilityHeatmap_MalformedTerm(t *testing.T) {
	h := NewGetAbilityHeatmapHandler(&fakeAuth{allow: goodKey}, &fakeRepo{}, cache.NewMemoryCache(cache.DefaultTTL), testLogger())

	_, err := h.Handle(context.Background(), GetAbilityHeatmapQuery{Credential: goodKey, TermLabel: "Fall 24-25"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
