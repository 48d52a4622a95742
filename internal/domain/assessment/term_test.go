package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	term, ok := ParseTerm("Fall 2024-2025")
	require.True(t, ok)
	assert.Equal(t, SeasonFall, term.Season)
	assert.Equal(t, 2024, term.StartYear)
	assert.Equal(t, "2024-2025", term.YearLabel)
	assert.Equal(t, "Fall 2024-2025", term.Label())
}

func TestParseTermRejectsMalformedLabels(t *testing.T) {
	malformed := []string{
		"",
		"Fall",
		"Fall 2024",
		"Fall 2024-2026",    // non-consecutive years
		"Fall 2025-2024",    // reversed years
		"Summer 2024-2025",  // not a testing season
		"fall 2024-2025",    // wrong case
		"Fall  2024-2025",   // double space
		"Fall 2024-2025 ",   // trailing space
		" Fall 2024-2025",   // leading space
		"Fall 24-25",        // short years
		"Fall 2024/2025",    // wrong separator
		"Fall 2024-2025 v2", // trailing junk
	}
	for _, label := range malformed {
		_, ok := ParseTerm(label)
		assert.False(t, ok, "label %q should not parse", label)
	}
}

func mustParseTerm(t *testing.T, label string) Term {
	t.Helper()
	term, ok := ParseTerm(label)
	require.True(t, ok, "label %q must parse", label)
	return term
}

func TestTermCompareIsStrictTotalOrder(t *testing.T) {
	a := mustParseTerm(t, "Fall 2023-2024")
	b := mustParseTerm(t, "Spring 2023-2024")
	c := mustParseTerm(t, "Fall 2024-2025")

	// Season rank within a year, start year across years.
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, -1, a.Compare(c)) // transitivity

	// Antisymmetry.
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 1, c.Compare(b))

	// Reflexivity.
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Equal(mustParseTerm(t, "Fall 2023-2024")))

	// Winter sits between Fall and Spring of the same year.
	w := mustParseTerm(t, "Winter 2023-2024")
	assert.True(t, a.Before(w))
	assert.True(t, w.Before(b))
}

func TestSortTerms(t *testing.T) {
	labels := []string{
		"Spring 2024-2025",
		"Fall 2023-2024",
		"Winter 2024-2025",
		"Spring 2023-2024",
		"Fall 2024-2025",
	}
	terms := ParseTerms(labels)
	require.Len(t, terms, 5)

	SortTermsAscending(terms)
	wantAsc := []string{
		"Fall 2023-2024",
		"Spring 2023-2024",
		"Fall 2024-2025",
		"Winter 2024-2025",
		"Spring 2024-2025",
	}
	for i, label := range wantAsc {
		assert.Equal(t, label, terms[i].Label())
	}

	// Sorting a sorted slice is a no-op.
	SortTermsAscending(terms)
	for i, label := range wantAsc {
		assert.Equal(t, label, terms[i].Label())
	}

	// Descending is the reverse of ascending.
	SortTermsDescending(terms)
	for i, label := range wantAsc {
		assert.Equal(t, label, terms[len(terms)-1-i].Label())
	}
	SortTermsDescending(terms)
	assert.Equal(t, "Spring 2024-2025", terms[0].Label())
}

func TestSortIsDeterministicRegardlessOfInputOrder(t *testing.T) {
	labels := []string{"Winter 2023-2024", "Fall 2023-2024", "Spring 2023-2024"}

	forward := ParseTerms(labels)
	reversed := ParseTerms([]string{labels[2], labels[1], labels[0]})

	SortTermsAscending(forward)
	SortTermsAscending(reversed)

	require.Equal(t, len(forward), len(reversed))
	for i := range forward {
		assert.True(t, forward[i].Equal(reversed[i]))
	}
}

func TestParseTermsDropsMalformed(t *testing.T) {
	terms := ParseTerms([]string{"Fall 2024-2025", "garbage", "", "Spring 2024-2025"})
	require.Len(t, terms, 2)
	assert.Equal(t, "Fall 2024-2025", terms[0].Label())
	assert.Equal(t, "Spring 2024-2025", terms[1].Label())
}

func TestDerivePeriodType(t *testing.T) {
	tests := []struct {
		from, to string
		want     PeriodType
	}{
		{"Fall 2023-2024", "Fall 2024-2025", PeriodFallToFall},
		{"Fall 2024-2025", "Spring 2024-2025", PeriodFallToSpring},
		{"Winter 2024-2025", "Spring 2024-2025", PeriodWinterToSpring},
		{"Spring 2023-2024", "Fall 2024-2025", PeriodCustom},
		{"Winter 2023-2024", "Winter 2024-2025", PeriodCustom},
		{"Spring 2023-2024", "Winter 2023-2024", PeriodCustom},
	}

	for _, tc := range tests {
		period := NewGrowthPeriod(mustParseTerm(t, tc.from), mustParseTerm(t, tc.to))
		assert.Equal(t, tc.want, period.Type, "%s to %s", tc.from, tc.to)
	}
}

func TestGrowthPeriodLabel(t *testing.T) {
	period := NewGrowthPeriod(
		mustParseTerm(t, "Fall 2024-2025"),
		mustParseTerm(t, "Spring 2024-2025"),
	)
	assert.Equal(t, "Fall 2024-2025 to Spring 2024-2025", period.Label())
}

func TestGradeValidation(t *testing.T) {
	for g := 3; g <= 6; g++ {
		grade, err := NewGrade(g)
		assert.NoError(t, err)
		assert.Equal(t, g, grade.Int())
	}

	for _, g := range []int{0, 2, 7, -1} {
		_, err := NewGrade(g)
		assert.Error(t, err)
	}
}

func TestParseCourse(t *testing.T) {
	c, err := ParseCourse("reading")
	assert.NoError(t, err)
	assert.Equal(t, CourseReading, c)

	c, err = ParseCourse("language_usage")
	assert.NoError(t, err)
	assert.Equal(t, CourseLanguageUsage, c)

	_, err = ParseCourse("math")
	assert.Error(t, err)
}
