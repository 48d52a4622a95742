package assessment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ═══════════════════════════════════════════════════════════════════════════
// Season
// ═══════════════════════════════════════════════════════════════════════════

// Season is a testing season within an academic year.
type Season string

const (
	SeasonFall   Season = "Fall"
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
)

// seasonRank defines the within-year ordering: Fall < Winter < Spring.
var seasonRank = map[Season]int{
	SeasonFall:   0,
	SeasonWinter: 1,
	SeasonSpring: 2,
}

// IsValid checks if the season is one of the three testing seasons.
func (s Season) IsValid() bool {
	_, ok := seasonRank[s]
	return ok
}

// Rank returns the within-year ordering rank of the season.
func (s Season) Rank() int {
	return seasonRank[s]
}

// String returns the string representation.
func (s Season) String() string {
	return string(s)
}

// ═══════════════════════════════════════════════════════════════════════════
// Term
// ═══════════════════════════════════════════════════════════════════════════

// termLabelRegex matches the term label grammar "<Season> <YYYY-YYYY>".
// The year range must be consecutive; that is checked after the match.
var termLabelRegex = regexp.MustCompile(`^(Fall|Winter|Spring) (\d{4})-(\d{4})$`)

// Term is a single testing window parsed from a label such as
// "Fall 2024-2025". Terms are totally ordered: different academic years
// order by start year, equal years order by season rank.
type Term struct {
	// Season is the testing season.
	Season Season

	// StartYear is the first year of the academic-year range.
	StartYear int

	// YearLabel is the academic-year range label, e.g. "2024-2025".
	YearLabel string
}

// ParseTerm parses a term label. Parsing is total: any label that does not
// match the grammar yields ok=false. Malformed labels arrive from external
// data regularly and must propagate as explicit absence, never as a crash.
func ParseTerm(label string) (Term, bool) {
	m := termLabelRegex.FindStringSubmatch(label)
	if m == nil {
		return Term{}, false
	}

	startYear, err := strconv.Atoi(m[2])
	if err != nil {
		return Term{}, false
	}
	endYear, err := strconv.Atoi(m[3])
	if err != nil {
		return Term{}, false
	}
	if endYear != startYear+1 {
		return Term{}, false
	}

	return Term{
		Season:    Season(m[1]),
		StartYear: startYear,
		YearLabel: m[2] + "-" + m[3],
	}, true
}

// Label reconstructs the canonical term label.
func (t Term) Label() string {
	return fmt.Sprintf("%s %s", t.Season, t.YearLabel)
}

// Compare defines the strict total order over terms: -1 if t < other,
// 0 if equal, +1 if t > other. Different academic years order by start
// year; within a year Fall < Winter < Spring.
func (t Term) Compare(other Term) int {
	if t.StartYear != other.StartYear {
		if t.StartYear < other.StartYear {
			return -1
		}
		return 1
	}
	if t.Season.Rank() != other.Season.Rank() {
		if t.Season.Rank() < other.Season.Rank() {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether t precedes other in the term order.
func (t Term) Before(other Term) bool {
	return t.Compare(other) < 0
}

// Equal reports whether both terms denote the same testing window.
func (t Term) Equal(other Term) bool {
	return t.Compare(other) == 0
}

// SortTermsAscending sorts terms oldest first. The sort is stable and
// idempotent: sorting an already sorted slice is a no-op.
func SortTermsAscending(terms []Term) {
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Compare(terms[j]) < 0
	})
}

// SortTermsDescending sorts terms newest first.
func SortTermsDescending(terms []Term) {
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Compare(terms[j]) > 0
	})
}

// ParseTerms parses a set of labels, silently dropping malformed ones.
// The returned slice preserves input order; callers sort as needed.
func ParseTerms(labels []string) []Term {
	terms := make([]Term, 0, len(labels))
	for _, label := range labels {
		if t, ok := ParseTerm(label); ok {
			terms = append(terms, t)
		}
	}
	return terms
}

// ═══════════════════════════════════════════════════════════════════════════
// Growth period
// ═══════════════════════════════════════════════════════════════════════════

// PeriodType classifies a growth period by its endpoint seasons. The type
// is derived from the terms, never chosen by callers; it selects which
// normative table applies to the period.
type PeriodType string

const (
	PeriodFallToFall     PeriodType = "fall-to-fall"
	PeriodFallToSpring   PeriodType = "fall-to-spring"
	PeriodWinterToSpring PeriodType = "winter-to-spring"
	PeriodCustom         PeriodType = "custom"
)

// GrowthPeriod is an ordered pair of terms across which per-student growth
// is measured.
type GrowthPeriod struct {
	From Term
	To   Term
	Type PeriodType
}

// NewGrowthPeriod builds a period with its derived type.
func NewGrowthPeriod(from, to Term) GrowthPeriod {
	return GrowthPeriod{From: from, To: to, Type: derivePeriodType(from, to)}
}

// derivePeriodType classifies the period by its endpoint seasons.
func derivePeriodType(from, to Term) PeriodType {
	switch {
	case from.Season == SeasonFall && to.Season == SeasonFall:
		return PeriodFallToFall
	case from.Season == SeasonFall && to.Season == SeasonSpring:
		return PeriodFallToSpring
	case from.Season == SeasonWinter && to.Season == SeasonSpring:
		return PeriodWinterToSpring
	default:
		return PeriodCustom
	}
}

// Label returns a display label for the period, e.g.
// "Fall 2024-2025 to Spring 2024-2025".
func (p GrowthPeriod) Label() string {
	return fmt.Sprintf("%s to %s", p.From.Label(), p.To.Label())
}
