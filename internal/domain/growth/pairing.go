// Package growth implements the cohort pairing engine and the
// distribution/heatmap binners: the per-request aggregation logic that
// turns flat assessment records into matched growth observations,
// histogram buckets, and heatmap grids.
package growth

import (
	"sort"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/pkg/stats"
)

// ═══════════════════════════════════════════════════════════════════════════
// Growth observations
// ═══════════════════════════════════════════════════════════════════════════

// CourseGrowth is the growth delta of a single course across a period.
// A course contributes only when both endpoints are present.
type CourseGrowth struct {
	Course     assessment.Course `json:"course"`
	StartScore float64           `json:"start_score"`
	EndScore   float64           `json:"end_score"`
	Delta      float64           `json:"delta"`
}

// Observation is one student's matched growth across a period.
//
// A student contributes an observation iff they are active and at least one
// course has scores at both endpoints. A student missing one course's
// endpoint still contributes using the available course alone - partial
// coverage is a feature, not an error.
type Observation struct {
	// StudentKey identifies the student.
	StudentKey string `json:"student_key"`

	// StartGrade is the grade at the from-term, never the to-term. A
	// student promoted between terms is bucketed by where they started so
	// growth expectations stay comparable.
	StartGrade assessment.Grade `json:"start_grade"`

	// PerCourse holds the 1-2 course deltas that had both endpoints.
	PerCourse []CourseGrowth `json:"per_course"`

	// AverageGrowth is the arithmetic mean of the available deltas.
	AverageGrowth float64 `json:"average_growth"`

	// AverageStart is the arithmetic mean of the available start scores,
	// used as the starting-ability axis for scatter analysis.
	AverageStart float64 `json:"average_start"`
}

// endpoint keys a single (course, term side) score slot for a student.
// A typed key instead of a concatenated string: student keys from external
// rosters can contain arbitrary separator characters.
type endpoint struct {
	course assessment.Course
	atFrom bool
}

// studentScores accumulates one student's raw material during grouping.
type studentScores struct {
	scores     map[endpoint]float64
	startGrade assessment.Grade
	hasStart   bool
	active     bool
	sawRecord  bool
}

// BuildObservations pairs records across the two terms of a period and
// returns the matched per-student growth observations, sorted by student
// key for deterministic output.
//
// Returns an empty list when from equals to or when either side has no
// matching records; callers treat "no pairs" as a legitimate, renderable
// empty state.
func BuildObservations(records []assessment.Record, from, to assessment.Term) []Observation {
	if from.Equal(to) {
		return nil
	}

	students := make(map[string]*studentScores)
	fromCount, toCount := 0, 0

	for _, rec := range records {
		term, ok := assessment.ParseTerm(rec.TermLabel)
		if !ok {
			continue
		}

		var atFrom bool
		switch {
		case term.Equal(from):
			atFrom = true
			fromCount++
		case term.Equal(to):
			atFrom = false
			toCount++
		default:
			continue
		}

		s := students[rec.StudentKey]
		if s == nil {
			s = &studentScores{scores: make(map[endpoint]float64), active: true}
			students[rec.StudentKey] = s
		}
		s.sawRecord = true
		s.active = s.active && rec.StudentActive
		s.scores[endpoint{course: rec.Course, atFrom: atFrom}] = rec.AbilityScore

		if atFrom && !s.hasStart {
			s.startGrade = rec.Grade
			s.hasStart = true
		}
	}

	if fromCount == 0 || toCount == 0 {
		return nil
	}

	observations := make([]Observation, 0, len(students))
	for key, s := range students {
		if !s.active || !s.hasStart {
			continue
		}

		var perCourse []CourseGrowth
		for _, course := range assessment.Courses {
			start, okStart := s.scores[endpoint{course: course, atFrom: true}]
			end, okEnd := s.scores[endpoint{course: course, atFrom: false}]
			if !okStart || !okEnd {
				continue
			}
			perCourse = append(perCourse, CourseGrowth{
				Course:     course,
				StartScore: start,
				EndScore:   end,
				Delta:      end - start,
			})
		}
		if len(perCourse) == 0 {
			continue
		}

		deltas := make([]float64, len(perCourse))
		starts := make([]float64, len(perCourse))
		for i, cg := range perCourse {
			deltas[i] = cg.Delta
			starts[i] = cg.StartScore
		}

		observations = append(observations, Observation{
			StudentKey:    key,
			StartGrade:    s.startGrade,
			PerCourse:     perCourse,
			AverageGrowth: stats.Mean(deltas),
			AverageStart:  stats.Mean(starts),
		})
	}

	sort.Slice(observations, func(i, j int) bool {
		return observations[i].StudentKey < observations[j].StudentKey
	})

	return observations
}

// GrowthValues extracts the average-growth series from observations.
func GrowthValues(observations []Observation) []float64 {
	values := make([]float64, len(observations))
	for i, obs := range observations {
		values[i] = obs.AverageGrowth
	}
	return values
}

// StartValues extracts the starting-ability series from observations.
func StartValues(observations []Observation) []float64 {
	values := make([]float64, len(observations))
	for i, obs := range observations {
		values[i] = obs.AverageStart
	}
	return values
}
