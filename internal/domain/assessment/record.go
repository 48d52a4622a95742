// Package assessment contains the core value objects of the growth
// analytics engine: assessment records as fetched from the datastore, the
// term calendar with its total ordering, and growth periods derived from
// term pairs.
package assessment

import (
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Course
// ═══════════════════════════════════════════════════════════════════════════

// Course identifies one of the two assessed subjects.
type Course string

const (
	// CourseReading is the reading assessment course.
	CourseReading Course = "reading"

	// CourseLanguageUsage is the language-usage assessment course.
	CourseLanguageUsage Course = "language_usage"
)

// Courses lists all assessed courses in presentation order.
var Courses = []Course{CourseReading, CourseLanguageUsage}

// IsValid checks if the course is one of the assessed subjects.
func (c Course) IsValid() bool {
	return c == CourseReading || c == CourseLanguageUsage
}

// String returns the string representation.
func (c Course) String() string {
	return string(c)
}

// ParseCourse validates a course identifier.
func ParseCourse(s string) (Course, error) {
	c := Course(s)
	if !c.IsValid() {
		return "", shared.ErrInvalidCourse
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade
// ═══════════════════════════════════════════════════════════════════════════

// Grade is a school grade level. Growth analytics covers grades 3 through 6.
type Grade int

const (
	// MinGrade is the lowest grade covered by growth analytics.
	MinGrade Grade = 3

	// MaxGrade is the highest grade covered by growth analytics.
	MaxGrade Grade = 6
)

// IsValid checks if the grade is within the covered range.
func (g Grade) IsValid() bool {
	return g >= MinGrade && g <= MaxGrade
}

// Int returns the underlying int value.
func (g Grade) Int() int {
	return int(g)
}

// NewGrade creates a Grade with range validation.
func NewGrade(g int) (Grade, error) {
	grade := Grade(g)
	if !grade.IsValid() {
		return 0, shared.ErrInvalidGrade
	}
	return grade, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment record
// ═══════════════════════════════════════════════════════════════════════════

// Record is a single longitudinal assessment observation: one student, one
// course, one testing term, one ability score. Records are immutable once
// fetched; they are owned by the running aggregation for the duration of a
// single request and are never persisted by this subsystem.
type Record struct {
	// StudentKey uniquely identifies the student across terms.
	StudentKey string

	// Grade is the student's grade level at the time of the assessment.
	Grade Grade

	// Course is the assessed subject.
	Course Course

	// TermLabel is the raw testing-term label, e.g. "Fall 2024-2025".
	// Labels from external data may be malformed; they are parsed lazily
	// and a record with an unparseable label is skipped, never fatal.
	TermLabel string

	// AbilityScore is the numeric proficiency measurement (RIT scale).
	AbilityScore float64

	// StudentActive reports whether the student is currently enrolled.
	// Inactive students are excluded from growth cohorts even when their
	// scores are complete - administrative withdrawal semantics, not a
	// data-quality rule.
	StudentActive bool
}
