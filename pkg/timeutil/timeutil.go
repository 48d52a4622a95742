// Package timeutil provides academic-calendar helpers: mapping wall-clock
// dates onto testing seasons, academic years, and term labels. District
// assessment windows follow the common US school calendar.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Testing season windows. The fall window opens with the school year in
// August; winter testing runs December through February; everything up to
// the end of July counts as spring.
const (
	fallStartMonth   = time.August
	winterStartMonth = time.December
	springStartMonth = time.March
)

// Season names as they appear in term labels.
const (
	SeasonFall   = "Fall"
	SeasonWinter = "Winter"
	SeasonSpring = "Spring"
)

// SeasonOf returns the testing season the given date falls in.
func SeasonOf(t time.Time) string {
	switch m := t.Month(); {
	case m >= fallStartMonth && m < winterStartMonth:
		return SeasonFall
	case m == winterStartMonth || m < springStartMonth:
		return SeasonWinter
	default:
		return SeasonSpring
	}
}

// AcademicYearStart returns the calendar year the date's academic year
// started in. August onward belongs to the year that just started; before
// August the academic year started the previous calendar year.
func AcademicYearStart(t time.Time) int {
	if t.Month() >= fallStartMonth {
		return t.Year()
	}
	return t.Year() - 1
}

// AcademicYearLabel returns the year-range label for a date, e.g.
// "2024-2025".
func AcademicYearLabel(t time.Time) string {
	start := AcademicYearStart(t)
	return fmt.Sprintf("%d-%d", start, start+1)
}

// TermLabelFor returns the term label the date falls in, e.g.
// "Fall 2024-2025".
func TermLabelFor(t time.Time) string {
	return fmt.Sprintf("%s %s", SeasonOf(t), AcademicYearLabel(t))
}

// StartOfAcademicYear returns midnight on August 1 of the date's academic
// year, in the date's location.
func StartOfAcademicYear(t time.Time) time.Time {
	return time.Date(AcademicYearStart(t), fallStartMonth, 1, 0, 0, 0, 0, t.Location())
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// StartOfDay returns the start of the day (00:00:00) in the time's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween calculates the number of whole days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	duration := a2.Sub(a1)
	days := int(duration.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
