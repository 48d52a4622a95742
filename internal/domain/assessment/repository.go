package assessment

import (
	"context"
)

// RecordFilter narrows a record fetch. Zero values widen the filter:
// an empty Course means both courses, a zero grade bound means the
// corresponding end of the covered grade range.
type RecordFilter struct {
	// TermLabels restricts the fetch to the given testing terms.
	TermLabels []string

	// MinGrade and MaxGrade bound the grade range (inclusive).
	MinGrade Grade
	MaxGrade Grade

	// Course restricts the fetch to a single course when set.
	Course Course
}

// Normalize fills unset grade bounds with the covered range.
func (f RecordFilter) Normalize() RecordFilter {
	if f.MinGrade == 0 {
		f.MinGrade = MinGrade
	}
	if f.MaxGrade == 0 {
		f.MaxGrade = MaxGrade
	}
	return f
}

// RecordRepository is the datastore collaborator. This subsystem only
// reads; record storage, score entry, and imports belong to other
// subsystems. Implementations report hard failures as StorageFault errors,
// never by returning an empty slice.
type RecordRepository interface {
	// FetchRecords returns all assessment records matching the filter.
	// An empty result is a normal outcome, not an error.
	FetchRecords(ctx context.Context, filter RecordFilter) ([]Record, error)

	// ListTermLabels returns the distinct term labels present in the
	// datastore, unordered and possibly containing malformed labels.
	ListTermLabels(ctx context.Context) ([]string, error)
}
