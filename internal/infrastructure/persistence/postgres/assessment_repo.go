package postgres

import (
	"context"
	"fmt"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY IMPLEMENTATION
// ═══════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.RecordRepository for
// PostgreSQL. Every failure surfaces as a StorageFault so callers can
// distinguish a broken datastore from a legitimately empty result.
type AssessmentRepository struct {
	conn *Connection
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

// FetchRecords returns all assessment records matching the filter. An
// empty result is a normal outcome, not an error.
func (r *AssessmentRepository) FetchRecords(ctx context.Context, filter assessment.RecordFilter) ([]assessment.Record, error) {
	filter = filter.Normalize()

	query := `
		SELECT s.student_key, r.grade, r.course, r.term_label, r.ability_score, s.active
		FROM assessment_records r
		JOIN students s ON s.student_key = r.student_key
		WHERE r.term_label = ANY($1)
		  AND r.grade BETWEEN $2 AND $3
	`
	args := []interface{}{filter.TermLabels, int(filter.MinGrade), int(filter.MaxGrade)}

	if filter.Course != "" {
		query += fmt.Sprintf(" AND r.course = $%d", len(args)+1)
		args = append(args, string(filter.Course))
	}
	query += " ORDER BY s.student_key, r.course, r.term_label"

	records, err := retry.DoWithData(ctx, func(ctx context.Context) ([]assessment.Record, error) {
		return r.queryRecords(ctx, query, args...)
	}, retry.WithRetryIf(IsTransient))
	if err != nil {
		return nil, shared.WrapError("assessment", "FetchRecords", shared.ErrStorageFault, "record query failed", err)
	}

	return records, nil
}

// queryRecords runs one attempt of a record query.
func (r *AssessmentRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]assessment.Record, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []assessment.Record
	for rows.Next() {
		var rec assessment.Record
		var grade int
		var course string

		if err := rows.Scan(&rec.StudentKey, &grade, &course, &rec.TermLabel, &rec.AbilityScore, &rec.StudentActive); err != nil {
			return nil, fmt.Errorf("failed to scan assessment record: %w", err)
		}

		rec.Grade = assessment.Grade(grade)
		rec.Course = assessment.Course(course)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListTermLabels returns the distinct term labels present in the
// datastore. Labels may include malformed entries from legacy imports; the
// term calendar drops those during parsing.
func (r *AssessmentRepository) ListTermLabels(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT term_label FROM assessment_records`

	labels, err := retry.DoWithData(ctx, func(ctx context.Context) ([]string, error) {
		rows, err := r.conn.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var labels []string
		for rows.Next() {
			var label string
			if err := rows.Scan(&label); err != nil {
				return nil, fmt.Errorf("failed to scan term label: %w", err)
			}
			labels = append(labels, label)
		}
		return labels, rows.Err()
	}, retry.WithRetryIf(IsTransient))
	if err != nil {
		return nil, shared.WrapError("assessment", "FetchTerms", shared.ErrStorageFault, "term discovery query failed", err)
	}

	return labels, nil
}
