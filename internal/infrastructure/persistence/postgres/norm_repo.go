package postgres

import (
	"context"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/norms"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
	"github.com/schoolpulse/growth-analytics-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// NORM REPOSITORY IMPLEMENTATION
// ═══════════════════════════════════════════════════════════════════════════

// NormRepository implements norms.Source for PostgreSQL. A norm that
// simply does not exist for the requested key reports ok=false with a nil
// error; only a broken datastore produces a StorageFault.
type NormRepository struct {
	conn *Connection
}

// NewNormRepository creates a new NormRepository.
func NewNormRepository(conn *Connection) *NormRepository {
	return &NormRepository{conn: conn}
}

// GetNorm looks up the published baseline for one
// (academic year, grade, season, course) key.
func (r *NormRepository) GetNorm(ctx context.Context, academicYear string, grade assessment.Grade, season assessment.Season, course assessment.Course) (norms.Baseline, bool, error) {
	query := `
		SELECT mean_score, std_dev
		FROM norm_baselines
		WHERE academic_year = $1 AND grade = $2 AND season = $3 AND course = $4
	`

	type lookup struct {
		baseline norms.Baseline
		found    bool
	}

	result, err := retry.DoWithData(ctx, func(ctx context.Context) (lookup, error) {
		var b norms.Baseline
		err := r.conn.QueryRow(ctx, query, academicYear, int(grade), string(season), string(course)).
			Scan(&b.Mean, &b.StdDev)
		if IsNoRows(err) {
			return lookup{}, nil
		}
		if err != nil {
			return lookup{}, err
		}
		return lookup{baseline: b, found: true}, nil
	}, retry.WithRetryIf(IsTransient))
	if err != nil {
		return norms.Baseline{}, false, shared.WrapError("norms", "GetNorm", shared.ErrStorageFault, "norm lookup failed", err)
	}

	return result.baseline, result.found, nil
}
