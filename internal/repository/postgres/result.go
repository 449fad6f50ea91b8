package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/internal/repository"
)

const resultColumns = `id, patient_id, patient_name, test_type, result_value, unit,
        reference_range, is_critical, doctor_notes, created_at`

type resultRepository struct {
	BaseRepository
}

func NewResultRepository(base BaseRepository) repository.ResultRepository {
	return &resultRepository{base}
}

func (r *resultRepository) Insert(ctx context.Context, rec *model.ResultRecord) (bool, error) {
	query := `
        INSERT INTO lab_results (
            id, patient_id, patient_name, test_type, result_value, unit,
            reference_range, is_critical, doctor_notes, created_at
        ) VALUES (
            :id, :patient_id, :patient_name, :test_type, :result_value, :unit,
            :reference_range, :is_critical, :doctor_notes, :created_at
        )
        ON CONFLICT (id) DO NOTHING
    `

	var inserted bool
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, query, rec.Data())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert result: %w", err)
	}
	return inserted, nil
}

func (r *resultRepository) SelectRecent(ctx context.Context, limit int) ([]*model.ResultRecord, error) {
	if limit <= 0 {
		return []*model.ResultRecord{}, nil
	}
	query := `SELECT ` + resultColumns + ` FROM lab_results ORDER BY created_at DESC, received_at DESC LIMIT $1`
	return r.selectRows(ctx, "recent results", query, limit)
}

func (r *resultRepository) SelectByPatient(ctx context.Context, patientID string) ([]*model.ResultRecord, error) {
	if patientID == "" {
		return []*model.ResultRecord{}, nil
	}
	query := `SELECT ` + resultColumns + ` FROM lab_results WHERE patient_id = $1 ORDER BY created_at DESC, received_at DESC`
	return r.selectRows(ctx, "patient results", query, patientID)
}

func (r *resultRepository) SelectByPatientName(ctx context.Context, patientName string) ([]*model.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM lab_results WHERE LOWER(patient_name) = LOWER($1) ORDER BY created_at DESC, received_at DESC`
	return r.selectRows(ctx, "patient results", query, patientName)
}

func (r *resultRepository) SelectCritical(ctx context.Context) ([]*model.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM lab_results WHERE is_critical ORDER BY created_at DESC, received_at DESC`
	return r.selectRows(ctx, "critical results", query)
}

func (r *resultRepository) selectRows(ctx context.Context, what, query string, args ...interface{}) ([]*model.ResultRecord, error) {
	var rows []model.ResultData
	if err := r.GetDB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", what, err)
	}
	return model.Records(rows), nil
}

func (r *resultRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.GetDB().GetContext(ctx, &n, `SELECT COUNT(*) FROM lab_results`); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

func (r *resultRepository) CountCritical(ctx context.Context) (int, error) {
	var n int
	if err := r.GetDB().GetContext(ctx, &n, `SELECT COUNT(*) FROM lab_results WHERE is_critical`); err != nil {
		return 0, fmt.Errorf("failed to count critical results: %w", err)
	}
	return n, nil
}

// Stats aggregates in one statement so the counts and the mean agree.
func (r *resultRepository) Stats(ctx context.Context) (model.StatisticsSnapshot, error) {
	query := `
        SELECT
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE is_critical) AS critical,
            COALESCE(AVG(result_value), 0) AS mean,
            COALESCE(MIN(result_value), 0) AS min,
            COALESCE(MAX(result_value), 0) AS max
        FROM lab_results
    `

	var row struct {
		Total    int     `db:"total"`
		Critical int     `db:"critical"`
		Mean     float64 `db:"mean"`
		Min      float64 `db:"min"`
		Max      float64 `db:"max"`
	}
	if err := r.GetDB().GetContext(ctx, &row, query); err != nil {
		return model.StatisticsSnapshot{}, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return model.StatisticsSnapshot{
		Total:    row.Total,
		Critical: row.Critical,
		Mean:     row.Mean,
		Min:      row.Min,
		Max:      row.Max,
	}, nil
}

func (r *resultRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	query := `DELETE FROM lab_results WHERE created_at < NOW() - make_interval(days => $1)`

	res, err := r.GetDB().ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return n, nil
}
