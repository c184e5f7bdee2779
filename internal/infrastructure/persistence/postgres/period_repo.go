package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const periodColumns = `id, academic_year, semester, start_date, end_date,
		is_active, description, created_at, updated_at`

// PeriodRepository implements evaluation.PeriodRepository for PostgreSQL.
type PeriodRepository struct {
	conn *Connection
}

// NewPeriodRepository creates a new PeriodRepository.
func NewPeriodRepository(conn *Connection) *PeriodRepository {
	return &PeriodRepository{conn: conn}
}

// Create creates a period.
func (r *PeriodRepository) Create(ctx context.Context, p *evaluation.Period) error {
	query := `
		INSERT INTO evaluation_periods (
			id, academic_year, semester, start_date, end_date,
			is_active, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.AcademicYear,
		p.Semester,
		p.StartDate,
		p.EndDate,
		p.IsActive,
		p.Description,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return evaluation.ErrPeriodExists
		}
		return fmt.Errorf("failed to create period: %w", err)
	}
	return nil
}

// GetByID returns a period by ID.
func (r *PeriodRepository) GetByID(ctx context.Context, id string) (*evaluation.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM evaluation_periods WHERE id = $1`
	return scanPeriod(r.conn.QueryRow(ctx, query, id))
}

// GetActive returns the currently active period, if any.
func (r *PeriodRepository) GetActive(ctx context.Context) (*evaluation.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM evaluation_periods WHERE is_active LIMIT 1`
	return scanPeriod(r.conn.QueryRow(ctx, query))
}

// Activate marks one period active and deactivates all others. Both updates
// run in one transaction so the partial unique index on is_active never
// sees two active periods.
func (r *PeriodRepository) Activate(ctx context.Context, id string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE evaluation_periods SET is_active = FALSE, updated_at = NOW() WHERE is_active AND id <> $1`, id); err != nil {
			return fmt.Errorf("failed to deactivate periods: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE evaluation_periods SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to activate period: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return evaluation.ErrPeriodNotFound
		}
		return nil
	})
}

// Update persists changes to a period.
func (r *PeriodRepository) Update(ctx context.Context, p *evaluation.Period) error {
	query := `
		UPDATE evaluation_periods SET
			academic_year = $2,
			semester      = $3,
			start_date    = $4,
			end_date      = $5,
			description   = $6,
			updated_at    = $7
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query,
		p.ID, p.AcademicYear, p.Semester, p.StartDate, p.EndDate, p.Description, p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return evaluation.ErrPeriodExists
		}
		return fmt.Errorf("failed to update period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrPeriodNotFound
	}
	return nil
}

func scanPeriod(row pgx.Row) (*evaluation.Period, error) {
	var p evaluation.Period
	err := row.Scan(
		&p.ID,
		&p.AcademicYear,
		&p.Semester,
		&p.StartDate,
		&p.EndDate,
		&p.IsActive,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, evaluation.ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to scan period: %w", err)
	}
	return &p, nil
}
