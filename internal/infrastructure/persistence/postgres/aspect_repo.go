package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASPECT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const aspectColumns = `id, name, category, description, weight, min_score,
		max_score, display_order, is_active, created_at, updated_at`

// AspectRepository implements evaluation.AspectRepository for PostgreSQL.
type AspectRepository struct {
	conn *Connection
}

// NewAspectRepository creates a new AspectRepository.
func NewAspectRepository(conn *Connection) *AspectRepository {
	return &AspectRepository{conn: conn}
}

// Create creates an aspect.
func (r *AspectRepository) Create(ctx context.Context, a *evaluation.EvaluationAspect) error {
	query := `
		INSERT INTO evaluation_aspects (
			id, name, category, description, weight, min_score, max_score,
			display_order, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Category,
		a.Description,
		a.Weight,
		a.MinScore,
		a.MaxScore,
		a.DisplayOrder,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create aspect: %w", err)
	}
	return nil
}

// GetByID returns an aspect by ID.
func (r *AspectRepository) GetByID(ctx context.Context, id string) (*evaluation.EvaluationAspect, error) {
	query := `SELECT ` + aspectColumns + ` FROM evaluation_aspects WHERE id = $1`
	return scanAspect(r.conn.QueryRow(ctx, query, id))
}

// ListActive returns all active aspects ordered by category and display order.
func (r *AspectRepository) ListActive(ctx context.Context) ([]*evaluation.EvaluationAspect, error) {
	query := `
		SELECT ` + aspectColumns + `
		FROM evaluation_aspects
		WHERE is_active
		ORDER BY category, display_order, name
	`
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query aspects: %w", err)
	}
	defer rows.Close()

	var result []*evaluation.EvaluationAspect
	for rows.Next() {
		a, err := scanAspect(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// IsReferenced reports whether any persisted item references the aspect.
func (r *AspectRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM teacher_evaluation_items WHERE aspect_id = $1)`
	var referenced bool
	if err := r.conn.QueryRow(ctx, query, id).Scan(&referenced); err != nil {
		return false, fmt.Errorf("failed to check aspect references: %w", err)
	}
	return referenced, nil
}

// Update persists changes to an aspect.
func (r *AspectRepository) Update(ctx context.Context, a *evaluation.EvaluationAspect) error {
	query := `
		UPDATE evaluation_aspects SET
			name          = $2,
			category      = $3,
			description   = $4,
			weight        = $5,
			min_score     = $6,
			max_score     = $7,
			display_order = $8,
			is_active     = $9,
			updated_at    = $10
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query,
		a.ID, a.Name, a.Category, a.Description, a.Weight, a.MinScore,
		a.MaxScore, a.DisplayOrder, a.IsActive, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update aspect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrAspectNotFound
	}
	return nil
}

func scanAspect(row pgx.Row) (*evaluation.EvaluationAspect, error) {
	var a evaluation.EvaluationAspect
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Category,
		&a.Description,
		&a.Weight,
		&a.MinScore,
		&a.MaxScore,
		&a.DisplayOrder,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, evaluation.ErrAspectNotFound
		}
		return nil, fmt.Errorf("failed to scan aspect: %w", err)
	}
	return &a, nil
}
