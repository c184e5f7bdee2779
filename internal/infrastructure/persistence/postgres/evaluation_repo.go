package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION REPOSITORY IMPLEMENTATION
// The parent row is the lock: every mutation of a (teacher, period,
// evaluator) unit runs inside WithParent, which SELECTs the parent FOR
// UPDATE before touching any child. Two writers on the same unit serialize;
// writers on different units proceed in parallel.
// ══════════════════════════════════════════════════════════════════════════════

const evaluationColumns = `id, teacher_id, evaluator_id, period_id, total_score,
		average_score, final_grade, final_notes, last_recomputed_at, created_at, updated_at`

const itemColumns = `id, teacher_evaluation_id, aspect_id, grade_letter, score,
		weight_applied, notes, evaluated_at, created_at, updated_at`

// EvaluationRepository implements evaluation.Repository for PostgreSQL.
type EvaluationRepository struct {
	conn *Connection
}

// NewEvaluationRepository creates a new EvaluationRepository.
func NewEvaluationRepository(conn *Connection) *EvaluationRepository {
	return &EvaluationRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a parent evaluation by ID.
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*evaluation.TeacherEvaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM teacher_evaluations WHERE id = $1`
	return scanEvaluation(r.conn.QueryRow(ctx, query, id))
}

// GetByKey returns the parent evaluation for a triple.
func (r *EvaluationRepository) GetByKey(ctx context.Context, key evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM teacher_evaluations
		WHERE teacher_id = $1 AND period_id = $2 AND evaluator_id = $3
	`
	return scanEvaluation(r.conn.QueryRow(ctx, query, key.TeacherID, key.PeriodID, key.EvaluatorID))
}

// ListItems returns all child items of a parent, ordered by aspect ID.
func (r *EvaluationRepository) ListItems(ctx context.Context, evaluationID string) ([]*evaluation.TeacherEvaluationItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM teacher_evaluation_items
		WHERE teacher_evaluation_id = $1
		ORDER BY aspect_id
	`
	rows, err := r.conn.Query(ctx, query, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListByPeriod returns all parent evaluations in a period.
func (r *EvaluationRepository) ListByPeriod(ctx context.Context, periodID string) ([]*evaluation.TeacherEvaluation, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM teacher_evaluations
		WHERE period_id = $1
		ORDER BY teacher_id
	`
	rows, err := r.conn.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// ListByTeacher returns all parent evaluations naming a teacher.
func (r *EvaluationRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*evaluation.TeacherEvaluation, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM teacher_evaluations
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.conn.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// ListStaleSummaries returns up to limit parents whose summary was last
// recomputed before the cutoff, oldest first.
func (r *EvaluationRepository) ListStaleSummaries(ctx context.Context, cutoff time.Time, limit int) ([]*evaluation.TeacherEvaluation, error) {
	query := `
		SELECT ` + evaluationColumns + `
		FROM teacher_evaluations
		WHERE last_recomputed_at < $1
		ORDER BY last_recomputed_at
		LIMIT $2
	`
	rows, err := r.conn.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// CountForUser returns how many evaluations name the user as teacher or
// evaluator.
func (r *EvaluationRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM teacher_evaluations
		WHERE teacher_id = $1 OR evaluator_id = $1
	`
	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Locked parent transactions
// ─────────────────────────────────────────────────────────────────────────────

// WithParent runs fn inside one transaction holding the parent's row lock.
func (r *EvaluationRepository) WithParent(ctx context.Context, key evaluation.ParentKey, create bool, fn func(tx evaluation.ParentTx) error) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		parent, created, err := lockParent(ctx, tx, key, create)
		if err != nil {
			return err
		}
		return fn(&parentTx{tx: tx, parent: parent, created: created})
	})
	if err != nil && isConflict(err) {
		return shared.WrapError("evaluation", "WithParent", conflictKind(err), "parent transaction conflicted", err)
	}
	return err
}

// lockParent selects the parent FOR UPDATE, creating it first when asked.
// Two concurrent creators race on the unique triple; the loser's insert is
// a no-op and it falls through to locking the winner's row.
func lockParent(ctx context.Context, tx pgx.Tx, key evaluation.ParentKey, create bool) (*evaluation.TeacherEvaluation, bool, error) {
	selectQuery := `
		SELECT ` + evaluationColumns + `
		FROM teacher_evaluations
		WHERE teacher_id = $1 AND period_id = $2 AND evaluator_id = $3
		FOR UPDATE
	`

	parent, err := scanEvaluation(tx.QueryRow(ctx, selectQuery, key.TeacherID, key.PeriodID, key.EvaluatorID))
	if err == nil {
		return parent, false, nil
	}
	if !errors.Is(err, evaluation.ErrEvaluationNotFound) {
		return nil, false, err
	}
	if !create {
		return nil, false, evaluation.ErrEvaluationNotFound
	}

	now := time.Now().UTC()
	insertQuery := `
		INSERT INTO teacher_evaluations (
			id, teacher_id, evaluator_id, period_id, total_score, average_score,
			final_grade, final_notes, last_recomputed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, 0, NULL, '', $5, $5, $5)
		ON CONFLICT (teacher_id, period_id, evaluator_id) DO NOTHING
		RETURNING ` + evaluationColumns

	parent, err = scanEvaluation(tx.QueryRow(ctx, insertQuery,
		uuid.NewString(), key.TeacherID, key.EvaluatorID, key.PeriodID, now))
	if err == nil {
		return parent, true, nil
	}
	if !errors.Is(err, evaluation.ErrEvaluationNotFound) {
		return nil, false, err
	}

	// Lost the creation race: the row now exists, lock it.
	parent, err = scanEvaluation(tx.QueryRow(ctx, selectQuery, key.TeacherID, key.PeriodID, key.EvaluatorID))
	if err != nil {
		return nil, false, err
	}
	return parent, false, nil
}

// parentTx implements evaluation.ParentTx over one pgx transaction.
type parentTx struct {
	tx      pgx.Tx
	parent  *evaluation.TeacherEvaluation
	created bool
}

func (t *parentTx) Parent() *evaluation.TeacherEvaluation { return t.parent }

func (t *parentTx) Created() bool { return t.created }

func (t *parentTx) Items(ctx context.Context) ([]*evaluation.TeacherEvaluationItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM teacher_evaluation_items
		WHERE teacher_evaluation_id = $1
		ORDER BY aspect_id
	`
	rows, err := t.tx.Query(ctx, query, t.parent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (t *parentTx) PutItem(ctx context.Context, item *evaluation.TeacherEvaluationItem) error {
	query := `
		INSERT INTO teacher_evaluation_items (
			id, teacher_evaluation_id, aspect_id, grade_letter, score,
			weight_applied, notes, evaluated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (teacher_evaluation_id, aspect_id) DO UPDATE SET
			grade_letter   = EXCLUDED.grade_letter,
			score          = EXCLUDED.score,
			weight_applied = EXCLUDED.weight_applied,
			notes          = EXCLUDED.notes,
			evaluated_at   = EXCLUDED.evaluated_at,
			updated_at     = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		item.ID,
		item.EvaluationID,
		item.AspectID,
		string(item.GradeLetter),
		item.Score,
		item.WeightApplied,
		item.Notes,
		item.EvaluatedAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

func (t *parentTx) DeleteItem(ctx context.Context, aspectID string) error {
	query := `
		DELETE FROM teacher_evaluation_items
		WHERE teacher_evaluation_id = $1 AND aspect_id = $2
	`
	tag, err := t.tx.Exec(ctx, query, t.parent.ID, aspectID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrItemNotFound
	}
	return nil
}

func (t *parentTx) PublishSummary(ctx context.Context, parent *evaluation.TeacherEvaluation) error {
	query := `
		UPDATE teacher_evaluations SET
			total_score        = $2,
			average_score      = $3,
			final_grade        = $4,
			final_notes        = $5,
			last_recomputed_at = $6,
			updated_at         = $7
		WHERE id = $1
	`
	_, err := t.tx.Exec(ctx, query,
		parent.ID,
		parent.TotalScore,
		parent.AverageScore,
		gradeToDB(parent.FinalGrade),
		parent.FinalNotes,
		parent.LastRecomputedAt,
		parent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to publish summary: %w", err)
	}
	return nil
}

// DeleteWithItems removes a parent and all its children as one unit.
func (r *EvaluationRepository) DeleteWithItems(ctx context.Context, evaluationID string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM teacher_evaluation_items WHERE teacher_evaluation_id = $1`, evaluationID); err != nil {
			return fmt.Errorf("failed to delete items: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM teacher_evaluations WHERE id = $1`, evaluationID)
		if err != nil {
			return fmt.Errorf("failed to delete evaluation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return evaluation.ErrEvaluationNotFound
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanEvaluation(row pgx.Row) (*evaluation.TeacherEvaluation, error) {
	var (
		e     evaluation.TeacherEvaluation
		grade *string
	)
	err := row.Scan(
		&e.ID,
		&e.TeacherID,
		&e.EvaluatorID,
		&e.PeriodID,
		&e.TotalScore,
		&e.AverageScore,
		&grade,
		&e.FinalNotes,
		&e.LastRecomputedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, evaluation.ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("failed to scan evaluation: %w", err)
	}
	if grade != nil {
		g := evaluation.Grade(*grade)
		e.FinalGrade = &g
	}
	return &e, nil
}

func scanEvaluations(rows pgx.Rows) ([]*evaluation.TeacherEvaluation, error) {
	var result []*evaluation.TeacherEvaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanItems(rows pgx.Rows) ([]*evaluation.TeacherEvaluationItem, error) {
	var result []*evaluation.TeacherEvaluationItem
	for rows.Next() {
		var (
			it     evaluation.TeacherEvaluationItem
			letter string
		)
		err := rows.Scan(
			&it.ID,
			&it.EvaluationID,
			&it.AspectID,
			&letter,
			&it.Score,
			&it.WeightApplied,
			&it.Notes,
			&it.EvaluatedAt,
			&it.CreatedAt,
			&it.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.GradeLetter = evaluation.Grade(letter)
		result = append(result, &it)
	}
	return result, rows.Err()
}

func gradeToDB(g *evaluation.Grade) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

// isConflict reports whether an error means the transaction lost a race
// and should be retried as a whole.
func isConflict(err error) bool {
	return IsSerializationFailure(err) || IsLockNotAvailable(err) || IsDeadlockDetected(err)
}

// conflictKind picks the shared error kind for a lost race. A failed
// NOWAIT lock attempt is reported distinctly from a serialization or
// deadlock failure; both satisfy shared.IsConflict.
func conflictKind(err error) error {
	if IsLockNotAvailable(err) {
		return shared.ErrLockNotAcquired
	}
	return shared.ErrConcurrencyConflict
}
