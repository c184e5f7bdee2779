package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/document"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRITY STORE IMPLEMENTATION
// One generic store serves every entity kind. Table and column names are
// resolved from the policy's own constants, never from caller input, so the
// string interpolation below cannot be steered from outside.
// ══════════════════════════════════════════════════════════════════════════════

// entityTables maps entity kinds to their tables.
var entityTables = map[integrity.EntityKind]string{
	integrity.KindOrganization:  "organizations",
	integrity.KindUser:          "users",
	integrity.KindUserRole:      "user_roles",
	integrity.KindEvaluation:    "teacher_evaluations",
	integrity.KindItem:          "teacher_evaluation_items",
	integrity.KindMediaFile:     "media_files",
	integrity.KindRPPSubmission: "rpp_submissions",
}

// notFoundErrors maps entity kinds to their domain not-found errors.
var notFoundErrors = map[integrity.EntityKind]error{
	integrity.KindOrganization:  identity.ErrOrganizationNotFound,
	integrity.KindUser:          identity.ErrUserNotFound,
	integrity.KindUserRole:      identity.ErrUserNotFound,
	integrity.KindEvaluation:    evaluation.ErrEvaluationNotFound,
	integrity.KindItem:          evaluation.ErrItemNotFound,
	integrity.KindMediaFile:     document.ErrFileNotFound,
	integrity.KindRPPSubmission: document.ErrSubmissionNotFound,
}

func tableFor(kind integrity.EntityKind) (string, error) {
	table, ok := entityTables[kind]
	if !ok {
		return "", shared.ErrUnknownEntity
	}
	return table, nil
}

func notFoundFor(kind integrity.EntityKind) error {
	if err, ok := notFoundErrors[kind]; ok {
		return err
	}
	return shared.ErrNotFound
}

// IntegrityStore implements integrity.Store for PostgreSQL.
type IntegrityStore struct {
	conn *Connection
}

// NewIntegrityStore creates a new IntegrityStore.
func NewIntegrityStore(conn *Connection) *IntegrityStore {
	return &IntegrityStore{conn: conn}
}

// Exists reports whether a live entity of the kind exists.
func (s *IntegrityStore) Exists(ctx context.Context, kind integrity.EntityKind, id string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if kind == integrity.KindUser {
		query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`
	}
	var exists bool
	if err := s.conn.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

// CountReferences counts child records referencing the entity through one
// policy relation. Used on the dry-run path, outside any transaction.
func (s *IntegrityStore) CountReferences(ctx context.Context, rel integrity.Relation, id string) (int, error) {
	return countReferences(ctx, s.conn, rel, id)
}

// InTx runs fn inside one serializable transaction.
func (s *IntegrityStore) InTx(ctx context.Context, fn func(tx integrity.StoreTx) error) error {
	err := s.conn.WithTx(ctx, SerializableTxOptions(), func(tx pgx.Tx) error {
		return fn(&integrityTx{tx: tx})
	})
	if err != nil && isConflict(err) {
		return shared.WrapError("integrity", "InTx", conflictKind(err), "deletion transaction conflicted", err)
	}
	return err
}

// integrityTx implements integrity.StoreTx over one pgx transaction.
type integrityTx struct {
	tx pgx.Tx
}

func (t *integrityTx) LockEntity(ctx context.Context, kind integrity.EntityKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, table)
	var got string
	if err := t.tx.QueryRow(ctx, query, id).Scan(&got); err != nil {
		if IsNoRows(err) {
			return notFoundFor(kind)
		}
		return fmt.Errorf("failed to lock entity: %w", err)
	}
	return nil
}

func (t *integrityTx) CountReferences(ctx context.Context, rel integrity.Relation, id string) (int, error) {
	return countReferences(ctx, t.tx, rel, id)
}

func (t *integrityTx) DetachReferences(ctx context.Context, rel integrity.Relation, id string) (int, error) {
	table, err := tableFor(rel.Child)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = NULL WHERE %s = $1`, table, rel.Column, rel.Column)
	tag, err := t.tx.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to detach references via %s: %w", rel, err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *integrityTx) CascadeDelete(ctx context.Context, rel integrity.Relation, id string) (int, error) {
	table, err := tableFor(rel.Child)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, rel.Column)
	tag, err := t.tx.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade delete via %s: %w", rel, err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *integrityTx) HardDelete(ctx context.Context, kind integrity.EntityKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	tag, err := t.tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundFor(kind)
	}
	return nil
}

func (t *integrityTx) SoftDeleteUser(ctx context.Context, id, actor string, at time.Time) error {
	query := `
		UPDATE users SET
			status     = $2,
			deleted_at = $3,
			deleted_by = $4,
			updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := t.tx.Exec(ctx, query, id, string(identity.StatusSoftDeleted), at, nilIfEmpty(actor))
	if err != nil {
		return fmt.Errorf("failed to soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if exists {
			return identity.ErrAlreadySoftDeleted
		}
		return identity.ErrUserNotFound
	}
	return nil
}

// countReferences runs the policy-relation count against any querier.
func countReferences(ctx context.Context, q Querier, rel integrity.Relation, id string) (int, error) {
	table, err := tableFor(rel.Child)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, rel.Column)
	var count int
	if err := q.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count references via %s: %w", rel, err)
	}
	return count, nil
}
