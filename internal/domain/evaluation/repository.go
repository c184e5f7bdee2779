package evaluation

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract. Implementations live in
// infrastructure/persistence. The parent-plus-children set for one triple is
// the unit of mutual exclusion: all mutations to it run through WithParent,
// which holds the parent's row lock for the whole transaction.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for parent evaluations and items.
type Repository interface {
	// GetByID returns a parent evaluation by ID.
	// Returns ErrEvaluationNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*TeacherEvaluation, error)

	// GetByKey returns the parent evaluation for a triple.
	// Returns ErrEvaluationNotFound if it does not exist.
	GetByKey(ctx context.Context, key ParentKey) (*TeacherEvaluation, error)

	// ListItems returns all child items of a parent, ordered by aspect ID
	// so recomputation is deterministic.
	ListItems(ctx context.Context, evaluationID string) ([]*TeacherEvaluationItem, error)

	// ListByPeriod returns all parent evaluations in a period.
	ListByPeriod(ctx context.Context, periodID string) ([]*TeacherEvaluation, error)

	// ListByTeacher returns all parent evaluations naming a teacher.
	ListByTeacher(ctx context.Context, teacherID string) ([]*TeacherEvaluation, error)

	// ListStaleSummaries returns up to limit parents whose summary was
	// last recomputed before the cutoff, oldest first, for the worker's
	// consistency sweep.
	ListStaleSummaries(ctx context.Context, cutoff time.Time, limit int) ([]*TeacherEvaluation, error)

	// CountForUser returns how many evaluations name the user as teacher
	// or evaluator. Zero means the user has no evaluation history.
	CountForUser(ctx context.Context, userID string) (int, error)

	// WithParent runs fn inside one transaction holding the parent's row
	// lock. When create is true and no parent occupies the key, one is
	// created (and locked) within the same transaction; otherwise a
	// missing parent yields ErrEvaluationNotFound. If fn returns an
	// error the transaction rolls back and no partial mutation is ever
	// visible to any reader.
	WithParent(ctx context.Context, key ParentKey, create bool, fn func(tx ParentTx) error) error

	// DeleteWithItems removes a parent and all its children as one unit.
	DeleteWithItems(ctx context.Context, evaluationID string) error
}

// ParentTx is the view of one locked parent inside a WithParent transaction.
type ParentTx interface {
	// Parent returns the locked parent row.
	Parent() *TeacherEvaluation

	// Created reports whether the parent was created by this transaction.
	Created() bool

	// Items returns the parent's current full child set, ordered by
	// aspect ID.
	Items(ctx context.Context) ([]*TeacherEvaluationItem, error)

	// PutItem inserts or replaces the child for the item's aspect.
	PutItem(ctx context.Context, item *TeacherEvaluationItem) error

	// DeleteItem removes the child for an aspect.
	// Returns ErrItemNotFound when no such child exists.
	DeleteItem(ctx context.Context, aspectID string) error

	// PublishSummary persists the parent's recomputed derived fields in
	// the same transaction as the child mutation.
	PublishSummary(ctx context.Context, parent *TeacherEvaluation) error
}

// PeriodRepository defines storage operations for periods.
type PeriodRepository interface {
	// Create creates a period.
	// Returns ErrPeriodExists when the (academic year, semester) pair is taken.
	Create(ctx context.Context, period *Period) error

	// GetByID returns a period by ID.
	// Returns ErrPeriodNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Period, error)

	// GetActive returns the currently active period, if any.
	GetActive(ctx context.Context) (*Period, error)

	// Activate marks one period active and deactivates all others.
	Activate(ctx context.Context, id string) error

	// Update persists changes to a period.
	Update(ctx context.Context, period *Period) error
}

// AspectRepository defines storage operations for evaluation aspects.
type AspectRepository interface {
	// Create creates an aspect.
	Create(ctx context.Context, aspect *EvaluationAspect) error

	// GetByID returns an aspect by ID.
	// Returns ErrAspectNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*EvaluationAspect, error)

	// ListActive returns all active aspects ordered by category and
	// display order.
	ListActive(ctx context.Context) ([]*EvaluationAspect, error)

	// IsReferenced reports whether any persisted item references the
	// aspect. Referenced aspects have frozen weight and range.
	IsReferenced(ctx context.Context, id string) (bool, error)

	// Update persists changes to an aspect. The caller must have enforced
	// the immutability rule via ValidateAspectEdit first.
	Update(ctx context.Context, aspect *EvaluationAspect) error
}

// SummaryCache caches parent summaries on the read path. Implementations
// must tolerate being unavailable - a cache error never fails a mutation.
type SummaryCache interface {
	// Get returns the cached summary for a parent key.
	Get(ctx context.Context, key ParentKey) (*TeacherEvaluation, error)

	// Set stores a summary with the given TTL.
	Set(ctx context.Context, evaluation *TeacherEvaluation, ttl time.Duration) error

	// Invalidate drops the cached summary for a parent key.
	Invalidate(ctx context.Context, key ParentKey) error

	// InvalidateTeacher drops every cached summary naming a teacher.
	// Used when a deletion removes or freezes all of a teacher's
	// evaluations at once.
	InvalidateTeacher(ctx context.Context, teacherID string) error
}
