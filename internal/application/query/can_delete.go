// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CAN DELETE QUERY
// Speculative dry-run of the deletion policy: answers what a delete of this
// entity would do without taking locks or mutating anything. The answer can
// go stale the moment it is returned; the delete command re-checks under
// its own lock and is the only authority.
// ══════════════════════════════════════════════════════════════════════════════

// CanDeleteQuery identifies the entity to probe.
type CanDeleteQuery struct {
	Kind     integrity.EntityKind
	EntityID string
}

// Validate validates the query parameters.
func (q CanDeleteQuery) Validate() error {
	if !q.Kind.IsValid() {
		return shared.ErrUnknownEntity
	}
	if q.EntityID == "" {
		return shared.NewDomainError("integrity", "CanDelete", shared.ErrEmptyValue, "entity_id is required")
	}
	return nil
}

// BlockingReferenceDTO names one relation holding references.
type BlockingReferenceDTO struct {
	ChildKind string `json:"child_kind"`
	Column    string `json:"column"`
	Count     int    `json:"count"`
}

// CanDeleteResult is the dry-run answer.
type CanDeleteResult struct {
	// CanDelete is true when a hard delete would succeed right now.
	CanDelete bool `json:"can_delete"`

	// RequiresSoftDelete is true when history blocks a hard delete but a
	// soft delete is available instead.
	RequiresSoftDelete bool `json:"requires_soft_delete"`

	// Blocked is true when the deletion would be refused outright.
	Blocked bool `json:"blocked"`

	// Reason is a human-readable rendering of the blocking relations.
	Reason string `json:"reason,omitempty"`

	// BlockedBy lists the blocking relations with reference counts.
	BlockedBy []BlockingReferenceDTO `json:"blocked_by,omitempty"`
}

// CanDeleteHandler handles the CanDeleteQuery.
type CanDeleteHandler struct {
	store integrity.Store
}

// NewCanDeleteHandler creates a new CanDeleteHandler.
func NewCanDeleteHandler(store integrity.Store) *CanDeleteHandler {
	return &CanDeleteHandler{store: store}
}

// Handle runs the dry-run.
func (h *CanDeleteHandler) Handle(ctx context.Context, q CanDeleteQuery) (*CanDeleteResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	exists, err := h.store.Exists(ctx, q.Kind, q.EntityID)
	if err != nil {
		return nil, shared.WrapError("integrity", "CanDelete", shared.ErrStorage, "existence check failed", err)
	}
	if !exists {
		return nil, shared.NewDomainError("integrity", "CanDelete", shared.ErrNotFound, "entity not found")
	}

	decision, err := integrity.Decide(ctx, h.store, q.Kind, q.EntityID)
	if err != nil {
		return nil, err
	}

	result := &CanDeleteResult{Reason: decision.Reason()}
	for _, b := range decision.BlockedBy {
		result.BlockedBy = append(result.BlockedBy, BlockingReferenceDTO{
			ChildKind: string(b.Relation.Child),
			Column:    b.Relation.Column,
			Count:     b.Count,
		})
	}

	switch decision.Kind {
	case integrity.DecisionHard:
		result.CanDelete = true
	case integrity.DecisionSoftDeleteRequired:
		result.RequiresSoftDelete = true
	case integrity.DecisionBlocked:
		result.Blocked = true
	}

	return result, nil
}
