// Package integrity governs deletion and cascade behavior for every entity
// relationship in the domain. The policy is data: one declarative table
// consulted by one generic deletion routine, so the rules stay auditable and
// testable without touching storage.
package integrity

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY KINDS
// ══════════════════════════════════════════════════════════════════════════════

// EntityKind names a deletable entity type.
type EntityKind string

const (
	KindOrganization  EntityKind = "organization"
	KindUser          EntityKind = "user"
	KindUserRole      EntityKind = "user_role"
	KindEvaluation    EntityKind = "teacher_evaluation"
	KindItem          EntityKind = "teacher_evaluation_item"
	KindMediaFile     EntityKind = "media_file"
	KindRPPSubmission EntityKind = "rpp_submission"
)

// IsValid reports whether the kind is known to the policy.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindOrganization, KindUser, KindUserRole, KindEvaluation,
		KindItem, KindMediaFile, KindRPPSubmission:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIONS & POLICY TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Action is what happens to referencing children when their parent is deleted.
type Action string

const (
	// ActionDetach clears the reference on the child; the child survives.
	ActionDetach Action = "detach"

	// ActionCascade deletes the referencing children with the parent.
	ActionCascade Action = "cascade"

	// ActionBlock refuses the deletion while any reference exists.
	ActionBlock Action = "block"

	// ActionBlockOrSoftDelete refuses hard deletion while any reference
	// exists, but a soft delete of the parent is offered instead: the row
	// is retained, marked deleted, and keeps resolving for readers.
	ActionBlockOrSoftDelete Action = "block_or_soft_delete"
)

// Relation is one row of the deletion policy: a referencing column on a
// child entity and the action taken when the referenced parent is deleted.
type Relation struct {
	Parent   EntityKind
	Child    EntityKind
	Column   string
	OnDelete Action
}

func (r Relation) String() string {
	return fmt.Sprintf("%s -> %s.%s (%s)", r.Parent, r.Child, r.Column, r.OnDelete)
}

// DeletionPolicy is the authoritative cascade table. Order within a parent
// matters: blocking relations are checked before any mutation happens.
var DeletionPolicy = []Relation{
	// Organization deletion detaches everything that points at it; users,
	// roles and files survive with the reference absent. The head pointer
	// lives on the organization row itself and disappears with it.
	{Parent: KindOrganization, Child: KindUser, Column: "organization_id", OnDelete: ActionDetach},
	{Parent: KindOrganization, Child: KindUserRole, Column: "organization_id", OnDelete: ActionDetach},
	{Parent: KindOrganization, Child: KindMediaFile, Column: "organization_id", OnDelete: ActionDetach},

	// User deletion: role assignments are meaningless without the user,
	// uploaded files survive anonymous, a headship passes back to nobody.
	// Evaluation and RPP history protects the user from hard deletion.
	{Parent: KindUser, Child: KindUserRole, Column: "user_id", OnDelete: ActionCascade},
	{Parent: KindUser, Child: KindMediaFile, Column: "uploader_id", OnDelete: ActionDetach},
	{Parent: KindUser, Child: KindOrganization, Column: "head_id", OnDelete: ActionDetach},
	{Parent: KindUser, Child: KindEvaluation, Column: "teacher_id", OnDelete: ActionBlockOrSoftDelete},
	{Parent: KindUser, Child: KindEvaluation, Column: "evaluator_id", OnDelete: ActionBlockOrSoftDelete},
	{Parent: KindUser, Child: KindRPPSubmission, Column: "teacher_id", OnDelete: ActionBlockOrSoftDelete},
	{Parent: KindUser, Child: KindRPPSubmission, Column: "reviewer_id", OnDelete: ActionBlockOrSoftDelete},

	// Children are meaningless without their parent evaluation.
	{Parent: KindEvaluation, Child: KindItem, Column: "teacher_evaluation_id", OnDelete: ActionCascade},

	// A submission must always resolve its attached document.
	{Parent: KindMediaFile, Child: KindRPPSubmission, Column: "file_id", OnDelete: ActionBlock},
}

// RelationsFor returns the policy rows for a parent kind, in table order.
func RelationsFor(kind EntityKind) []Relation {
	var rels []Relation
	for _, r := range DeletionPolicy {
		if r.Parent == kind {
			rels = append(rels, r)
		}
	}
	return rels
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISIONS & OUTCOMES
// ══════════════════════════════════════════════════════════════════════════════

// DecisionKind classifies what a deletion request may do.
type DecisionKind string

const (
	// DecisionHard - the entity can be hard-deleted.
	DecisionHard DecisionKind = "hard"

	// DecisionSoftDeleteRequired - hard deletion is blocked by history,
	// but a soft delete is available.
	DecisionSoftDeleteRequired DecisionKind = "soft_delete_required"

	// DecisionBlocked - the deletion is refused outright.
	DecisionBlocked DecisionKind = "blocked"
)

// Decision is the speculative (dry-run) answer to "can this be deleted".
type Decision struct {
	Kind DecisionKind

	// BlockedBy lists the relations that prevented a hard delete, with
	// the number of referencing records found for each.
	BlockedBy []BlockingReference
}

// BlockingReference names one relation that holds references to the entity.
type BlockingReference struct {
	Relation Relation
	Count    int
}

// Reason renders the blocking relationships for caller-facing messages.
func (d Decision) Reason() string {
	if len(d.BlockedBy) == 0 {
		return ""
	}
	s := ""
	for i, b := range d.BlockedBy {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%d record(s) via %s", b.Count, b.Relation)
	}
	return s
}

// Outcome reports what a performed deletion actually did.
type Outcome struct {
	Kind     EntityKind
	EntityID string

	// SoftDeleted is true when the entity was retained and marked deleted.
	SoftDeleted bool

	// Detached and Cascaded count affected child records per relation.
	Detached map[string]int
	Cascaded map[string]int

	DeletedAt time.Time
	DeletedBy string
}
