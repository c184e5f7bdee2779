package evaluation

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRAINT VALIDATOR
// A guard, not a mutator: pure functions over a proposed write and a snapshot
// of current persisted state. Expected violations are returned as tagged
// values, never as panics; only storage failures reach the caller as errors,
// and those happen while assembling the snapshot, not here.
// ══════════════════════════════════════════════════════════════════════════════

// WriteKind tags the kind of proposed write being validated.
type WriteKind string

const (
	// WriteCreateEvaluation - creating a new parent for a (teacher,
	// period, evaluator) triple.
	WriteCreateEvaluation WriteKind = "create_evaluation"

	// WriteCreateItem - recording a score for an aspect not yet present
	// in the parent's child set.
	WriteCreateItem WriteKind = "create_item"

	// WriteUpdateItem - rescoring an aspect already present.
	WriteUpdateItem WriteKind = "update_item"

	// WriteUpdateNotes - updating the parent's summary notes.
	WriteUpdateNotes WriteKind = "update_notes"
)

// ViolationCode identifies the specific constraint that failed.
type ViolationCode string

const (
	// ViolationDuplicateItem - two items would share (parent, aspect).
	ViolationDuplicateItem ViolationCode = "duplicate_item"

	// ViolationDuplicateEvaluation - two parents would share
	// (teacher, period, evaluator).
	ViolationDuplicateEvaluation ViolationCode = "duplicate_evaluation"

	// ViolationScoreOutOfRange - the raw score is outside the aspect's
	// [min, max] at write time.
	ViolationScoreOutOfRange ViolationCode = "score_out_of_range"

	// ViolationMissingReference - a referenced entity does not resolve to
	// a live record.
	ViolationMissingReference ViolationCode = "missing_reference"

	// ViolationUserNotEligible - a referenced user exists but cannot be
	// named in new evaluations (soft-deleted or suspended).
	ViolationUserNotEligible ViolationCode = "user_not_eligible"

	// ViolationAspectInactive - the aspect exists but is not active.
	ViolationAspectInactive ViolationCode = "aspect_inactive"

	// ViolationPeriodNotActive - the period is not accepting writes.
	ViolationPeriodNotActive ViolationCode = "period_not_active"

	// ViolationItemMissing - an update names an aspect with no item.
	ViolationItemMissing ViolationCode = "item_missing"

	// ViolationAspectFrozen - an edit would change the weight or range of
	// an aspect that persisted items already reference.
	ViolationAspectFrozen ViolationCode = "aspect_frozen"
)

// Violation is a specific constraint failure. It carries the identifier of
// the offending entity so callers can build a precise message.
type Violation struct {
	Code     ViolationCode
	EntityID string
	Message  string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// ValidationResult is acceptance or a specific violation.
type ValidationResult struct {
	Violation *Violation
}

// OK reports whether the write was accepted.
func (r ValidationResult) OK() bool {
	return r.Violation == nil
}

func accept() ValidationResult {
	return ValidationResult{}
}

func reject(code ViolationCode, entityID, message string) ValidationResult {
	return ValidationResult{Violation: &Violation{Code: code, EntityID: entityID, Message: message}}
}

// ReferencedUser is the liveness snapshot of a user named by a write.
type ReferencedUser struct {
	ID       string
	Exists   bool
	Eligible bool // may be named in NEW evaluations
}

// Candidate is a proposed write against a parent evaluation.
type Candidate struct {
	Kind  WriteKind
	Key   ParentKey
	Score float64

	// AspectID is set for item writes.
	AspectID string
}

// Refs is the snapshot of current persisted state a validation needs. The
// caller (the aggregation engine, inside its transaction) assembles it; the
// validator itself never touches storage.
type Refs struct {
	// Aspect is the referenced aspect, nil when it does not exist.
	Aspect *EvaluationAspect

	// Period is the referenced period, nil when it does not exist.
	Period *Period

	// Teacher and Evaluator are the referenced users.
	Teacher   ReferencedUser
	Evaluator ReferencedUser

	// ParentExists reports whether a parent already occupies the triple.
	ParentExists bool

	// ScoredAspects is the set of aspect IDs already present in the
	// parent's child set.
	ScoredAspects map[string]bool

	// Now is the validation clock, injected for determinism in tests.
	Now time.Time
}

// ValidateWrite checks a proposed write against the snapshot. Checks run in
// a fixed order: uniqueness, range, referential existence, period gating.
// The first failed check wins.
func ValidateWrite(c Candidate, refs Refs) ValidationResult {
	if err := c.Key.Validate(); err != nil {
		return reject(ViolationMissingReference, "", err.Error())
	}

	// Uniqueness.
	switch c.Kind {
	case WriteCreateEvaluation:
		if refs.ParentExists {
			return reject(ViolationDuplicateEvaluation, c.Key.TeacherID,
				"an evaluation already exists for this teacher, period and evaluator")
		}
	case WriteCreateItem:
		if refs.ScoredAspects[c.AspectID] {
			return reject(ViolationDuplicateItem, c.AspectID,
				"this aspect is already scored for the evaluation")
		}
	case WriteUpdateItem:
		if !refs.ScoredAspects[c.AspectID] {
			return reject(ViolationItemMissing, c.AspectID,
				"no item exists for this aspect")
		}
	case WriteUpdateNotes:
		if !refs.ParentExists {
			return reject(ViolationMissingReference, c.Key.TeacherID,
				"no evaluation exists for this teacher, period and evaluator")
		}
	}

	// Range, against the aspect's declared bounds at write time.
	if c.Kind == WriteCreateItem || c.Kind == WriteUpdateItem {
		if refs.Aspect == nil {
			return reject(ViolationMissingReference, c.AspectID, "aspect does not exist")
		}
		if !refs.Aspect.InRange(c.Score) {
			return reject(ViolationScoreOutOfRange, c.AspectID,
				fmt.Sprintf("score %.2f outside [%.2f, %.2f]", c.Score, refs.Aspect.MinScore, refs.Aspect.MaxScore))
		}
		if !refs.Aspect.IsActive {
			return reject(ViolationAspectInactive, c.AspectID, "aspect is not active")
		}
	}

	// Referential existence and liveness.
	if !refs.Teacher.Exists {
		return reject(ViolationMissingReference, c.Key.TeacherID, "teacher does not exist")
	}
	if !refs.Evaluator.Exists {
		return reject(ViolationMissingReference, c.Key.EvaluatorID, "evaluator does not exist")
	}
	if refs.Period == nil {
		return reject(ViolationMissingReference, c.Key.PeriodID, "period does not exist")
	}
	if c.Kind == WriteCreateEvaluation {
		if !refs.Teacher.Eligible {
			return reject(ViolationUserNotEligible, c.Key.TeacherID,
				"teacher cannot be named in new evaluations")
		}
		if !refs.Evaluator.Eligible {
			return reject(ViolationUserNotEligible, c.Key.EvaluatorID,
				"evaluator cannot be named in new evaluations")
		}
	}

	// Temporal gating: writes are only accepted while the period is active.
	if !refs.Period.IsActive {
		return reject(ViolationPeriodNotActive, refs.Period.ID,
			fmt.Sprintf("period %s is not active", refs.Period.Name()))
	}

	return accept()
}

// ValidateAspectEdit enforces the immutability rule: an aspect's weight and
// score range are frozen once any persisted item references it.
func ValidateAspectEdit(current, proposed *EvaluationAspect, referenced bool) ValidationResult {
	if err := proposed.Validate(); err != nil {
		return reject(ViolationMissingReference, proposed.ID, err.Error())
	}
	if !referenced {
		return accept()
	}
	if current.Weight != proposed.Weight ||
		current.MinScore != proposed.MinScore ||
		current.MaxScore != proposed.MaxScore {
		return reject(ViolationAspectFrozen, current.ID,
			"weight and range are frozen once the aspect is referenced; create a new aspect version instead")
	}
	return accept()
}
