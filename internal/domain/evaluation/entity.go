// Package evaluation contains the domain model for periodic teacher
// performance evaluations: periods, scored aspects, the per-teacher parent
// summary and its per-aspect child items. The parent's totals are derived
// state - they are never written directly, only recomputed from the current
// child set.
package evaluation

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Period is a bounded academic interval (one semester) during which
// evaluations may be recorded. Unique per (academic year, semester).
type Period struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// AcademicYear like "2024/2025".
	AcademicYear string

	// Semester like "Ganjil" or "Genap".
	Semester string

	// StartDate and EndDate bound the interval.
	StartDate time.Time
	EndDate   time.Time

	// IsActive gates writes: evaluations may only be recorded against an
	// active period.
	IsActive bool

	// Description is optional free text.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Name returns the formatted period name.
func (p *Period) Name() string {
	return p.AcademicYear + " - " + p.Semester
}

// Contains reports whether a date falls within the period.
func (p *Period) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION ASPECT
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationAspect is a named, weighted dimension of teaching performance.
// Weight and score range are frozen once any persisted item references the
// aspect; changing them requires a new aspect version so historical scores
// keep their meaning.
type EvaluationAspect struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// Name is the aspect name, e.g. "Penguasaan Materi".
	Name string

	// Category groups related aspects, e.g. "Pedagogik".
	Category string

	// Description is optional free text.
	Description string

	// Weight is the multiplier applied to raw scores. Must be positive.
	Weight float64

	// MinScore and MaxScore bound permissible raw scores. Min <= Max.
	MinScore float64
	MaxScore float64

	// DisplayOrder controls presentation ordering within a category.
	DisplayOrder int

	// IsActive - inactive aspects are rejected for new items but keep
	// resolving for historical ones.
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the aspect's own invariants.
func (a *EvaluationAspect) Validate() error {
	if a.Name == "" {
		return ErrInvalidAspectName
	}
	if a.Weight <= 0 {
		return ErrInvalidAspectWeight
	}
	if a.MinScore > a.MaxScore {
		return ErrInvalidAspectRange
	}
	return nil
}

// InRange reports whether a raw score lies within the aspect's declared range.
func (a *EvaluationAspect) InRange(score float64) bool {
	return score >= a.MinScore && score <= a.MaxScore
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE LETTERS
// ══════════════════════════════════════════════════════════════════════════════

// Grade is one of four ordinal result bands.
type Grade string

const (
	GradeA Grade = "A" // Excellent
	GradeB Grade = "B" // Good
	GradeC Grade = "C" // Satisfactory
	GradeD Grade = "D" // Needs Improvement
)

// IsValid reports whether the grade is a known letter.
func (g Grade) IsValid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD:
		return true
	default:
		return false
	}
}

// Score returns the numeric score for a letter on the 4-point scale.
func (g Grade) Score() float64 {
	switch g {
	case GradeA:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	case GradeD:
		return 1
	default:
		return 0
	}
}

// Description returns the human-readable meaning of the grade.
func (g Grade) Description() string {
	switch g {
	case GradeA:
		return "Excellent"
	case GradeB:
		return "Good"
	case GradeC:
		return "Satisfactory"
	case GradeD:
		return "Needs Improvement"
	default:
		return "Unknown"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PARENT: TEACHER EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// ParentKey identifies the one summary record per teacher per period per
// evaluator. The parent plus its children is the unit of mutual exclusion.
type ParentKey struct {
	TeacherID   string
	PeriodID    string
	EvaluatorID string
}

// Validate checks that all three references are present.
func (k ParentKey) Validate() error {
	if k.TeacherID == "" || k.PeriodID == "" || k.EvaluatorID == "" {
		return ErrInvalidParentKey
	}
	return nil
}

// TeacherEvaluation is the parent/aggregate record. TotalScore, AverageScore
// and FinalGrade are derived - they always equal the deterministic function
// of the current child set and are republished on every child mutation.
type TeacherEvaluation struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// TeacherID references the evaluated teacher.
	TeacherID string

	// EvaluatorID references the user who conducts the evaluation.
	EvaluatorID string

	// PeriodID references the period the evaluation belongs to.
	PeriodID string

	// TotalScore is the weighted sum over all child items.
	TotalScore float64

	// AverageScore is TotalScore / item count, 0 when there are no items.
	AverageScore float64

	// FinalGrade is nil while the evaluation has no items - a parent with
	// zero children has no meaningful grade and must be rendered as
	// "not yet evaluated", never as the lowest band.
	FinalGrade *Grade

	// FinalNotes is the evaluator's optional summary.
	FinalNotes string

	// LastRecomputedAt advances monotonically with every recompute.
	LastRecomputedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the parent's identifying triple.
func (e *TeacherEvaluation) Key() ParentKey {
	return ParentKey{
		TeacherID:   e.TeacherID,
		PeriodID:    e.PeriodID,
		EvaluatorID: e.EvaluatorID,
	}
}

// IsGraded reports whether the evaluation has a meaningful grade.
func (e *TeacherEvaluation) IsGraded() bool {
	return e.FinalGrade != nil
}

// ApplySummary republishes the derived fields from a recompute. The
// last-recomputed timestamp never moves backwards even if clocks wobble.
func (e *TeacherEvaluation) ApplySummary(s Summary, at time.Time) {
	e.TotalScore = s.Total
	e.AverageScore = s.Average
	if s.Graded {
		g := s.Grade
		e.FinalGrade = &g
	} else {
		e.FinalGrade = nil
	}
	if at.After(e.LastRecomputedAt) {
		e.LastRecomputedAt = at
	}
	e.UpdatedAt = at
}

// ══════════════════════════════════════════════════════════════════════════════
// CHILD: TEACHER EVALUATION ITEM
// ══════════════════════════════════════════════════════════════════════════════

// TeacherEvaluationItem is one per-aspect score within a parent evaluation.
// Unique per (parent, aspect). WeightApplied is captured at write time, not
// re-read from the aspect, so later aspect-weight edits never retroactively
// change historical results.
type TeacherEvaluationItem struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// EvaluationID references the parent evaluation.
	EvaluationID string

	// AspectID references the scored aspect.
	AspectID string

	// GradeLetter is the letter the evaluator recorded (A-D).
	GradeLetter Grade

	// Score is the raw numeric score derived from the letter at write
	// time, within the aspect's declared range.
	Score float64

	// WeightApplied is the aspect weight captured when the item was
	// written.
	WeightApplied float64

	// Notes is optional per-aspect commentary.
	Notes string

	// EvaluatedAt is when this aspect was last scored.
	EvaluatedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Weighted returns the item's (score, weight) pair for the calculator.
func (i *TeacherEvaluationItem) Weighted() WeightedScore {
	return WeightedScore{Score: i.Score, Weight: i.WeightApplied}
}

// SameSubmission reports whether a resubmission carries an identical payload,
// in which case the stored summary must not change beyond the timestamp.
func (i *TeacherEvaluationItem) SameSubmission(grade Grade, score float64, notes string) bool {
	return i.GradeLetter == grade && i.Score == score && i.Notes == notes
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidParentKey - a parent key is missing one of its three references.
	ErrInvalidParentKey = errors.New("invalid parent key: teacher, period and evaluator are required")

	// ErrInvalidAspectName - the aspect name is required.
	ErrInvalidAspectName = errors.New("invalid aspect: name is required")

	// ErrInvalidAspectWeight - the aspect weight must be positive.
	ErrInvalidAspectWeight = errors.New("invalid aspect: weight must be positive")

	// ErrInvalidAspectRange - the aspect's minimum score exceeds its maximum.
	ErrInvalidAspectRange = errors.New("invalid aspect: min score exceeds max score")

	// ErrInvalidGrade - the grade letter is unknown.
	ErrInvalidGrade = errors.New("invalid grade letter")

	// ErrEvaluationNotFound - the parent evaluation does not exist.
	ErrEvaluationNotFound = errors.New("teacher evaluation not found")

	// ErrItemNotFound - no item exists for the given (parent, aspect).
	ErrItemNotFound = errors.New("evaluation item not found")

	// ErrPeriodNotFound - the period does not exist.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrAspectNotFound - the aspect does not exist.
	ErrAspectNotFound = errors.New("evaluation aspect not found")

	// ErrPeriodExists - a period with this academic year and semester exists.
	ErrPeriodExists = errors.New("period already exists for academic year and semester")
)
