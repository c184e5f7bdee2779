package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRefs() Refs {
	return Refs{
		Aspect: &EvaluationAspect{
			ID:       "aspect-1",
			Name:     "Penguasaan Materi",
			Weight:   1.0,
			MinScore: 1,
			MaxScore: 4,
			IsActive: true,
		},
		Period: &Period{
			ID:           "period-1",
			AcademicYear: "2025/2026",
			Semester:     "Ganjil",
			IsActive:     true,
		},
		Teacher:       ReferencedUser{ID: "teacher-1", Exists: true, Eligible: true},
		Evaluator:     ReferencedUser{ID: "evaluator-1", Exists: true, Eligible: true},
		ScoredAspects: map[string]bool{},
		Now:           time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func validKey() ParentKey {
	return ParentKey{TeacherID: "teacher-1", PeriodID: "period-1", EvaluatorID: "evaluator-1"}
}

func TestValidateWrite_AcceptsValidItemCreate(t *testing.T) {
	c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: 3}

	result := ValidateWrite(c, validRefs())
	assert.True(t, result.OK())
}

func TestValidateWrite_RejectsDuplicateEvaluation(t *testing.T) {
	refs := validRefs()
	refs.ParentExists = true

	c := Candidate{Kind: WriteCreateEvaluation, Key: validKey()}
	result := ValidateWrite(c, refs)

	require.False(t, result.OK())
	assert.Equal(t, ViolationDuplicateEvaluation, result.Violation.Code)
}

func TestValidateWrite_RejectsDuplicateItem(t *testing.T) {
	refs := validRefs()
	refs.ScoredAspects["aspect-1"] = true

	c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: 3}
	result := ValidateWrite(c, refs)

	require.False(t, result.OK())
	assert.Equal(t, ViolationDuplicateItem, result.Violation.Code)
	assert.Equal(t, "aspect-1", result.Violation.EntityID)
}

func TestValidateWrite_UpdateRequiresExistingItem(t *testing.T) {
	c := Candidate{Kind: WriteUpdateItem, Key: validKey(), AspectID: "aspect-1", Score: 3}
	result := ValidateWrite(c, validRefs())

	require.False(t, result.OK())
	assert.Equal(t, ViolationItemMissing, result.Violation.Code)
}

func TestValidateWrite_RejectsScoreOutOfRange(t *testing.T) {
	tests := []float64{0.99, 4.01, -1, 100}
	for _, score := range tests {
		c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: score}
		result := ValidateWrite(c, validRefs())

		require.False(t, result.OK(), "score %.2f", score)
		assert.Equal(t, ViolationScoreOutOfRange, result.Violation.Code)
	}

	// Boundary values are inside the range.
	for _, score := range []float64{1, 4} {
		c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: score}
		assert.True(t, ValidateWrite(c, validRefs()).OK(), "score %.2f", score)
	}
}

func TestValidateWrite_UniquenessCheckedBeforeRange(t *testing.T) {
	// A write that is both a duplicate and out of range reports the
	// duplicate: checks run in a fixed order and the first failure wins.
	refs := validRefs()
	refs.ScoredAspects["aspect-1"] = true

	c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: 99}
	result := ValidateWrite(c, refs)

	require.False(t, result.OK())
	assert.Equal(t, ViolationDuplicateItem, result.Violation.Code)
}

func TestValidateWrite_RejectsMissingReferences(t *testing.T) {
	t.Run("missing aspect", func(t *testing.T) {
		refs := validRefs()
		refs.Aspect = nil

		c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "ghost", Score: 3}
		result := ValidateWrite(c, refs)

		require.False(t, result.OK())
		assert.Equal(t, ViolationMissingReference, result.Violation.Code)
	})

	t.Run("missing teacher", func(t *testing.T) {
		refs := validRefs()
		refs.Teacher = ReferencedUser{ID: "teacher-1"}

		c := Candidate{Kind: WriteCreateEvaluation, Key: validKey()}
		result := ValidateWrite(c, refs)

		require.False(t, result.OK())
		assert.Equal(t, ViolationMissingReference, result.Violation.Code)
		assert.Equal(t, "teacher-1", result.Violation.EntityID)
	})

	t.Run("missing evaluator", func(t *testing.T) {
		refs := validRefs()
		refs.Evaluator = ReferencedUser{ID: "evaluator-1"}

		c := Candidate{Kind: WriteCreateEvaluation, Key: validKey()}
		result := ValidateWrite(c, refs)

		require.False(t, result.OK())
		assert.Equal(t, ViolationMissingReference, result.Violation.Code)
	})

	t.Run("missing period", func(t *testing.T) {
		refs := validRefs()
		refs.Period = nil

		c := Candidate{Kind: WriteCreateEvaluation, Key: validKey()}
		result := ValidateWrite(c, refs)

		require.False(t, result.OK())
		assert.Equal(t, ViolationMissingReference, result.Violation.Code)
	})

	t.Run("empty key", func(t *testing.T) {
		c := Candidate{Kind: WriteCreateEvaluation, Key: ParentKey{TeacherID: "teacher-1"}}
		result := ValidateWrite(c, validRefs())

		require.False(t, result.OK())
		assert.Equal(t, ViolationMissingReference, result.Violation.Code)
	})
}

func TestValidateWrite_SoftDeletedUserBlocksNewEvaluationOnly(t *testing.T) {
	// A soft-deleted teacher still exists for historical resolution but
	// cannot be named in new evaluations.
	refs := validRefs()
	refs.Teacher.Eligible = false

	create := Candidate{Kind: WriteCreateEvaluation, Key: validKey()}
	result := ValidateWrite(create, refs)
	require.False(t, result.OK())
	assert.Equal(t, ViolationUserNotEligible, result.Violation.Code)

	// Rescoring an existing item of an existing evaluation is allowed.
	refs.ParentExists = true
	refs.ScoredAspects["aspect-1"] = true
	update := Candidate{Kind: WriteUpdateItem, Key: validKey(), AspectID: "aspect-1", Score: 2}
	assert.True(t, ValidateWrite(update, refs).OK())
}

func TestValidateWrite_RejectsInactiveAspect(t *testing.T) {
	refs := validRefs()
	refs.Aspect.IsActive = false

	c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: 3}
	result := ValidateWrite(c, refs)

	require.False(t, result.OK())
	assert.Equal(t, ViolationAspectInactive, result.Violation.Code)
}

func TestValidateWrite_RejectsInactivePeriod(t *testing.T) {
	refs := validRefs()
	refs.Period.IsActive = false

	c := Candidate{Kind: WriteCreateItem, Key: validKey(), AspectID: "aspect-1", Score: 3}
	result := ValidateWrite(c, refs)

	require.False(t, result.OK())
	assert.Equal(t, ViolationPeriodNotActive, result.Violation.Code)
	assert.Equal(t, "period-1", result.Violation.EntityID)
}

func TestValidateAspectEdit_FreezesWeightAndRangeOnceReferenced(t *testing.T) {
	current := &EvaluationAspect{
		ID: "aspect-1", Name: "Penguasaan Materi",
		Weight: 1.0, MinScore: 1, MaxScore: 4,
	}

	t.Run("unreferenced aspect is fully editable", func(t *testing.T) {
		proposed := *current
		proposed.Weight = 2.0
		proposed.MaxScore = 5
		assert.True(t, ValidateAspectEdit(current, &proposed, false).OK())
	})

	t.Run("referenced aspect rejects weight change", func(t *testing.T) {
		proposed := *current
		proposed.Weight = 2.0
		result := ValidateAspectEdit(current, &proposed, true)
		require.False(t, result.OK())
		assert.Equal(t, ViolationAspectFrozen, result.Violation.Code)
	})

	t.Run("referenced aspect rejects range change", func(t *testing.T) {
		proposed := *current
		proposed.MinScore = 0
		result := ValidateAspectEdit(current, &proposed, true)
		require.False(t, result.OK())
		assert.Equal(t, ViolationAspectFrozen, result.Violation.Code)
	})

	t.Run("referenced aspect still allows descriptive edits", func(t *testing.T) {
		proposed := *current
		proposed.Description = "updated description"
		proposed.DisplayOrder = 7
		assert.True(t, ValidateAspectEdit(current, &proposed, true).OK())
	})

	t.Run("invalid proposal rejected regardless", func(t *testing.T) {
		proposed := *current
		proposed.Weight = -1
		assert.False(t, ValidateAspectEdit(current, &proposed, false).OK())
	})
}
