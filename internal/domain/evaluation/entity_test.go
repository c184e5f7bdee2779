package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplySummary(t *testing.T) {
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("publishes derived fields", func(t *testing.T) {
		e := &TeacherEvaluation{}
		e.ApplySummary(Summary{Total: 7, Average: 2.33, Grade: GradeC, Graded: true}, now)

		assert.Equal(t, 7.0, e.TotalScore)
		assert.Equal(t, 2.33, e.AverageScore)
		assert.True(t, e.IsGraded())
		assert.Equal(t, GradeC, *e.FinalGrade)
		assert.Equal(t, now, e.LastRecomputedAt)
	})

	t.Run("ungraded summary clears the grade", func(t *testing.T) {
		g := GradeB
		e := &TeacherEvaluation{TotalScore: 6, AverageScore: 3, FinalGrade: &g}
		e.ApplySummary(Summary{}, now)

		assert.False(t, e.IsGraded())
		assert.Nil(t, e.FinalGrade)
		assert.Equal(t, 0.0, e.TotalScore)
	})

	t.Run("recompute timestamp never moves backwards", func(t *testing.T) {
		e := &TeacherEvaluation{LastRecomputedAt: now}
		earlier := now.Add(-time.Minute)

		e.ApplySummary(Summary{Total: 1, Average: 1, Grade: GradeD, Graded: true}, earlier)
		assert.Equal(t, now, e.LastRecomputedAt)

		later := now.Add(time.Minute)
		e.ApplySummary(Summary{Total: 1, Average: 1, Grade: GradeD, Graded: true}, later)
		assert.Equal(t, later, e.LastRecomputedAt)
	})
}

func TestGrade(t *testing.T) {
	assert.Equal(t, 4.0, GradeA.Score())
	assert.Equal(t, 3.0, GradeB.Score())
	assert.Equal(t, 2.0, GradeC.Score())
	assert.Equal(t, 1.0, GradeD.Score())

	assert.True(t, GradeA.IsValid())
	assert.False(t, Grade("E").IsValid())
	assert.False(t, Grade("").IsValid())

	assert.Equal(t, "Excellent", GradeA.Description())
	assert.Equal(t, "Needs Improvement", GradeD.Description())
}

func TestParentKey_Validate(t *testing.T) {
	valid := ParentKey{TeacherID: "t", PeriodID: "p", EvaluatorID: "e"}
	assert.NoError(t, valid.Validate())

	for _, k := range []ParentKey{
		{},
		{TeacherID: "t"},
		{TeacherID: "t", PeriodID: "p"},
		{PeriodID: "p", EvaluatorID: "e"},
	} {
		assert.ErrorIs(t, k.Validate(), ErrInvalidParentKey)
	}
}

func TestPeriod_Contains(t *testing.T) {
	p := &Period{
		StartDate: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, p.Contains(p.StartDate))
	assert.True(t, p.Contains(p.EndDate))
	assert.True(t, p.Contains(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(p.StartDate.Add(-time.Second)))
	assert.False(t, p.Contains(p.EndDate.Add(time.Second)))
}

func TestPeriod_Name(t *testing.T) {
	p := &Period{AcademicYear: "2025/2026", Semester: "Ganjil"}
	assert.Equal(t, "2025/2026 - Ganjil", p.Name())
}

func TestItem_SameSubmission(t *testing.T) {
	item := &TeacherEvaluationItem{GradeLetter: GradeB, Score: 3, Notes: "solid"}

	assert.True(t, item.SameSubmission(GradeB, 3, "solid"))
	assert.False(t, item.SameSubmission(GradeA, 4, "solid"))
	assert.False(t, item.SameSubmission(GradeB, 3, "different notes"))
}

func TestAspect_Validate(t *testing.T) {
	valid := &EvaluationAspect{Name: "Kedisiplinan", Weight: 1, MinScore: 1, MaxScore: 4}
	assert.NoError(t, valid.Validate())

	noName := &EvaluationAspect{Weight: 1, MinScore: 1, MaxScore: 4}
	assert.ErrorIs(t, noName.Validate(), ErrInvalidAspectName)

	zeroWeight := &EvaluationAspect{Name: "x", Weight: 0, MinScore: 1, MaxScore: 4}
	assert.ErrorIs(t, zeroWeight.Validate(), ErrInvalidAspectWeight)

	badRange := &EvaluationAspect{Name: "x", Weight: 1, MinScore: 5, MaxScore: 4}
	assert.ErrorIs(t, badRange.Validate(), ErrInvalidAspectRange)
}
