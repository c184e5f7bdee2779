package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
)

// seedScoredEvaluation creates a fully scored parent through the real
// creation path so removal tests start from committed state.
func seedScoredEvaluation(t *testing.T, f *fixture) {
	t.Helper()
	_, err := f.createHandler().Handle(context.Background(), CreateEvaluationCommand{
		Key: f.key,
		Items: []ItemInput{
			{AspectID: "aspect-1", GradeLetter: evaluation.GradeB},
			{AspectID: "aspect-2", GradeLetter: evaluation.GradeA},
			{AspectID: "aspect-3", GradeLetter: evaluation.GradeC},
		},
		ActorID: "evaluator-1",
	})
	require.NoError(t, err)
	f.cache.invalidated = nil
}

func TestRemoveItem_RecomputesOverRemainingSet(t *testing.T) {
	f := newFixture()
	seedScoredEvaluation(t, f)
	h := f.removeHandler()

	res, err := h.Handle(context.Background(), RemoveItemCommand{
		Key: f.key, AspectID: "aspect-2", ActorID: "evaluator-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ItemCount)
	assert.Equal(t, 5.0, res.Evaluation.TotalScore)
	assert.Equal(t, 2.5, res.Evaluation.AverageScore)
	require.NotNil(t, res.Evaluation.FinalGrade)
	assert.Equal(t, evaluation.GradeB, *res.Evaluation.FinalGrade)

	require.Len(t, f.cache.invalidated, 1)
	assert.Equal(t, f.key, f.cache.invalidated[0])
}

func TestRemoveItem_LastItemLeavesParentUngraded(t *testing.T) {
	f := newFixture()
	seedScoredEvaluation(t, f)
	h := f.removeHandler()
	ctx := context.Background()

	var res *RemoveItemResult
	for _, aspectID := range []string{"aspect-1", "aspect-2", "aspect-3"} {
		var err error
		res, err = h.Handle(ctx, RemoveItemCommand{
			Key: f.key, AspectID: aspectID, ActorID: "evaluator-1",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 0, res.ItemCount)
	assert.False(t, res.Evaluation.IsGraded())
	assert.Equal(t, 0.0, res.Evaluation.TotalScore)
	assert.Equal(t, 0.0, res.Evaluation.AverageScore)

	// The parent row survives with an empty child set.
	stored, err := f.evalRepo.GetByKey(ctx, f.key)
	require.NoError(t, err)
	assert.False(t, stored.IsGraded())
}

func TestRemoveItem_MissingItem(t *testing.T) {
	f := newFixture()
	seedScoredEvaluation(t, f)
	h := f.removeHandler()

	_, err := h.Handle(context.Background(), RemoveItemCommand{
		Key: f.key, AspectID: "aspect-99", ActorID: "evaluator-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluation.ErrItemNotFound)
	assert.Empty(t, f.cache.invalidated)
}

func TestRemoveItem_MissingParent(t *testing.T) {
	f := newFixture()
	h := f.removeHandler()

	_, err := h.Handle(context.Background(), RemoveItemCommand{
		Key: f.key, AspectID: "aspect-1", ActorID: "evaluator-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluation.ErrEvaluationNotFound)
}
