package evaluation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_WeightedScenario(t *testing.T) {
	// Three aspects: (score 3, weight 1.0), (score 4, weight 0.5),
	// (score 2, weight 1.0). Total = 3 + 2 + 2 = 7, average = 7/3 = 2.33.
	items := []WeightedScore{
		{Score: 3, Weight: 1.0},
		{Score: 4, Weight: 0.5},
		{Score: 2, Weight: 1.0},
	}

	summary, err := Compute(items, DefaultLetterScale())
	require.NoError(t, err)

	assert.Equal(t, 7.0, summary.Total)
	assert.Equal(t, 2.33, summary.Average)
	assert.Equal(t, GradeC, summary.Grade)
	assert.True(t, summary.Graded)
}

func TestCompute_EmptySetIsUngraded(t *testing.T) {
	summary, err := Compute(nil, DefaultLetterScale())
	require.NoError(t, err)

	assert.False(t, summary.Graded)
	assert.Equal(t, 0.0, summary.Total)
	assert.Equal(t, 0.0, summary.Average)
}

func TestCompute_DeterministicUnderReordering(t *testing.T) {
	items := []WeightedScore{
		{Score: 3.7, Weight: 1.2},
		{Score: 1.1, Weight: 0.3},
		{Score: 4, Weight: 0.9},
		{Score: 2.5, Weight: 1.7},
		{Score: 3.3, Weight: 0.1},
	}

	want, err := Compute(items, DefaultLetterScale())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]WeightedScore, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := Compute(shuffled, DefaultLetterScale())
		require.NoError(t, err)
		assert.Equal(t, want, got, "permutation %d produced a different summary", i)
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	items := []WeightedScore{
		{Score: 4, Weight: 1},
		{Score: 1, Weight: 1},
	}

	_, err := Compute(items, DefaultLetterScale())
	require.NoError(t, err)

	assert.Equal(t, 4.0, items[0].Score)
	assert.Equal(t, 1.0, items[1].Score)
}

func TestCompute_RoundsOnceAtTheEnd(t *testing.T) {
	// 1/3 + 1/3 + 1/3 summed before rounding gives 1.00, not 0.99 as
	// per-item rounding would.
	third := 1.0 / 3.0
	items := []WeightedScore{
		{Score: third, Weight: 1},
		{Score: third, Weight: 1},
		{Score: third, Weight: 1},
	}

	summary, err := Compute(items, DefaultLetterScale())
	require.NoError(t, err)

	assert.Equal(t, 1.0, summary.Total)
	assert.Equal(t, 0.33, summary.Average)
}

func TestCompute_InvalidScale(t *testing.T) {
	items := []WeightedScore{{Score: 3, Weight: 1}}

	_, err := Compute(items, GradeScale{})
	assert.ErrorIs(t, err, ErrInvalidScale)

	misordered := GradeScale{
		Bands: []Band{
			{MinAverage: 1.5, Grade: GradeC},
			{MinAverage: 3.5, Grade: GradeA},
		},
	}
	_, err = Compute(items, misordered)
	assert.ErrorIs(t, err, ErrInvalidScale)
}

func TestGradeScale_LetterBoundaries(t *testing.T) {
	scale := DefaultLetterScale()

	tests := []struct {
		average float64
		want    Grade
	}{
		{4.0, GradeA},
		{3.5, GradeA}, // boundary belongs to the band it starts
		{3.49, GradeB},
		{2.5, GradeB},
		{2.49, GradeC},
		{1.5, GradeC},
		{1.49, GradeD},
		{0, GradeD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scale.GradeFor(tt.average), "average %.2f", tt.average)
	}
}

func TestGradeScale_PercentageVariant(t *testing.T) {
	// Scores run 1-4, so the percentage variant normalizes against 4.
	scale := PercentageScale(4)
	require.NoError(t, scale.Validate())

	tests := []struct {
		average float64
		want    Grade
	}{
		{3.8, GradeA}, // 95%
		{3.2, GradeB}, // 80%
		{3.0, GradeC}, // 75%
		{2.0, GradeD}, // 50%
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scale.GradeFor(tt.average), "average %.2f", tt.average)
	}
}
