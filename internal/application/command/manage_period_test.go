package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

func TestCreatePeriod(t *testing.T) {
	periods := newMemPeriodRepo()
	h := NewCreatePeriodHandler(periods, testLogger())
	ctx := context.Background()

	t.Run("creates inactive by default", func(t *testing.T) {
		p, err := h.Handle(ctx, CreatePeriodCommand{
			AcademicYear: "2025/2026",
			Semester:     "Ganjil",
			StartDate:    time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.False(t, p.IsActive)
		assert.Equal(t, "2025/2026 - Ganjil", p.Name())
	})

	t.Run("derives semester dates when omitted", func(t *testing.T) {
		p, err := h.Handle(ctx, CreatePeriodCommand{
			AcademicYear: "2026/2027",
			Semester:     "Ganjil",
		})
		require.NoError(t, err)
		assert.Equal(t, 2026, p.StartDate.Year())
		assert.Equal(t, time.July, p.StartDate.Month())
		assert.Equal(t, 14, p.StartDate.Day())
		assert.Equal(t, time.December, p.EndDate.Month())
		assert.Equal(t, 20, p.EndDate.Day())
	})

	t.Run("rejects malformed academic year when deriving dates", func(t *testing.T) {
		_, err := h.Handle(ctx, CreatePeriodCommand{
			AcademicYear: "2026-2027",
			Semester:     "Ganjil",
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects duplicate year and semester", func(t *testing.T) {
		_, err := h.Handle(ctx, CreatePeriodCommand{
			AcademicYear: "2025/2026",
			Semester:     "Ganjil",
			StartDate:    time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, evaluation.ErrPeriodExists)
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		_, err := h.Handle(ctx, CreatePeriodCommand{
			AcademicYear: "2025/2026",
			Semester:     "Genap",
			StartDate:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestActivatePeriod_DeactivatesEveryOtherPeriod(t *testing.T) {
	periods := newMemPeriodRepo()
	create := NewCreatePeriodHandler(periods, testLogger())
	activate := NewActivatePeriodHandler(periods, testLogger())
	ctx := context.Background()

	first, err := create.Handle(ctx, CreatePeriodCommand{
		AcademicYear: "2025/2026", Semester: "Ganjil",
		StartDate: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		Activate:  true,
	})
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := create.Handle(ctx, CreatePeriodCommand{
		AcademicYear: "2025/2026", Semester: "Genap",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, activate.Handle(ctx, ActivatePeriodCommand{PeriodID: second.ID}))

	active, err := periods.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	stored, err := periods.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "at most one period accepts writes")
}

func TestActivatePeriod_MissingPeriod(t *testing.T) {
	activate := NewActivatePeriodHandler(newMemPeriodRepo(), testLogger())

	err := activate.Handle(context.Background(), ActivatePeriodCommand{PeriodID: "period-404"})
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluation.ErrPeriodNotFound)
}
