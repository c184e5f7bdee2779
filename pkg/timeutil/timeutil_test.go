package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcademicYearOf_RollsOverInJuly(t *testing.T) {
	assert.Equal(t, "2024/2025", AcademicYearOf(Date(2025, 6, 30)))
	assert.Equal(t, "2025/2026", AcademicYearOf(Date(2025, 7, 1)))
	assert.Equal(t, "2025/2026", AcademicYearOf(Date(2026, 2, 15)))
}

func TestSemesterOf(t *testing.T) {
	assert.Equal(t, SemesterGanjil, SemesterOf(Date(2025, 9, 1)))
	assert.Equal(t, SemesterGanjil, SemesterOf(Date(2025, 12, 31)))
	assert.Equal(t, SemesterGenap, SemesterOf(Date(2026, 1, 1)))
	assert.Equal(t, SemesterGenap, SemesterOf(Date(2026, 6, 30)))
}

func TestSemesterRange(t *testing.T) {
	t.Run("ganjil spans the first calendar year", func(t *testing.T) {
		start, end, err := SemesterRange("2025/2026", SemesterGanjil)
		require.NoError(t, err)
		assert.Equal(t, Date(2025, 7, 14), start)
		assert.Equal(t, Date(2025, 12, 20), end)
	})

	t.Run("genap spans the second calendar year", func(t *testing.T) {
		start, end, err := SemesterRange("2025/2026", SemesterGenap)
		require.NoError(t, err)
		assert.Equal(t, Date(2026, 1, 5), start)
		assert.Equal(t, Date(2026, 6, 20), end)
	})

	t.Run("rejects unknown semester", func(t *testing.T) {
		_, _, err := SemesterRange("2025/2026", "Pendek")
		assert.Error(t, err)
	})

	t.Run("rejects malformed labels", func(t *testing.T) {
		for _, label := range []string{"2025", "2025-2026", "2025/2027", "abcd/2026"} {
			_, _, err := SemesterRange(label, SemesterGanjil)
			assert.Error(t, err, label)
		}
	})
}

func TestIsSameDay_UsesJakartaCalendar(t *testing.T) {
	// 23:00 UTC is already the next day in WIB.
	lateUTC := time.Date(2025, 8, 10, 23, 0, 0, 0, time.UTC)
	assert.False(t, IsSameDay(lateUTC, Date(2025, 8, 10)))
	assert.True(t, IsSameDay(lateUTC, Date(2025, 8, 11)))
}
