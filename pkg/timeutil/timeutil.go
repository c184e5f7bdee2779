// Package timeutil provides school-calendar utilities for Western Indonesian
// Time (WIB, UTC+7). Evaluation periods follow the Indonesian academic
// calendar: the year runs July to June and splits into two semesters,
// Ganjil (odd, July-December) and Genap (even, January-June).
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JakartaTZ is Western Indonesian Time (UTC+7, no DST).
var JakartaTZ = time.FixedZone("Asia/Jakarta", 7*60*60)

// Semester names as stored on periods.
const (
	SemesterGanjil = "Ganjil"
	SemesterGenap  = "Genap"
)

// Now returns the current time in WIB.
func Now() time.Time {
	return time.Now().In(JakartaTZ)
}

// ToJakarta converts a time to WIB.
func ToJakarta(t time.Time) time.Time {
	return t.In(JakartaTZ)
}

// Date creates a WIB time with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, JakartaTZ)
}

// StartOfDay returns the start of the day (00:00:00) in WIB.
func StartOfDay(t time.Time) time.Time {
	local := ToJakarta(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, JakartaTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in WIB.
func EndOfDay(t time.Time) time.Time {
	local := ToJakarta(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, JakartaTZ)
}

// IsSameDay checks if two times fall on the same WIB day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToJakarta(t1), ToJakarta(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// AcademicYearOf returns the academic-year label covering a time, in the
// "2025/2026" form. The year rolls over on July 1st.
func AcademicYearOf(t time.Time) string {
	local := ToJakarta(t)
	start := local.Year()
	if local.Month() < time.July {
		start--
	}
	return fmt.Sprintf("%d/%d", start, start+1)
}

// SemesterOf returns the semester name covering a time: Ganjil for
// July-December, Genap for January-June.
func SemesterOf(t time.Time) string {
	if ToJakarta(t).Month() >= time.July {
		return SemesterGanjil
	}
	return SemesterGenap
}

// SemesterRange returns the conventional first and last day of a semester
// within an academic year: mid-July through the third week of December for
// Ganjil, early January through the third week of June for Genap.
func SemesterRange(academicYear, semester string) (start, end time.Time, err error) {
	first, err := parseAcademicYear(academicYear)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch semester {
	case SemesterGanjil:
		return Date(first, 7, 14), Date(first, 12, 20), nil
	case SemesterGenap:
		return Date(first+1, 1, 5), Date(first+1, 6, 20), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown semester %q", semester)
	}
}

// parseAcademicYear extracts the starting year from a "2025/2026" label and
// checks that the two halves are consecutive.
func parseAcademicYear(label string) (int, error) {
	parts := strings.Split(label, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed academic year %q", label)
	}
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed academic year %q", label)
	}
	second, err := strconv.Atoi(parts[1])
	if err != nil || second != first+1 {
		return 0, fmt.Errorf("academic year %q does not span consecutive years", label)
	}
	return first, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

// Common date formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatIndonesianDate is the Indonesian date format (DD-MM-YYYY).
	FormatIndonesianDate = "02-01-2006"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// FormatJakarta formats a time in WIB with the given layout.
func FormatJakarta(t time.Time, layout string) string {
	return ToJakarta(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in WIB.
func FormatDateStr(t time.Time) string {
	return FormatJakarta(t, FormatDate)
}

// ParseJakarta parses a time string in WIB.
func ParseJakarta(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, JakartaTZ)
}

// ParseDateJakarta parses a date string (YYYY-MM-DD) in WIB.
func ParseDateJakarta(value string) (time.Time, error) {
	return ParseJakarta(FormatDate, value)
}

// MonthNameID returns the Indonesian name for a month.
func MonthNameID(m time.Month) string {
	names := []string{
		"", "Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	}
	if int(m) >= 1 && int(m) <= 12 {
		return names[m]
	}
	return ""
}
