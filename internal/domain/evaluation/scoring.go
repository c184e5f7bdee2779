package evaluation

import (
	"errors"
	"math"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING CALCULATOR
// Pure function from a set of (score, weight) pairs to a total, an average
// and a grade. No state; threshold boundaries arrive as parameters so the
// 4-point letter scale and the percentage-of-maximum scale share one
// interface.
// ══════════════════════════════════════════════════════════════════════════════

// WeightedScore is one child item's contribution to the parent summary.
type WeightedScore struct {
	Score  float64
	Weight float64
}

// Summary is the derived parent state.
type Summary struct {
	// Total is the weighted sum, rounded half-up to two decimals.
	Total float64

	// Average is Total / count, rounded half-up to two decimals;
	// 0 when there are no items.
	Average float64

	// Grade is meaningful only when Graded is true.
	Grade Grade

	// Graded is false for an empty item set - callers must render that as
	// "not yet evaluated", not as the lowest band.
	Graded bool
}

// Band is one threshold entry: averages at or above MinAverage (after
// normalization, if any) earn Grade, unless a higher band also matches.
// A boundary value belongs to the band it starts.
type Band struct {
	MinAverage float64
	Grade      Grade
}

// GradeScale is the parameter set for grade assignment. Different evaluation
// schemes supply different scales through configuration.
type GradeScale struct {
	// Bands are ordered from highest threshold to lowest. Lookup walks the
	// list and returns the first band whose threshold the average meets;
	// the last band is the floor and catches everything below.
	Bands []Band

	// Normalize, when positive, divides the average before band lookup.
	// The percentage-of-maximum variant sets this to maxAverage/100 so
	// bands can be expressed as percentages.
	Normalize float64
}

// ErrInvalidScale - the scale has no bands or misordered thresholds.
var ErrInvalidScale = errors.New("invalid grade scale")

// Validate checks that the scale is usable: at least one band, thresholds
// strictly descending, all grades known.
func (s GradeScale) Validate() error {
	if len(s.Bands) == 0 {
		return ErrInvalidScale
	}
	for i, b := range s.Bands {
		if !b.Grade.IsValid() {
			return ErrInvalidScale
		}
		if i > 0 && b.MinAverage >= s.Bands[i-1].MinAverage {
			return ErrInvalidScale
		}
	}
	if s.Normalize < 0 {
		return ErrInvalidScale
	}
	return nil
}

// GradeFor maps an already-rounded average onto a band. Ties at a boundary
// resolve to the higher band.
func (s GradeScale) GradeFor(average float64) Grade {
	v := average
	if s.Normalize > 0 {
		v = average / s.Normalize
	}
	for _, b := range s.Bands {
		if v >= b.MinAverage {
			return b.Grade
		}
	}
	return s.Bands[len(s.Bands)-1].Grade
}

// DefaultLetterScale returns the 4-point letter scale used by per-aspect
// letter grading: A from 3.5, B from 2.5, C from 1.5, D below.
func DefaultLetterScale() GradeScale {
	return GradeScale{
		Bands: []Band{
			{MinAverage: 3.5, Grade: GradeA},
			{MinAverage: 2.5, Grade: GradeB},
			{MinAverage: 1.5, Grade: GradeC},
			{MinAverage: 0, Grade: GradeD},
		},
	}
}

// PercentageScale returns the percentage-of-maximum variant: averages are
// normalized against maxAverage and graded on the 90/80/70 bands.
func PercentageScale(maxAverage float64) GradeScale {
	return GradeScale{
		Bands: []Band{
			{MinAverage: 90, Grade: GradeA},
			{MinAverage: 80, Grade: GradeB},
			{MinAverage: 70, Grade: GradeC},
			{MinAverage: 0, Grade: GradeD},
		},
		Normalize: maxAverage / 100,
	}
}

// Compute derives the parent summary from the full current child set.
// Deterministic: the same item multiset always yields bit-identical results.
// Summation order is fixed by sorting a copy of the input, and round-half-up
// to two decimals is applied once, at the final step only.
func Compute(items []WeightedScore, scale GradeScale) (Summary, error) {
	if err := scale.Validate(); err != nil {
		return Summary{}, err
	}

	if len(items) == 0 {
		return Summary{}, nil
	}

	sorted := make([]WeightedScore, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].Weight < sorted[j].Weight
	})

	var total float64
	for _, ws := range sorted {
		total += ws.Score * ws.Weight
	}

	roundedTotal := roundHalfUp(total)
	average := roundHalfUp(total / float64(len(sorted)))

	return Summary{
		Total:   roundedTotal,
		Average: average,
		Grade:   scale.GradeFor(average),
		Graded:  true,
	}, nil
}

// roundHalfUp rounds to two decimal places with halves rounding up.
func roundHalfUp(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
