package query

import (
	"context"
	"errors"
	"sort"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PERIOD STATS QUERY
// Aggregate statistics over all evaluations recorded in one period: grade
// distribution and the best-scoring teachers. Ungraded parents (zero items)
// are counted separately and never pulled into the distribution.
// ══════════════════════════════════════════════════════════════════════════════

// GetPeriodStatsQuery identifies the period.
type GetPeriodStatsQuery struct {
	PeriodID string

	// TopN bounds the best-teachers list (default 10, max 50).
	TopN int
}

// Validate validates the query parameters.
func (q *GetPeriodStatsQuery) Validate() error {
	if q.PeriodID == "" {
		return shared.NewDomainError("evaluation", "PeriodStats", shared.ErrEmptyValue, "period_id is required")
	}
	if q.TopN <= 0 {
		q.TopN = 10
	}
	if q.TopN > 50 {
		q.TopN = 50
	}
	return nil
}

// TeacherScoreDTO is one ranked entry in the best-teachers list.
type TeacherScoreDTO struct {
	Rank         int     `json:"rank"`
	TeacherID    string  `json:"teacher_id"`
	AverageScore float64 `json:"average_score"`
	FinalGrade   string  `json:"final_grade"`
}

// PeriodStatsDTO is the aggregate answer for one period.
type PeriodStatsDTO struct {
	PeriodID   string `json:"period_id"`
	PeriodName string `json:"period_name"`

	// TotalEvaluations counts every parent in the period, graded or not.
	TotalEvaluations int `json:"total_evaluations"`

	// Ungraded counts parents with zero items.
	Ungraded int `json:"ungraded"`

	// GradeDistribution maps grade letter to parent count.
	GradeDistribution map[string]int `json:"grade_distribution"`

	// MeanAverage is the mean of the graded parents' average scores.
	MeanAverage float64 `json:"mean_average"`

	// TopTeachers ranks graded parents by average score.
	TopTeachers []TeacherScoreDTO `json:"top_teachers"`
}

// GetPeriodStatsHandler handles the GetPeriodStatsQuery.
type GetPeriodStatsHandler struct {
	evalRepo   evaluation.Repository
	periodRepo evaluation.PeriodRepository
}

// NewGetPeriodStatsHandler creates a new GetPeriodStatsHandler.
func NewGetPeriodStatsHandler(evalRepo evaluation.Repository, periodRepo evaluation.PeriodRepository) *GetPeriodStatsHandler {
	return &GetPeriodStatsHandler{evalRepo: evalRepo, periodRepo: periodRepo}
}

// Handle computes the statistics.
func (h *GetPeriodStatsHandler) Handle(ctx context.Context, q GetPeriodStatsQuery) (*PeriodStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	period, err := h.periodRepo.GetByID(ctx, q.PeriodID)
	if err != nil {
		if errors.Is(err, evaluation.ErrPeriodNotFound) {
			return nil, shared.ErrPeriodNotFound
		}
		return nil, shared.WrapError("evaluation", "PeriodStats", shared.ErrStorage, "failed to load period", err)
	}

	parents, err := h.evalRepo.ListByPeriod(ctx, q.PeriodID)
	if err != nil {
		return nil, shared.WrapError("evaluation", "PeriodStats", shared.ErrStorage, "failed to list evaluations", err)
	}

	stats := &PeriodStatsDTO{
		PeriodID:          period.ID,
		PeriodName:        period.Name(),
		TotalEvaluations:  len(parents),
		GradeDistribution: map[string]int{},
	}

	var graded []*evaluation.TeacherEvaluation
	sum := 0.0
	for _, p := range parents {
		if p.FinalGrade == nil {
			stats.Ungraded++
			continue
		}
		graded = append(graded, p)
		stats.GradeDistribution[string(*p.FinalGrade)]++
		sum += p.AverageScore
	}

	if len(graded) > 0 {
		stats.MeanAverage = sum / float64(len(graded))

		sort.Slice(graded, func(i, j int) bool {
			if graded[i].AverageScore != graded[j].AverageScore {
				return graded[i].AverageScore > graded[j].AverageScore
			}
			return graded[i].TeacherID < graded[j].TeacherID
		})

		n := q.TopN
		if n > len(graded) {
			n = len(graded)
		}
		for i := 0; i < n; i++ {
			stats.TopTeachers = append(stats.TopTeachers, TeacherScoreDTO{
				Rank:         i + 1,
				TeacherID:    graded[i].TeacherID,
				AverageScore: graded[i].AverageScore,
				FinalGrade:   string(*graded[i].FinalGrade),
			})
		}
	}

	return stats, nil
}
