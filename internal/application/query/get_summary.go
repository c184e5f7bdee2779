package query

import (
	"context"
	"errors"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUMMARY QUERY
// Read path for one parent evaluation. The summary comes from the cache when
// present, otherwise from storage with a cache refill. A parent with zero
// items is returned without a grade - "not yet evaluated" is a distinct
// state, never rendered as the lowest band.
// ══════════════════════════════════════════════════════════════════════════════

// GetSummaryQuery identifies the parent evaluation to read.
type GetSummaryQuery struct {
	Key evaluation.ParentKey

	// IncludeItems loads the per-aspect breakdown alongside the summary.
	IncludeItems bool
}

// Validate validates the query parameters.
func (q GetSummaryQuery) Validate() error {
	return q.Key.Validate()
}

// ItemDTO is one scored aspect in the breakdown.
type ItemDTO struct {
	AspectID      string  `json:"aspect_id"`
	GradeLetter   string  `json:"grade_letter,omitempty"`
	Score         float64 `json:"score"`
	WeightApplied float64 `json:"weight_applied"`
	WeightedScore float64 `json:"weighted_score"`
	Notes         string  `json:"notes,omitempty"`
}

// SummaryDTO is the parent evaluation as presented to readers.
type SummaryDTO struct {
	EvaluationID string `json:"evaluation_id"`
	TeacherID    string `json:"teacher_id"`
	PeriodID     string `json:"period_id"`
	EvaluatorID  string `json:"evaluator_id"`

	TotalScore   float64 `json:"total_score"`
	AverageScore float64 `json:"average_score"`

	// FinalGrade is empty while the evaluation has no items.
	FinalGrade       string `json:"final_grade,omitempty"`
	GradeDescription string `json:"grade_description,omitempty"`
	IsGraded         bool   `json:"is_graded"`

	FinalNotes       string    `json:"final_notes,omitempty"`
	LastRecomputedAt time.Time `json:"last_recomputed_at"`

	Items []ItemDTO `json:"items,omitempty"`
}

// GetSummaryHandler handles the GetSummaryQuery.
type GetSummaryHandler struct {
	evalRepo evaluation.Repository
	cache    evaluation.SummaryCache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewGetSummaryHandler creates a new GetSummaryHandler.
func NewGetSummaryHandler(evalRepo evaluation.Repository, cache evaluation.SummaryCache, cacheTTL time.Duration, log *logger.Logger) *GetSummaryHandler {
	return &GetSummaryHandler{
		evalRepo: evalRepo,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Handle reads the summary, cache first.
func (h *GetSummaryHandler) Handle(ctx context.Context, q GetSummaryQuery) (*SummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	parent, fromCache := h.fromCache(ctx, q)
	if parent == nil {
		var err error
		parent, err = h.evalRepo.GetByKey(ctx, q.Key)
		if err != nil {
			if errors.Is(err, evaluation.ErrEvaluationNotFound) {
				return nil, shared.ErrEvaluationNotFound
			}
			return nil, shared.WrapError("evaluation", "GetSummary", shared.ErrStorage, "failed to load evaluation", err)
		}
	}

	dto := toSummaryDTO(parent)

	if q.IncludeItems {
		items, err := h.evalRepo.ListItems(ctx, parent.ID)
		if err != nil {
			return nil, shared.WrapError("evaluation", "GetSummary", shared.ErrStorage, "failed to load items", err)
		}
		for _, it := range items {
			dto.Items = append(dto.Items, ItemDTO{
				AspectID:      it.AspectID,
				GradeLetter:   string(it.GradeLetter),
				Score:         it.Score,
				WeightApplied: it.WeightApplied,
				WeightedScore: it.Score * it.WeightApplied,
				Notes:         it.Notes,
			})
		}
	}

	if !fromCache {
		if err := h.cache.Set(ctx, parent, h.cacheTTL); err != nil {
			h.log.Debug("summary cache refill failed",
				logger.F("teacher_id", q.Key.TeacherID),
				logger.F("error", err.Error()))
		}
	}

	return dto, nil
}

// fromCache attempts the cache read. Items are never cached, so a query
// that wants them skips the cache entirely rather than serving a summary
// and hitting storage for the breakdown anyway.
func (h *GetSummaryHandler) fromCache(ctx context.Context, q GetSummaryQuery) (*evaluation.TeacherEvaluation, bool) {
	if q.IncludeItems {
		return nil, false
	}
	parent, err := h.cache.Get(ctx, q.Key)
	if err != nil || parent == nil {
		return nil, false
	}
	return parent, true
}

func toSummaryDTO(parent *evaluation.TeacherEvaluation) *SummaryDTO {
	dto := &SummaryDTO{
		EvaluationID:     parent.ID,
		TeacherID:        parent.TeacherID,
		PeriodID:         parent.PeriodID,
		EvaluatorID:      parent.EvaluatorID,
		TotalScore:       parent.TotalScore,
		AverageScore:     parent.AverageScore,
		FinalNotes:       parent.FinalNotes,
		LastRecomputedAt: parent.LastRecomputedAt,
	}
	if parent.FinalGrade != nil {
		dto.FinalGrade = string(*parent.FinalGrade)
		dto.GradeDescription = parent.FinalGrade.Description()
		dto.IsGraded = true
	}
	return dto
}
