package command

import (
	"context"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE SUMMARY COMMAND
// Repair operation: recomputes one parent's derived fields from its current
// child set without mutating any child. Running it twice in a row yields
// identical stored values except the recompute timestamp, which only moves
// forward. The worker's consistency sweep drives this command.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeSummaryCommand identifies the parent to recompute.
type RecomputeSummaryCommand struct {
	Key evaluation.ParentKey
}

// Validate validates the command structurally.
func (c RecomputeSummaryCommand) Validate() error {
	return c.Key.Validate()
}

// RecomputeSummaryResult reports the recomputed summary and whether the
// stored values actually changed.
type RecomputeSummaryResult struct {
	Evaluation *evaluation.TeacherEvaluation

	// Drifted reports whether the stored summary disagreed with the
	// freshly computed one before this repair.
	Drifted bool
}

// RecomputeSummaryHandler handles the RecomputeSummaryCommand.
type RecomputeSummaryHandler struct {
	evalRepo evaluation.Repository
	cache    evaluation.SummaryCache
	scale    evaluation.GradeScale
	retrier  *retry.Retrier
	log      *logger.Logger
}

// NewRecomputeSummaryHandler creates a new RecomputeSummaryHandler.
func NewRecomputeSummaryHandler(
	evalRepo evaluation.Repository,
	cache evaluation.SummaryCache,
	scale evaluation.GradeScale,
	log *logger.Logger,
) *RecomputeSummaryHandler {
	return &RecomputeSummaryHandler{
		evalRepo: evalRepo,
		cache:    cache,
		scale:    scale,
		retrier:  retry.ConflictRetrier(),
		log:      log,
	}
}

// Handle executes the recompute.
func (h *RecomputeSummaryHandler) Handle(ctx context.Context, cmd RecomputeSummaryCommand) (*RecomputeSummaryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *RecomputeSummaryResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		res, txErr := h.recomputeOnce(ctx, cmd)
		if txErr != nil {
			if shared.IsConflict(txErr) {
				return retry.Retryable(txErr)
			}
			return retry.Permanent(txErr)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Drifted {
		if cacheErr := h.cache.Invalidate(ctx, cmd.Key); cacheErr != nil {
			h.log.Warn("summary cache invalidation failed",
				logger.F("teacher_id", cmd.Key.TeacherID),
				logger.F("error", cacheErr.Error()))
		}
		h.log.Warn("summary drift repaired",
			logger.F("teacher_id", cmd.Key.TeacherID),
			logger.F("period_id", cmd.Key.PeriodID),
			logger.F("evaluator_id", cmd.Key.EvaluatorID))
	}

	return result, nil
}

func (h *RecomputeSummaryHandler) recomputeOnce(ctx context.Context, cmd RecomputeSummaryCommand) (*RecomputeSummaryResult, error) {
	var result *RecomputeSummaryResult

	err := h.evalRepo.WithParent(ctx, cmd.Key, false, func(tx evaluation.ParentTx) error {
		now := time.Now().UTC()

		items, err := tx.Items(ctx)
		if err != nil {
			return err
		}
		summary, err := evaluation.Compute(weighted(items), h.scale)
		if err != nil {
			return err
		}

		parent := tx.Parent()
		drifted := parent.TotalScore != summary.Total ||
			parent.AverageScore != summary.Average ||
			graded(parent) != summary.Graded ||
			(summary.Graded && parent.FinalGrade != nil && *parent.FinalGrade != summary.Grade)

		parent.ApplySummary(summary, now)
		if err := tx.PublishSummary(ctx, parent); err != nil {
			return err
		}

		result = &RecomputeSummaryResult{Evaluation: parent, Drifted: drifted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func graded(parent *evaluation.TeacherEvaluation) bool {
	return parent.FinalGrade != nil
}
