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
// REMOVE ITEM COMMAND
// Deletes one aspect item and recomputes the parent from the remaining
// children in the same transaction. A parent whose last item is removed
// keeps its row but loses its grade: total and average drop to zero and
// the final grade becomes unset.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveItemCommand contains the data to remove a scored aspect.
type RemoveItemCommand struct {
	Key      evaluation.ParentKey
	AspectID string

	// ActorID identifies the acting user for audit logging only.
	ActorID string
}

// Validate validates the command structurally.
func (c RemoveItemCommand) Validate() error {
	if err := c.Key.Validate(); err != nil {
		return err
	}
	if c.AspectID == "" {
		return shared.NewDomainError("evaluation", "RemoveItem", shared.ErrEmptyValue, "aspect_id is required")
	}
	return nil
}

// RemoveItemResult contains the republished parent summary.
type RemoveItemResult struct {
	Evaluation *evaluation.TeacherEvaluation

	// ItemCount is the size of the child set after the removal.
	ItemCount int
}

// RemoveItemHandler handles the RemoveItemCommand.
type RemoveItemHandler struct {
	evalRepo evaluation.Repository
	cache    evaluation.SummaryCache
	scale    evaluation.GradeScale
	retrier  *retry.Retrier
	log      *logger.Logger
}

// NewRemoveItemHandler creates a new RemoveItemHandler.
func NewRemoveItemHandler(
	evalRepo evaluation.Repository,
	cache evaluation.SummaryCache,
	scale evaluation.GradeScale,
	log *logger.Logger,
) *RemoveItemHandler {
	return &RemoveItemHandler{
		evalRepo: evalRepo,
		cache:    cache,
		scale:    scale,
		retrier:  retry.ConflictRetrier(),
		log:      log,
	}
}

// Handle executes the removal.
func (h *RemoveItemHandler) Handle(ctx context.Context, cmd RemoveItemCommand) (*RemoveItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *RemoveItemResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		res, txErr := h.removeOnce(ctx, cmd)
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

	if cacheErr := h.cache.Invalidate(ctx, cmd.Key); cacheErr != nil {
		h.log.Warn("summary cache invalidation failed",
			logger.F("teacher_id", cmd.Key.TeacherID),
			logger.F("error", cacheErr.Error()))
	}

	h.log.Info("evaluation item removed",
		logger.F("teacher_id", cmd.Key.TeacherID),
		logger.F("period_id", cmd.Key.PeriodID),
		logger.F("aspect_id", cmd.AspectID),
		logger.F("actor_id", cmd.ActorID),
		logger.F("remaining_items", result.ItemCount))

	return result, nil
}

func (h *RemoveItemHandler) removeOnce(ctx context.Context, cmd RemoveItemCommand) (*RemoveItemResult, error) {
	var result *RemoveItemResult

	err := h.evalRepo.WithParent(ctx, cmd.Key, false, func(tx evaluation.ParentTx) error {
		now := time.Now().UTC()

		if err := tx.DeleteItem(ctx, cmd.AspectID); err != nil {
			return err
		}

		remaining, err := tx.Items(ctx)
		if err != nil {
			return err
		}
		summary, err := evaluation.Compute(weighted(remaining), h.scale)
		if err != nil {
			return err
		}

		parent := tx.Parent()
		parent.ApplySummary(summary, now)
		if err := tx.PublishSummary(ctx, parent); err != nil {
			return err
		}

		result = &RemoveItemResult{Evaluation: parent, ItemCount: len(remaining)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
