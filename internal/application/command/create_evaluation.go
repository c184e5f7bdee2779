package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE EVALUATION COMMAND
// Creates the parent row for a (teacher, period, evaluator) triple, optionally
// seeded with an initial batch of aspect scores. The parent and all seed items
// commit as one transaction: either the triple appears fully scored and
// summarized, or not at all.
// ══════════════════════════════════════════════════════════════════════════════

// ItemInput is one aspect score in a batched submission.
type ItemInput struct {
	AspectID    string
	GradeLetter evaluation.Grade
	RawScore    float64
	Notes       string
}

func (i ItemInput) score() float64 {
	if i.GradeLetter != "" {
		return i.GradeLetter.Score()
	}
	return i.RawScore
}

// CreateEvaluationCommand contains the data to create a parent evaluation.
type CreateEvaluationCommand struct {
	Key evaluation.ParentKey

	// Items optionally seeds the evaluation with scored aspects.
	Items []ItemInput

	// Notes is overall commentary on the evaluation.
	Notes string

	// ActorID identifies the acting user for audit logging only.
	ActorID string
}

// Validate validates the command structurally.
func (c CreateEvaluationCommand) Validate() error {
	if err := c.Key.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Items))
	for _, item := range c.Items {
		if item.AspectID == "" {
			return shared.NewDomainError("evaluation", "Create", shared.ErrEmptyValue, "aspect_id is required")
		}
		if seen[item.AspectID] {
			return shared.ErrDuplicateItem
		}
		seen[item.AspectID] = true
		if item.GradeLetter != "" && !item.GradeLetter.IsValid() {
			return evaluation.ErrInvalidGrade
		}
	}
	return nil
}

// CreateEvaluationResult contains the created parent and its summary.
type CreateEvaluationResult struct {
	Evaluation *evaluation.TeacherEvaluation
	ItemCount  int
}

// CreateEvaluationHandler handles the CreateEvaluationCommand.
type CreateEvaluationHandler struct {
	evalRepo   evaluation.Repository
	aspectRepo evaluation.AspectRepository
	periodRepo evaluation.PeriodRepository
	userRepo   identity.UserRepository
	cache      evaluation.SummaryCache
	scale      evaluation.GradeScale
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewCreateEvaluationHandler creates a new CreateEvaluationHandler.
func NewCreateEvaluationHandler(
	evalRepo evaluation.Repository,
	aspectRepo evaluation.AspectRepository,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	cache evaluation.SummaryCache,
	scale evaluation.GradeScale,
	log *logger.Logger,
) *CreateEvaluationHandler {
	return &CreateEvaluationHandler{
		evalRepo:   evalRepo,
		aspectRepo: aspectRepo,
		periodRepo: periodRepo,
		userRepo:   userRepo,
		cache:      cache,
		scale:      scale,
		retrier:    retry.ConflictRetrier(),
		log:        log,
	}
}

// Handle executes the creation.
func (h *CreateEvaluationHandler) Handle(ctx context.Context, cmd CreateEvaluationCommand) (*CreateEvaluationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *CreateEvaluationResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		// Reassembled per attempt so a retry validates against current
		// state, not the pre-conflict snapshot.
		refs, txErr := loadRefs(ctx, h.aspectRepo, h.periodRepo, h.userRepo, cmd.Key, "")
		if txErr != nil {
			return retry.Permanent(txErr)
		}

		aspects := make(map[string]*evaluation.EvaluationAspect, len(cmd.Items))
		for _, item := range cmd.Items {
			aspect, loadErr := h.aspectRepo.GetByID(ctx, item.AspectID)
			if loadErr != nil && !errors.Is(loadErr, evaluation.ErrAspectNotFound) {
				return retry.Permanent(shared.WrapError("evaluation", "Create", shared.ErrStorage, "failed to load aspect", loadErr))
			}
			aspects[item.AspectID] = aspect
		}

		res, txErr := h.createOnce(ctx, cmd, refs, aspects)
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

	h.log.Info("evaluation created",
		logger.F("teacher_id", cmd.Key.TeacherID),
		logger.F("period_id", cmd.Key.PeriodID),
		logger.F("evaluator_id", cmd.Key.EvaluatorID),
		logger.F("actor_id", cmd.ActorID),
		logger.F("items", result.ItemCount))

	return result, nil
}

func (h *CreateEvaluationHandler) createOnce(
	ctx context.Context,
	cmd CreateEvaluationCommand,
	refs evaluation.Refs,
	aspects map[string]*evaluation.EvaluationAspect,
) (*CreateEvaluationResult, error) {
	var result *CreateEvaluationResult

	err := h.evalRepo.WithParent(ctx, cmd.Key, true, func(tx evaluation.ParentTx) error {
		now := time.Now().UTC()

		if !tx.Created() {
			return shared.ErrDuplicateParent
		}

		refs.ParentExists = false
		refs.ScoredAspects = map[string]bool{}
		refs.Now = now

		if res := evaluation.ValidateWrite(evaluation.Candidate{
			Kind: evaluation.WriteCreateEvaluation,
			Key:  cmd.Key,
		}, refs); !res.OK() {
			return violationError("Create", res.Violation)
		}

		parent := tx.Parent()
		parent.FinalNotes = cmd.Notes

		for _, in := range cmd.Items {
			itemRefs := refs
			itemRefs.Aspect = aspects[in.AspectID]
			if res := evaluation.ValidateWrite(evaluation.Candidate{
				Kind:     evaluation.WriteCreateItem,
				Key:      cmd.Key,
				AspectID: in.AspectID,
				Score:    in.score(),
			}, itemRefs); !res.OK() {
				return violationError("Create", res.Violation)
			}

			if err := tx.PutItem(ctx, &evaluation.TeacherEvaluationItem{
				ID:            uuid.NewString(),
				EvaluationID:  parent.ID,
				AspectID:      in.AspectID,
				GradeLetter:   in.GradeLetter,
				Score:         in.score(),
				WeightApplied: itemRefs.Aspect.Weight,
				Notes:         in.Notes,
				EvaluatedAt:   now,
				CreatedAt:     now,
				UpdatedAt:     now,
			}); err != nil {
				return err
			}
			refs.ScoredAspects[in.AspectID] = true
		}

		items, err := tx.Items(ctx)
		if err != nil {
			return err
		}
		summary, err := evaluation.Compute(weighted(items), h.scale)
		if err != nil {
			return err
		}

		parent.ApplySummary(summary, now)
		if err := tx.PublishSummary(ctx, parent); err != nil {
			return err
		}

		result = &CreateEvaluationResult{Evaluation: parent, ItemCount: len(items)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
