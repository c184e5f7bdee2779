// Package command contains the write operations of the evaluation core:
// aspect-item mutations with transactional summary recomputation, explicit
// repair recomputes, and policy-driven entity deletion.
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
// UPSERT ITEM COMMAND
// Records or rescores one aspect of a teacher evaluation. The whole call is
// a single atomic unit: validate, apply the child mutation, recompute the
// parent from the current full child set, and republish the summary - all
// under the parent's row lock, so a reader never observes a parent whose
// total disagrees with its children.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertItemCommand contains the data to record a score for one aspect.
type UpsertItemCommand struct {
	// Key identifies the parent evaluation triple.
	Key evaluation.ParentKey

	// AspectID is the aspect being scored.
	AspectID string

	// GradeLetter, when set, is converted to the raw score (A=4 .. D=1).
	// Otherwise RawScore is used as given.
	GradeLetter evaluation.Grade

	// RawScore is the numeric score; ignored when GradeLetter is set.
	RawScore float64

	// Notes is optional per-aspect commentary.
	Notes string

	// ActorID identifies the acting user for audit logging only.
	ActorID string
}

// Validate validates the command structurally.
func (c UpsertItemCommand) Validate() error {
	if err := c.Key.Validate(); err != nil {
		return err
	}
	if c.AspectID == "" {
		return errors.New("upsert_item: aspect_id is required")
	}
	if c.GradeLetter != "" && !c.GradeLetter.IsValid() {
		return evaluation.ErrInvalidGrade
	}
	return nil
}

// score resolves the raw score the item will carry.
func (c UpsertItemCommand) score() float64 {
	if c.GradeLetter != "" {
		return c.GradeLetter.Score()
	}
	return c.RawScore
}

// UpsertItemResult contains the republished parent summary.
type UpsertItemResult struct {
	// Evaluation is the parent as persisted after the recompute.
	Evaluation *evaluation.TeacherEvaluation

	// Created reports whether this call created the parent (first aspect
	// item for the triple).
	Created bool

	// ItemCount is the size of the child set after the mutation.
	ItemCount int
}

// UpsertItemHandler handles the UpsertItemCommand.
type UpsertItemHandler struct {
	evalRepo   evaluation.Repository
	aspectRepo evaluation.AspectRepository
	periodRepo evaluation.PeriodRepository
	userRepo   identity.UserRepository
	cache      evaluation.SummaryCache
	scale      evaluation.GradeScale
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewUpsertItemHandler creates a new UpsertItemHandler.
func NewUpsertItemHandler(
	evalRepo evaluation.Repository,
	aspectRepo evaluation.AspectRepository,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	cache evaluation.SummaryCache,
	scale evaluation.GradeScale,
	log *logger.Logger,
) *UpsertItemHandler {
	return &UpsertItemHandler{
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

// Handle executes the upsert. Concurrency conflicts retry the whole
// operation; validation failures are returned as-is and never retried.
func (h *UpsertItemHandler) Handle(ctx context.Context, cmd UpsertItemCommand) (*UpsertItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("evaluation", "UpsertItem", shared.ErrValidation, "invalid command", err)
	}

	var result *UpsertItemResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		// The snapshot is reassembled on every attempt: a retry after a
		// conflict must validate against what the winner left behind,
		// not against pre-conflict state.
		refs, txErr := loadRefs(ctx, h.aspectRepo, h.periodRepo, h.userRepo, cmd.Key, cmd.AspectID)
		if txErr != nil {
			return retry.Permanent(txErr)
		}

		res, txErr := h.upsertOnce(ctx, cmd, refs)
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

	// Invalidate after commit so readers re-fill from the fresh snapshot.
	if cacheErr := h.cache.Invalidate(ctx, cmd.Key); cacheErr != nil {
		h.log.Warn("summary cache invalidation failed",
			logger.F("teacher_id", cmd.Key.TeacherID),
			logger.F("error", cacheErr.Error()))
	}

	h.log.Info("evaluation item upserted",
		logger.F("teacher_id", cmd.Key.TeacherID),
		logger.F("period_id", cmd.Key.PeriodID),
		logger.F("aspect_id", cmd.AspectID),
		logger.F("actor_id", cmd.ActorID),
		logger.F("average", result.Evaluation.AverageScore))

	return result, nil
}

// upsertOnce runs one attempt inside the parent transaction.
func (h *UpsertItemHandler) upsertOnce(ctx context.Context, cmd UpsertItemCommand, refs evaluation.Refs) (*UpsertItemResult, error) {
	var result *UpsertItemResult

	err := h.evalRepo.WithParent(ctx, cmd.Key, true, func(tx evaluation.ParentTx) error {
		now := time.Now().UTC()

		items, err := tx.Items(ctx)
		if err != nil {
			return err
		}

		refs.ParentExists = !tx.Created()
		refs.ScoredAspects = scoredAspects(items)
		refs.Now = now

		if tx.Created() {
			if res := evaluation.ValidateWrite(evaluation.Candidate{
				Kind: evaluation.WriteCreateEvaluation,
				Key:  cmd.Key,
			}, refs); !res.OK() {
				return violationError("UpsertItem", res.Violation)
			}
		}

		kind := evaluation.WriteCreateItem
		existing := findItem(items, cmd.AspectID)
		if existing != nil {
			kind = evaluation.WriteUpdateItem
		}

		if res := evaluation.ValidateWrite(evaluation.Candidate{
			Kind:     kind,
			Key:      cmd.Key,
			AspectID: cmd.AspectID,
			Score:    cmd.score(),
		}, refs); !res.OK() {
			return violationError("UpsertItem", res.Violation)
		}

		parent := tx.Parent()

		if existing != nil && existing.SameSubmission(cmd.GradeLetter, cmd.score(), cmd.Notes) {
			// Idempotent resubmission: only the timestamp moves.
			parent.ApplySummary(currentSummary(parent), now)
			if err := tx.PublishSummary(ctx, parent); err != nil {
				return err
			}
			result = &UpsertItemResult{Evaluation: parent, Created: false, ItemCount: len(items)}
			return nil
		}

		item := existing
		if item == nil {
			item = &evaluation.TeacherEvaluationItem{
				ID:           uuid.NewString(),
				EvaluationID: parent.ID,
				AspectID:     cmd.AspectID,
				CreatedAt:    now,
			}
		}
		item.GradeLetter = cmd.GradeLetter
		item.Score = cmd.score()
		item.WeightApplied = refs.Aspect.Weight
		item.Notes = cmd.Notes
		item.EvaluatedAt = now
		item.UpdatedAt = now

		if err := tx.PutItem(ctx, item); err != nil {
			return err
		}

		// Recompute over the current full child set, never incrementally.
		current, err := tx.Items(ctx)
		if err != nil {
			return err
		}
		summary, err := evaluation.Compute(weighted(current), h.scale)
		if err != nil {
			return err
		}

		parent.ApplySummary(summary, now)
		if err := tx.PublishSummary(ctx, parent); err != nil {
			return err
		}

		result = &UpsertItemResult{
			Evaluation: parent,
			Created:    tx.Created(),
			ItemCount:  len(current),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadRefs assembles the validation snapshot for an item write.
func loadRefs(
	ctx context.Context,
	aspectRepo evaluation.AspectRepository,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	key evaluation.ParentKey,
	aspectID string,
) (evaluation.Refs, error) {
	refs, err := parentRefs(ctx, periodRepo, userRepo, key)
	if err != nil {
		return refs, err
	}

	if aspectID != "" {
		aspect, err := aspectRepo.GetByID(ctx, aspectID)
		if err != nil && !errors.Is(err, evaluation.ErrAspectNotFound) {
			return refs, shared.WrapError("evaluation", "LoadRefs", shared.ErrStorage, "failed to load aspect", err)
		}
		refs.Aspect = aspect
	}

	return refs, nil
}

// parentRefs assembles the snapshot for writes that touch only the parent.
func parentRefs(
	ctx context.Context,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	key evaluation.ParentKey,
) (evaluation.Refs, error) {
	refs := evaluation.Refs{}

	period, err := periodRepo.GetByID(ctx, key.PeriodID)
	if err != nil && !errors.Is(err, evaluation.ErrPeriodNotFound) {
		return refs, shared.WrapError("evaluation", "LoadRefs", shared.ErrStorage, "failed to load period", err)
	}
	refs.Period = period

	refs.Teacher, err = referencedUser(ctx, userRepo, key.TeacherID)
	if err != nil {
		return refs, err
	}
	refs.Evaluator, err = referencedUser(ctx, userRepo, key.EvaluatorID)
	if err != nil {
		return refs, err
	}

	return refs, nil
}

// referencedUser builds the liveness snapshot for one user reference.
func referencedUser(ctx context.Context, repo identity.UserRepository, id string) (evaluation.ReferencedUser, error) {
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return evaluation.ReferencedUser{ID: id}, nil
		}
		return evaluation.ReferencedUser{}, shared.WrapError("identity", "LoadRefs", shared.ErrStorage, "failed to load user", err)
	}
	return evaluation.ReferencedUser{
		ID:       id,
		Exists:   user.Status.CanBeReferenced(),
		Eligible: user.Status.CanReceiveNewReferences(),
	}, nil
}

// violationError maps a validator violation onto the error taxonomy.
func violationError(op string, v *evaluation.Violation) error {
	kind := shared.ErrValidation
	switch v.Code {
	case evaluation.ViolationPeriodNotActive:
		kind = shared.ErrPeriodNotActive
	case evaluation.ViolationDuplicateItem, evaluation.ViolationDuplicateEvaluation:
		kind = shared.ErrAlreadyExists
	case evaluation.ViolationScoreOutOfRange:
		kind = shared.ErrValueOutOfRange
	}
	return shared.WrapError("evaluation", op, kind, v.Message, *v)
}

// scoredAspects builds the set of aspect IDs present in a child set.
func scoredAspects(items []*evaluation.TeacherEvaluationItem) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it.AspectID] = true
	}
	return set
}

// findItem returns the child for an aspect, or nil.
func findItem(items []*evaluation.TeacherEvaluationItem, aspectID string) *evaluation.TeacherEvaluationItem {
	for _, it := range items {
		if it.AspectID == aspectID {
			return it
		}
	}
	return nil
}

// weighted projects items onto calculator inputs.
func weighted(items []*evaluation.TeacherEvaluationItem) []evaluation.WeightedScore {
	pairs := make([]evaluation.WeightedScore, 0, len(items))
	for _, it := range items {
		pairs = append(pairs, it.Weighted())
	}
	return pairs
}

// currentSummary reconstructs the parent's published summary so an
// idempotent republish keeps the stored values bit-for-bit.
func currentSummary(parent *evaluation.TeacherEvaluation) evaluation.Summary {
	s := evaluation.Summary{
		Total:   parent.TotalScore,
		Average: parent.AverageScore,
	}
	if parent.FinalGrade != nil {
		s.Grade = *parent.FinalGrade
		s.Graded = true
	}
	return s
}
