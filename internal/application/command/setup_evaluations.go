package command

import (
	"context"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION SET-UP COMMANDS
// Bulk assignment creates the ungraded parent rows for a batch of teachers
// at the start of a period, so evaluators see their full roster before any
// aspect is scored. Teachers that already have a parent for the triple are
// skipped, which makes the assignment safe to re-run.
// ══════════════════════════════════════════════════════════════════════════════

// AssignTeachersCommand names the teachers to set up for a period.
type AssignTeachersCommand struct {
	PeriodID    string
	EvaluatorID string
	TeacherIDs  []string

	// ActorID identifies the acting user for audit logging only.
	ActorID string
}

// Validate validates the command structurally.
func (c AssignTeachersCommand) Validate() error {
	if c.PeriodID == "" || c.EvaluatorID == "" {
		return shared.NewDomainError("evaluation", "AssignTeachers", shared.ErrEmptyValue, "period_id and evaluator_id are required")
	}
	if len(c.TeacherIDs) == 0 {
		return shared.NewDomainError("evaluation", "AssignTeachers", shared.ErrEmptyValue, "at least one teacher_id is required")
	}
	seen := make(map[string]bool, len(c.TeacherIDs))
	for _, id := range c.TeacherIDs {
		if id == "" {
			return shared.NewDomainError("evaluation", "AssignTeachers", shared.ErrEmptyValue, "teacher_id cannot be empty")
		}
		if seen[id] {
			return shared.NewDomainError("evaluation", "AssignTeachers", shared.ErrInvalidInput, "duplicate teacher_id "+id)
		}
		seen[id] = true
	}
	return nil
}

// AssignTeachersResult reports what the assignment did per teacher.
type AssignTeachersResult struct {
	// Created lists the teachers a new parent was created for.
	Created []string

	// Skipped lists the teachers that already had a parent for the triple.
	Skipped []string
}

// AssignTeachersHandler handles the AssignTeachersCommand.
type AssignTeachersHandler struct {
	evalRepo   evaluation.Repository
	aspectRepo evaluation.AspectRepository
	periodRepo evaluation.PeriodRepository
	userRepo   identity.UserRepository
	cache      evaluation.SummaryCache
	scale      evaluation.GradeScale
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewAssignTeachersHandler creates a new AssignTeachersHandler.
func NewAssignTeachersHandler(
	evalRepo evaluation.Repository,
	aspectRepo evaluation.AspectRepository,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	cache evaluation.SummaryCache,
	scale evaluation.GradeScale,
	log *logger.Logger,
) *AssignTeachersHandler {
	return &AssignTeachersHandler{
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

// Handle sets up one parent per teacher. The batch fails on the first
// teacher that cannot be validated; parents created before the failure
// stay, which is safe because re-running skips them.
func (h *AssignTeachersHandler) Handle(ctx context.Context, cmd AssignTeachersCommand) (*AssignTeachersResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &AssignTeachersResult{}

	for _, teacherID := range cmd.TeacherIDs {
		key := evaluation.ParentKey{
			TeacherID:   teacherID,
			PeriodID:    cmd.PeriodID,
			EvaluatorID: cmd.EvaluatorID,
		}

		refs, err := loadRefs(ctx, h.aspectRepo, h.periodRepo, h.userRepo, key, "")
		if err != nil {
			return nil, err
		}

		created, err := h.assignOne(ctx, key, refs)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created = append(result.Created, teacherID)
			if cacheErr := h.cache.Invalidate(ctx, key); cacheErr != nil {
				h.log.Warn("summary cache invalidation failed",
					logger.TeacherID(teacherID),
					logger.F("error", cacheErr.Error()))
			}
		} else {
			result.Skipped = append(result.Skipped, teacherID)
		}
	}

	h.log.Info("teachers assigned to period",
		logger.PeriodID(cmd.PeriodID),
		logger.EvaluatorID(cmd.EvaluatorID),
		logger.F("actor_id", cmd.ActorID),
		logger.Int("created", len(result.Created)),
		logger.Int("skipped", len(result.Skipped)))

	return result, nil
}

func (h *AssignTeachersHandler) assignOne(ctx context.Context, key evaluation.ParentKey, refs evaluation.Refs) (bool, error) {
	var created bool

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		txErr := h.evalRepo.WithParent(ctx, key, true, func(tx evaluation.ParentTx) error {
			created = tx.Created()
			if !created {
				return nil
			}

			now := time.Now().UTC()
			refs.ParentExists = false
			refs.ScoredAspects = map[string]bool{}
			refs.Now = now

			if res := evaluation.ValidateWrite(evaluation.Candidate{
				Kind: evaluation.WriteCreateEvaluation,
				Key:  key,
			}, refs); !res.OK() {
				return violationError("AssignTeachers", res.Violation)
			}

			summary, err := evaluation.Compute(nil, h.scale)
			if err != nil {
				return err
			}
			parent := tx.Parent()
			parent.ApplySummary(summary, now)
			return tx.PublishSummary(ctx, parent)
		})
		if txErr != nil {
			if shared.IsConflict(txErr) {
				return retry.Retryable(txErr)
			}
			return retry.Permanent(txErr)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE FINAL NOTES COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateFinalNotesCommand replaces the evaluator's summary notes on a parent.
type UpdateFinalNotesCommand struct {
	Key   evaluation.ParentKey
	Notes string

	// ActorID identifies the acting user for audit logging only.
	ActorID string
}

// Validate validates the command structurally.
func (c UpdateFinalNotesCommand) Validate() error {
	return c.Key.Validate()
}

// UpdateFinalNotesHandler handles the UpdateFinalNotesCommand.
type UpdateFinalNotesHandler struct {
	evalRepo   evaluation.Repository
	periodRepo evaluation.PeriodRepository
	userRepo   identity.UserRepository
	cache      evaluation.SummaryCache
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewUpdateFinalNotesHandler creates a new UpdateFinalNotesHandler.
func NewUpdateFinalNotesHandler(
	evalRepo evaluation.Repository,
	periodRepo evaluation.PeriodRepository,
	userRepo identity.UserRepository,
	cache evaluation.SummaryCache,
	log *logger.Logger,
) *UpdateFinalNotesHandler {
	return &UpdateFinalNotesHandler{
		evalRepo:   evalRepo,
		periodRepo: periodRepo,
		userRepo:   userRepo,
		cache:      cache,
		retrier:    retry.ConflictRetrier(),
		log:        log,
	}
}

// Handle writes the notes. Scores and grade are untouched, but the write is
// gated like any other: the period must still be active and the referenced
// users must resolve.
func (h *UpdateFinalNotesHandler) Handle(ctx context.Context, cmd UpdateFinalNotesCommand) (*evaluation.TeacherEvaluation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var parent *evaluation.TeacherEvaluation
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		refs, txErr := parentRefs(ctx, h.periodRepo, h.userRepo, cmd.Key)
		if txErr != nil {
			return retry.Permanent(txErr)
		}

		txErr = h.evalRepo.WithParent(ctx, cmd.Key, false, func(tx evaluation.ParentTx) error {
			now := time.Now().UTC()
			refs.ParentExists = true
			refs.Now = now

			if res := evaluation.ValidateWrite(evaluation.Candidate{
				Kind: evaluation.WriteUpdateNotes,
				Key:  cmd.Key,
			}, refs); !res.OK() {
				return violationError("UpdateFinalNotes", res.Violation)
			}

			p := tx.Parent()
			p.FinalNotes = cmd.Notes
			p.UpdatedAt = now
			if err := tx.PublishSummary(ctx, p); err != nil {
				return err
			}
			parent = p
			return nil
		})
		if txErr != nil {
			if shared.IsConflict(txErr) {
				return retry.Retryable(txErr)
			}
			return retry.Permanent(txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheErr := h.cache.Invalidate(ctx, cmd.Key); cacheErr != nil {
		h.log.Warn("summary cache invalidation failed",
			logger.TeacherID(cmd.Key.TeacherID),
			logger.F("error", cacheErr.Error()))
	}

	h.log.Info("evaluation notes updated",
		logger.TeacherID(cmd.Key.TeacherID),
		logger.PeriodID(cmd.Key.PeriodID),
		logger.F("actor_id", cmd.ActorID))

	return parent, nil
}
