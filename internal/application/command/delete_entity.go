package command

import (
	"context"
	"errors"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE ENTITY COMMAND
// One generic deletion routine for every entity kind, driven entirely by the
// policy table. The reference check and the delete run in one serializable
// transaction under the entity's row lock, so a reference added concurrently
// either blocks this delete or arrives after the entity is gone - never a
// dangling pointer either way.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteEntityCommand identifies the entity to delete.
type DeleteEntityCommand struct {
	Kind     integrity.EntityKind
	EntityID string

	// ActorID identifies the acting user; stamped on soft deletions.
	ActorID string
}

// Validate validates the command structurally.
func (c DeleteEntityCommand) Validate() error {
	if !c.Kind.IsValid() {
		return shared.ErrUnknownEntity
	}
	if c.EntityID == "" {
		return shared.NewDomainError("integrity", "Delete", shared.ErrEmptyValue, "entity_id is required")
	}
	return nil
}

// DeleteEntityHandler handles the DeleteEntityCommand.
type DeleteEntityHandler struct {
	store    integrity.Store
	userRepo identity.UserRepository
	evalRepo evaluation.Repository
	cache    evaluation.SummaryCache
	retrier  *retry.Retrier
	log      *logger.Logger
}

// NewDeleteEntityHandler creates a new DeleteEntityHandler.
func NewDeleteEntityHandler(
	store integrity.Store,
	userRepo identity.UserRepository,
	evalRepo evaluation.Repository,
	cache evaluation.SummaryCache,
	log *logger.Logger,
) *DeleteEntityHandler {
	return &DeleteEntityHandler{
		store:    store,
		userRepo: userRepo,
		evalRepo: evalRepo,
		cache:    cache,
		retrier:  retry.ConflictRetrier(),
		log:      log,
	}
}

// Handle performs the deletion and reports what actually happened. A
// serialization failure retries the whole check-and-delete unit.
func (h *DeleteEntityHandler) Handle(ctx context.Context, cmd DeleteEntityCommand) (*integrity.Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if cmd.Kind == integrity.KindUser {
		if err := h.guardLastAdmin(ctx, cmd.EntityID); err != nil {
			return nil, err
		}
	}

	// Resolve the parent key before the row disappears; the cached
	// summary is keyed by triple, not by evaluation ID.
	var evalKey *evaluation.ParentKey
	if cmd.Kind == integrity.KindEvaluation {
		parent, err := h.evalRepo.GetByID(ctx, cmd.EntityID)
		if err != nil && !errors.Is(err, evaluation.ErrEvaluationNotFound) {
			return nil, err
		}
		if parent != nil {
			evalKey = &evaluation.ParentKey{
				TeacherID:   parent.TeacherID,
				PeriodID:    parent.PeriodID,
				EvaluatorID: parent.EvaluatorID,
			}
		}
	}

	var outcome *integrity.Outcome
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		o, txErr := h.deleteOnce(ctx, cmd)
		if txErr != nil {
			if shared.IsConflict(txErr) {
				return retry.Retryable(txErr)
			}
			return retry.Permanent(txErr)
		}
		outcome = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A deleted evaluation, or a user whose evaluations just cascaded or
	// froze, must not keep serving from the summary cache.
	if evalKey != nil {
		if cacheErr := h.cache.Invalidate(ctx, *evalKey); cacheErr != nil {
			h.log.Warn("summary cache invalidation failed",
				logger.TeacherID(evalKey.TeacherID),
				logger.F("error", cacheErr.Error()))
		}
	}
	if cmd.Kind == integrity.KindUser {
		if cacheErr := h.cache.InvalidateTeacher(ctx, cmd.EntityID); cacheErr != nil {
			h.log.Warn("summary cache invalidation failed",
				logger.TeacherID(cmd.EntityID),
				logger.F("error", cacheErr.Error()))
		}
	}

	h.log.Info("entity deleted",
		logger.F("kind", string(cmd.Kind)),
		logger.F("entity_id", cmd.EntityID),
		logger.F("actor_id", cmd.ActorID),
		logger.F("soft", outcome.SoftDeleted))

	return outcome, nil
}

func (h *DeleteEntityHandler) deleteOnce(ctx context.Context, cmd DeleteEntityCommand) (*integrity.Outcome, error) {
	now := time.Now().UTC()
	outcome := &integrity.Outcome{
		Kind:      cmd.Kind,
		EntityID:  cmd.EntityID,
		Detached:  map[string]int{},
		Cascaded:  map[string]int{},
		DeletedAt: now,
		DeletedBy: cmd.ActorID,
	}

	err := h.store.InTx(ctx, func(tx integrity.StoreTx) error {
		if err := tx.LockEntity(ctx, cmd.Kind, cmd.EntityID); err != nil {
			return err
		}

		// Re-decide under the lock; a dry-run answer from before the
		// transaction may already be stale.
		decision, err := integrity.Decide(ctx, tx, cmd.Kind, cmd.EntityID)
		if err != nil {
			return err
		}

		switch decision.Kind {
		case integrity.DecisionBlocked:
			return shared.WrapError("integrity", "Delete", shared.ErrIntegrityBlocked, decision.Reason(), shared.ErrDeleteBlocked)

		case integrity.DecisionSoftDeleteRequired:
			// Historical references keep the row; only the liveness
			// flag changes. Roles and files stay attached so history
			// keeps resolving.
			if err := tx.SoftDeleteUser(ctx, cmd.EntityID, cmd.ActorID, now); err != nil {
				return err
			}
			outcome.SoftDeleted = true
			return nil

		case integrity.DecisionHard:
			for _, rel := range integrity.RelationsFor(cmd.Kind) {
				switch rel.OnDelete {
				case integrity.ActionDetach:
					n, err := tx.DetachReferences(ctx, rel, cmd.EntityID)
					if err != nil {
						return err
					}
					if n > 0 {
						outcome.Detached[rel.String()] = n
					}
				case integrity.ActionCascade:
					n, err := tx.CascadeDelete(ctx, rel, cmd.EntityID)
					if err != nil {
						return err
					}
					if n > 0 {
						outcome.Cascaded[rel.String()] = n
					}
				}
			}
			return tx.HardDelete(ctx, cmd.Kind, cmd.EntityID)

		default:
			return shared.ErrUnknownEntity
		}
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// guardLastAdmin refuses to delete the only remaining admin, hard or soft.
// Locking out every administrator is unrecoverable from inside the system.
func (h *DeleteEntityHandler) guardLastAdmin(ctx context.Context, userID string) error {
	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasRole(identity.RoleAdmin, time.Now().UTC()) {
		return nil
	}
	n, err := h.userRepo.CountWithRole(ctx, identity.RoleAdmin)
	if err != nil {
		return shared.WrapError("identity", "Delete", shared.ErrStorage, "failed to count admins", err)
	}
	if n <= 1 {
		return shared.ErrLastAdmin
	}
	return nil
}
