package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASPECT MANAGEMENT
// An aspect's weight and score range freeze once any persisted item
// references it. Historical scores were computed against those values;
// changing them in place would silently re-mean old grades. A new aspect
// version is the supported path.
// ══════════════════════════════════════════════════════════════════════════════

// CreateAspectCommand contains the data to create an evaluation aspect.
type CreateAspectCommand struct {
	Name         string
	Category     string
	Description  string
	Weight       float64
	MinScore     float64
	MaxScore     float64
	DisplayOrder int
}

// CreateAspectHandler handles the CreateAspectCommand.
type CreateAspectHandler struct {
	aspectRepo evaluation.AspectRepository
	log        *logger.Logger
}

// NewCreateAspectHandler creates a new CreateAspectHandler.
func NewCreateAspectHandler(aspectRepo evaluation.AspectRepository, log *logger.Logger) *CreateAspectHandler {
	return &CreateAspectHandler{aspectRepo: aspectRepo, log: log}
}

// Handle creates the aspect.
func (h *CreateAspectHandler) Handle(ctx context.Context, cmd CreateAspectCommand) (*evaluation.EvaluationAspect, error) {
	now := time.Now().UTC()
	aspect := &evaluation.EvaluationAspect{
		ID:           uuid.NewString(),
		Name:         cmd.Name,
		Category:     cmd.Category,
		Description:  cmd.Description,
		Weight:       cmd.Weight,
		MinScore:     cmd.MinScore,
		MaxScore:     cmd.MaxScore,
		DisplayOrder: cmd.DisplayOrder,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := aspect.Validate(); err != nil {
		return nil, shared.WrapError("evaluation", "CreateAspect", shared.ErrValidation, "invalid aspect", err)
	}

	if err := h.aspectRepo.Create(ctx, aspect); err != nil {
		return nil, err
	}

	h.log.Info("aspect created",
		logger.F("aspect_id", aspect.ID),
		logger.F("name", aspect.Name),
		logger.F("weight", aspect.Weight))

	return aspect, nil
}

// UpdateAspectCommand contains the data to update an aspect. Zero-valued
// fields are treated as "no change" for the frozen attributes so a caller
// can rename or deactivate without restating weight and range.
type UpdateAspectCommand struct {
	AspectID     string
	Name         string
	Category     string
	Description  string
	Weight       float64
	MinScore     *float64
	MaxScore     *float64
	DisplayOrder *int
	IsActive     *bool
}

// Validate validates the command structurally.
func (c UpdateAspectCommand) Validate() error {
	if c.AspectID == "" {
		return shared.NewDomainError("evaluation", "UpdateAspect", shared.ErrEmptyValue, "aspect_id is required")
	}
	return nil
}

// UpdateAspectHandler handles the UpdateAspectCommand.
type UpdateAspectHandler struct {
	aspectRepo evaluation.AspectRepository
	log        *logger.Logger
}

// NewUpdateAspectHandler creates a new UpdateAspectHandler.
func NewUpdateAspectHandler(aspectRepo evaluation.AspectRepository, log *logger.Logger) *UpdateAspectHandler {
	return &UpdateAspectHandler{aspectRepo: aspectRepo, log: log}
}

// Handle applies the update, enforcing the immutability of weight and range
// once the aspect is referenced by persisted items.
func (h *UpdateAspectHandler) Handle(ctx context.Context, cmd UpdateAspectCommand) (*evaluation.EvaluationAspect, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.aspectRepo.GetByID(ctx, cmd.AspectID)
	if err != nil {
		return nil, err
	}

	proposed := *current
	if cmd.Name != "" {
		proposed.Name = cmd.Name
	}
	if cmd.Category != "" {
		proposed.Category = cmd.Category
	}
	if cmd.Description != "" {
		proposed.Description = cmd.Description
	}
	if cmd.Weight != 0 {
		proposed.Weight = cmd.Weight
	}
	if cmd.MinScore != nil {
		proposed.MinScore = *cmd.MinScore
	}
	if cmd.MaxScore != nil {
		proposed.MaxScore = *cmd.MaxScore
	}
	if cmd.DisplayOrder != nil {
		proposed.DisplayOrder = *cmd.DisplayOrder
	}
	if cmd.IsActive != nil {
		proposed.IsActive = *cmd.IsActive
	}
	proposed.UpdatedAt = time.Now().UTC()

	referenced, err := h.aspectRepo.IsReferenced(ctx, cmd.AspectID)
	if err != nil {
		return nil, shared.WrapError("evaluation", "UpdateAspect", shared.ErrStorage, "failed to check references", err)
	}

	if res := evaluation.ValidateAspectEdit(current, &proposed, referenced); !res.OK() {
		if res.Violation.Code == evaluation.ViolationAspectFrozen {
			return nil, shared.ErrAspectInUse
		}
		return nil, violationError("UpdateAspect", res.Violation)
	}

	if err := h.aspectRepo.Update(ctx, &proposed); err != nil {
		return nil, err
	}

	h.log.Info("aspect updated",
		logger.F("aspect_id", proposed.ID),
		logger.F("referenced", referenced))

	return &proposed, nil
}
