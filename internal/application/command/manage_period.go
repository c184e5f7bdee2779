package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD MANAGEMENT
// At most one period accepts writes at a time. Activating a period
// deactivates every other period in the same statement, so there is no
// window in which two periods are simultaneously writable.
// ══════════════════════════════════════════════════════════════════════════════

// CreatePeriodCommand contains the data to create a period.
type CreatePeriodCommand struct {
	AcademicYear string
	Semester     string
	StartDate    time.Time
	EndDate      time.Time
	Description  string

	// Activate makes the new period the active one immediately.
	Activate bool
}

// Validate validates the command structurally.
func (c CreatePeriodCommand) Validate() error {
	if c.AcademicYear == "" || c.Semester == "" {
		return shared.NewDomainError("evaluation", "CreatePeriod", shared.ErrEmptyValue, "academic_year and semester are required")
	}
	if c.EndDate.Before(c.StartDate) {
		return shared.NewDomainError("evaluation", "CreatePeriod", shared.ErrValidation, "end_date precedes start_date")
	}
	return nil
}

// CreatePeriodHandler handles the CreatePeriodCommand.
type CreatePeriodHandler struct {
	periodRepo evaluation.PeriodRepository
	log        *logger.Logger
}

// NewCreatePeriodHandler creates a new CreatePeriodHandler.
func NewCreatePeriodHandler(periodRepo evaluation.PeriodRepository, log *logger.Logger) *CreatePeriodHandler {
	return &CreatePeriodHandler{periodRepo: periodRepo, log: log}
}

// Handle creates the period.
func (h *CreatePeriodHandler) Handle(ctx context.Context, cmd CreatePeriodCommand) (*evaluation.Period, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	startDate, endDate := cmd.StartDate, cmd.EndDate
	if startDate.IsZero() && endDate.IsZero() {
		// Fall back to the conventional semester window when the caller
		// does not supply explicit dates.
		var err error
		startDate, endDate, err = timeutil.SemesterRange(cmd.AcademicYear, cmd.Semester)
		if err != nil {
			return nil, shared.WrapError("evaluation", "CreatePeriod", shared.ErrValidation, "cannot derive period dates", err)
		}
	}

	now := time.Now().UTC()
	period := &evaluation.Period{
		ID:           uuid.NewString(),
		AcademicYear: cmd.AcademicYear,
		Semester:     cmd.Semester,
		StartDate:    startDate,
		EndDate:      endDate,
		Description:  cmd.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.periodRepo.Create(ctx, period); err != nil {
		return nil, err
	}

	if cmd.Activate {
		if err := h.periodRepo.Activate(ctx, period.ID); err != nil {
			return nil, err
		}
		period.IsActive = true
	}

	h.log.Info("period created",
		logger.F("period_id", period.ID),
		logger.F("name", period.Name()),
		logger.F("active", period.IsActive))

	return period, nil
}

// ActivatePeriodCommand names the period to make writable.
type ActivatePeriodCommand struct {
	PeriodID string
}

// Validate validates the command structurally.
func (c ActivatePeriodCommand) Validate() error {
	if c.PeriodID == "" {
		return shared.NewDomainError("evaluation", "ActivatePeriod", shared.ErrEmptyValue, "period_id is required")
	}
	return nil
}

// ActivatePeriodHandler handles the ActivatePeriodCommand.
type ActivatePeriodHandler struct {
	periodRepo evaluation.PeriodRepository
	log        *logger.Logger
}

// NewActivatePeriodHandler creates a new ActivatePeriodHandler.
func NewActivatePeriodHandler(periodRepo evaluation.PeriodRepository, log *logger.Logger) *ActivatePeriodHandler {
	return &ActivatePeriodHandler{periodRepo: periodRepo, log: log}
}

// Handle activates the period and deactivates every other one.
func (h *ActivatePeriodHandler) Handle(ctx context.Context, cmd ActivatePeriodCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if _, err := h.periodRepo.GetByID(ctx, cmd.PeriodID); err != nil {
		return err
	}
	if err := h.periodRepo.Activate(ctx, cmd.PeriodID); err != nil {
		return err
	}

	h.log.Info("period activated", logger.F("period_id", cmd.PeriodID))
	return nil
}
