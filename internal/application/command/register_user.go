package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to register a user.
type RegisterUserCommand struct {
	Email          string
	Password       string
	Profile        identity.Profile
	OrganizationID *string

	// Role optionally assigns an initial role in the same call.
	Role string

	// RoleExpiresAt optionally bounds the initial role in time.
	RoleExpiresAt *time.Time
}

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	userRepo identity.UserRepository
	roleRepo identity.RoleRepository
	orgRepo  identity.OrganizationRepository
	log      *logger.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(
	userRepo identity.UserRepository,
	roleRepo identity.RoleRepository,
	orgRepo identity.OrganizationRepository,
	log *logger.Logger,
) *RegisterUserHandler {
	return &RegisterUserHandler{
		userRepo: userRepo,
		roleRepo: roleRepo,
		orgRepo:  orgRepo,
		log:      log,
	}
}

// Handle registers the user and, when requested, the initial role.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*identity.User, error) {
	if cmd.OrganizationID != nil {
		if _, err := h.orgRepo.GetByID(ctx, *cmd.OrganizationID); err != nil {
			if errors.Is(err, identity.ErrOrganizationNotFound) {
				return nil, shared.ErrOrgNotFound
			}
			return nil, shared.WrapError("identity", "Register", shared.ErrStorage, "failed to load organization", err)
		}
	}

	user, err := identity.NewUser(identity.NewUserParams{
		ID:             uuid.NewString(),
		Email:          cmd.Email,
		Password:       cmd.Password,
		Profile:        cmd.Profile,
		OrganizationID: cmd.OrganizationID,
	})
	if err != nil {
		return nil, shared.WrapError("identity", "Register", shared.ErrValidation, "invalid user", err)
	}

	if err := h.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if cmd.Role != "" {
		assignment := &identity.RoleAssignment{
			ID:             uuid.NewString(),
			UserID:         user.ID,
			RoleName:       cmd.Role,
			OrganizationID: cmd.OrganizationID,
			IsActive:       true,
			ExpiresAt:      cmd.RoleExpiresAt,
			CreatedAt:      time.Now().UTC(),
		}
		if err := h.roleRepo.Assign(ctx, assignment); err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, *assignment)
	}

	h.log.Info("user registered",
		logger.F("user_id", user.ID),
		logger.Email(user.Email),
		logger.F("role", cmd.Role))

	return user, nil
}
