package identity

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository defines storage operations for users.
type UserRepository interface {
	// Create creates a new user.
	// Returns ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID returns a user by ID, including soft-deleted users so that
	// historical references keep resolving.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns a user by email.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update persists changes to a user.
	// Returns ErrUserNotFound if the user does not exist.
	Update(ctx context.Context, user *User) error

	// ListByOrganization returns all users attached to an organization.
	ListByOrganization(ctx context.Context, orgID string) ([]*User, error)

	// CountWithRole returns the number of non-deleted users holding a
	// currently valid role.
	CountWithRole(ctx context.Context, roleName string) (int, error)

	// Exists checks whether a non-deleted user exists by ID.
	Exists(ctx context.Context, id string) (bool, error)
}

// RoleRepository defines storage operations for role assignments.
type RoleRepository interface {
	// Assign creates a role assignment.
	Assign(ctx context.Context, assignment *RoleAssignment) error

	// ListByUser returns all role assignments for a user.
	ListByUser(ctx context.Context, userID string) ([]RoleAssignment, error)

	// Revoke deactivates a role assignment.
	Revoke(ctx context.Context, assignmentID string) error
}

// OrganizationRepository defines storage operations for organizations.
type OrganizationRepository interface {
	// Create creates a new organization.
	Create(ctx context.Context, org *Organization) error

	// GetByID returns an organization by ID.
	// Returns ErrOrganizationNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Organization, error)

	// Update persists changes to an organization.
	Update(ctx context.Context, org *Organization) error

	// SetHead sets or clears the head-of-organization reference.
	SetHead(ctx context.Context, orgID string, headID *string) error
}
