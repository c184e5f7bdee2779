// Package identity contains the domain model for organizations, users and
// role assignments. This is core business logic with no storage dependencies;
// persistence lives in infrastructure/persistence.
package identity

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a user or organization. Soft-deleted is a
// first-class state rather than a boolean flag so every read path has one
// place to decide visibility and eligibility.
type Status string

const (
	// StatusActive - the entity is live and fully usable.
	StatusActive Status = "active"
	// StatusInactive - the entity is disabled but may be reactivated.
	StatusInactive Status = "inactive"
	// StatusSuspended - the entity is blocked by administrative action.
	StatusSuspended Status = "suspended"
	// StatusSoftDeleted - the entity was deleted but retained because
	// historical records still reference it.
	StatusSoftDeleted Status = "soft_deleted"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusSoftDeleted:
		return true
	default:
		return false
	}
}

// CanBeReferenced reports whether existing records naming this entity remain
// readable. Soft-deleted users still resolve as the teacher/evaluator side of
// persisted evaluations.
func (s Status) CanBeReferenced() bool {
	return s.IsValid()
}

// CanReceiveNewReferences reports whether new records may name this entity.
// Write paths reject soft-deleted and suspended users.
func (s Status) CanReceiveNewReferences() bool {
	return s == StatusActive || s == StatusInactive
}

// Role names used across the system.
const (
	RoleAdmin     = "admin"
	RoleTeacher   = "guru"
	RolePrincipal = "kepala_sekolah"
)

// ══════════════════════════════════════════════════════════════════════════════
// ORGANIZATION
// ══════════════════════════════════════════════════════════════════════════════

// Organization is an institution (a school). It may exist with zero users and
// no head.
type Organization struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// Name is the institution name.
	Name string

	// Description is optional free text.
	Description string

	// HeadID references the head/principal user, absent when the
	// organization has no head.
	HeadID *string

	// Status is the lifecycle state.
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// Profile holds flexible user profile data.
type Profile struct {
	Name    string
	Phone   string
	Address string
	NIP     string // civil-servant registration number, optional
}

// User is a person with exactly one account. The organization reference may
// be absent (detached user).
type User struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// Email is the unique login email.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// Profile holds display name and contact details.
	Profile Profile

	// OrganizationID references the user's organization, nil when detached.
	OrganizationID *string

	// Status is the lifecycle state, including soft deletion.
	Status Status

	// Roles are the user's role assignments.
	Roles []RoleAssignment

	// DeletedAt is set when the user is soft-deleted.
	DeletedAt *time.Time

	// DeletedBy identifies the actor who performed the soft delete.
	DeletedBy string

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleAssignment grants a role to a user, optionally scoped to an
// organization and bounded in time.
type RoleAssignment struct {
	ID             string
	UserID         string
	RoleName       string
	OrganizationID *string
	Permissions    map[string]string
	IsActive       bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// IsExpired reports whether the assignment has passed its expiry.
func (r RoleAssignment) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// IsValid reports whether the assignment is active and not expired.
func (r RoleAssignment) IsValid(now time.Time) bool {
	return r.IsActive && !r.IsExpired(now)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidEmail - the email is empty or malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidPassword - the password does not meet the minimum length.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 chars")

	// ErrInvalidName - the display name is required.
	ErrInvalidName = errors.New("invalid name: must not be empty")

	// ErrUserNotFound - the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists - a user with this email already exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrOrganizationNotFound - the organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrAlreadySoftDeleted - the user is already soft-deleted.
	ErrAlreadySoftDeleted = errors.New("user is already soft deleted")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & BEHAVIOR
// ══════════════════════════════════════════════════════════════════════════════

// NewUserParams contains the parameters for creating a user.
type NewUserParams struct {
	ID             string
	Email          string
	Password       string
	Profile        Profile
	OrganizationID *string
}

// NewUser creates a user with a hashed password and validated fields.
func NewUser(params NewUserParams) (*User, error) {
	if params.ID == "" {
		return nil, errors.New("user id is required")
	}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(params.Password) < 8 {
		return nil, ErrInvalidPassword
	}
	if strings.TrimSpace(params.Profile.Name) == "" {
		return nil, ErrInvalidName
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:             params.ID,
		Email:          email,
		PasswordHash:   string(hash),
		Profile:        params.Profile,
		OrganizationID: params.OrganizationID,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// DisplayName returns the profile name, falling back to the email.
func (u *User) DisplayName() string {
	if u.Profile.Name != "" {
		return u.Profile.Name
	}
	return u.Email
}

// IsSoftDeleted reports whether the user has been soft-deleted.
func (u *User) IsSoftDeleted() bool {
	return u.Status == StatusSoftDeleted
}

// SoftDelete marks the user inactive for new references while keeping the
// row and all historical references intact.
func (u *User) SoftDelete(actor string, at time.Time) error {
	if u.IsSoftDeleted() {
		return ErrAlreadySoftDeleted
	}
	u.Status = StatusSoftDeleted
	u.DeletedAt = &at
	u.DeletedBy = actor
	u.UpdatedAt = at
	return nil
}

// Detach clears the organization reference. Used when the organization is
// deleted.
func (u *User) Detach(at time.Time) {
	u.OrganizationID = nil
	u.UpdatedAt = at
}

// ActiveRoles returns the names of all currently valid role assignments.
func (u *User) ActiveRoles(now time.Time) []string {
	var names []string
	for _, r := range u.Roles {
		if r.IsValid(now) {
			names = append(names, r.RoleName)
		}
	}
	return names
}

// HasRole reports whether the user holds a currently valid role.
func (u *User) HasRole(name string, now time.Time) bool {
	for _, r := range u.Roles {
		if r.RoleName == name && r.IsValid(now) {
			return true
		}
	}
	return false
}
