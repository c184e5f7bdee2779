package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// Soft-deleted users stay in the table and keep resolving by ID, so every
// historical evaluation and submission that names them still renders. Only
// email lookups and role counts filter them out.
// ══════════════════════════════════════════════════════════════════════════════

const userColumns = `id, email, password_hash, name, phone, address, nip,
		organization_id, status, deleted_at, deleted_by, last_login_at, created_at, updated_at`

// UserRepository implements identity.UserRepository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *identity.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, name, phone, address, nip,
			organization_id, status, deleted_at, deleted_by, last_login_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.conn.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Profile.Name,
		u.Profile.Phone,
		u.Profile.Address,
		u.Profile.NIP,
		u.OrganizationID,
		string(u.Status),
		u.DeletedAt,
		nilIfEmpty(u.DeletedBy),
		u.LastLoginAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID, including soft-deleted users.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	user.Roles, err = r.loadRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail returns a non-deleted user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.conn.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	user.Roles, err = r.loadRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update persists changes to a user.
func (r *UserRepository) Update(ctx context.Context, u *identity.User) error {
	query := `
		UPDATE users SET
			email           = $2,
			password_hash   = $3,
			name            = $4,
			phone           = $5,
			address         = $6,
			nip             = $7,
			organization_id = $8,
			status          = $9,
			deleted_at      = $10,
			deleted_by      = $11,
			last_login_at   = $12,
			updated_at      = $13
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Profile.Name,
		u.Profile.Phone,
		u.Profile.Address,
		u.Profile.NIP,
		u.OrganizationID,
		string(u.Status),
		u.DeletedAt,
		nilIfEmpty(u.DeletedBy),
		u.LastLoginAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// ListByOrganization returns all users attached to an organization.
func (r *UserRepository) ListByOrganization(ctx context.Context, orgID string) ([]*identity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY name
	`
	rows, err := r.conn.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// CountWithRole returns the number of non-deleted users holding a currently
// valid role.
func (r *UserRepository) CountWithRole(ctx context.Context, roleName string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE ur.role_name = $1
		  AND ur.is_active
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		  AND u.deleted_at IS NULL
	`
	var count int
	if err := r.conn.QueryRow(ctx, query, roleName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users with role: %w", err)
	}
	return count, nil
}

// Exists checks whether a non-deleted user exists by ID.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`
	var exists bool
	if err := r.conn.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, userID string) ([]identity.RoleAssignment, error) {
	repo := RoleRepository{conn: r.conn}
	return repo.ListByUser(ctx, userID)
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var (
		u         identity.User
		deletedBy *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Profile.Name,
		&u.Profile.Phone,
		&u.Profile.Address,
		&u.Profile.NIP,
		&u.OrganizationID,
		&u.Status,
		&u.DeletedAt,
		&deletedBy,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if deletedBy != nil {
		u.DeletedBy = *deletedBy
	}
	return &u, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RoleRepository implements identity.RoleRepository for PostgreSQL.
type RoleRepository struct {
	conn *Connection
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(conn *Connection) *RoleRepository {
	return &RoleRepository{conn: conn}
}

// Assign creates a role assignment.
func (r *RoleRepository) Assign(ctx context.Context, a *identity.RoleAssignment) error {
	perms, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	if a.Permissions == nil {
		perms = []byte("{}")
	}

	query := `
		INSERT INTO user_roles (
			id, user_id, role_name, organization_id, permissions,
			is_active, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.RoleName,
		a.OrganizationID,
		perms,
		a.IsActive,
		a.ExpiresAt,
		a.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return identity.ErrUserNotFound
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// ListByUser returns all role assignments for a user.
func (r *RoleRepository) ListByUser(ctx context.Context, userID string) ([]identity.RoleAssignment, error) {
	query := `
		SELECT id, user_id, role_name, organization_id, permissions,
			   is_active, expires_at, created_at
		FROM user_roles
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var result []identity.RoleAssignment
	for rows.Next() {
		var (
			a     identity.RoleAssignment
			perms []byte
		)
		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.RoleName,
			&a.OrganizationID,
			&perms,
			&a.IsActive,
			&a.ExpiresAt,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if len(perms) > 0 {
			if err := json.Unmarshal(perms, &a.Permissions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
			}
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Revoke deactivates a role assignment.
func (r *RoleRepository) Revoke(ctx context.Context, assignmentID string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE user_roles SET is_active = FALSE WHERE id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ORGANIZATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// OrganizationRepository implements identity.OrganizationRepository for PostgreSQL.
type OrganizationRepository struct {
	conn *Connection
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(conn *Connection) *OrganizationRepository {
	return &OrganizationRepository{conn: conn}
}

// Create creates a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, o *identity.Organization) error {
	query := `
		INSERT INTO organizations (id, name, description, head_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.Exec(ctx, query,
		o.ID, o.Name, o.Description, o.HeadID, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByID returns an organization by ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*identity.Organization, error) {
	query := `
		SELECT id, name, description, head_id, status, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	var o identity.Organization
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Description, &o.HeadID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, identity.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &o, nil
}

// Update persists changes to an organization.
func (r *OrganizationRepository) Update(ctx context.Context, o *identity.Organization) error {
	query := `
		UPDATE organizations SET
			name        = $2,
			description = $3,
			head_id     = $4,
			status      = $5,
			updated_at  = $6
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query,
		o.ID, o.Name, o.Description, o.HeadID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrOrganizationNotFound
	}
	return nil
}

// SetHead sets or clears the head-of-organization reference.
func (r *OrganizationRepository) SetHead(ctx context.Context, orgID string, headID *string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE organizations SET head_id = $2, updated_at = NOW() WHERE id = $1`, orgID, headID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return identity.ErrUserNotFound
		}
		return fmt.Errorf("failed to set organization head: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrOrganizationNotFound
	}
	return nil
}
