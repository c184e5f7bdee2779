package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/document"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEDIA REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MediaRepository implements document.MediaRepository for PostgreSQL.
type MediaRepository struct {
	conn *Connection
}

// NewMediaRepository creates a new MediaRepository.
func NewMediaRepository(conn *Connection) *MediaRepository {
	return &MediaRepository{conn: conn}
}

const mediaColumns = `id, path, name, type, size, mime_type, uploader_id,
		organization_id, is_public, created_at, updated_at`

// Create stores a file record.
func (r *MediaRepository) Create(ctx context.Context, f *document.MediaFile) error {
	query := `
		INSERT INTO media_files (
			id, path, name, type, size, mime_type, uploader_id,
			organization_id, is_public, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.conn.Exec(ctx, query,
		f.ID, f.Path, f.Name, f.Type, f.Size, f.MimeType,
		f.UploaderID, f.OrganizationID, f.IsPublic, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	return nil
}

// GetByID returns a file by ID.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (*document.MediaFile, error) {
	query := `SELECT ` + mediaColumns + ` FROM media_files WHERE id = $1`
	return scanMediaFile(r.conn.QueryRow(ctx, query, id))
}

// ListByUploader returns all files uploaded by a user.
func (r *MediaRepository) ListByUploader(ctx context.Context, uploaderID string) ([]*document.MediaFile, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media_files
		WHERE uploader_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.conn.Query(ctx, query, uploaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media files: %w", err)
	}
	defer rows.Close()

	var result []*document.MediaFile
	for rows.Next() {
		f, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func scanMediaFile(row pgx.Row) (*document.MediaFile, error) {
	var f document.MediaFile
	err := row.Scan(
		&f.ID,
		&f.Path,
		&f.Name,
		&f.Type,
		&f.Size,
		&f.MimeType,
		&f.UploaderID,
		&f.OrganizationID,
		&f.IsPublic,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, document.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to scan media file: %w", err)
	}
	return &f, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements document.SubmissionRepository for PostgreSQL.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

// Create stores a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *document.RPPSubmission) error {
	query := `
		INSERT INTO rpp_submissions (
			id, teacher_id, reviewer_id, period_id, file_id, status,
			review_notes, submitted_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.conn.Exec(ctx, query,
		s.ID, s.TeacherID, s.ReviewerID, s.PeriodID, s.FileID,
		string(s.Status), s.ReviewNotes, s.SubmittedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return document.ErrFileNotFound
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID returns a submission by ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*document.RPPSubmission, error) {
	query := `
		SELECT id, teacher_id, reviewer_id, period_id, file_id, status,
			   review_notes, submitted_at, created_at, updated_at
		FROM rpp_submissions
		WHERE id = $1
	`
	var s document.RPPSubmission
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.TeacherID,
		&s.ReviewerID,
		&s.PeriodID,
		&s.FileID,
		&s.Status,
		&s.ReviewNotes,
		&s.SubmittedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, document.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	return &s, nil
}

// CountForUser returns how many submissions name the user as submitter or
// reviewer.
func (r *SubmissionRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM rpp_submissions
		WHERE teacher_id = $1 OR reviewer_id = $1
	`
	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// CountForFile returns how many submissions reference a file.
func (r *SubmissionRepository) CountForFile(ctx context.Context, fileID string) (int, error) {
	query := `SELECT COUNT(*) FROM rpp_submissions WHERE file_id = $1`
	var count int
	if err := r.conn.QueryRow(ctx, query, fileID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions for file: %w", err)
	}
	return count, nil
}
