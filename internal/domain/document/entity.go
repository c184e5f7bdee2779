// Package document contains the domain model for uploaded media files and
// lesson-plan (RPP) submissions. The approval workflow itself lives outside
// the core; these entities exist here because the integrity engine must
// decide deletions involving them.
package document

import (
	"context"
	"errors"
	"time"
)

// RPPStatus is the review state of a lesson-plan submission.
type RPPStatus string

const (
	RPPPending        RPPStatus = "pending"
	RPPApproved       RPPStatus = "approved"
	RPPRejected       RPPStatus = "rejected"
	RPPRevisionNeeded RPPStatus = "revision_needed"
)

// IsValid reports whether the status is a known value.
func (s RPPStatus) IsValid() bool {
	switch s {
	case RPPPending, RPPApproved, RPPRejected, RPPRevisionNeeded:
		return true
	default:
		return false
	}
}

// MediaFile is an uploaded document or image.
type MediaFile struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// Path, Name, Type, Size and MimeType describe the stored file.
	Path     string
	Name     string
	Type     string
	Size     int64
	MimeType string

	// UploaderID references the uploading user, nil after the uploader
	// is deleted (the file itself survives).
	UploaderID *string

	// OrganizationID scopes the file to an organization, optional.
	OrganizationID *string

	IsPublic  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RPPSubmission is one teacher's lesson-plan submission for a period. A
// submission must always resolve its attached document, so the referenced
// file can never be hard-deleted.
type RPPSubmission struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// TeacherID is the submitting teacher.
	TeacherID string

	// ReviewerID is the assigned reviewer, nil until assigned.
	ReviewerID *string

	// PeriodID is the period the submission belongs to.
	PeriodID string

	// FileID references the attached document.
	FileID string

	// Status is the review state.
	Status RPPStatus

	// ReviewNotes is the reviewer's optional commentary.
	ReviewNotes string

	SubmittedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrFileNotFound - the media file does not exist.
	ErrFileNotFound = errors.New("media file not found")

	// ErrSubmissionNotFound - the submission does not exist.
	ErrSubmissionNotFound = errors.New("rpp submission not found")
)

// MediaRepository defines storage operations for media files.
type MediaRepository interface {
	// Create stores a file record.
	Create(ctx context.Context, file *MediaFile) error

	// GetByID returns a file by ID.
	// Returns ErrFileNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*MediaFile, error)

	// ListByUploader returns all files uploaded by a user.
	ListByUploader(ctx context.Context, uploaderID string) ([]*MediaFile, error)
}

// SubmissionRepository defines storage operations for RPP submissions.
type SubmissionRepository interface {
	// Create stores a submission.
	Create(ctx context.Context, sub *RPPSubmission) error

	// GetByID returns a submission by ID.
	// Returns ErrSubmissionNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*RPPSubmission, error)

	// CountForUser returns how many submissions name the user as
	// submitter or reviewer.
	CountForUser(ctx context.Context, userID string) (int, error)

	// CountForFile returns how many submissions reference a file.
	CountForFile(ctx context.Context, fileID string) (int, error)
}
