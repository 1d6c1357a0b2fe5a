package submission

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists submissions and their reviews.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	Update(ctx context.Context, s *Submission) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListByStatus(ctx context.Context, status Status) ([]*Submission, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Submission, error)
	ListAll(ctx context.Context) ([]*Submission, error)
	// LatestPerPatient returns each patient's most recent submission.
	LatestPerPatient(ctx context.Context) (map[uuid.UUID]*Submission, error)

	// MarkReviewed flips a pending submission to reviewed. Calling it on an
	// already-reviewed submission is a no-op.
	MarkReviewed(ctx context.Context, id uuid.UUID) error
	AddReview(ctx context.Context, rv *Review) error
	ListReviews(ctx context.Context, submissionID uuid.UUID) ([]*Review, error)

	CountByStatus(ctx context.Context, status Status) (int, error)
	CountPendingBySeverity(ctx context.Context, severity Severity) (int, error)
}
