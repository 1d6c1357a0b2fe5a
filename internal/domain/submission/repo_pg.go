package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumivita/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed submission repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const subCols = `id, patient_id, symptoms, severity, contact_info,
	priority_score, submitted_at, status, created_at, updated_at`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.PatientID, &s.Symptoms, &s.Severity, &s.ContactInfo,
		&s.PriorityScore, &s.SubmittedAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func collectSubmissions(rows pgx.Rows, err error) ([]*Submission, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, s *Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO submission (id, patient_id, symptoms, severity, contact_info,
			priority_score, submitted_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.PatientID, s.Symptoms, s.Severity, s.ContactInfo,
		s.PriorityScore, s.SubmittedAt, s.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return scanSubmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+subCols+` FROM submission WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Submission) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE submission SET symptoms=$2, severity=$3, contact_info=$4,
			priority_score=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Symptoms, s.Severity, s.ContactInfo, s.PriorityScore)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM submission WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByStatus(ctx context.Context, status Status) ([]*Submission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+subCols+` FROM submission
		WHERE status = $1
		ORDER BY priority_score DESC, submitted_at ASC`, status)
	return collectSubmissions(rows, err)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Submission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+subCols+` FROM submission
		WHERE patient_id = $1
		ORDER BY submitted_at DESC`, patientID)
	return collectSubmissions(rows, err)
}

func (r *repoPG) ListAll(ctx context.Context) ([]*Submission, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+subCols+` FROM submission ORDER BY submitted_at DESC`)
	return collectSubmissions(rows, err)
}

func (r *repoPG) LatestPerPatient(ctx context.Context) (map[uuid.UUID]*Submission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ON (patient_id) `+subCols+` FROM submission
		ORDER BY patient_id, submitted_at DESC, id DESC`)
	subs, err := collectSubmissions(rows, err)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*Submission, len(subs))
	for _, s := range subs {
		out[s.PatientID] = s
	}
	return out, nil
}

func (r *repoPG) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE submission SET status=$2, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusReviewed, StatusPending)
	return err
}

func (r *repoPG) AddReview(ctx context.Context, rv *Review) error {
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO submission_review (id, submission_id, caregiver_id, note, recommendation)
		VALUES ($1,$2,$3,$4,$5)`,
		rv.ID, rv.SubmissionID, rv.CaregiverID, rv.Note, rv.Recommendation)
	return err
}

func (r *repoPG) ListReviews(ctx context.Context, submissionID uuid.UUID) ([]*Review, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, submission_id, caregiver_id, note, recommendation, created_at
		FROM submission_review
		WHERE submission_id = $1
		ORDER BY created_at ASC`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.SubmissionID, &rv.CaregiverID,
			&rv.Note, &rv.Recommendation, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rv)
	}
	return out, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM submission WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

func (r *repoPG) CountPendingBySeverity(ctx context.Context, severity Severity) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM submission WHERE status = $1 AND severity = $2`,
		StatusPending, severity).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending by severity: %w", err)
	}
	return n, nil
}
