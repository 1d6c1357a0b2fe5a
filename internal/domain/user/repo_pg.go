package user

import (
	"context"
	"errors"

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

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, email, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO portal_user (id, email, name, role)
		VALUES ($1,$2,$3,$4)`,
		u.ID, u.Email, u.Name, u.Role)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM portal_user WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM portal_user WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE portal_user SET email=$2, name=$3, role=$4, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.Name, u.Role)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM portal_user WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectUsers(rows pgx.Rows, err error) ([]*User, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByRole(ctx context.Context, role string) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM portal_user WHERE role = $1 ORDER BY name, id`, role)
	return collectUsers(rows, err)
}

func (r *repoPG) ListAll(ctx context.Context) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM portal_user ORDER BY name, id`)
	return collectUsers(rows, err)
}

func (r *repoPG) AssignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO caregiver_patient (caregiver_id, patient_id)
		VALUES ($1,$2)
		ON CONFLICT (caregiver_id, patient_id) DO NOTHING`,
		caregiverID, patientID)
	return err
}

func (r *repoPG) UnassignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM caregiver_patient WHERE caregiver_id = $1 AND patient_id = $2`,
		caregiverID, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListAssignedPatients(ctx context.Context, caregiverID uuid.UUID) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+userCols+` FROM portal_user u
		JOIN caregiver_patient cp ON cp.patient_id = u.id
		WHERE cp.caregiver_id = $1
		ORDER BY u.name, u.id`, caregiverID)
	return collectUsers(rows, err)
}

func (r *repoPG) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	var p PatientProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id, date_of_birth, conditions, emergency_contact, updated_at
		FROM patient_profile WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DateOfBirth, &p.Conditions, &p.EmergencyContact, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) UpsertPatientProfile(ctx context.Context, p *PatientProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_profile (user_id, date_of_birth, conditions, emergency_contact)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET
			date_of_birth = EXCLUDED.date_of_birth,
			conditions = EXCLUDED.conditions,
			emergency_contact = EXCLUDED.emergency_contact,
			updated_at = NOW()`,
		p.UserID, p.DateOfBirth, p.Conditions, p.EmergencyContact)
	return err
}

func (r *repoPG) GetCaregiverProfile(ctx context.Context, userID uuid.UUID) (*CaregiverProfile, error) {
	var p CaregiverProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id, specialty, organization, updated_at
		FROM caregiver_profile WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Specialty, &p.Organization, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) UpsertCaregiverProfile(ctx context.Context, p *CaregiverProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO caregiver_profile (user_id, specialty, organization)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET
			specialty = EXCLUDED.specialty,
			organization = EXCLUDED.organization,
			updated_at = NOW()`,
		p.UserID, p.Specialty, p.Organization)
	return err
}
