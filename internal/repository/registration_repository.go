package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// RegistrationRepository persists registration requests and their course sets.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindByID returns a registration with its resolved course set.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, student_id, semester_id, status, created_at, updated_at FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	courseIDs, err := r.courseIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	registration.CourseIDs = courseIDs
	return &registration, nil
}

// ExistsForStudentSemester reports whether the student already has a
// registration for the semester, regardless of status.
func (r *RegistrationRepository) ExistsForStudentSemester(ctx context.Context, studentID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE student_id = $1 AND semester_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}
	return true, nil
}

// HasApproved reports whether the student holds an approved registration for
// the semester. Enrollment creation requires this.
func (r *RegistrationRepository) HasApproved(ctx context.Context, studentID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE student_id = $1 AND semester_id = $2 AND status = $3 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, semesterID, models.RegistrationStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved registration: %w", err)
	}
	return true, nil
}

// Create persists a pending registration together with its course links in
// one transaction.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}

	const insertReg = `INSERT INTO registrations (id, student_id, semester_id, status, created_at, updated_at)
        VALUES (:id, :student_id, :semester_id, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertReg, registration); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create registration: %w", err)
	}

	const insertLink = `INSERT INTO registration_courses (registration_id, course_id) VALUES ($1, $2)`
	for _, courseID := range registration.CourseIDs {
		if _, err := tx.ExecContext(ctx, insertLink, registration.ID, courseID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("link registration course: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// UpdateStatusTx transitions a registration status inside the caller's
// transaction. The expected current status guards against racing approvals.
func (r *RegistrationRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.RegistrationStatus) error {
	const query = `UPDATE registrations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := tx.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registration status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus sets a registration status outside any workflow transaction
// (reject and cancel paths, which carry no side effects).
func (r *RegistrationRepository) SetStatus(ctx context.Context, id string, to models.RegistrationStatus) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registration status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *RegistrationRepository) courseIDs(ctx context.Context, registrationID string) ([]string, error) {
	const query = `SELECT course_id FROM registration_courses WHERE registration_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, registrationID); err != nil {
		return nil, fmt.Errorf("list registration courses: %w", err)
	}
	return ids, nil
}
