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

// EnrollmentRepository persists enrollments and serves the graded-credit
// projections the GPA calculator consumes.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, semester_id, enrolled_at, grade FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists reports whether the student is enrolled in the course for the
// semester.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester_id = $3 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, courseID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CreateIfAbsentTx inserts an enrollment unless the (student, course,
// semester) row already exists. Idempotent so approval can be re-entered.
func (r *EnrollmentRepository) CreateIfAbsentTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, semester_id, enrolled_at, grade)
        VALUES (:id, :student_id, :course_id, :semester_id, :enrolled_at, :grade)
        ON CONFLICT (student_id, course_id, semester_id) DO NOTHING`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Create inserts an enrollment outside a workflow transaction (the
// administrative escape hatch).
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, semester_id, enrolled_at, grade)
        VALUES (:id, :student_id, :course_id, :semester_id, :enrolled_at, :grade)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// SetGradeIfEmptyTx sets the final letter grade only when none is recorded
// yet. The conditional WHERE makes the not-already-graded check and the
// write one atomic statement; a concurrent second writer sees zero rows
// affected and must fail instead of overwriting.
func (r *EnrollmentRepository) SetGradeIfEmptyTx(ctx context.Context, tx *sqlx.Tx, id, grade string) (bool, error) {
	const query = `UPDATE enrollments SET grade = $2 WHERE id = $1 AND grade IS NULL`
	res, err := tx.ExecContext(ctx, query, id, grade)
	if err != nil {
		return false, fmt.Errorf("set enrollment grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enrollment grade rows affected: %w", err)
	}
	return affected > 0, nil
}

const gradedCreditsQuery = `SELECT e.grade, c.credit_hours
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.grade IS NOT NULL`

// GradedCreditsBySemesterTx lists the graded credits of one student in one
// semester, read inside the caller's transaction so the recompute sees the
// grades committed by that transaction.
func (r *EnrollmentRepository) GradedCreditsBySemesterTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) ([]models.GradedCredit, error) {
	query := gradedCreditsQuery + ` AND e.semester_id = $2`
	var credits []models.GradedCredit
	if err := sqlx.SelectContext(ctx, tx, &credits, query, studentID, semesterID); err != nil {
		return nil, fmt.Errorf("list semester graded credits: %w", err)
	}
	return credits, nil
}

// GradedCreditsAllTx lists every graded credit of the student across all
// semesters, for the cumulative GPA.
func (r *EnrollmentRepository) GradedCreditsAllTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.GradedCredit, error) {
	var credits []models.GradedCredit
	if err := sqlx.SelectContext(ctx, tx, &credits, gradedCreditsQuery, studentID); err != nil {
		return nil, fmt.Errorf("list graded credits: %w", err)
	}
	return credits, nil
}
