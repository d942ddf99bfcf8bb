package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// StandingRepository persists academic standing snapshots keyed by
// (student, semester).
type StandingRepository struct {
	db *sqlx.DB
}

// NewStandingRepository constructs the repository.
func NewStandingRepository(db *sqlx.DB) *StandingRepository {
	return &StandingRepository{db: db}
}

const standingColumns = `id, student_id, semester_id, section_id, semester_gpa, cumulative_gpa, status, created_at, updated_at`

// FindByStudentSemester returns the snapshot for the pair, or sql.ErrNoRows.
func (r *StandingRepository) FindByStudentSemester(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_standings WHERE student_id = $1 AND semester_id = $2`, standingColumns)
	var standing models.AcademicStanding
	if err := r.db.GetContext(ctx, &standing, query, studentID, semesterID); err != nil {
		return nil, err
	}
	return &standing, nil
}

// LatestByStudent returns the most recent snapshot ordered by semester start
// date descending, or sql.ErrNoRows when the student has none. The dismissed
// rule keys off this record.
func (r *StandingRepository) LatestByStudent(ctx context.Context, studentID string) (*models.AcademicStanding, error) {
	const query = `SELECT a.id, a.student_id, a.semester_id, a.section_id, a.semester_gpa, a.cumulative_gpa, a.status, a.created_at, a.updated_at
        FROM academic_standings a
        JOIN semesters s ON s.id = a.semester_id
        WHERE a.student_id = $1
        ORDER BY s.start_date DESC
        LIMIT 1`
	var standing models.AcademicStanding
	if err := r.db.GetContext(ctx, &standing, query, studentID); err != nil {
		return nil, err
	}
	return &standing, nil
}

// ListByStudent returns all snapshots for a student, newest semester first.
func (r *StandingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AcademicStanding, error) {
	const query = `SELECT a.id, a.student_id, a.semester_id, a.section_id, a.semester_gpa, a.cumulative_gpa, a.status, a.created_at, a.updated_at
        FROM academic_standings a
        JOIN semesters s ON s.id = a.semester_id
        WHERE a.student_id = $1
        ORDER BY s.start_date DESC`
	var standings []models.AcademicStanding
	if err := r.db.SelectContext(ctx, &standings, query, studentID); err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return standings, nil
}

// UpsertComputedTx writes the recomputed GPA fields and status for the
// (student, semester) pair inside the caller's transaction. The section
// reference of an existing row is preserved; only AssignSectionTx replaces
// it. The unique-key upsert serializes concurrent recomputes for the same
// pair.
func (r *StandingRepository) UpsertComputedTx(ctx context.Context, tx *sqlx.Tx, standing *models.AcademicStanding) error {
	if standing.ID == "" {
		standing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if standing.CreatedAt.IsZero() {
		standing.CreatedAt = now
	}
	standing.UpdatedAt = now
	const query = `INSERT INTO academic_standings (id, student_id, semester_id, section_id, semester_gpa, cumulative_gpa, status, created_at, updated_at)
        VALUES (:id, :student_id, :semester_id, :section_id, :semester_gpa, :cumulative_gpa, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, semester_id)
        DO UPDATE SET semester_gpa = EXCLUDED.semester_gpa,
            cumulative_gpa = EXCLUDED.cumulative_gpa,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, query, standing); err != nil {
		return fmt.Errorf("upsert standing: %w", err)
	}
	return nil
}

// AssignSectionTx sets the section reference on the snapshot, creating the
// row when the student has no standing yet for the semester.
func (r *StandingRepository) AssignSectionTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID, sectionID string) error {
	now := time.Now().UTC()
	const query = `INSERT INTO academic_standings (id, student_id, semester_id, section_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (student_id, semester_id)
        DO UPDATE SET section_id = EXCLUDED.section_id, updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), studentID, semesterID, sectionID, models.StandingActive, now); err != nil {
		return fmt.Errorf("assign standing section: %w", err)
	}
	return nil
}
