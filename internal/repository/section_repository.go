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

// SectionRepository persists sections and their per-semester assignments.
// Capacity accounting happens inside the caller's transaction: LockTx takes
// a row lock on the section so the count-then-insert cannot oversubscribe.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `id, department_id, name, entry_year, program_year, capacity, is_active, created_at`

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1`, sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// LockTx re-reads the section under FOR UPDATE so concurrent assignments for
// the last seat serialize on the section row.
func (r *SectionRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1 FOR UPDATE`, sectionColumns)
	var section models.Section
	if err := sqlx.GetContext(ctx, tx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountAssignmentsTx counts assignments for the section in the semester,
// inside the caller's transaction. The student being (re)assigned is
// excluded so moving into an already-held seat never trips the capacity
// rule.
func (r *SectionRepository) CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, sectionID, semesterID, excludeStudentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM section_assignments WHERE section_id = $1 AND semester_id = $2 AND student_id <> $3`
	var count int
	if err := sqlx.GetContext(ctx, tx, &count, query, sectionID, semesterID, excludeStudentID); err != nil {
		return 0, fmt.Errorf("count section assignments: %w", err)
	}
	return count, nil
}

// UpsertAssignmentTx places the student in the section for the semester,
// replacing any prior section for that (student, semester).
func (r *SectionRepository) UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.SectionAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO section_assignments (id, student_id, semester_id, section_id, assigned_at)
        VALUES (:id, :student_id, :semester_id, :section_id, :assigned_at)
        ON CONFLICT (student_id, semester_id)
        DO UPDATE SET section_id = EXCLUDED.section_id, assigned_at = EXCLUDED.assigned_at`
	if _, err := tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("upsert section assignment: %w", err)
	}
	return nil
}

// HasAssignment reports whether the student holds a section assignment for
// the semester. Enrollment creation requires this.
func (r *SectionRepository) HasAssignment(ctx context.Context, studentID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM section_assignments WHERE student_id = $1 AND semester_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section assignment: %w", err)
	}
	return true, nil
}
