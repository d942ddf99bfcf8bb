package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// DormitoryRepository persists dormitory rooms and their per-semester
// assignments, with the same locked capacity accounting as sections.
type DormitoryRepository struct {
	db *sqlx.DB
}

// NewDormitoryRepository constructs the repository.
func NewDormitoryRepository(db *sqlx.DB) *DormitoryRepository {
	return &DormitoryRepository{db: db}
}

const dormitoryColumns = `id, block, room, gender, department_id, capacity, is_active, created_at`

// FindByID returns a dormitory room by its ID.
func (r *DormitoryRepository) FindByID(ctx context.Context, id string) (*models.Dormitory, error) {
	query := fmt.Sprintf(`SELECT %s FROM dormitories WHERE id = $1`, dormitoryColumns)
	var dormitory models.Dormitory
	if err := r.db.GetContext(ctx, &dormitory, query, id); err != nil {
		return nil, err
	}
	return &dormitory, nil
}

// LockTx re-reads the room under FOR UPDATE to serialize last-seat races.
func (r *DormitoryRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Dormitory, error) {
	query := fmt.Sprintf(`SELECT %s FROM dormitories WHERE id = $1 FOR UPDATE`, dormitoryColumns)
	var dormitory models.Dormitory
	if err := sqlx.GetContext(ctx, tx, &dormitory, query, id); err != nil {
		return nil, err
	}
	return &dormitory, nil
}

// CountAssignmentsTx counts assignments for the room in the semester,
// excluding the student being (re)assigned.
func (r *DormitoryRepository) CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, dormitoryID, semesterID, excludeStudentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM dormitory_assignments WHERE dormitory_id = $1 AND semester_id = $2 AND student_id <> $3`
	var count int
	if err := sqlx.GetContext(ctx, tx, &count, query, dormitoryID, semesterID, excludeStudentID); err != nil {
		return 0, fmt.Errorf("count dormitory assignments: %w", err)
	}
	return count, nil
}

// UpsertAssignmentTx places the student in the room for the semester,
// replacing any prior room for that (student, semester).
func (r *DormitoryRepository) UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.DormitoryAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO dormitory_assignments (id, student_id, semester_id, dormitory_id, assigned_at)
        VALUES (:id, :student_id, :semester_id, :dormitory_id, :assigned_at)
        ON CONFLICT (student_id, semester_id)
        DO UPDATE SET dormitory_id = EXCLUDED.dormitory_id, assigned_at = EXCLUDED.assigned_at`
	if _, err := tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("upsert dormitory assignment: %w", err)
	}
	return nil
}
