package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// CourseRepository reads the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, department_id, name, code, credit_hours, is_active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByIDs resolves a set of course IDs, preserving no particular order.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, department_id, name, code, credit_hours, is_active, created_at, updated_at
        FROM courses WHERE id IN (%s)`, strings.Join(placeholders, ","))
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// SemesterRepository reads academic periods.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// FindByID returns a semester by its ID.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, name, year, start_date, end_date, is_active, created_at, updated_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// CourseAssignmentRepository reads teacher-to-course assignments.
type CourseAssignmentRepository struct {
	db *sqlx.DB
}

// NewCourseAssignmentRepository constructs the repository.
func NewCourseAssignmentRepository(db *sqlx.DB) *CourseAssignmentRepository {
	return &CourseAssignmentRepository{db: db}
}

// Exists reports whether the teacher is assigned to the course for the
// semester.
func (r *CourseAssignmentRepository) Exists(ctx context.Context, courseID, teacherID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM course_assignments WHERE course_id = $1 AND teacher_id = $2 AND semester_id = $3 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, courseID, teacherID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course assignment: %w", err)
	}
	return true, nil
}
