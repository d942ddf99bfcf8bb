package models

import "time"

// Department owns courses, sections and (optionally) dormitories.
type Department struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description,omitempty"`
}

// Course is offered by one department and weighted by credit hours.
type Course struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	CreditHours  int       `db:"credit_hours" json:"credit_hours"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Semester is an academic period. At most one semester is treated as the
// current one for new commitments; that is a business rule, not a uniqueness
// constraint.
type Semester struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      string    `db:"year" json:"year"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseAssignment links a teacher to a course for one semester.
// Unique per (course, teacher, semester).
type CourseAssignment struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	SemesterID   string    `db:"semester_id" json:"semester_id"`
	TeachingRole string    `db:"teaching_role" json:"teaching_role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
