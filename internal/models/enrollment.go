package models

import "time"

// Enrollment links a student to a course within a semester. Unique per
// (student, course, semester). Grade is set at most once; a set grade never
// changes.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	Grade      *string   `db:"grade" json:"grade,omitempty"`
}

// GradedCredit is the projection the GPA calculator consumes: a letter grade
// with the credit hours of its course.
type GradedCredit struct {
	Grade       string `db:"grade" json:"grade"`
	CreditHours int    `db:"credit_hours" json:"credit_hours"`
}

// GradeSubmission is the append-only evidence trail for a grade transition.
// One submission corresponds to exactly one enrollment grade transition from
// empty to set.
type GradeSubmission struct {
	ID            string    `db:"id" json:"id"`
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	SubmittedByID string    `db:"submitted_by_id" json:"submitted_by_id"`
	Mark          float64   `db:"mark" json:"mark"`
	Grade         string    `db:"grade" json:"grade"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
}
