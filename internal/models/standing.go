package models

import "time"

// StandingStatus classifies a student's academic standing for a semester.
type StandingStatus string

const (
	StandingActive    StandingStatus = "ACTIVE"
	StandingProbation StandingStatus = "PROBATION"
	StandingDismissed StandingStatus = "DISMISSED"
	StandingGraduated StandingStatus = "GRADUATED"
)

// AcademicStanding is a materialized snapshot keyed by (student, semester).
// It is always recomputed wholesale from graded enrollments, never patched
// incrementally; "update" means recompute and upsert.
type AcademicStanding struct {
	ID            string         `db:"id" json:"id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	SemesterID    string         `db:"semester_id" json:"semester_id"`
	SectionID     *string        `db:"section_id" json:"section_id,omitempty"`
	SemesterGPA   *float64       `db:"semester_gpa" json:"semester_gpa,omitempty"`
	CumulativeGPA *float64       `db:"cumulative_gpa" json:"cumulative_gpa,omitempty"`
	Status        StandingStatus `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
