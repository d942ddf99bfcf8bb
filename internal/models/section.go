package models

import "time"

// Section is an academic grouping with bounded capacity. Unique per
// (department, name, entry year, program year).
type Section struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	EntryYear    int       `db:"entry_year" json:"entry_year"`
	ProgramYear  int       `db:"program_year" json:"program_year"`
	Capacity     int       `db:"capacity" json:"capacity"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SectionAssignment places a student in one section for a semester.
// Unique per (student, semester); a later assignment replaces the section.
type SectionAssignment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}
