package models

import "time"

// Dormitory is a bounded room restricted by gender and, optionally, by
// department. Unique per (block, room, gender); capacity counted per semester.
type Dormitory struct {
	ID           string    `db:"id" json:"id"`
	Block        int       `db:"block" json:"block"`
	Room         int       `db:"room" json:"room"`
	Gender       Gender    `db:"gender" json:"gender"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Capacity     int       `db:"capacity" json:"capacity"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DormitoryAssignment places a student in one dormitory room for a semester.
// Unique per (student, semester).
type DormitoryAssignment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	SemesterID  string    `db:"semester_id" json:"semester_id"`
	DormitoryID string    `db:"dormitory_id" json:"dormitory_id"`
	AssignedAt  time.Time `db:"assigned_at" json:"assigned_at"`
}
