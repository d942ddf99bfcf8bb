package models

import "time"

// RegistrationStatus enumerates the registration lifecycle.
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RegistrationStatus) IsTerminal() bool {
	return s == RegistrationStatusApproved || s == RegistrationStatusRejected || s == RegistrationStatusCancelled
}

// Registration is a student's course registration request for one semester.
// Unique per (student, semester). Approval produces enrollments; rejection
// and cancellation are terminal with no enrollments.
type Registration struct {
	ID         string             `db:"id" json:"id"`
	StudentID  string             `db:"student_id" json:"student_id"`
	SemesterID string             `db:"semester_id" json:"semester_id"`
	Status     RegistrationStatus `db:"status" json:"status"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`

	// CourseIDs holds the resolved course set; populated by the repository.
	CourseIDs []string `db:"-" json:"course_ids,omitempty"`
}
