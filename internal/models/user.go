package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Gender is an optional demographic attribute used by dormitory placement.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// User represents a student, teacher or admin account. Role is an immutable
// business fact once the account is created; admin accounts bypass academic
// constraints entirely.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Gender       *Gender    `db:"gender" json:"gender,omitempty"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	StudentNo    *string    `db:"student_no" json:"student_no,omitempty"`
	StaffNo      *string    `db:"staff_no" json:"staff_no,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsStudent reports whether the account holds the student role.
func (u *User) IsStudent() bool { return u != nil && u.Role == RoleStudent }

// IsTeacher reports whether the account holds the teacher role.
func (u *User) IsTeacher() bool { return u != nil && u.Role == RoleTeacher }

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
