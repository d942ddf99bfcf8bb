package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type standingReader interface {
	LatestByStudent(ctx context.Context, studentID string) (*models.AcademicStanding, error)
}

type approvedRegistrationChecker interface {
	HasApproved(ctx context.Context, studentID, semesterID string) (bool, error)
}

type sectionAssignmentChecker interface {
	HasAssignment(ctx context.Context, studentID, semesterID string) (bool, error)
}

type courseAssignmentChecker interface {
	Exists(ctx context.Context, courseID, teacherID, semesterID string) (bool, error)
}

// rule is one named eligibility check. Rules run in order and the first
// failure wins, so error messages stay deterministic under concurrent load.
type rule struct {
	name  string
	check func(ctx context.Context) error
}

// EligibilityValidator runs the ordered rule pipelines that gate every
// academic mutation. Admin subjects skip the academic rules entirely; their
// records are bookkeeping, not academic commitments.
type EligibilityValidator struct {
	standings     standingReader
	registrations approvedRegistrationChecker
	sections      sectionAssignmentChecker
	assignments   courseAssignmentChecker
	logger        *zap.Logger
}

// NewEligibilityValidator constructs EligibilityValidator.
func NewEligibilityValidator(standings standingReader, registrations approvedRegistrationChecker, sections sectionAssignmentChecker, assignments courseAssignmentChecker, logger *zap.Logger) *EligibilityValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityValidator{
		standings:     standings,
		registrations: registrations,
		sections:      sections,
		assignments:   assignments,
		logger:        logger,
	}
}

func (v *EligibilityValidator) run(ctx context.Context, op string, rules []rule) error {
	for _, r := range rules {
		if err := r.check(ctx); err != nil {
			v.logger.Debug("eligibility rule failed",
				zap.String("operation", op),
				zap.String("rule", r.name),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// ValidateRegistration gates a new course registration request.
func (v *EligibilityValidator) ValidateRegistration(ctx context.Context, student *models.User, semester *models.Semester) error {
	if student.IsAdmin() {
		return nil
	}
	return v.run(ctx, "registration", []rule{
		v.roleRule(student, models.RoleStudent),
		v.periodActiveRule(semester),
		v.notDismissedRule(student.ID),
	})
}

// ValidateRegistrationCourses checks the resolved course set of a
// registration: every course must be active and, when both the student and
// the course carry a department, belong to the student's.
func (v *EligibilityValidator) ValidateRegistrationCourses(ctx context.Context, student *models.User, courses []models.Course) error {
	if student.IsAdmin() {
		return nil
	}
	for i := range courses {
		course := &courses[i]
		if !course.IsActive {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("course %s is not active", course.Code))
		}
		if err := v.courseDepartmentMatch(student, course); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEnrollment gates direct enrollment creation. It runs the full
// pipeline: role, standing, period, course state, department consistency,
// approved registration and section placement.
func (v *EligibilityValidator) ValidateEnrollment(ctx context.Context, student *models.User, course *models.Course, semester *models.Semester) error {
	if student.IsAdmin() {
		return nil
	}
	return v.run(ctx, "enrollment", []rule{
		v.roleRule(student, models.RoleStudent),
		v.notDismissedRule(student.ID),
		v.periodActiveRule(semester),
		{name: "course-active", check: func(context.Context) error {
			if !course.IsActive {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("course %s is not active", course.Code))
			}
			return nil
		}},
		{name: "department-match", check: func(context.Context) error {
			return v.courseDepartmentMatch(student, course)
		}},
		{name: "approved-registration", check: func(ctx context.Context) error {
			ok, err := v.registrations.HasApproved(ctx, student.ID, semester.ID)
			if err != nil {
				return fmt.Errorf("check approved registration: %w", err)
			}
			if !ok {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no approved registration for this semester")
			}
			return nil
		}},
		{name: "section-assigned", check: func(ctx context.Context) error {
			ok, err := v.sections.HasAssignment(ctx, student.ID, semester.ID)
			if err != nil {
				return fmt.Errorf("check section assignment: %w", err)
			}
			if !ok {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no section assignment for this semester")
			}
			return nil
		}},
	})
}

// ValidateGradeSubmission gates a grade submission: the submitter must be a
// teacher assigned to the enrollment's course for the enrollment's semester,
// the semester must be open, and the enrollment must not carry a grade yet.
// The final word on the grade slot is the conditional update inside the
// submission transaction; this check only rejects obviously stale requests
// early.
func (v *EligibilityValidator) ValidateGradeSubmission(ctx context.Context, teacher *models.User, enrollment *models.Enrollment, semester *models.Semester) error {
	if teacher.IsAdmin() {
		return nil
	}
	return v.run(ctx, "grade-submission", []rule{
		v.roleRule(teacher, models.RoleTeacher),
		{name: "teacher-assigned", check: func(ctx context.Context) error {
			ok, err := v.assignments.Exists(ctx, enrollment.CourseID, teacher.ID, enrollment.SemesterID)
			if err != nil {
				return fmt.Errorf("check course assignment: %w", err)
			}
			if !ok {
				return appErrors.Clone(appErrors.ErrForbidden, "teacher is not assigned to this course for the semester")
			}
			return nil
		}},
		v.periodActiveRule(semester),
		{name: "grade-empty", check: func(context.Context) error {
			if enrollment.Grade != nil {
				return appErrors.ErrGradeAlreadySet
			}
			return nil
		}},
	})
}

// ValidateSectionAssignment gates section placement. Capacity is not checked
// here; the assignment transaction counts seats under a row lock.
func (v *EligibilityValidator) ValidateSectionAssignment(ctx context.Context, student *models.User, section *models.Section) error {
	if student.IsAdmin() {
		return nil
	}
	return v.run(ctx, "section-assignment", []rule{
		v.roleRule(student, models.RoleStudent),
		{name: "section-active", check: func(context.Context) error {
			if !section.IsActive {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "section is not active")
			}
			return nil
		}},
	})
}

// ValidateDormitoryAssignment gates dormitory placement. Gender is mandatory
// for dorm placement even though it is optional on the account.
func (v *EligibilityValidator) ValidateDormitoryAssignment(ctx context.Context, student *models.User, dormitory *models.Dormitory) error {
	if student.IsAdmin() {
		return nil
	}
	return v.run(ctx, "dormitory-assignment", []rule{
		v.roleRule(student, models.RoleStudent),
		{name: "dormitory-active", check: func(context.Context) error {
			if !dormitory.IsActive {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "dormitory is not active")
			}
			return nil
		}},
		{name: "gender-match", check: func(context.Context) error {
			if student.Gender == nil {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no registered gender for dormitory placement")
			}
			if *student.Gender != dormitory.Gender {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "dormitory gender does not match the student")
			}
			return nil
		}},
		{name: "department-match", check: func(context.Context) error {
			if dormitory.DepartmentID == nil {
				return nil
			}
			if student.DepartmentID == nil || *student.DepartmentID != *dormitory.DepartmentID {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "dormitory is reserved for another department")
			}
			return nil
		}},
	})
}

func (v *EligibilityValidator) roleRule(subject *models.User, role models.UserRole) rule {
	return rule{name: "role", check: func(context.Context) error {
		if subject.Role != role {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("operation requires the %s role", role))
		}
		return nil
	}}
}

func (v *EligibilityValidator) periodActiveRule(semester *models.Semester) rule {
	return rule{name: "period-active", check: func(context.Context) error {
		if !semester.IsActive {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "semester is not open for new commitments")
		}
		return nil
	}}
}

// notDismissedRule consults the latest materialized standing. No standing on
// record means the student has no GPA evidence yet and is treated as active.
func (v *EligibilityValidator) notDismissedRule(studentID string) rule {
	return rule{name: "not-dismissed", check: func(ctx context.Context) error {
		standing, err := v.standings.LatestByStudent(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("load latest standing: %w", err)
		}
		if standing.Status == models.StandingDismissed {
			return appErrors.ErrDismissed
		}
		return nil
	}}
}

// courseDepartmentMatch applies only when both the student and the course
// carry a department. A student without one may take courses anywhere;
// department-less courses are open to everyone.
func (v *EligibilityValidator) courseDepartmentMatch(student *models.User, course *models.Course) error {
	if student.DepartmentID == nil || course.DepartmentID == "" {
		return nil
	}
	if *student.DepartmentID != course.DepartmentID {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("course %s belongs to a different department", course.Code))
	}
	return nil
}
