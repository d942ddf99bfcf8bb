package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Exists(ctx context.Context, studentID, courseID, semesterID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type standingRebuilder interface {
	Recompute(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error)
}

type enrollmentValidator interface {
	ValidateEnrollment(ctx context.Context, student *models.User, course *models.Course, semester *models.Semester) error
}

// EnrollStudentRequest creates one enrollment directly, outside the
// registration approval flow.
type EnrollStudentRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
}

// EnrollmentService creates enrollments directly. This is the administrative
// path for corrections; it runs the same eligibility pipeline as approval,
// including the approved-registration and section-placement rules.
type EnrollmentService struct {
	enrollments enrollmentStore
	courses     courseReader
	users       userReader
	semesters   semesterReader
	standings   standingRebuilder
	eligibility enrollmentValidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentStore, courses courseReader, users userReader, semesters semesterReader, standings standingRebuilder, eligibility enrollmentValidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		semesters:   semesters,
		standings:   standings,
		eligibility: eligibility,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll creates one ungraded enrollment and refreshes the student's
// standing snapshot for the semester.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, fmt.Errorf("load course: %w", err)
	}
	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("load semester: %w", err)
	}

	if err := s.eligibility.ValidateEnrollment(ctx, student, course, semester); err != nil {
		return nil, err
	}

	exists, err := s.enrollments.Exists(ctx, req.StudentID, req.CourseID, req.SemesterID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course for the semester")
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		SemesterID: req.SemesterID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if _, err := s.standings.Recompute(ctx, req.StudentID, req.SemesterID); err != nil {
		s.logger.Warn("standing recompute after enrollment failed",
			zap.String("student_id", req.StudentID),
			zap.String("semester_id", req.SemesterID),
			zap.Error(err))
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID))
	return enrollment, nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	return enrollment, nil
}
