package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type registrationStore interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ExistsForStudentSemester(ctx context.Context, studentID, semesterID string) (bool, error)
	Create(ctx context.Context, registration *models.Registration) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.RegistrationStatus) error
	SetStatus(ctx context.Context, id string, to models.RegistrationStatus) error
}

type courseLister interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type enrollmentLinker interface {
	CreateIfAbsentTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
}

type standingRecomputer interface {
	RecomputeTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) (*models.AcademicStanding, error)
	Invalidate(ctx context.Context, studentID, semesterID string)
}

type registrationValidator interface {
	ValidateRegistration(ctx context.Context, student *models.User, semester *models.Semester) error
	ValidateRegistrationCourses(ctx context.Context, student *models.User, courses []models.Course) error
}

// RegisterCoursesRequest is a student's course registration payload.
type RegisterCoursesRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SemesterID string   `json:"semester_id" validate:"required"`
	CourseIDs  []string `json:"course_ids" validate:"required,min=1,dive,required"`
}

// RegistrationService drives the registration lifecycle. Approval is the
// only transition with side effects: it creates the enrollments and
// recomputes standing in the same transaction that flips the status, so a
// failure at any point leaves the registration pending and re-approvable.
type RegistrationService struct {
	registrations registrationStore
	courses       courseLister
	users         userReader
	semesters     semesterReader
	enrollments   enrollmentLinker
	standings     standingRecomputer
	eligibility   registrationValidator
	tx            txProvider
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(registrations registrationStore, courses courseLister, users userReader, semesters semesterReader, enrollments enrollmentLinker, standings standingRecomputer, eligibility registrationValidator, tx txProvider, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		registrations: registrations,
		courses:       courses,
		users:         users,
		semesters:     semesters,
		enrollments:   enrollments,
		standings:     standings,
		eligibility:   eligibility,
		tx:            tx,
		validator:     validate,
		logger:        logger,
	}
}

// Register creates a pending registration with its resolved course set.
func (s *RegistrationService) Register(ctx context.Context, req RegisterCoursesRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("load semester: %w", err)
	}

	if err := s.eligibility.ValidateRegistration(ctx, student, semester); err != nil {
		return nil, err
	}

	exists, err := s.registrations.ExistsForStudentSemester(ctx, req.StudentID, req.SemesterID)
	if err != nil {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a registration for this semester")
	}

	courses, err := s.courses.ListByIDs(ctx, req.CourseIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve courses: %w", err)
	}
	if len(courses) != len(uniqueIDs(req.CourseIDs)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more courses not found")
	}
	if err := s.eligibility.ValidateRegistrationCourses(ctx, student, courses); err != nil {
		return nil, err
	}

	registration := &models.Registration{
		StudentID:  req.StudentID,
		SemesterID: req.SemesterID,
		Status:     models.RegistrationStatusPending,
		CourseIDs:  uniqueIDs(req.CourseIDs),
	}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.logger.Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("student_id", registration.StudentID),
		zap.String("semester_id", registration.SemesterID),
		zap.Int("courses", len(registration.CourseIDs)))
	return registration, nil
}

// Approve transitions a pending registration to approved, creating one
// enrollment per registered course and recomputing standing atomically.
// Enrollment creation is idempotent so a retried approval after a crash
// never duplicates rows. The status flip runs last and is guarded by the
// pending state; losing that race rolls back everything.
func (s *RegistrationService) Approve(ctx context.Context, id string) (*models.Registration, error) {
	registration, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if registration.Status != models.RegistrationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending registrations can be approved")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval tx: %w", err)
	}

	now := time.Now().UTC()
	for _, courseID := range registration.CourseIDs {
		enrollment := &models.Enrollment{
			StudentID:  registration.StudentID,
			CourseID:   courseID,
			SemesterID: registration.SemesterID,
			EnrolledAt: now,
		}
		if err := s.enrollments.CreateIfAbsentTx(ctx, tx, enrollment); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
	}

	if _, err := s.standings.RecomputeTx(ctx, tx, registration.StudentID, registration.SemesterID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := s.registrations.UpdateStatusTx(ctx, tx, id, models.RegistrationStatusPending, models.RegistrationStatusApproved); err != nil {
		tx.Rollback() //nolint:errcheck
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is no longer pending")
		}
		return nil, fmt.Errorf("approve registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	s.standings.Invalidate(ctx, registration.StudentID, registration.SemesterID)

	registration.Status = models.RegistrationStatusApproved
	s.logger.Info("registration approved",
		zap.String("registration_id", id),
		zap.String("student_id", registration.StudentID))
	return registration, nil
}

// Reject marks the registration rejected. No enrollments exist or are
// created on this path.
func (s *RegistrationService) Reject(ctx context.Context, id string) (*models.Registration, error) {
	return s.close(ctx, id, models.RegistrationStatusRejected)
}

// Cancel marks the registration cancelled on the student's behalf.
func (s *RegistrationService) Cancel(ctx context.Context, id string) (*models.Registration, error) {
	return s.close(ctx, id, models.RegistrationStatusCancelled)
}

func (s *RegistrationService) close(ctx context.Context, id string, status models.RegistrationStatus) (*models.Registration, error) {
	registration, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if registration.Status == models.RegistrationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "approved registrations cannot be closed")
	}

	if err := s.registrations.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, fmt.Errorf("close registration: %w", err)
	}

	registration.Status = status
	s.logger.Info("registration closed",
		zap.String("registration_id", id),
		zap.String("status", string(status)))
	return registration, nil
}

// Get returns a registration with its course set.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, error) {
	return s.findRegistration(ctx, id)
}

func (s *RegistrationService) findRegistration(ctx context.Context, id string) (*models.Registration, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, fmt.Errorf("load registration: %w", err)
	}
	return registration, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
