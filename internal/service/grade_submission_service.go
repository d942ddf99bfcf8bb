package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/academic"
	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type submissionStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, submission *models.GradeSubmission) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeSubmission, error)
}

type enrollmentGradeStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	SetGradeIfEmptyTx(ctx context.Context, tx *sqlx.Tx, id, grade string) (bool, error)
}

type gradeSubmissionValidator interface {
	ValidateGradeSubmission(ctx context.Context, teacher *models.User, enrollment *models.Enrollment, semester *models.Semester) error
}

// SubmitGradeRequest carries one numeric mark for one enrollment.
type SubmitGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	TeacherID    string  `json:"teacher_id" validate:"required"`
	Mark         float64 `json:"mark" validate:"gte=0,lte=100"`
}

// GradeSubmissionService records grade submissions and drives the
// set-once grade transition. The submission row, the grade write and the
// standing recompute commit together; the conditional grade update is the
// arbiter between racing submissions, so exactly one wins.
type GradeSubmissionService struct {
	submissions submissionStore
	enrollments enrollmentGradeStore
	users       userReader
	semesters   semesterReader
	standings   standingRecomputer
	eligibility gradeSubmissionValidator
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeSubmissionService constructs GradeSubmissionService.
func NewGradeSubmissionService(submissions submissionStore, enrollments enrollmentGradeStore, users userReader, semesters semesterReader, standings standingRecomputer, eligibility gradeSubmissionValidator, tx txProvider, validate *validator.Validate, logger *zap.Logger) *GradeSubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeSubmissionService{
		submissions: submissions,
		enrollments: enrollments,
		users:       users,
		semesters:   semesters,
		standings:   standings,
		eligibility: eligibility,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// Submit validates the mark, derives the letter grade and writes the
// submission, the grade and the recomputed standing in one transaction.
func (s *GradeSubmissionService) Submit(ctx context.Context, req SubmitGradeRequest) (*models.GradeSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, fmt.Errorf("load teacher: %w", err)
	}
	semester, err := s.semesters.FindByID(ctx, enrollment.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("load semester: %w", err)
	}

	if err := s.eligibility.ValidateGradeSubmission(ctx, teacher, enrollment, semester); err != nil {
		return nil, err
	}

	// Marks are stored to three decimal places; the letter derives from the
	// stored value so the trail and the grade can never disagree.
	mark := math.Round(req.Mark*1000) / 1000
	letter := academic.Letter(mark)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grade tx: %w", err)
	}

	submission := &models.GradeSubmission{
		EnrollmentID:  enrollment.ID,
		SubmittedByID: teacher.ID,
		Mark:          mark,
		Grade:         letter,
	}
	if err := s.submissions.CreateTx(ctx, tx, submission); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("record submission: %w", err)
	}

	set, err := s.enrollments.SetGradeIfEmptyTx(ctx, tx, enrollment.ID, letter)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("set grade: %w", err)
	}
	if !set {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.ErrGradeAlreadySet
	}

	if _, err := s.standings.RecomputeTx(ctx, tx, enrollment.StudentID, enrollment.SemesterID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grade: %w", err)
	}
	s.standings.Invalidate(ctx, enrollment.StudentID, enrollment.SemesterID)

	s.logger.Info("grade submitted",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("teacher_id", teacher.ID),
		zap.Float64("mark", mark),
		zap.String("grade", letter))
	return submission, nil
}

// History lists the submission trail for one enrollment, oldest first.
func (s *GradeSubmissionService) History(ctx context.Context, enrollmentID string) ([]models.GradeSubmission, error) {
	submissions, err := s.submissions.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}
