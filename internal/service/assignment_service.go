package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type sectionStore interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Section, error)
	CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, sectionID, semesterID, excludeStudentID string) (int, error)
	UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.SectionAssignment) error
}

type dormitoryStore interface {
	FindByID(ctx context.Context, id string) (*models.Dormitory, error)
	LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Dormitory, error)
	CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, dormitoryID, semesterID, excludeStudentID string) (int, error)
	UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.DormitoryAssignment) error
}

type sectionPlacementWriter interface {
	AssignSectionTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID, sectionID string) error
}

type assignmentValidator interface {
	ValidateSectionAssignment(ctx context.Context, student *models.User, section *models.Section) error
	ValidateDormitoryAssignment(ctx context.Context, student *models.User, dormitory *models.Dormitory) error
}

// AssignSectionRequest places a student in a section for a semester.
type AssignSectionRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
	SectionID  string `json:"section_id" validate:"required"`
}

// AssignDormitoryRequest places a student in a dormitory room for a semester.
type AssignDormitoryRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	SemesterID  string `json:"semester_id" validate:"required"`
	DormitoryID string `json:"dormitory_id" validate:"required"`
}

// AssignmentService places students into bounded resources. Capacity is
// checked inside a transaction holding the resource row lock, so two
// assignments racing for the last seat serialize and the loser gets a
// capacity error instead of oversubscribing.
type AssignmentService struct {
	sections    sectionStore
	dormitories dormitoryStore
	placements  sectionPlacementWriter
	users       userReader
	semesters   semesterReader
	standings   standingRecomputer
	eligibility assignmentValidator
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(sections sectionStore, dormitories dormitoryStore, placements sectionPlacementWriter, users userReader, semesters semesterReader, standings standingRecomputer, eligibility assignmentValidator, tx txProvider, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		sections:    sections,
		dormitories: dormitories,
		placements:  placements,
		users:       users,
		semesters:   semesters,
		standings:   standings,
		eligibility: eligibility,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// AssignSection places the student in the section for the semester,
// replacing any prior section. The standing snapshot mirrors the placement
// in the same transaction.
func (s *AssignmentService) AssignSection(ctx context.Context, req AssignSectionRequest) (*models.SectionAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section assignment payload")
	}

	student, semester, err := s.loadStudentSemester(ctx, req.StudentID, req.SemesterID)
	if err != nil {
		return nil, err
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	if err := s.eligibility.ValidateSectionAssignment(ctx, student, section); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin section assignment tx: %w", err)
	}

	// The lock re-reads the section; capacity and active state come from the
	// locked row, not the earlier unlocked read.
	locked, err := s.sections.LockTx(ctx, tx, section.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("lock section: %w", err)
	}
	if !locked.IsActive {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "section is not active")
	}
	count, err := s.sections.CountAssignmentsTx(ctx, tx, locked.ID, semester.ID, student.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if count >= locked.Capacity {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Clone(appErrors.ErrCapacityFull, "section is full for this semester")
	}

	assignment := &models.SectionAssignment{
		StudentID:  student.ID,
		SemesterID: semester.ID,
		SectionID:  locked.ID,
	}
	if err := s.sections.UpsertAssignmentTx(ctx, tx, assignment); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if err := s.placements.AssignSectionTx(ctx, tx, student.ID, semester.ID, locked.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("mirror section on standing: %w", err)
	}
	if _, err := s.standings.RecomputeTx(ctx, tx, student.ID, semester.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit section assignment: %w", err)
	}
	s.standings.Invalidate(ctx, student.ID, semester.ID)

	s.logger.Info("section assigned",
		zap.String("student_id", student.ID),
		zap.String("semester_id", semester.ID),
		zap.String("section_id", locked.ID))
	return assignment, nil
}

// AssignDormitory places the student in the room for the semester,
// replacing any prior room. Dormitory placement does not touch standing.
func (s *AssignmentService) AssignDormitory(ctx context.Context, req AssignDormitoryRequest) (*models.DormitoryAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dormitory assignment payload")
	}

	student, semester, err := s.loadStudentSemester(ctx, req.StudentID, req.SemesterID)
	if err != nil {
		return nil, err
	}
	dormitory, err := s.dormitories.FindByID(ctx, req.DormitoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dormitory not found")
		}
		return nil, fmt.Errorf("load dormitory: %w", err)
	}
	if err := s.eligibility.ValidateDormitoryAssignment(ctx, student, dormitory); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dormitory assignment tx: %w", err)
	}

	locked, err := s.dormitories.LockTx(ctx, tx, dormitory.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("lock dormitory: %w", err)
	}
	if !locked.IsActive {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "dormitory is not active")
	}
	count, err := s.dormitories.CountAssignmentsTx(ctx, tx, locked.ID, semester.ID, student.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if count >= locked.Capacity {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Clone(appErrors.ErrCapacityFull, "dormitory is full for this semester")
	}

	assignment := &models.DormitoryAssignment{
		StudentID:   student.ID,
		SemesterID:  semester.ID,
		DormitoryID: locked.ID,
	}
	if err := s.dormitories.UpsertAssignmentTx(ctx, tx, assignment); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dormitory assignment: %w", err)
	}

	s.logger.Info("dormitory assigned",
		zap.String("student_id", student.ID),
		zap.String("semester_id", semester.ID),
		zap.String("dormitory_id", locked.ID))
	return assignment, nil
}

func (s *AssignmentService) loadStudentSemester(ctx context.Context, studentID, semesterID string) (*models.User, *models.Semester, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, fmt.Errorf("load student: %w", err)
	}
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, nil, fmt.Errorf("load semester: %w", err)
	}
	return student, semester, nil
}
