package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// newMockTxProvider backs the txProvider interface with sqlmock. Repo calls
// are mocked at the interface level, so tests only expect Begin, Commit and
// Rollback.
func newMockTxProvider(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type mockSemesterReader struct {
	semesters map[string]*models.Semester
}

func (m *mockSemesterReader) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	semester, ok := m.semesters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return semester, nil
}

type mockCourseLister struct {
	courses map[string]models.Course
}

func (m *mockCourseLister) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	// Mirror the SQL IN(...) semantics of the real repository: each
	// matching course appears once even if its ID is listed twice.
	seen := map[string]bool{}
	var out []models.Course
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if course, ok := m.courses[id]; ok {
			out = append(out, course)
		}
	}
	return out, nil
}

func (m *mockCourseLister) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type mockRegistrationStore struct {
	registrations   map[string]*models.Registration
	exists          bool
	created         []*models.Registration
	statusChanges   []models.RegistrationStatus
	updateStatusErr error
}

func (m *mockRegistrationStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	registration, ok := m.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *registration
	return &copied, nil
}

func (m *mockRegistrationStore) ExistsForStudentSemester(ctx context.Context, studentID, semesterID string) (bool, error) {
	return m.exists, nil
}

func (m *mockRegistrationStore) Create(ctx context.Context, registration *models.Registration) error {
	registration.ID = "reg-new"
	registration.CreatedAt = time.Now().UTC()
	m.created = append(m.created, registration)
	return nil
}

func (m *mockRegistrationStore) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.RegistrationStatus) error {
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	m.statusChanges = append(m.statusChanges, to)
	return nil
}

func (m *mockRegistrationStore) SetStatus(ctx context.Context, id string, to models.RegistrationStatus) error {
	if _, ok := m.registrations[id]; !ok {
		return sql.ErrNoRows
	}
	m.statusChanges = append(m.statusChanges, to)
	return nil
}

type mockEnrollmentLinker struct {
	created []models.Enrollment
	err     error
}

func (m *mockEnrollmentLinker) CreateIfAbsentTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if m.err != nil {
		return m.err
	}
	enrollment.ID = "enr-" + enrollment.CourseID
	m.created = append(m.created, *enrollment)
	return nil
}

type mockStandingRecomputer struct {
	recomputes    int
	invalidations int
	err           error
}

func (m *mockStandingRecomputer) RecomputeTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) (*models.AcademicStanding, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.recomputes++
	return &models.AcademicStanding{StudentID: studentID, SemesterID: semesterID, Status: models.StandingActive}, nil
}

func (m *mockStandingRecomputer) Recompute(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.recomputes++
	return &models.AcademicStanding{StudentID: studentID, SemesterID: semesterID, Status: models.StandingActive}, nil
}

func (m *mockStandingRecomputer) Invalidate(ctx context.Context, studentID, semesterID string) {
	m.invalidations++
}

// mockEligibility implements every eligibility interface the services consume.
type mockEligibility struct {
	registrationErr error
	coursesErr      error
	enrollmentErr   error
	gradeErr        error
	sectionErr      error
	dormitoryErr    error
}

func (m *mockEligibility) ValidateRegistration(ctx context.Context, student *models.User, semester *models.Semester) error {
	return m.registrationErr
}

func (m *mockEligibility) ValidateRegistrationCourses(ctx context.Context, student *models.User, courses []models.Course) error {
	return m.coursesErr
}

func (m *mockEligibility) ValidateEnrollment(ctx context.Context, student *models.User, course *models.Course, semester *models.Semester) error {
	return m.enrollmentErr
}

func (m *mockEligibility) ValidateGradeSubmission(ctx context.Context, teacher *models.User, enrollment *models.Enrollment, semester *models.Semester) error {
	return m.gradeErr
}

func (m *mockEligibility) ValidateSectionAssignment(ctx context.Context, student *models.User, section *models.Section) error {
	return m.sectionErr
}

func (m *mockEligibility) ValidateDormitoryAssignment(ctx context.Context, student *models.User, dormitory *models.Dormitory) error {
	return m.dormitoryErr
}

type mockSubmissionStore struct {
	created []models.GradeSubmission
}

func (m *mockSubmissionStore) CreateTx(ctx context.Context, tx *sqlx.Tx, submission *models.GradeSubmission) error {
	submission.ID = "sub-new"
	submission.SubmittedAt = time.Now().UTC()
	m.created = append(m.created, *submission)
	return nil
}

func (m *mockSubmissionStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeSubmission, error) {
	return m.created, nil
}

type mockEnrollmentGradeStore struct {
	enrollment *models.Enrollment
	setResult  bool
	setGrades  []string
}

func (m *mockEnrollmentGradeStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.enrollment
	return &copied, nil
}

func (m *mockEnrollmentGradeStore) SetGradeIfEmptyTx(ctx context.Context, tx *sqlx.Tx, id, grade string) (bool, error) {
	if m.setResult {
		m.setGrades = append(m.setGrades, grade)
	}
	return m.setResult, nil
}

type mockSectionStore struct {
	section  *models.Section
	count    int
	upserted []models.SectionAssignment
}

func (m *mockSectionStore) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if m.section == nil {
		return nil, sql.ErrNoRows
	}
	return m.section, nil
}

func (m *mockSectionStore) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Section, error) {
	return m.FindByID(ctx, id)
}

func (m *mockSectionStore) CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, sectionID, semesterID, excludeStudentID string) (int, error) {
	return m.count, nil
}

func (m *mockSectionStore) UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.SectionAssignment) error {
	assignment.ID = "sa-new"
	m.upserted = append(m.upserted, *assignment)
	return nil
}

type mockDormitoryStore struct {
	dormitory *models.Dormitory
	count     int
	upserted  []models.DormitoryAssignment
}

func (m *mockDormitoryStore) FindByID(ctx context.Context, id string) (*models.Dormitory, error) {
	if m.dormitory == nil {
		return nil, sql.ErrNoRows
	}
	return m.dormitory, nil
}

func (m *mockDormitoryStore) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Dormitory, error) {
	return m.FindByID(ctx, id)
}

func (m *mockDormitoryStore) CountAssignmentsTx(ctx context.Context, tx *sqlx.Tx, dormitoryID, semesterID, excludeStudentID string) (int, error) {
	return m.count, nil
}

func (m *mockDormitoryStore) UpsertAssignmentTx(ctx context.Context, tx *sqlx.Tx, assignment *models.DormitoryAssignment) error {
	assignment.ID = "da-new"
	m.upserted = append(m.upserted, *assignment)
	return nil
}

type mockPlacementWriter struct {
	sections []string
}

func (m *mockPlacementWriter) AssignSectionTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID, sectionID string) error {
	m.sections = append(m.sections, sectionID)
	return nil
}

func strPtr(s string) *string { return &s }

func genderPtr(g models.Gender) *models.Gender { return &g }

func testStudent(id string) *models.User {
	return &models.User{
		ID:           id,
		Email:        id + "@uni.test",
		Role:         models.RoleStudent,
		DepartmentID: strPtr("dep-1"),
		Gender:       genderPtr(models.GenderFemale),
		Active:       true,
	}
}

func testSemester(id string, active bool) *models.Semester {
	return &models.Semester{ID: id, Name: "Fall", Year: "2026", IsActive: active}
}
