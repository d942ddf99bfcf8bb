package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

func newRegistrationService(t *testing.T, store *mockRegistrationStore, standings *mockStandingRecomputer, eligibility *mockEligibility) (*RegistrationService, *mockEnrollmentLinker, func()) {
	db, mock, cleanup := newMockTxProvider(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()

	linker := &mockEnrollmentLinker{}
	users := &mockUserReader{users: map[string]*models.User{"stu-1": testStudent("stu-1")}}
	semesters := &mockSemesterReader{semesters: map[string]*models.Semester{"sem-1": testSemester("sem-1", true)}}
	courses := &mockCourseLister{courses: map[string]models.Course{
		"crs-1": {ID: "crs-1", DepartmentID: "dep-1", Code: "CS101", CreditHours: 4, IsActive: true},
		"crs-2": {ID: "crs-2", DepartmentID: "dep-1", Code: "CS102", CreditHours: 3, IsActive: true},
	}}

	svc := NewRegistrationService(store, courses, users, semesters, linker, standings, eligibility, db, nil, nil)
	return svc, linker, cleanup
}

func TestRegisterCreatesPendingRegistration(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]*models.Registration{}}
	svc, _, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	registration, err := svc.Register(context.Background(), RegisterCoursesRequest{
		StudentID:  "stu-1",
		SemesterID: "sem-1",
		CourseIDs:  []string{"crs-1", "crs-2", "crs-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPending, registration.Status)
	// Duplicate course IDs in the payload collapse to one.
	assert.Len(t, registration.CourseIDs, 2)
	require.Len(t, store.created, 1)
}

func TestRegisterRejectsDuplicateForSemester(t *testing.T) {
	store := &mockRegistrationStore{exists: true}
	svc, _, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterCoursesRequest{
		StudentID:  "stu-1",
		SemesterID: "sem-1",
		CourseIDs:  []string{"crs-1"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, store.created)
}

func TestRegisterUnknownCourse(t *testing.T) {
	store := &mockRegistrationStore{}
	svc, _, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	_, err := svc.Register(context.Background(), RegisterCoursesRequest{
		StudentID:  "stu-1",
		SemesterID: "sem-1",
		CourseIDs:  []string{"crs-1", "crs-missing"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApproveCreatesEnrollmentsAndRecomputes(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]*models.Registration{
		"reg-1": {
			ID:         "reg-1",
			StudentID:  "stu-1",
			SemesterID: "sem-1",
			Status:     models.RegistrationStatusPending,
			CourseIDs:  []string{"crs-1", "crs-2"},
		},
	}}
	standings := &mockStandingRecomputer{}
	svc, linker, cleanup := newRegistrationService(t, store, standings, &mockEligibility{})
	defer cleanup()

	registration, err := svc.Approve(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusApproved, registration.Status)
	assert.Len(t, linker.created, 2)
	assert.Equal(t, 1, standings.recomputes)
	assert.Equal(t, 1, standings.invalidations)
	require.Equal(t, []models.RegistrationStatus{models.RegistrationStatusApproved}, store.statusChanges)
}

func TestApproveOnlyFromPending(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]*models.Registration{
		"reg-1": {ID: "reg-1", StudentID: "stu-1", SemesterID: "sem-1", Status: models.RegistrationStatusApproved},
	}}
	svc, linker, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	_, err := svc.Approve(context.Background(), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, linker.created)
}

func TestApproveRollsBackWhenStatusRaceIsLost(t *testing.T) {
	store := &mockRegistrationStore{
		registrations: map[string]*models.Registration{
			"reg-1": {ID: "reg-1", StudentID: "stu-1", SemesterID: "sem-1", Status: models.RegistrationStatusPending, CourseIDs: []string{"crs-1"}},
		},
		updateStatusErr: sql.ErrNoRows,
	}
	standings := &mockStandingRecomputer{}
	svc, _, cleanup := newRegistrationService(t, store, standings, &mockEligibility{})
	defer cleanup()

	_, err := svc.Approve(context.Background(), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	// The cache is only invalidated after a commit.
	assert.Equal(t, 0, standings.invalidations)
}

func TestRejectAndCancelAreTerminal(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]*models.Registration{
		"reg-1": {ID: "reg-1", StudentID: "stu-1", SemesterID: "sem-1", Status: models.RegistrationStatusPending},
	}}
	svc, _, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	registration, err := svc.Reject(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRejected, registration.Status)

	registration, err = svc.Cancel(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCancelled, registration.Status)
}

func TestCloseRefusesApprovedRegistration(t *testing.T) {
	store := &mockRegistrationStore{registrations: map[string]*models.Registration{
		"reg-1": {ID: "reg-1", StudentID: "stu-1", SemesterID: "sem-1", Status: models.RegistrationStatusApproved},
	}}
	svc, _, cleanup := newRegistrationService(t, store, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	_, err := svc.Reject(context.Background(), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
