package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

func newGradeSubmissionService(t *testing.T, enrollments *mockEnrollmentGradeStore, standings *mockStandingRecomputer, eligibility *mockEligibility) (*GradeSubmissionService, *mockSubmissionStore, func()) {
	db, mock, cleanup := newMockTxProvider(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()

	submissions := &mockSubmissionStore{}
	users := &mockUserReader{users: map[string]*models.User{
		"tch-1": {ID: "tch-1", Email: "tch-1@uni.test", Role: models.RoleTeacher, Active: true},
	}}
	semesters := &mockSemesterReader{semesters: map[string]*models.Semester{"sem-1": testSemester("sem-1", true)}}

	svc := NewGradeSubmissionService(submissions, enrollments, users, semesters, standings, eligibility, db, nil, nil)
	return svc, submissions, cleanup
}

func TestSubmitDerivesLetterAndRecomputes(t *testing.T) {
	enrollments := &mockEnrollmentGradeStore{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", SemesterID: "sem-1"},
		setResult:  true,
	}
	standings := &mockStandingRecomputer{}
	svc, submissions, cleanup := newGradeSubmissionService(t, enrollments, standings, &mockEligibility{})
	defer cleanup()

	submission, err := svc.Submit(context.Background(), SubmitGradeRequest{
		EnrollmentID: "enr-1",
		TeacherID:    "tch-1",
		Mark:         86.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "A", submission.Grade)
	assert.Equal(t, 86.5, submission.Mark)
	assert.Equal(t, []string{"A"}, enrollments.setGrades)
	assert.Len(t, submissions.created, 1)
	assert.Equal(t, 1, standings.recomputes)
	assert.Equal(t, 1, standings.invalidations)
}

func TestSubmitBoundaryMarks(t *testing.T) {
	cases := []struct {
		mark   float64
		letter string
	}{
		{90, "A+"},
		{89.999, "A"},
		{45, "C-"},
		{44.999, "D"},
		{39.999, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		enrollments := &mockEnrollmentGradeStore{
			enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", SemesterID: "sem-1"},
			setResult:  true,
		}
		svc, _, cleanup := newGradeSubmissionService(t, enrollments, &mockStandingRecomputer{}, &mockEligibility{})

		submission, err := svc.Submit(context.Background(), SubmitGradeRequest{
			EnrollmentID: "enr-1",
			TeacherID:    "tch-1",
			Mark:         tc.mark,
		})
		require.NoError(t, err, "mark %v", tc.mark)
		assert.Equal(t, tc.letter, submission.Grade, "mark %v", tc.mark)
		cleanup()
	}
}

func TestSubmitRejectsOutOfRangeMark(t *testing.T) {
	svc, _, cleanup := newGradeSubmissionService(t, &mockEnrollmentGradeStore{}, &mockStandingRecomputer{}, &mockEligibility{})
	defer cleanup()

	_, err := svc.Submit(context.Background(), SubmitGradeRequest{
		EnrollmentID: "enr-1",
		TeacherID:    "tch-1",
		Mark:         100.5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitLosesRaceToExistingGrade(t *testing.T) {
	enrollments := &mockEnrollmentGradeStore{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", SemesterID: "sem-1"},
		setResult:  false,
	}
	standings := &mockStandingRecomputer{}
	svc, _, cleanup := newGradeSubmissionService(t, enrollments, standings, &mockEligibility{})
	defer cleanup()

	_, err := svc.Submit(context.Background(), SubmitGradeRequest{
		EnrollmentID: "enr-1",
		TeacherID:    "tch-1",
		Mark:         70,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGradeAlreadySet.Code, appErrors.FromError(err).Code)
	// Everything rolls back: no recompute, no cache invalidation.
	assert.Equal(t, 0, standings.recomputes)
	assert.Equal(t, 0, standings.invalidations)
}

func TestSubmitRejectsUnassignedTeacher(t *testing.T) {
	enrollments := &mockEnrollmentGradeStore{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1", SemesterID: "sem-1"},
		setResult:  true,
	}
	eligibility := &mockEligibility{gradeErr: appErrors.Clone(appErrors.ErrForbidden, "teacher is not assigned to this course for the semester")}
	svc, submissions, cleanup := newGradeSubmissionService(t, enrollments, &mockStandingRecomputer{}, eligibility)
	defer cleanup()

	_, err := svc.Submit(context.Background(), SubmitGradeRequest{
		EnrollmentID: "enr-1",
		TeacherID:    "tch-1",
		Mark:         70,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, submissions.created)
}
