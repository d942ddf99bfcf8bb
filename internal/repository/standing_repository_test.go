package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

func TestStandingRepositoryUpsertComputedPreservesSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStandingRepository(db)

	mock.ExpectBegin()
	// The upsert must not touch section_id on conflict.
	mock.ExpectExec(`(?s)INSERT INTO academic_standings.+ON CONFLICT \(student_id, semester_id\).+DO UPDATE SET semester_gpa = EXCLUDED\.semester_gpa`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	gpa := 3.36
	standing := &models.AcademicStanding{
		StudentID:   "stu-1",
		SemesterID:  "sem-1",
		SemesterGPA: &gpa,
		Status:      models.StandingActive,
	}
	err = repo.UpsertComputedTx(context.Background(), tx, standing)
	require.NoError(t, err)
	require.NotEmpty(t, standing.ID)
	require.False(t, standing.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStandingRepositoryLatestByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStandingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "semester_id", "section_id", "semester_gpa", "cumulative_gpa", "status"}).
		AddRow("st-1", "stu-1", "sem-2", nil, 1.5, 1.6, models.StandingDismissed)
	mock.ExpectQuery(`ORDER BY s\.start_date DESC`).
		WithArgs("stu-1").
		WillReturnRows(rows)

	standing, err := repo.LatestByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, models.StandingDismissed, standing.Status)
	require.Equal(t, "sem-2", standing.SemesterID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCountAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_assignments WHERE section_id = $1 AND semester_id = $2 AND student_id <> $3")).
		WithArgs("sec-1", "sem-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(39))

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	count, err := repo.CountAssignmentsTx(context.Background(), tx, "sec-1", "sem-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, 39, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryLockUsesForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "department_id", "name", "entry_year", "program_year", "capacity", "is_active"}).
		AddRow("sec-1", "dep-1", "A", 2024, 1, 40, true)
	mock.ExpectQuery(`SELECT .+ FROM sections WHERE id = \$1 FOR UPDATE`).
		WithArgs("sec-1").
		WillReturnRows(rows)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	section, err := repo.LockTx(context.Background(), tx, "sec-1")
	require.NoError(t, err)
	require.Equal(t, 40, section.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}
