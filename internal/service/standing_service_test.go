package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type mockGradedCreditsReader struct {
	semester []models.GradedCredit
	all      []models.GradedCredit
}

func (m *mockGradedCreditsReader) GradedCreditsBySemesterTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) ([]models.GradedCredit, error) {
	return m.semester, nil
}

func (m *mockGradedCreditsReader) GradedCreditsAllTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.GradedCredit, error) {
	return m.all, nil
}

type mockStandingStore struct {
	standing *models.AcademicStanding
	history  []models.AcademicStanding
	upserted []models.AcademicStanding
}

func (m *mockStandingStore) FindByStudentSemester(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error) {
	if m.standing == nil {
		return nil, sql.ErrNoRows
	}
	return m.standing, nil
}

func (m *mockStandingStore) ListByStudent(ctx context.Context, studentID string) ([]models.AcademicStanding, error) {
	return m.history, nil
}

func (m *mockStandingStore) UpsertComputedTx(ctx context.Context, tx *sqlx.Tx, standing *models.AcademicStanding) error {
	standing.ID = "st-new"
	m.upserted = append(m.upserted, *standing)
	return nil
}

// mapCache is an in-memory standingCache for tests.
type mapCache struct {
	entries map[string]models.AcademicStanding
	sets    int
	deletes int
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	entry, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.AcademicStanding) = entry
	return nil
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.entries == nil {
		c.entries = make(map[string]models.AcademicStanding)
	}
	c.entries[key] = *value.(*models.AcademicStanding)
	c.sets++
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	c.deletes++
	return nil
}

func TestRecomputeClassifiesFromSemesterGPA(t *testing.T) {
	cases := []struct {
		name     string
		semester []models.GradedCredit
		all      []models.GradedCredit
		wantGPA  *float64
		want     models.StandingStatus
	}{
		{
			name:     "active",
			semester: []models.GradedCredit{{Grade: "A", CreditHours: 4}, {Grade: "B+", CreditHours: 3}},
			all:      []models.GradedCredit{{Grade: "A", CreditHours: 4}, {Grade: "B+", CreditHours: 3}},
			wantGPA:  floatPtr(3.79),
			want:     models.StandingActive,
		},
		{
			name:     "probation",
			semester: []models.GradedCredit{{Grade: "C-", CreditHours: 3}},
			all:      []models.GradedCredit{{Grade: "C-", CreditHours: 3}},
			wantGPA:  floatPtr(1.75),
			want:     models.StandingProbation,
		},
		{
			name:     "dismissed",
			semester: []models.GradedCredit{{Grade: "F", CreditHours: 4}, {Grade: "D", CreditHours: 3}},
			all:      []models.GradedCredit{{Grade: "F", CreditHours: 4}, {Grade: "D", CreditHours: 3}},
			wantGPA:  floatPtr(0.43),
			want:     models.StandingDismissed,
		},
		{
			name: "no graded credits stays active",
			want: models.StandingActive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newMockTxProvider(t)
			defer cleanup()
			mock.ExpectBegin()

			store := &mockStandingStore{}
			svc := NewStandingService(store, &mockGradedCreditsReader{semester: tc.semester, all: tc.all}, nil, nil, db, 0, nil)

			tx, err := db.BeginTxx(context.Background(), nil)
			require.NoError(t, err)

			standing, err := svc.RecomputeTx(context.Background(), tx, "stu-1", "sem-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, standing.Status)
			if tc.wantGPA == nil {
				assert.Nil(t, standing.SemesterGPA)
			} else {
				require.NotNil(t, standing.SemesterGPA)
				assert.InDelta(t, *tc.wantGPA, *standing.SemesterGPA, 0.0001)
			}
			require.Len(t, store.upserted, 1)
		})
	}
}

func TestRecomputeFallsBackToCumulativeGPA(t *testing.T) {
	db, mock, cleanup := newMockTxProvider(t)
	defer cleanup()
	mock.ExpectBegin()

	// Nothing graded this semester, but a weak history: the cumulative GPA
	// drives the classification.
	reader := &mockGradedCreditsReader{
		semester: nil,
		all:      []models.GradedCredit{{Grade: "D", CreditHours: 4}},
	}
	store := &mockStandingStore{}
	svc := NewStandingService(store, reader, nil, nil, db, 0, nil)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	standing, err := svc.RecomputeTx(context.Background(), tx, "stu-1", "sem-2")
	require.NoError(t, err)
	assert.Nil(t, standing.SemesterGPA)
	require.NotNil(t, standing.CumulativeGPA)
	assert.InDelta(t, 1.0, *standing.CumulativeGPA, 0.0001)
	assert.Equal(t, models.StandingDismissed, standing.Status)
}

func TestGetReadsThroughCache(t *testing.T) {
	db, _, cleanup := newMockTxProvider(t)
	defer cleanup()

	gpa := 3.2
	store := &mockStandingStore{standing: &models.AcademicStanding{
		ID: "st-1", StudentID: "stu-1", SemesterID: "sem-1", SemesterGPA: &gpa, Status: models.StandingActive,
	}}
	cache := &mapCache{}
	svc := NewStandingService(store, &mockGradedCreditsReader{}, cache, nil, db, time.Minute, nil)

	first, err := svc.Get(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "st-1", first.ID)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache even if the store empties out.
	store.standing = nil
	second, err := svc.Get(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "st-1", second.ID)
}

func TestGetMissingStanding(t *testing.T) {
	db, _, cleanup := newMockTxProvider(t)
	defer cleanup()

	svc := NewStandingService(&mockStandingStore{}, &mockGradedCreditsReader{}, nil, nil, db, 0, nil)
	_, err := svc.Get(context.Background(), "stu-1", "sem-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRecomputeInvalidatesCacheAfterCommit(t *testing.T) {
	db, mock, cleanup := newMockTxProvider(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	cache := &mapCache{entries: map[string]models.AcademicStanding{
		standingCacheKey("stu-1", "sem-1"): {ID: "st-stale"},
	}}
	store := &mockStandingStore{}
	svc := NewStandingService(store, &mockGradedCreditsReader{}, cache, nil, db, time.Minute, nil)

	_, err := svc.Recompute(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)
	assert.NotContains(t, cache.entries, standingCacheKey("stu-1", "sem-1"))
}

func floatPtr(v float64) *float64 { return &v }
