package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/unicore-dev/uni-records-api/internal/academic"
	"github.com/unicore-dev/uni-records-api/internal/models"
	appErrors "github.com/unicore-dev/uni-records-api/pkg/errors"
)

type gradedCreditsReader interface {
	GradedCreditsBySemesterTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) ([]models.GradedCredit, error)
	GradedCreditsAllTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.GradedCredit, error)
}

type standingStore interface {
	FindByStudentSemester(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AcademicStanding, error)
	UpsertComputedTx(ctx context.Context, tx *sqlx.Tx, standing *models.AcademicStanding) error
}

type standingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheObserver interface {
	RecordCacheOperation(operation string, hit bool, duration time.Duration)
}

// StandingService materializes per-semester academic standing snapshots.
// A snapshot is always recomputed wholesale from graded enrollments inside
// the transaction that changed them; it is never patched incrementally.
type StandingService struct {
	standings   standingStore
	enrollments gradedCreditsReader
	cache       standingCache
	metrics     cacheObserver
	tx          txProvider
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewStandingService constructs StandingService. cache and metrics may be
// nil; lookups then always hit the database.
func NewStandingService(standings standingStore, enrollments gradedCreditsReader, cache standingCache, metrics cacheObserver, tx txProvider, cacheTTL time.Duration, logger *zap.Logger) *StandingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StandingService{
		standings:   standings,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		tx:          tx,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// RecomputeTx recomputes the standing for (student, semester) inside the
// caller's transaction and upserts the snapshot. The section placement of an
// existing snapshot is preserved by the upsert. Callers must invalidate the
// cache after committing.
func (s *StandingService) RecomputeTx(ctx context.Context, tx *sqlx.Tx, studentID, semesterID string) (*models.AcademicStanding, error) {
	semCredits, err := s.enrollments.GradedCreditsBySemesterTx(ctx, tx, studentID, semesterID)
	if err != nil {
		return nil, fmt.Errorf("load semester credits: %w", err)
	}
	allCredits, err := s.enrollments.GradedCreditsAllTx(ctx, tx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load cumulative credits: %w", err)
	}

	semesterGPA := academic.ComputeGPA(toGradedCredits(semCredits))
	cumulativeGPA := academic.ComputeGPA(toGradedCredits(allCredits))

	standing := &models.AcademicStanding{
		StudentID:     studentID,
		SemesterID:    semesterID,
		SemesterGPA:   semesterGPA,
		CumulativeGPA: cumulativeGPA,
		Status:        classifyStanding(semesterGPA, cumulativeGPA),
	}
	if err := s.standings.UpsertComputedTx(ctx, tx, standing); err != nil {
		return nil, fmt.Errorf("upsert standing: %w", err)
	}

	s.logger.Info("standing recomputed",
		zap.String("student_id", studentID),
		zap.String("semester_id", semesterID),
		zap.String("status", string(standing.Status)))
	return standing, nil
}

// Recompute runs RecomputeTx in its own transaction. This is the admin
// backfill path; the workflow services recompute inside their own
// transactions instead.
func (s *StandingService) Recompute(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin standing tx: %w", err)
	}

	standing, err := s.RecomputeTx(ctx, tx, studentID, semesterID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit standing tx: %w", err)
	}

	s.Invalidate(ctx, studentID, semesterID)
	return standing, nil
}

// Invalidate drops the cached snapshot for (student, semester). Workflow
// services call this after their transaction commits so a concurrent read
// cannot refill the cache with pre-commit state.
func (s *StandingService) Invalidate(ctx context.Context, studentID, semesterID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, standingCacheKey(studentID, semesterID)); err != nil {
		s.logger.Warn("standing cache invalidation failed",
			zap.String("student_id", studentID),
			zap.String("semester_id", semesterID),
			zap.Error(err))
	}
}

// Get returns the standing snapshot for (student, semester), read through
// the cache.
func (s *StandingService) Get(ctx context.Context, studentID, semesterID string) (*models.AcademicStanding, error) {
	key := standingCacheKey(studentID, semesterID)

	if s.cache != nil {
		start := time.Now()
		var cached models.AcademicStanding
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.observeCache(true, time.Since(start))
			return &cached, nil
		}
		s.observeCache(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("standing cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	standing, err := s.standings.FindByStudentSemester(ctx, studentID, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no standing recorded for this semester")
		}
		return nil, fmt.Errorf("load standing: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, standing, s.cacheTTL); err != nil {
			s.logger.Warn("standing cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return standing, nil
}

// History lists all standing snapshots for a student, newest semester first.
func (s *StandingService) History(ctx context.Context, studentID string) ([]models.AcademicStanding, error) {
	standings, err := s.standings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return standings, nil
}

func (s *StandingService) observeCache(hit bool, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation("standing_get", hit, duration)
	}
}

// classifyStanding derives the status from the semester GPA, falling back to
// the cumulative GPA when the semester has no graded credits. A student with
// no GPA evidence at all stays active.
func classifyStanding(semesterGPA, cumulativeGPA *float64) models.StandingStatus {
	ref := semesterGPA
	if ref == nil {
		ref = cumulativeGPA
	}
	switch {
	case ref == nil:
		return models.StandingActive
	case *ref >= 2.00:
		return models.StandingActive
	case *ref >= 1.75:
		return models.StandingProbation
	default:
		return models.StandingDismissed
	}
}

func toGradedCredits(entries []models.GradedCredit) []academic.GradedCredit {
	out := make([]academic.GradedCredit, 0, len(entries))
	for _, e := range entries {
		out = append(out, academic.GradedCredit{Grade: e.Grade, CreditHours: e.CreditHours})
	}
	return out
}

func standingCacheKey(studentID, semesterID string) string {
	return fmt.Sprintf("standing:%s:%s", studentID, semesterID)
}
