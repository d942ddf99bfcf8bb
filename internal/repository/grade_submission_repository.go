package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unicore-dev/uni-records-api/internal/models"
)

// GradeSubmissionRepository persists the append-only grade evidence trail.
type GradeSubmissionRepository struct {
	db *sqlx.DB
}

// NewGradeSubmissionRepository constructs the repository.
func NewGradeSubmissionRepository(db *sqlx.DB) *GradeSubmissionRepository {
	return &GradeSubmissionRepository{db: db}
}

// CreateTx appends a grade submission inside the caller's transaction.
// Submissions are never updated or deleted.
func (r *GradeSubmissionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, submission *models.GradeSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_submissions (id, enrollment_id, submitted_by_id, mark, grade, submitted_at)
        VALUES (:id, :enrollment_id, :submitted_by_id, :mark, :grade, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create grade submission: %w", err)
	}
	return nil
}

// ListByEnrollment returns the submission history for an enrollment, newest
// first.
func (r *GradeSubmissionRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeSubmission, error) {
	const query = `SELECT id, enrollment_id, submitted_by_id, mark, grade, submitted_at
        FROM grade_submissions WHERE enrollment_id = $1 ORDER BY submitted_at DESC`
	var submissions []models.GradeSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list grade submissions: %w", err)
	}
	return submissions, nil
}
