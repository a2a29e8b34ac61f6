package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cohort-api/internal/models"
)

const submissionColumns = `s.id, s.assessment_id, s.student_id, s.submission_data, s.score, s.feedback, s.graded_by, s.submitted_at, s.graded_at, s.status, s.created_at, s.updated_at`

// SubmissionRepository handles persistence of assessment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// HasFinal reports whether the student already has a non-draft submission.
func (r *SubmissionRepository) HasFinal(ctx context.Context, assessmentID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM assessment_submissions WHERE assessment_id = $1 AND student_id = $2 AND status <> 'draft')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, assessmentID, studentID); err != nil {
		return false, fmt.Errorf("check final submission: %w", err)
	}
	return exists, nil
}

// Create inserts a submission. A second final submission violates
// assessment_submissions_final_key.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt, submission.UpdatedAt = now, now
	if len(submission.SubmissionData) == 0 {
		submission.SubmissionData = []byte(`{}`)
	}
	const query = `INSERT INTO assessment_submissions (id, assessment_id, student_id, submission_data, submitted_at, status, created_at, updated_at)
        VALUES (:id, :assessment_id, :student_id, :submission_data, :submitted_at, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return wrapWrite("create submission", err)
	}
	return nil
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assessment_submissions s WHERE s.id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindLatestForStudent prefers the final submission, else the newest draft.
func (r *SubmissionRepository) FindLatestForStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assessment_submissions s
WHERE s.assessment_id = $1 AND s.student_id = $2
ORDER BY (s.status <> 'draft') DESC, s.created_at DESC LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assessmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest submission: %w", err)
	}
	return &submission, nil
}

// ListFinal returns non-draft submissions for an assessment.
func (r *SubmissionRepository) ListFinal(ctx context.Context, assessmentID string) ([]models.SubmissionDetail, error) {
	query := `SELECT ` + submissionColumns + `, pr.full_name AS student_name, pr.email AS student_email
FROM assessment_submissions s
JOIN profiles pr ON pr.id = s.student_id
WHERE s.assessment_id = $1 AND s.status <> 'draft'
ORDER BY s.submitted_at`
	submissions := []models.SubmissionDetail{}
	if err := r.db.SelectContext(ctx, &submissions, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Grade stores the score and feedback and marks the submission graded.
func (r *SubmissionRepository) Grade(ctx context.Context, submission *models.Submission) error {
	submission.Status = models.SubmissionGraded
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessment_submissions SET score = :score, feedback = :feedback, graded_by = :graded_by,
        graded_at = :graded_at, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
