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

const assessmentColumns = `id, program_id, title, description, type, due_date, max_score, created_by, created_at, updated_at`

// AssessmentRepository handles persistence of assessments and answer keys.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// FindByID returns an assessment with its content decoded.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	assessment.DecodeContent()
	return &assessment, nil
}

// ListByProgram returns the assessments of a program ordered by due date.
func (r *AssessmentRepository) ListByProgram(ctx context.Context, programID string) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE program_id = $1 ORDER BY due_date NULLS LAST, created_at`
	assessments := []models.Assessment{}
	if err := r.db.SelectContext(ctx, &assessments, query, programID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	for i := range assessments {
		assessments[i].DecodeContent()
	}
	return assessments, nil
}

// CreateWithTx inserts an assessment inside tx.
func (r *AssessmentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt, assessment.UpdatedAt = now, now
	const query = `INSERT INTO assessments (id, program_id, title, description, type, due_date, max_score, created_by, created_at, updated_at)
        VALUES (:id, :program_id, :title, :description, :type, :due_date, :max_score, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, assessment); err != nil {
		return wrapWrite("create assessment", err)
	}
	return nil
}

// UpdateWithTx replaces the editable fields inside tx.
func (r *AssessmentRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, assessment *models.Assessment) error {
	assessment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessments SET title = :title, description = :description, type = :type, due_date = :due_date,
        max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, assessment)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assessment; submissions and the answer key cascade.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertAnswerWithTx writes the answer key, one row per assessment.
func (r *AssessmentRepository) UpsertAnswerWithTx(ctx context.Context, tx *sqlx.Tx, answer *models.AssessmentAnswer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	answer.CreatedAt, answer.UpdatedAt = now, now
	const query = `INSERT INTO assessment_answers (id, assessment_id, correct_answer, grading_notes, created_at, updated_at)
        VALUES (:id, :assessment_id, :correct_answer, :grading_notes, :created_at, :updated_at)
        ON CONFLICT (assessment_id) DO UPDATE SET correct_answer = EXCLUDED.correct_answer,
            grading_notes = EXCLUDED.grading_notes, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("upsert assessment answer: %w", err)
	}
	return nil
}

// FindAnswer returns the answer key of an assessment with Answers decoded.
func (r *AssessmentRepository) FindAnswer(ctx context.Context, assessmentID string) (*models.AssessmentAnswer, error) {
	const query = `SELECT id, assessment_id, correct_answer, grading_notes, created_at, updated_at FROM assessment_answers WHERE assessment_id = $1`
	var answer models.AssessmentAnswer
	if err := r.db.GetContext(ctx, &answer, query, assessmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment answer: %w", err)
	}
	key, err := models.DecodeAnswerKey(answer.CorrectAnswer)
	if err != nil {
		return nil, err
	}
	answer.Answers = key
	return &answer, nil
}
