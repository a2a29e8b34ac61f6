package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cohort-api/internal/models"
)

const applicationColumns = `a.id, a.program_id, a.student_id, a.status, a.application_data, a.submitted_at, a.reviewed_at, a.reviewed_by, a.created_at, a.updated_at`

// ApplicationRepository handles persistence of program applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	return findApplication(ctx, r.db, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id)
}

// FindByIDForUpdate locks the application row until tx ends.
func (r *ApplicationRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error) {
	return findApplication(ctx, tx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 FOR UPDATE`, id)
}

func findApplication(ctx context.Context, q queryer, query, id string) (*models.Application, error) {
	var app models.Application
	if err := sqlx.GetContext(ctx, q, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// Exists reports whether the student already has an application for the program.
func (r *ApplicationRepository) Exists(ctx context.Context, programID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM applications WHERE program_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, programID, studentID); err != nil {
		return false, fmt.Errorf("check application: %w", err)
	}
	return exists, nil
}

// Create persists a new application.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	if len(app.ApplicationData) == 0 {
		app.ApplicationData = []byte(`{}`)
	}
	app.CreatedAt, app.UpdatedAt = now, now
	const query = `INSERT INTO applications (id, program_id, student_id, status, application_data, submitted_at, created_at, updated_at)
        VALUES (:id, :program_id, :student_id, :status, :application_data, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return wrapWrite("create application", err)
	}
	return nil
}

// List returns applications with program and student context.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	if filter.ProgramIDs != nil && len(filter.ProgramIDs) == 0 {
		return []models.ApplicationDetail{}, nil
	}
	var conditions []string
	var args []interface{}
	if filter.ProgramIDs != nil {
		conditions = append(conditions, "a.program_id IN (?)")
		args = append(args, filter.ProgramIDs)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, "a.program_id = ?")
		args = append(args, filter.ProgramID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "a.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "a.status = ?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := `SELECT ` + applicationColumns + `, p.title AS program_title, s.full_name AS student_name, s.email AS student_email
FROM applications a
JOIN programs p ON p.id = a.program_id
JOIN profiles s ON s.id = a.student_id` + where + ` ORDER BY a.submitted_at DESC`

	var err error
	if len(args) > 0 {
		if query, args, err = expandIn(r.db, query, args...); err != nil {
			return nil, err
		}
	}
	apps := []models.ApplicationDetail{}
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// UpdateReviewWithTx records a review decision inside tx.
func (r *ApplicationRepository) UpdateReviewWithTx(ctx context.Context, tx *sqlx.Tx, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET status = :status, reviewed_at = :reviewed_at, reviewed_by = :reviewed_by, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update application review: %w", err)
	}
	return nil
}

// Withdraw moves a pending application to withdrawn. It reports false when
// the application was no longer pending.
func (r *ApplicationRepository) Withdraw(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.ApplicationStatusWithdrawn, at, models.ApplicationStatusPending)
	if err != nil {
		return false, fmt.Errorf("withdraw application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("withdraw application rows: %w", err)
	}
	return n > 0, nil
}
