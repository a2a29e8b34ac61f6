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

const enrollmentColumns = `e.id, e.program_id, e.student_id, e.status, e.enrolled_at, e.completed_at, e.created_at, e.updated_at`

const enrollmentDetailQuery = `SELECT ` + enrollmentColumns + `, p.title AS program_title, s.full_name AS student_name, s.email AS student_email
FROM enrollments e
JOIN programs p ON p.id = e.program_id
JOIN profiles s ON s.id = e.student_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists reports whether the student holds an enrollment in the program.
func (r *EnrollmentRepository) Exists(ctx context.Context, programID, studentID string) (bool, error) {
	return enrollmentExists(ctx, r.db, programID, studentID)
}

// ExistsWithTx is Exists inside tx.
func (r *EnrollmentRepository) ExistsWithTx(ctx context.Context, tx *sqlx.Tx, programID, studentID string) (bool, error) {
	return enrollmentExists(ctx, tx, programID, studentID)
}

func enrollmentExists(ctx context.Context, q queryer, programID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE program_id = $1 AND student_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, query, programID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Count counts every enrollment of the program. Dropped enrollments keep their seat.
func (r *EnrollmentRepository) Count(ctx context.Context, programID string) (int, error) {
	return countSeats(ctx, r.db, programID)
}

// CountWithTx is Count inside tx.
func (r *EnrollmentRepository) CountWithTx(ctx context.Context, tx *sqlx.Tx, programID string) (int, error) {
	return countSeats(ctx, tx, programID)
}

func countSeats(ctx context.Context, q queryer, programID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE program_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, programID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CreateWithTx inserts an enrollment inside tx.
func (r *EnrollmentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt, enrollment.UpdatedAt = now, now
	const query = `INSERT INTO enrollments (id, program_id, student_id, status, enrolled_at, completed_at, created_at, updated_at)
        VALUES (:id, :program_id, :student_id, :status, :enrolled_at, :completed_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return wrapWrite("create enrollment", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByProgramAndStudent returns the enrollment detail for the pair.
func (r *EnrollmentRepository) FindByProgramAndStudent(ctx context.Context, programID, studentID string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.program_id = $1 AND e.student_id = $2`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, programID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by program and student: %w", err)
	}
	return &detail, nil
}

// List returns enrollments with program and student context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	if filter.ProgramIDs != nil && len(filter.ProgramIDs) == 0 {
		return []models.EnrollmentDetail{}, nil
	}
	var conditions []string
	var args []interface{}
	if filter.ProgramIDs != nil {
		conditions = append(conditions, "e.program_id IN (?)")
		args = append(args, filter.ProgramIDs)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, "e.program_id = ?")
		args = append(args, filter.ProgramID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "e.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "e.status = ?")
		args = append(args, filter.Status)
	}
	query := enrollmentDetailQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.enrolled_at DESC"

	var err error
	if len(args) > 0 {
		if query, args, err = expandIn(r.db, query, args...); err != nil {
			return nil, err
		}
	}
	enrollments := []models.EnrollmentDetail{}
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateStatus sets status and completed_at.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, completed_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ProgramIDsForStudent lists programs the student holds a non-dropped enrollment in.
func (r *EnrollmentRepository) ProgramIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT program_id FROM enrollments WHERE student_id = $1 AND status <> 'dropped'`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list student programs: %w", err)
	}
	return ids, nil
}
