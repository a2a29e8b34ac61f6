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

const programColumns = `p.id, p.title, p.description, p.start_date, p.end_date, p.max_students, p.status, p.created_by, p.mentor_id, p.created_at, p.updated_at`

// ProgramRepository handles persistence of programs and mentor assignments.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	return findProgram(ctx, r.db, `SELECT `+programColumns+` FROM programs p WHERE p.id = $1`, id)
}

// FindByIDForUpdate locks the program row until tx ends.
func (r *ProgramRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Program, error) {
	return findProgram(ctx, tx, `SELECT `+programColumns+` FROM programs p WHERE p.id = $1 FOR UPDATE`, id)
}

func findProgram(ctx context.Context, q queryer, query, id string) (*models.Program, error) {
	var program models.Program
	if err := sqlx.GetContext(ctx, q, &program, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find program: %w", err)
	}
	return &program, nil
}

// List returns programs with their live enrollment counts. Dropped
// enrollments do not count.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, error) {
	if filter.IDsSet && len(filter.IDs) == 0 {
		return []models.ProgramDetail{}, nil
	}

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "p.status = ?")
		args = append(args, filter.Status)
	}
	if filter.IDsSet {
		conditions = append(conditions, "p.id IN (?)")
		args = append(args, filter.IDs)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT ` + programColumns + `, COALESCE(e.cnt, 0) AS enrollments_count
FROM programs p
LEFT JOIN (SELECT program_id, COUNT(*) AS cnt FROM enrollments GROUP BY program_id) e ON e.program_id = p.id` +
		where + ` ORDER BY p.created_at DESC`

	var err error
	if len(args) > 0 {
		if query, args, err = expandIn(r.db, query, args...); err != nil {
			return nil, err
		}
	}

	var programs []models.ProgramDetail
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// CreateWithTx inserts a program using an existing transaction.
func (r *ProgramRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt, program.UpdatedAt = now, now
	if program.Status == "" {
		program.Status = models.ProgramStatusDraft
	}
	const query = `INSERT INTO programs (id, title, description, start_date, end_date, max_students, status, created_by, mentor_id, created_at, updated_at)
        VALUES (:id, :title, :description, :start_date, :end_date, :max_students, :status, :created_by, NULL, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, program); err != nil {
		return wrapWrite("create program", err)
	}
	return nil
}

// UpdateWithTx replaces the editable fields and clears the legacy mentor column.
func (r *ProgramRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	program.MentorID = nil
	const query = `UPDATE programs SET title = :title, description = :description, start_date = :start_date, end_date = :end_date,
        max_students = :max_students, status = :status, mentor_id = NULL, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, program)
	if err != nil {
		return wrapWrite("update program", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceMentorsWithTx swaps the full assignment set of a program.
func (r *ProgramRepository) ReplaceMentorsWithTx(ctx context.Context, tx *sqlx.Tx, programID string, mentorIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM program_mentors WHERE program_id = $1`, programID); err != nil {
		return fmt.Errorf("clear program mentors: %w", err)
	}
	now := time.Now().UTC()
	const insert = `INSERT INTO program_mentors (id, program_id, mentor_id, assigned_at) VALUES ($1, $2, $3, $4)`
	for _, mentorID := range mentorIDs {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), programID, mentorID, now); err != nil {
			return wrapWrite("assign program mentor", err)
		}
	}
	return nil
}

// MentorsFor returns assigned mentors per program, merging the legacy column
// with program_mentors.
func (r *ProgramRepository) MentorsFor(ctx context.Context, programIDs []string) (map[string][]models.MentorSummary, error) {
	result := make(map[string][]models.MentorSummary, len(programIDs))
	if len(programIDs) == 0 {
		return result, nil
	}
	query, args, err := expandIn(r.db, `SELECT m.program_id, pr.id, pr.full_name, pr.email FROM (
    SELECT program_id, mentor_id FROM program_mentors WHERE program_id IN (?)
    UNION
    SELECT id AS program_id, mentor_id FROM programs WHERE mentor_id IS NOT NULL AND id IN (?)
) m
JOIN profiles pr ON pr.id = m.mentor_id
ORDER BY pr.full_name`, programIDs, programIDs)
	if err != nil {
		return nil, err
	}
	var rows []models.MentorSummary
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list program mentors: %w", err)
	}
	for _, row := range rows {
		result[row.ProgramID] = append(result[row.ProgramID], row)
	}
	return result, nil
}

// IsMentor reports whether mentorID is assigned to programID through either source.
func (r *ProgramRepository) IsMentor(ctx context.Context, programID, mentorID string) (bool, error) {
	const query = `SELECT EXISTS (
    SELECT 1 FROM program_mentors WHERE program_id = $1 AND mentor_id = $2
    UNION ALL
    SELECT 1 FROM programs WHERE id = $1 AND mentor_id = $2
)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, programID, mentorID); err != nil {
		return false, fmt.Errorf("check program mentor: %w", err)
	}
	return ok, nil
}

// ProgramIDsForMentor lists programs assigned to a mentor through either source.
func (r *ProgramRepository) ProgramIDsForMentor(ctx context.Context, mentorID string) ([]string, error) {
	const query = `SELECT program_id FROM program_mentors WHERE mentor_id = $1
UNION
SELECT id FROM programs WHERE mentor_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, mentorID); err != nil {
		return nil, fmt.Errorf("list mentor programs: %w", err)
	}
	return ids, nil
}

// BackfillLegacyMentors copies programs.mentor_id into program_mentors and
// clears the legacy column. It returns the number of assignments created.
func (r *ProgramRepository) BackfillLegacyMentors(ctx context.Context) (created int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin mentor backfill: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO program_mentors (id, program_id, mentor_id, assigned_at)
SELECT gen_random_uuid(), p.id, p.mentor_id, NOW() FROM programs p WHERE p.mentor_id IS NOT NULL
ON CONFLICT (program_id, mentor_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("copy legacy mentors: %w", err)
	}
	if created, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("copy legacy mentors rows: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE programs SET mentor_id = NULL WHERE mentor_id IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("clear legacy mentors: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mentor backfill: %w", err)
	}
	return created, nil
}
