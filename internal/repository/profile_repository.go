package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cohort-api/internal/models"
)

const profileColumns = `id, email, full_name, role, is_approved, created_at, updated_at`

// ProfileRepository provides database access for user profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID returns a profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// CreateIfMissing inserts the profile unless one already exists for its id.
// It reports whether a row was written.
func (r *ProfileRepository) CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error) {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = profile.CreatedAt
	const query = `INSERT INTO profiles (id, email, full_name, role, is_approved, created_at, updated_at)
        VALUES (:id, :email, :full_name, :role, :is_approved, :created_at, :updated_at)
        ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return false, wrapWrite("create profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create profile rows: %w", err)
	}
	return n > 0, nil
}

// List returns profiles matching filter with the total count.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Approved != nil {
		if *filter.Approved {
			conditions = append(conditions, "is_approved IS TRUE")
		} else {
			conditions = append(conditions, "is_approved IS NOT TRUE")
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(email ILIKE $%d OR full_name ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM profiles%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		profileColumns, where, size, (page-1)*size)

	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM profiles`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}
	return profiles, total, nil
}

// SetApproved flips the approval flag.
func (r *ProfileRepository) SetApproved(ctx context.Context, id string, approved bool, at time.Time) error {
	const query = `UPDATE profiles SET is_approved = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "approve profile", query, id, approved, at)
}

// UpdateRole changes the stored role.
func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time) error {
	const query = `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update profile role", query, id, role, at)
}

// Delete removes a profile.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete profile", `DELETE FROM profiles WHERE id = $1`, id)
}

func (r *ProfileRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
