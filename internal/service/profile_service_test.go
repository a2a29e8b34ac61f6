package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

type profileRepoFake struct {
	profiles map[string]*models.Profile
	filter   models.ProfileFilter
}

func newProfileRepoFake(profiles ...models.Profile) *profileRepoFake {
	f := &profileRepoFake{profiles: map[string]*models.Profile{}}
	for i := range profiles {
		p := profiles[i]
		f.profiles[p.ID] = &p
	}
	return f
}

func (f *profileRepoFake) FindByID(_ context.Context, id string) (*models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *profileRepoFake) CreateIfMissing(_ context.Context, profile *models.Profile) (bool, error) {
	if _, ok := f.profiles[profile.ID]; ok {
		return false, nil
	}
	cp := *profile
	f.profiles[profile.ID] = &cp
	return true, nil
}

func (f *profileRepoFake) List(_ context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	f.filter = filter
	out := []models.Profile{}
	for _, p := range f.profiles {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (f *profileRepoFake) SetApproved(_ context.Context, id string, approved bool, _ time.Time) error {
	p, ok := f.profiles[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.IsApproved = &approved
	return nil
}

func (f *profileRepoFake) UpdateRole(_ context.Context, id string, role models.UserRole, _ time.Time) error {
	p, ok := f.profiles[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Role = role
	return nil
}

func (f *profileRepoFake) Delete(_ context.Context, id string) error {
	if _, ok := f.profiles[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.profiles, id)
	return nil
}

func approvedProfile(id string, role models.UserRole) models.Profile {
	yes := true
	return models.Profile{ID: id, Email: id + "@example.com", Role: role, IsApproved: &yes}
}

func TestResolveUsesStoredRole(t *testing.T) {
	repo := newProfileRepoFake(approvedProfile("user-1", models.RoleMentor))
	svc := NewProfileService(repo, nil, nil, nil)

	claims, profile, err := svc.Resolve(context.Background(), claimsFor("user-1", models.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, claims.Role)
	assert.Equal(t, "user-1@example.com", claims.Email)
	assert.Equal(t, "user-1", profile.ID)
}

func TestResolveRejections(t *testing.T) {
	unapproved := models.Profile{ID: "pending", Role: models.RoleStudent}
	denied := approvedProfile("denied", models.RoleMentor)
	no := false
	denied.IsApproved = &no
	unapprovedAdmin := models.Profile{ID: "root", Role: models.RoleAdmin}
	svc := NewProfileService(newProfileRepoFake(unapproved, denied, unapprovedAdmin), nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Resolve(ctx, claimsFor("ghost", models.RoleStudent))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = svc.Resolve(ctx, claimsFor("pending", models.RoleStudent))
	assert.ErrorIs(t, err, appErrors.ErrAccountNotApproved)

	_, _, err = svc.Resolve(ctx, claimsFor("denied", models.RoleMentor))
	assert.ErrorIs(t, err, appErrors.ErrAccountNotApproved)

	claims, _, err := svc.Resolve(ctx, claimsFor("root", models.RoleStudent))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, _, err = svc.Resolve(ctx, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestEnsureProfile(t *testing.T) {
	repo := newProfileRepoFake()
	svc := NewProfileService(repo, nil, nil, nil)
	ctx := context.Background()

	claims := claimsFor("new-admin", models.RoleAdmin)
	claims.Email = "Boss@Example.com"
	profile, created, err := svc.EnsureProfile(ctx, claims, dto.EnsureProfileRequest{FullName: "The <b>Boss</b>"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.Equal(t, "boss@example.com", profile.Email)
	assert.Equal(t, "The Boss", profile.FullName)
	assert.False(t, profile.Approved())

	again, created, err := svc.EnsureProfile(ctx, claims, dto.EnsureProfileRequest{FullName: "Renamed"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "The Boss", again.FullName)

	m, _, err := svc.EnsureProfile(ctx, claimsFor("m-1", models.RoleMentor), dto.EnsureProfileRequest{Email: "m@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, m.Role)

	_, _, err = svc.EnsureProfile(ctx, claimsFor("x", models.RoleStudent), dto.EnsureProfileRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserAdministration(t *testing.T) {
	repo := newProfileRepoFake(
		approvedProfile("admin-1", models.RoleAdmin),
		models.Profile{ID: "u-1", Role: models.RoleStudent},
	)
	audit := &auditRecorderStub{}
	svc := NewProfileService(repo, audit, nil, nil)
	ctx := context.Background()

	_, err := svc.Approve(ctx, mentor(), dto.UserRef{UserID: "u-1"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	approved, err := svc.Approve(ctx, admin(), dto.UserRef{UserID: "u-1"})
	require.NoError(t, err)
	assert.True(t, approved.Approved())

	promoted, err := svc.UpdateRole(ctx, admin(), dto.RoleUpdate{UserID: "u-1", Role: "mentor"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, promoted.Role)

	_, err = svc.UpdateRole(ctx, admin(), dto.RoleUpdate{UserID: "u-1", Role: "owner"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Approve(ctx, admin(), dto.UserRef{UserID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, admin(), "admin-1"), appErrors.ErrInvalidState)
	require.NoError(t, svc.Delete(ctx, admin(), "u-1"))
	assert.ErrorIs(t, svc.Delete(ctx, admin(), "u-1"), appErrors.ErrNotFound)

	assert.Equal(t, []string{models.AuditUserApprove, models.AuditUserRoleUpdate, models.AuditUserDelete}, audit.actions())
}

func TestListUsersPagination(t *testing.T) {
	repo := newProfileRepoFake(approvedProfile("a", models.RoleAdmin))
	svc := NewProfileService(repo, nil, nil, nil)

	_, page, err := svc.List(context.Background(), admin(), models.ProfileFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{Page: 1, PageSize: 100, TotalCount: 1}, *page)

	_, _, err = svc.List(context.Background(), student(), models.ProfileFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
