package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	SetApproved(ctx context.Context, id string, approved bool, at time.Time) error
	UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ProfileService resolves callers and administers user profiles.
type ProfileService struct {
	repo      profileRepository
	effects   sideEffects
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(repo profileRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, effects: newSideEffects(audit, nil, logger), validator: validate, logger: logger}
}

// Resolve loads the caller's profile and replaces the credential role with
// the stored one. Non-admins must be approved.
func (s *ProfileService) Resolve(ctx context.Context, claims *models.JWTClaims) (*models.JWTClaims, *models.Profile, error) {
	if err := requireCaller(claims); err != nil {
		return nil, nil, err
	}
	profile, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user profile not found")
		}
		return nil, nil, internalError(err, "failed to load user profile")
	}
	if profile.Role != models.RoleAdmin && !profile.Approved() {
		return nil, nil, appErrors.ErrAccountNotApproved
	}
	resolved := *claims
	resolved.Role = profile.Role
	if resolved.Email == "" {
		resolved.Email = profile.Email
	}
	return &resolved, profile, nil
}

// EnsureProfile creates the caller's profile on first sign-in. The role comes
// from the credential but admin is never self-assigned. Existing profiles are returned untouched.
func (s *ProfileService) EnsureProfile(ctx context.Context, claims *models.JWTClaims, req dto.EnsureProfileRequest) (*models.Profile, bool, error) {
	if err := requireCaller(claims); err != nil {
		return nil, false, err
	}
	if req.Email == "" {
		req.Email = claims.Email
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, false, validationError(err, "invalid profile payload")
	}
	role := claims.Role
	if role != models.RoleMentor {
		role = models.RoleStudent
	}
	now := time.Now().UTC()
	profile := &models.Profile{
		ID:        claims.UserID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:  sanitizeText(req.FullName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.repo.CreateIfMissing(ctx, profile)
	if err != nil {
		return nil, false, internalError(err, "failed to create profile")
	}
	if created {
		s.logger.Info("profile created", zap.String("user_id", profile.ID), zap.String("role", string(role)))
		return profile, true, nil
	}
	existing, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, false, lookupError(err, "user profile")
	}
	return existing, false, nil
}

// Get returns a single profile.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user profile")
	}
	return profile, nil
}

// List returns profiles with pagination metadata. Admin only.
func (s *ProfileService) List(ctx context.Context, caller *models.JWTClaims, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	if !caller.IsAdmin() {
		return nil, nil, appErrors.ErrForbidden
	}
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Approve marks a profile approved. Admin only.
func (s *ProfileService) Approve(ctx context.Context, caller *models.JWTClaims, req dto.UserRef) (*models.Profile, error) {
	if !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can approve users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "userId is required")
	}
	if err := s.repo.SetApproved(ctx, req.UserID, true, time.Now().UTC()); err != nil {
		return nil, lookupError(err, "user profile")
	}
	profile, err := s.repo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, lookupError(err, "user profile")
	}
	s.effects.record(ctx, auditEntry(caller, models.AuditUserApprove, "profile", req.UserID, map[string]interface{}{"is_approved": true}))
	return profile, nil
}

// UpdateRole changes a user's role. Admin only.
func (s *ProfileService) UpdateRole(ctx context.Context, caller *models.JWTClaims, req dto.RoleUpdate) (*models.Profile, error) {
	if !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change roles")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "userId and a valid role are required")
	}
	role := models.UserRole(req.Role)
	if err := s.repo.UpdateRole(ctx, req.UserID, role, time.Now().UTC()); err != nil {
		return nil, lookupError(err, "user profile")
	}
	profile, err := s.repo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, lookupError(err, "user profile")
	}
	s.effects.record(ctx, auditEntry(caller, models.AuditUserRoleUpdate, "profile", req.UserID, map[string]interface{}{"role": role}))
	return profile, nil
}

// Delete removes a profile. Admins cannot delete themselves.
func (s *ProfileService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	if !caller.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if id == caller.UserID {
		return appErrors.Clone(appErrors.ErrInvalidState, "cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "user profile")
	}
	s.effects.record(ctx, auditEntry(caller, models.AuditUserDelete, "profile", id, nil))
	return nil
}
