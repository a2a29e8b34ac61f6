package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/response"
)

type profileService interface {
	EnsureProfile(ctx context.Context, claims *models.JWTClaims, req dto.EnsureProfileRequest) (*models.Profile, bool, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context, caller *models.JWTClaims, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error)
	Delete(ctx context.Context, caller *models.JWTClaims, id string) error
}

// UserHandler exposes profile and user administration endpoints.
type UserHandler struct {
	profiles profileService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(profiles profileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// EnsureMe godoc
// @Summary Create the caller's profile on first sign-in
// @Description Idempotent. New profiles start unapproved; admin is never self-assigned.
// @Tags Profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.EnsureProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /profiles/me [post]
func (h *UserHandler) EnsureMe(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.EnsureProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	profile, created, err := h.profiles.EnsureProfile(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, profile)
		return
	}
	response.OK(c, profile)
}

// Me godoc
// @Summary Current caller profile
// @Description Available before approval so pending users can check their status.
// @Tags Profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role (student, mentor, admin)"
// @Param approved query bool false "Filter by approval"
// @Param search query string false "Match email or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var filter models.ProfileFilter
	if raw := strings.ToLower(strings.TrimSpace(c.Query("role"))); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid role filter"))
			return
		}
		filter.Role = &role
	}
	if raw := strings.TrimSpace(c.Query("approved")); raw != "" {
		approved, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approved must be true or false"))
			return
		}
		filter.Approved = &approved
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	profiles, pagination, err := h.profiles.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, pagination)
}

// Delete godoc
// @Summary Delete a user
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.profiles.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
