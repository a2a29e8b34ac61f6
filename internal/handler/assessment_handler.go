package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/pkg/response"
)

type assessmentService interface {
	ListByProgram(ctx context.Context, caller *models.JWTClaims, programID string) ([]models.Assessment, error)
	Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.Assessment, error)
	Answers(ctx context.Context, caller *models.JWTClaims, id string) (*models.AssessmentAnswer, error)
	Create(ctx context.Context, caller *models.JWTClaims, programID string, req dto.AssessmentRequest) (*models.Assessment, error)
	Update(ctx context.Context, caller *models.JWTClaims, id string, req dto.AssessmentRequest) (*models.Assessment, error)
	Delete(ctx context.Context, caller *models.JWTClaims, id string) error
}

// AssessmentHandler exposes assessment CRUD endpoints.
type AssessmentHandler struct {
	assessments assessmentService
}

// NewAssessmentHandler constructs AssessmentHandler.
func NewAssessmentHandler(assessments assessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// List godoc
// @Summary List assessments of a program
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assessments, err := h.assessments.ListByProgram(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, nil)
}

// Create godoc
// @Summary Create an assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Program ID"
// @Param payload body dto.AssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Router /programs/{id}/assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	assessment, err := h.assessments.Create(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// Get godoc
// @Summary Get an assessment
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assessment, err := h.assessments.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assessment)
}

// Update godoc
// @Summary Replace an assessment
// @Description An omitted answer_key keeps the stored one.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param payload body dto.AssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [put]
func (h *AssessmentHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	assessment, err := h.assessments.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assessment)
}

// Delete godoc
// @Summary Delete an assessment
// @Tags Assessments
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 204
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.assessments.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Answers godoc
// @Summary Read the answer key
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/answers [get]
func (h *AssessmentHandler) Answers(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	answer, err := h.assessments.Answers(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, answer)
}
