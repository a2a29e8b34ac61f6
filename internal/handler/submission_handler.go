package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, caller *models.JWTClaims, assessmentID string, req dto.SubmissionRequest) (*models.Submission, error)
	Mine(ctx context.Context, caller *models.JWTClaims, assessmentID string) (*models.Submission, error)
	List(ctx context.Context, caller *models.JWTClaims, assessmentID string) ([]models.SubmissionDetail, error)
	Grade(ctx context.Context, caller *models.JWTClaims, req dto.GradeRequest) (*models.Submission, error)
}

// SubmissionHandler exposes submission and grading endpoints.
type SubmissionHandler struct {
	submissions submissionService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions submissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Submit godoc
// @Summary Submit an assessment attempt
// @Description Drafts may be saved repeatedly; a final submission is accepted once.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param payload body dto.SubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assessments/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	submission, err := h.submissions.Submit(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions with suggested scores
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	submissions, err := h.submissions.List(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Mine godoc
// @Summary Caller's latest submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/submissions/me [get]
func (h *SubmissionHandler) Mine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	submission, err := h.submissions.Mine(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission)
}

// Grade godoc
// @Summary Grade a submission
// @Description Regrading overwrites the previous score.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body dto.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [put]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.SubmissionID = c.Param("id")
	submission, err := h.submissions.Grade(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission)
}
