package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/middleware"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/logger"
	"github.com/noah-isme/cohort-api/pkg/response"
)

var tracer = otel.Tracer("github.com/noah-isme/cohort-api/internal/handler")

type workflowService interface {
	SubmitRequest(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentRequest) (*models.WorkflowResult, error)
	CreateApplication(ctx context.Context, caller *models.JWTClaims, req dto.ApplicationRequest) (*models.Application, error)
	Review(ctx context.Context, caller *models.JWTClaims, req dto.ReviewRequest) (*models.WorkflowResult, error)
	Withdraw(ctx context.Context, caller *models.JWTClaims, req dto.ApplicationRef) (*models.Application, error)
	CheckCapacity(ctx context.Context, programID string) (*models.Capacity, error)
	ListApplications(ctx context.Context, caller *models.JWTClaims, scope dto.ProgramScope) ([]models.ApplicationDetail, error)
	ListMyApplications(ctx context.Context, caller *models.JWTClaims) ([]models.ApplicationDetail, error)
	ListEnrollments(ctx context.Context, caller *models.JWTClaims, scope dto.ProgramScope) ([]models.EnrollmentDetail, error)
	ListMyEnrollments(ctx context.Context, caller *models.JWTClaims) ([]models.EnrollmentDetail, error)
	GetEnrollment(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentLookup) (*models.EnrollmentDetail, error)
	UpdateEnrollment(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentUpdate) (*models.Enrollment, error)
}

type programService interface {
	List(ctx context.Context, caller *models.JWTClaims, query dto.ProgramListQuery) ([]models.ProgramDetail, bool, error)
	ListMine(ctx context.Context, caller *models.JWTClaims) ([]models.ProgramDetail, error)
	Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.ProgramDetail, error)
	Create(ctx context.Context, caller *models.JWTClaims, req dto.ProgramRequest) (*models.ProgramDetail, error)
	Update(ctx context.Context, caller *models.JWTClaims, req dto.ProgramRequest) (*models.ProgramDetail, error)
}

type userAdminService interface {
	Approve(ctx context.Context, caller *models.JWTClaims, req dto.UserRef) (*models.Profile, error)
	UpdateRole(ctx context.Context, caller *models.JWTClaims, req dto.RoleUpdate) (*models.Profile, error)
}

type gradingService interface {
	Grade(ctx context.Context, caller *models.JWTClaims, req dto.GradeRequest) (*models.Submission, error)
}

type actionObserver interface {
	ObserveAction(action string, status int)
}

type actionFunc func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error)

type action struct {
	readOnly bool
	status   int
	run      actionFunc
}

// ActionHandler serves the single action endpoint.
type ActionHandler struct {
	actions  map[string]action
	observer actionObserver
}

// ActionServices groups the collaborators the dispatcher routes to.
type ActionServices struct {
	Workflow workflowService
	Programs programService
	Users    userAdminService
	Grading  gradingService
	Observer actionObserver
}

// NewActionHandler builds the action table.
func NewActionHandler(deps ActionServices) *ActionHandler {
	h := &ActionHandler{observer: deps.Observer}
	wf, programs, users, grading := deps.Workflow, deps.Programs, deps.Users, deps.Grading

	h.actions = map[string]action{
		"create_application": {status: http.StatusCreated, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.ApplicationRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			app, err := wf.CreateApplication(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"application": app}, nil
		}},
		"get_applications": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var scope dto.ProgramScope
			if err := decodeParams(params, &scope); err != nil {
				return nil, err
			}
			apps, err := wf.ListApplications(c.Request.Context(), caller, scope)
			if err != nil {
				return nil, err
			}
			return gin.H{"applications": apps}, nil
		}},
		"get_my_applications": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, _ json.RawMessage) (interface{}, error) {
			apps, err := wf.ListMyApplications(c.Request.Context(), caller)
			if err != nil {
				return nil, err
			}
			return gin.H{"applications": apps}, nil
		}},
		"review_application": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.ReviewRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			return wf.Review(c.Request.Context(), caller, req)
		}},
		"withdraw_application": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.ApplicationRef
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			app, err := wf.Withdraw(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"application": app}, nil
		}},
		"create_enrollment": {status: http.StatusCreated, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.EnrollmentRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			return wf.SubmitRequest(c.Request.Context(), caller, req)
		}},
		"get_enrollments": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var scope dto.ProgramScope
			if err := decodeParams(params, &scope); err != nil {
				return nil, err
			}
			enrollments, err := wf.ListEnrollments(c.Request.Context(), caller, scope)
			if err != nil {
				return nil, err
			}
			return gin.H{"enrollments": enrollments}, nil
		}},
		"get_my_enrollments": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, _ json.RawMessage) (interface{}, error) {
			enrollments, err := wf.ListMyEnrollments(c.Request.Context(), caller)
			if err != nil {
				return nil, err
			}
			return gin.H{"enrollments": enrollments}, nil
		}},
		"get_enrollment": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.EnrollmentLookup
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			enrollment, err := wf.GetEnrollment(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"enrollment": enrollment}, nil
		}},
		"update_enrollment": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.EnrollmentUpdate
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			enrollment, err := wf.UpdateEnrollment(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"enrollment": enrollment}, nil
		}},
		"check_capacity": {readOnly: true, run: func(c *gin.Context, _ *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var ref dto.ProgramRef
			if err := decodeParams(params, &ref); err != nil {
				return nil, err
			}
			if strings.TrimSpace(ref.ProgramID) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "programId is required")
			}
			return wf.CheckCapacity(c.Request.Context(), ref.ProgramID)
		}},
		"get_programs": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var query dto.ProgramListQuery
			if err := decodeParams(params, &query); err != nil {
				return nil, err
			}
			list, hit, err := programs.List(c.Request.Context(), caller, query)
			if err != nil {
				return nil, err
			}
			middleware.SetCacheHit(c, hit)
			return gin.H{"programs": list}, nil
		}},
		"get_my_programs": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, _ json.RawMessage) (interface{}, error) {
			list, err := programs.ListMine(c.Request.Context(), caller)
			if err != nil {
				return nil, err
			}
			return gin.H{"programs": list}, nil
		}},
		"get_program": {readOnly: true, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var ref dto.ProgramRef
			if err := decodeParams(params, &ref); err != nil {
				return nil, err
			}
			if strings.TrimSpace(ref.ProgramID) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "programId is required")
			}
			program, err := programs.Get(c.Request.Context(), caller, ref.ProgramID)
			if err != nil {
				return nil, err
			}
			return gin.H{"program": program}, nil
		}},
		"create_program": {status: http.StatusCreated, run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.ProgramRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			program, err := programs.Create(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"program": program}, nil
		}},
		"update_program": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.ProgramRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			program, err := programs.Update(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"program": program}, nil
		}},
		"approve_user": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.UserRef
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			profile, err := users.Approve(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"profile": profile}, nil
		}},
		"update_user_role": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.RoleUpdate
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			profile, err := users.UpdateRole(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"profile": profile}, nil
		}},
		"grade_assessment": {run: func(c *gin.Context, caller *models.JWTClaims, params json.RawMessage) (interface{}, error) {
			var req dto.GradeRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			if strings.TrimSpace(req.SubmissionID) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "submissionId is required")
			}
			submission, err := grading.Grade(c.Request.Context(), caller, req)
			if err != nil {
				return nil, err
			}
			return gin.H{"submission": submission}, nil
		}},
	}
	return h
}

// Actions returns the registered action names.
func (h *ActionHandler) Actions() []string {
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	return names
}

// Query godoc
// @Summary Dispatch a read-only action
// @Description Query parameters other than action are parsed as JSON when possible.
// @Tags Actions
// @Produce json
// @Security BearerAuth
// @Param action query string true "Action name"
// @Param programId query string false "Program ID"
// @Param studentId query string false "Student ID"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /actions [get]
func (h *ActionHandler) Query(c *gin.Context) {
	name := strings.TrimSpace(c.Query("action"))
	if name == "" {
		h.fail(c, "", appErrors.Clone(appErrors.ErrValidation, "missing action parameter"))
		return
	}
	params, err := queryParams(c)
	if err != nil {
		h.fail(c, name, err)
		return
	}
	h.dispatch(c, name, params, true)
}

// Execute godoc
// @Summary Dispatch an action
// @Description The JSON body carries the action name and its parameters.
// @Tags Actions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body object true "Action payload, e.g. {\"action\":\"review_application\",\"applicationId\":\"...\",\"reviewAction\":\"approve\"}"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /actions [post]
func (h *ActionHandler) Execute(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request body format"))
		return
	}
	var envelope struct {
		Action string `json:"action"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		h.fail(c, "", appErrors.Clone(appErrors.ErrValidation, "invalid request body format"))
		return
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		h.fail(c, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request body format"))
		return
	}
	name := strings.TrimSpace(envelope.Action)
	if name == "" {
		h.fail(c, "", appErrors.Clone(appErrors.ErrValidation, "missing action parameter"))
		return
	}
	h.dispatch(c, name, trimmed, false)
}

func (h *ActionHandler) dispatch(c *gin.Context, name string, params json.RawMessage, viaQuery bool) {
	c.Set(logger.ActionKey, name)
	act, ok := h.actions[name]
	if !ok {
		h.fail(c, name, appErrors.Clone(appErrors.ErrUnknownAction, "unknown action: "+name))
		return
	}
	if viaQuery && !act.readOnly {
		h.fail(c, name, appErrors.Clone(appErrors.ErrValidation, name+" requires POST"))
		return
	}
	caller := claimsFromContext(c)
	if caller == nil {
		h.fail(c, name, appErrors.ErrUnauthorized)
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "action."+name)
	span.SetAttributes(
		attribute.String("action", name),
		attribute.String("caller.role", string(caller.Role)),
	)
	c.Request = c.Request.WithContext(ctx)
	data, err := act.run(c, caller, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErrors.FromError(err).Code)
		span.End()
		h.fail(c, name, err)
		return
	}
	span.End()

	status := act.status
	if status == 0 {
		status = http.StatusOK
	}
	middleware.SetMeta(c, "action", name)
	h.observe(name, status)
	response.JSON(c, status, data, nil, middleware.ExtractMeta(c))
}

func (h *ActionHandler) fail(c *gin.Context, name string, err error) {
	if name != "" {
		h.observe(name, appErrors.FromError(err).Status)
	}
	response.Error(c, err)
}

func (h *ActionHandler) observe(name string, status int) {
	if h.observer != nil {
		h.observer.ObserveAction(name, status)
	}
}

// decodeParams unmarshals action parameters; unknown keys such as action are ignored.
func decodeParams(params json.RawMessage, dest interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dest); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid value for "+typeErr.Field)
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action parameters")
	}
	return nil
}

// queryParams turns the query string into a JSON object. Values that parse as
// JSON keep their type; everything else stays a string.
func queryParams(c *gin.Context) (json.RawMessage, error) {
	values := c.Request.URL.Query()
	params := make(map[string]interface{}, len(values))
	for key, list := range values {
		if key == "action" || len(list) == 0 {
			continue
		}
		raw := list[0]
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			params[key] = parsed
			continue
		}
		params[key] = raw
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters")
	}
	return encoded, nil
}
