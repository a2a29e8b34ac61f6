package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/middleware"
	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/service"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type workflowFake struct {
	review      dto.ReviewRequest
	reviewErr   error
	submit      dto.EnrollmentRequest
	scope       dto.ProgramScope
	lookup      dto.EnrollmentLookup
	application dto.ApplicationRequest
	capacityFor string
	calls       []string
}

func (f *workflowFake) SubmitRequest(_ context.Context, _ *models.JWTClaims, req dto.EnrollmentRequest) (*models.WorkflowResult, error) {
	f.calls = append(f.calls, "SubmitRequest")
	f.submit = req
	return &models.WorkflowResult{Enrollment: &models.Enrollment{ID: "enr-1", ProgramID: req.ProgramID, Status: models.EnrollmentStatusActive}}, nil
}

func (f *workflowFake) CreateApplication(_ context.Context, caller *models.JWTClaims, req dto.ApplicationRequest) (*models.Application, error) {
	f.calls = append(f.calls, "CreateApplication")
	f.application = req
	return &models.Application{ID: "app-1", ProgramID: req.ProgramID, StudentID: caller.UserID, Status: models.ApplicationStatusPending}, nil
}

func (f *workflowFake) Review(_ context.Context, _ *models.JWTClaims, req dto.ReviewRequest) (*models.WorkflowResult, error) {
	f.calls = append(f.calls, "Review")
	f.review = req
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return &models.WorkflowResult{Application: &models.Application{ID: req.ApplicationID, Status: models.ApplicationStatusApproved}}, nil
}

func (f *workflowFake) Withdraw(_ context.Context, _ *models.JWTClaims, req dto.ApplicationRef) (*models.Application, error) {
	f.calls = append(f.calls, "Withdraw")
	return &models.Application{ID: req.ApplicationID, Status: models.ApplicationStatusWithdrawn}, nil
}

func (f *workflowFake) CheckCapacity(_ context.Context, programID string) (*models.Capacity, error) {
	f.calls = append(f.calls, "CheckCapacity")
	f.capacityFor = programID
	capacity := models.NewCapacity(2, 3)
	return &capacity, nil
}

func (f *workflowFake) ListApplications(_ context.Context, _ *models.JWTClaims, scope dto.ProgramScope) ([]models.ApplicationDetail, error) {
	f.calls = append(f.calls, "ListApplications")
	f.scope = scope
	return []models.ApplicationDetail{{Application: models.Application{ID: "app-1"}}}, nil
}

func (f *workflowFake) ListMyApplications(context.Context, *models.JWTClaims) ([]models.ApplicationDetail, error) {
	f.calls = append(f.calls, "ListMyApplications")
	return []models.ApplicationDetail{}, nil
}

func (f *workflowFake) ListEnrollments(_ context.Context, _ *models.JWTClaims, scope dto.ProgramScope) ([]models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "ListEnrollments")
	f.scope = scope
	return []models.EnrollmentDetail{}, nil
}

func (f *workflowFake) ListMyEnrollments(context.Context, *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "ListMyEnrollments")
	return []models.EnrollmentDetail{}, nil
}

func (f *workflowFake) GetEnrollment(_ context.Context, _ *models.JWTClaims, req dto.EnrollmentLookup) (*models.EnrollmentDetail, error) {
	f.calls = append(f.calls, "GetEnrollment")
	f.lookup = req
	return nil, nil
}

func (f *workflowFake) UpdateEnrollment(_ context.Context, _ *models.JWTClaims, req dto.EnrollmentUpdate) (*models.Enrollment, error) {
	f.calls = append(f.calls, "UpdateEnrollment")
	return &models.Enrollment{ID: req.EnrollmentID, Status: models.EnrollmentStatus(req.Status)}, nil
}

type programFake struct {
	query    dto.ProgramListQuery
	cacheHit bool
	created  dto.ProgramRequest
}

func (f *programFake) List(_ context.Context, _ *models.JWTClaims, query dto.ProgramListQuery) ([]models.ProgramDetail, bool, error) {
	f.query = query
	return []models.ProgramDetail{{Program: models.Program{ID: "p-1", Title: "Go", Status: models.ProgramStatusOpen}}}, f.cacheHit, nil
}

func (f *programFake) ListMine(context.Context, *models.JWTClaims) ([]models.ProgramDetail, error) {
	return []models.ProgramDetail{}, nil
}

func (f *programFake) Get(_ context.Context, _ *models.JWTClaims, id string) (*models.ProgramDetail, error) {
	if id != "p-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
	}
	return &models.ProgramDetail{Program: models.Program{ID: id}}, nil
}

func (f *programFake) Create(_ context.Context, _ *models.JWTClaims, req dto.ProgramRequest) (*models.ProgramDetail, error) {
	f.created = req
	return &models.ProgramDetail{Program: models.Program{ID: "p-new", Title: req.Title}}, nil
}

func (f *programFake) Update(_ context.Context, _ *models.JWTClaims, req dto.ProgramRequest) (*models.ProgramDetail, error) {
	return &models.ProgramDetail{Program: models.Program{ID: req.ProgramID, Title: req.Title}}, nil
}

type userAdminFake struct {
	role dto.RoleUpdate
}

func (f *userAdminFake) Approve(_ context.Context, _ *models.JWTClaims, req dto.UserRef) (*models.Profile, error) {
	approved := true
	return &models.Profile{ID: req.UserID, IsApproved: &approved}, nil
}

func (f *userAdminFake) UpdateRole(_ context.Context, _ *models.JWTClaims, req dto.RoleUpdate) (*models.Profile, error) {
	f.role = req
	return &models.Profile{ID: req.UserID, Role: models.UserRole(req.Role)}, nil
}

type gradingFake struct {
	req dto.GradeRequest
}

func (f *gradingFake) Grade(_ context.Context, _ *models.JWTClaims, req dto.GradeRequest) (*models.Submission, error) {
	f.req = req
	return &models.Submission{ID: req.SubmissionID, Score: req.Score}, nil
}

type actionFixture struct {
	router   *gin.Engine
	workflow *workflowFake
	programs *programFake
	users    *userAdminFake
	grading  *gradingFake
	metrics  *service.MetricsService
}

func newActionFixture(caller *models.JWTClaims) *actionFixture {
	f := &actionFixture{
		workflow: &workflowFake{},
		programs: &programFake{},
		users:    &userAdminFake{},
		grading:  &gradingFake{},
		metrics:  service.NewMetricsService(),
	}
	h := NewActionHandler(ActionServices{
		Workflow: f.workflow,
		Programs: f.programs,
		Users:    f.users,
		Grading:  f.grading,
		Observer: f.metrics,
	})
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.Use(func(c *gin.Context) {
		if caller != nil {
			c.Set(middleware.ContextUserKey, caller)
		}
		c.Next()
	})
	r.GET("/actions", h.Query)
	r.POST("/actions", h.Execute)
	f.router = r
	return f
}

func (f *actionFixture) post(body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *actionFixture) get(query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/actions?"+query, nil))
	return rec
}

func adminCaller() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func studentCaller() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope
}

const contractURL = "https://schemas.cohort-api.dev/action_response.schema.json"

func loadContract(t *testing.T) *jsonschema.Schema {
	t.Helper()
	raw, err := os.ReadFile("testdata/action_response.schema.json")
	require.NoError(t, err)
	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource(contractURL, strings.NewReader(string(raw))))
	return compiler.MustCompile(contractURL)
}

func TestActionReviewApplicationPost(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.post(`{"action":"review_application","applicationId":"app-9","reviewAction":"approve"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, dto.ReviewRequest{ApplicationID: "app-9", ReviewAction: "approve"}, f.workflow.review)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "review_application", envelope.Meta["action"])
	application := envelope.Data["application"].(map[string]interface{})
	assert.Equal(t, "approved", application["status"])
	count, err := testutil.GatherAndCount(f.metrics.Registry(), "actions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestActionErrorsUseTaxonomy(t *testing.T) {
	f := newActionFixture(adminCaller())
	f.workflow.reviewErr = appErrors.Clone(appErrors.ErrCapacityExceeded, "")

	rec := f.post(`{"action":"review_application","applicationId":"app-9","reviewAction":"approve"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Data  interface{}     `json:"data"`
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Data)
	assert.Equal(t, "CAPACITY_EXCEEDED", body.Error.Code)
}

func TestActionPostRejectsBadEnvelopes(t *testing.T) {
	cases := map[string]struct {
		body string
		code string
		msg  string
	}{
		"not json":       {body: `{action:`, code: "VALIDATION_ERROR", msg: "invalid request body format"},
		"array body":     {body: `[1,2]`, code: "VALIDATION_ERROR", msg: "invalid request body format"},
		"empty body":     {body: ``, code: "VALIDATION_ERROR", msg: "invalid request body format"},
		"missing action": {body: `{"programId":"p-1"}`, code: "VALIDATION_ERROR", msg: "missing action parameter"},
		"unknown action": {body: `{"action":"launch_rocket"}`, code: "UNKNOWN_ACTION", msg: "unknown action: launch_rocket"},
		"wrong type":     {body: `{"action":"check_capacity","programId":42}`, code: "VALIDATION_ERROR", msg: "invalid value for programId"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newActionFixture(adminCaller())
			rec := f.post(tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body struct {
				Error appErrors.Error `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.msg, body.Error.Message)
			assert.Empty(t, f.workflow.calls)
		})
	}
}

func TestActionGetParsesQueryValues(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.get("action=get_applications&programId=p-1&status=pending")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, dto.ProgramScope{ProgramID: "p-1", Status: "pending"}, f.workflow.scope)
	envelope := decodeEnvelope(t, rec)
	assert.Len(t, envelope.Data["applications"], 1)
}

func TestActionGetDecodesJSONQueryValues(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.get(`action=get_enrollment&programId=%22p-7%22&studentId=s-2`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, dto.EnrollmentLookup{ProgramID: "p-7", StudentID: "s-2"}, f.workflow.lookup)
	assert.Contains(t, rec.Body.String(), `"enrollment":null`)
}

func TestActionGetRejectsMutations(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.get("action=review_application&applicationId=app-1&reviewAction=approve")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.workflow.calls)
	assert.Contains(t, rec.Body.String(), "review_application requires POST")
}

func TestActionGetRequiresAction(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.get("programId=p-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing action parameter")
}

func TestActionRequiresCaller(t *testing.T) {
	f := newActionFixture(nil)

	rec := f.post(`{"action":"get_programs"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActionGetProgramsReportsCacheHit(t *testing.T) {
	f := newActionFixture(studentCaller())
	f.programs.cacheHit = true

	rec := f.get("action=get_programs&status=open")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "open", f.programs.query.Status)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Len(t, envelope.Data["programs"], 1)
}

func TestActionCreateStatuses(t *testing.T) {
	f := newActionFixture(studentCaller())

	rec := f.post(`{"action":"create_application","programId":"p-1","applicationData":{"motivation":"go"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"motivation":"go"}`, string(f.workflow.application.ApplicationData))

	rec = f.post(`{"action":"create_enrollment","programId":"p-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "p-1", f.workflow.submit.ProgramID)
	assert.Empty(t, f.workflow.submit.StudentID)
}

func TestActionProgramAndUserAdministration(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.post(`{"action":"create_program","title":"Go","maxStudents":2,"mentorIds":["m-1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, f.programs.created.MaxStudents)
	assert.Equal(t, 2, *f.programs.created.MaxStudents)
	assert.Equal(t, []string{"m-1"}, f.programs.created.MentorIDs)

	rec = f.post(`{"action":"update_program","programId":"p-1","title":"Go 2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	program := decodeEnvelope(t, rec).Data["program"].(map[string]interface{})
	assert.Equal(t, "p-1", program["id"])

	rec = f.post(`{"action":"update_user_role","userId":"u-1","role":"mentor"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.RoleUpdate{UserID: "u-1", Role: "mentor"}, f.users.role)

	rec = f.post(`{"action":"approve_user","userId":"u-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeEnvelope(t, rec).Data["profile"].(map[string]interface{})
	assert.Equal(t, true, profile["is_approved"])
}

func TestActionGradeAssessment(t *testing.T) {
	f := newActionFixture(adminCaller())

	rec := f.post(`{"action":"grade_assessment","submissionId":"sub-1","score":0,"feedback":"try again"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sub-1", f.grading.req.SubmissionID)
	require.NotNil(t, f.grading.req.Score)
	assert.Equal(t, 0.0, *f.grading.req.Score)

	rec = f.post(`{"action":"grade_assessment","score":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionCheckCapacity(t *testing.T) {
	f := newActionFixture(studentCaller())

	rec := f.get("action=check_capacity&programId=p-3")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p-3", f.workflow.capacityFor)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Data["available"])
	assert.Equal(t, float64(2), envelope.Data["current"])
	assert.Equal(t, float64(3), envelope.Data["max"])

	rec = f.get("action=check_capacity")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionRegistryCoversEveryAction(t *testing.T) {
	h := NewActionHandler(ActionServices{})
	expected := []string{
		"create_application", "get_applications", "get_my_applications",
		"review_application", "withdraw_application", "create_enrollment",
		"get_enrollments", "get_my_enrollments", "get_enrollment", "update_enrollment",
		"get_programs", "get_my_programs", "get_program", "create_program", "update_program",
		"approve_user", "update_user_role", "check_capacity", "grade_assessment",
	}
	assert.ElementsMatch(t, expected, h.Actions())

	readOnly := map[string]bool{}
	for name, act := range h.actions {
		if act.readOnly {
			readOnly[name] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"get_applications": true, "get_my_applications": true, "get_enrollments": true,
		"get_my_enrollments": true, "get_enrollment": true, "get_programs": true,
		"get_my_programs": true, "get_program": true, "check_capacity": true,
	}, readOnly)
}

func TestActionResponsesMatchContract(t *testing.T) {
	schema := loadContract(t)
	requests := []func(f *actionFixture) *httptest.ResponseRecorder{
		func(f *actionFixture) *httptest.ResponseRecorder { return f.get("action=get_programs") },
		func(f *actionFixture) *httptest.ResponseRecorder { return f.get("action=get_my_enrollments") },
		func(f *actionFixture) *httptest.ResponseRecorder {
			return f.get("action=get_program&programId=missing")
		},
		func(f *actionFixture) *httptest.ResponseRecorder {
			return f.post(`{"action":"withdraw_application","applicationId":"app-1"}`)
		},
		func(f *actionFixture) *httptest.ResponseRecorder {
			return f.post(`{"action":"update_enrollment","enrollmentId":"enr-1","status":"completed"}`)
		},
		func(f *actionFixture) *httptest.ResponseRecorder { return f.post(`{"action":"nope"}`) },
		func(f *actionFixture) *httptest.ResponseRecorder { return f.post(`garbage`) },
	}
	for i, do := range requests {
		f := newActionFixture(studentCaller())
		rec := do(f)
		var doc interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc), "request %d", i)
		assert.NoError(t, schema.Validate(doc), "request %d: %s", i, rec.Body.String())
	}
}
