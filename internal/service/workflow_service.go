package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/events"
	"github.com/noah-isme/cohort-api/pkg/export"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error)
	Exists(ctx context.Context, programID, studentID string) (bool, error)
	Create(ctx context.Context, app *models.Application) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error)
	UpdateReviewWithTx(ctx context.Context, tx *sqlx.Tx, app *models.Application) error
	Withdraw(ctx context.Context, id string, at time.Time) (bool, error)
}

type enrollmentRepository interface {
	Exists(ctx context.Context, programID, studentID string) (bool, error)
	ExistsWithTx(ctx context.Context, tx *sqlx.Tx, programID, studentID string) (bool, error)
	Count(ctx context.Context, programID string) (int, error)
	CountWithTx(ctx context.Context, tx *sqlx.Tx, programID string) (int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByProgramAndStudent(ctx context.Context, programID, studentID string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) error
}

type workflowProgramReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Program, error)
	IsMentor(ctx context.Context, programID, mentorID string) (bool, error)
	ProgramIDsForMentor(ctx context.Context, mentorID string) ([]string, error)
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// RosterExport is a rendered program roster.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// WorkflowDeps groups the optional collaborators of WorkflowService.
type WorkflowDeps struct {
	Catalog   catalogInvalidator
	Audit     auditRecorder
	Publisher events.Publisher
	Metrics   *MetricsService
}

// WorkflowService mediates applications and enrollments, enforcing the
// single-membership and capacity rules.
type WorkflowService struct {
	applications applicationRepository
	enrollments  enrollmentRepository
	programs     workflowProgramReader
	tx           txProvider
	catalog      catalogInvalidator
	metrics      *MetricsService
	effects      sideEffects
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(applications applicationRepository, enrollments enrollmentRepository, programs workflowProgramReader, tx txProvider, deps WorkflowDeps, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		applications: applications,
		enrollments:  enrollments,
		programs:     programs,
		tx:           tx,
		catalog:      deps.Catalog,
		metrics:      deps.Metrics,
		effects:      newSideEffects(deps.Audit, deps.Publisher, logger),
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// SubmitRequest handles create_enrollment. Admins enroll the student
// directly behind a capacity check; students file a pending application,
// which is capacity-blind.
func (s *WorkflowService) SubmitRequest(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentRequest) (*models.WorkflowResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "programId is required")
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = caller.UserID
	}

	switch caller.Role {
	case models.RoleAdmin:
		enrollment, err := s.enrollDirect(ctx, caller, req.ProgramID, studentID)
		if err != nil {
			return nil, err
		}
		return &models.WorkflowResult{Enrollment: enrollment}, nil
	case models.RoleStudent:
		if studentID != caller.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only apply for themselves")
		}
		app, err := s.apply(ctx, caller, req.ProgramID, nil)
		if err != nil {
			return nil, err
		}
		return &models.WorkflowResult{Application: app}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students and admins can request enrollment")
	}
}

// CreateApplication files an application carrying the student's answers.
func (s *WorkflowService) CreateApplication(ctx context.Context, caller *models.JWTClaims, req dto.ApplicationRequest) (*models.Application, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can apply")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "programId is required")
	}
	var data map[string]interface{}
	if len(req.ApplicationData) == 0 || json.Unmarshal(req.ApplicationData, &data) != nil || data == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "applicationData must be an object")
	}
	return s.apply(ctx, caller, req.ProgramID, types.JSONText(req.ApplicationData))
}

func (s *WorkflowService) apply(ctx context.Context, caller *models.JWTClaims, programID string, data types.JSONText) (_ *models.Application, err error) {
	ctx, span := tracer.Start(ctx, "workflow.apply", trace.WithAttributes(attribute.String("program.id", programID)))
	defer func() { finishSpan(span, err) }()

	_, err = s.programs.FindByID(ctx, programID)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	studentID := caller.UserID
	applied, err := s.applications.Exists(ctx, programID, studentID)
	if err != nil {
		return nil, internalError(err, "failed to check applications")
	}
	if applied {
		return nil, appErrors.ErrDuplicateApplication
	}
	enrolled, err := s.enrollments.Exists(ctx, programID, studentID)
	if err != nil {
		return nil, internalError(err, "failed to check enrollments")
	}
	if enrolled {
		return nil, appErrors.ErrDuplicateEnrollment
	}

	app := &models.Application{
		ProgramID:       programID,
		StudentID:       studentID,
		Status:          models.ApplicationStatusPending,
		ApplicationData: data,
		SubmittedAt:     s.now().UTC(),
	}
	if err = s.applications.Create(ctx, app); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateApplication
		}
		return nil, internalError(err, "failed to create application")
	}

	s.effects.record(ctx, auditEntry(caller, models.AuditApplicationCreate, "application", app.ID, app))
	s.effects.publish(ctx, events.ApplicationSubmitted, caller, app)
	s.logger.Info("application submitted", zap.String("application_id", app.ID), zap.String("program_id", programID))
	return app, nil
}

// enrollDirect inserts an active enrollment while holding the program row lock.
func (s *WorkflowService) enrollDirect(ctx context.Context, caller *models.JWTClaims, programID, studentID string) (_ *models.Enrollment, err error) {
	ctx, span := tracer.Start(ctx, "workflow.enroll_direct", trace.WithAttributes(
		attribute.String("program.id", programID),
		attribute.String("student.id", studentID),
	))
	defer func() { finishSpan(span, err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	program, err := s.programs.FindByIDForUpdate(ctx, tx, programID)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	enrolled, err := s.enrollments.ExistsWithTx(ctx, tx, programID, studentID)
	if err != nil {
		return nil, internalError(err, "failed to check enrollments")
	}
	if enrolled {
		return nil, appErrors.ErrDuplicateEnrollment
	}
	if err = s.ensureSeat(ctx, tx, program); err != nil {
		return nil, err
	}
	enrollment := s.newEnrollment(programID, studentID)
	if err = s.enrollments.CreateWithTx(ctx, tx, enrollment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateEnrollment
		}
		return nil, internalError(err, "failed to create enrollment")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit enrollment")
	}

	s.afterEnrollment(ctx, caller, enrollment, "direct")
	return enrollment, nil
}

// Review approves or rejects a pending application. Approval re-checks
// capacity and creates the enrollment in the same transaction; a full
// program rolls everything back so the application stays pending.
func (s *WorkflowService) Review(ctx context.Context, caller *models.JWTClaims, req dto.ReviewRequest) (_ *models.WorkflowResult, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != models.RoleAdmin && caller.Role != models.RoleMentor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and mentors can review applications")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "applicationId and reviewAction (approve|reject) are required")
	}
	decision := models.ReviewDecision(req.ReviewAction)

	ctx, span := tracer.Start(ctx, "workflow.review", trace.WithAttributes(
		attribute.String("application.id", req.ApplicationID),
		attribute.String("review.decision", string(decision)),
	))
	defer func() { finishSpan(span, err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err := s.applications.FindByIDForUpdate(ctx, tx, req.ApplicationID)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if err = authorizeProgramStaff(ctx, s.programs, caller, app.ProgramID); err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application is already %s", app.Status))
	}
	program, err := s.programs.FindByIDForUpdate(ctx, tx, app.ProgramID)
	if err != nil {
		return nil, lookupError(err, "program")
	}

	now := s.now().UTC()
	app.ReviewedAt = &now
	app.ReviewedBy = &caller.UserID
	result := &models.WorkflowResult{Application: app}

	if decision == models.ReviewReject {
		app.Status = models.ApplicationStatusRejected
		if err = s.applications.UpdateReviewWithTx(ctx, tx, app); err != nil {
			return nil, internalError(err, "failed to update application")
		}
	} else {
		app.Status = models.ApplicationStatusApproved
		enrolled, err := s.enrollments.ExistsWithTx(ctx, tx, app.ProgramID, app.StudentID)
		if err != nil {
			return nil, internalError(err, "failed to check enrollments")
		}
		if !enrolled {
			if err := s.ensureSeat(ctx, tx, program); err != nil {
				return nil, err
			}
		}
		if err := s.applications.UpdateReviewWithTx(ctx, tx, app); err != nil {
			return nil, internalError(err, "failed to update application")
		}
		if !enrolled {
			enrollment := s.newEnrollment(app.ProgramID, app.StudentID)
			if err := s.enrollments.CreateWithTx(ctx, tx, enrollment); err != nil {
				if isUniqueViolation(err) {
					return nil, appErrors.ErrDuplicateEnrollment
				}
				return nil, internalError(err, "failed to create enrollment")
			}
			result.Enrollment = enrollment
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit review")
	}

	s.metrics.RecordReview(string(decision))
	s.effects.record(ctx, auditEntry(caller, models.AuditApplicationReview, "application", app.ID, map[string]interface{}{
		"status": app.Status, "reviewed_by": caller.UserID,
	}))
	s.effects.publish(ctx, events.ApplicationReviewed, caller, app)
	if result.Enrollment != nil {
		s.afterEnrollment(ctx, caller, result.Enrollment, "approval")
	}
	s.logger.Info("application reviewed",
		zap.String("application_id", app.ID),
		zap.String("decision", string(decision)),
		zap.Bool("enrolled", result.Enrollment != nil),
	)
	return result, nil
}

// Withdraw lets a student retract their own pending application.
func (s *WorkflowService) Withdraw(ctx context.Context, caller *models.JWTClaims, req dto.ApplicationRef) (*models.Application, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "applicationId is required")
	}
	app, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if app.StudentID != caller.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the applicant can withdraw")
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application is already %s", app.Status))
	}
	now := s.now().UTC()
	ok, err := s.applications.Withdraw(ctx, app.ID, now)
	if err != nil {
		return nil, internalError(err, "failed to withdraw application")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is no longer pending")
	}
	app.Status = models.ApplicationStatusWithdrawn
	app.UpdatedAt = now

	s.effects.record(ctx, auditEntry(caller, models.AuditApplicationWithdraw, "application", app.ID, nil))
	s.effects.publish(ctx, events.ApplicationWithdrawn, caller, app)
	return app, nil
}

// CheckCapacity reports seat availability for a program.
func (s *WorkflowService) CheckCapacity(ctx context.Context, programID string) (*models.Capacity, error) {
	if programID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "programId is required")
	}
	program, err := s.programs.FindByID(ctx, programID)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	current, err := s.enrollments.Count(ctx, programID)
	if err != nil {
		return nil, internalError(err, "failed to count enrollments")
	}
	capacity := models.NewCapacity(current, program.Limit())
	return &capacity, nil
}

// ListApplications returns applications visible to staff. Mentors only see
// their assigned programs.
func (s *WorkflowService) ListApplications(ctx context.Context, caller *models.JWTClaims, scope dto.ProgramScope) ([]models.ApplicationDetail, error) {
	programIDs, err := s.staffScope(ctx, caller)
	if err != nil {
		return nil, err
	}
	filter := models.ApplicationFilter{ProgramIDs: programIDs, ProgramID: scope.ProgramID}
	if scope.Status != "" {
		status := models.ApplicationStatus(scope.Status)
		switch status {
		case models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected, models.ApplicationStatusWithdrawn:
			filter.Status = status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid application status")
		}
	}
	apps, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list applications")
	}
	return apps, nil
}

// ListMyApplications returns the calling student's applications.
func (s *WorkflowService) ListMyApplications(ctx context.Context, caller *models.JWTClaims) ([]models.ApplicationDetail, error) {
	if err := s.requireStudent(caller); err != nil {
		return nil, err
	}
	apps, err := s.applications.List(ctx, models.ApplicationFilter{StudentID: caller.UserID})
	if err != nil {
		return nil, internalError(err, "failed to list applications")
	}
	return apps, nil
}

// ListEnrollments returns enrollments visible to staff.
func (s *WorkflowService) ListEnrollments(ctx context.Context, caller *models.JWTClaims, scope dto.ProgramScope) ([]models.EnrollmentDetail, error) {
	programIDs, err := s.staffScope(ctx, caller)
	if err != nil {
		return nil, err
	}
	filter := models.EnrollmentFilter{ProgramIDs: programIDs, ProgramID: scope.ProgramID}
	if scope.Status != "" {
		status := models.EnrollmentStatus(scope.Status)
		switch status {
		case models.EnrollmentStatusActive, models.EnrollmentStatusCompleted, models.EnrollmentStatusDropped:
			filter.Status = status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
		}
	}
	enrollments, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListMyEnrollments returns the calling student's enrollments.
func (s *WorkflowService) ListMyEnrollments(ctx context.Context, caller *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	if err := s.requireStudent(caller); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: caller.UserID})
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, nil
}

// GetEnrollment looks up the enrollment of a student in a program. A
// missing enrollment yields nil without error.
func (s *WorkflowService) GetEnrollment(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentLookup) (*models.EnrollmentDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "programId is required")
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = caller.UserID
	}
	if studentID != caller.UserID {
		if caller.Role == models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own enrollment")
		}
		if err := authorizeProgramStaff(ctx, s.programs, caller, req.ProgramID); err != nil {
			return nil, err
		}
	}
	enrollment, err := s.enrollments.FindByProgramAndStudent(ctx, req.ProgramID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// UpdateEnrollment completes or drops an active enrollment. Dropping frees the seat.
func (s *WorkflowService) UpdateEnrollment(ctx context.Context, caller *models.JWTClaims, req dto.EnrollmentUpdate) (*models.Enrollment, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "enrollmentId and status (completed|dropped) are required")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, enrollment.ProgramID); err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment is already %s", enrollment.Status))
	}
	status := models.EnrollmentStatus(req.Status)
	var completedAt *time.Time
	if status == models.EnrollmentStatusCompleted {
		now := s.now().UTC()
		completedAt = &now
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, status, completedAt); err != nil {
		return nil, internalError(err, "failed to update enrollment")
	}
	enrollment.Status = status
	enrollment.CompletedAt = completedAt

	s.invalidateCatalog(ctx)
	s.effects.record(ctx, auditEntry(caller, models.AuditEnrollmentUpdate, "enrollment", enrollment.ID, map[string]interface{}{"status": status}))
	s.effects.publish(ctx, events.EnrollmentUpdated, caller, enrollment)
	return enrollment, nil
}

// ExportRoster renders the enrollments of a program as CSV or PDF.
func (s *WorkflowService) ExportRoster(ctx context.Context, caller *models.JWTClaims, programID, format string) (*RosterExport, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, validationError(err, err.Error())
	}
	program, err := s.programs.FindByID(ctx, programID)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, programID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.List(ctx, models.EnrollmentFilter{ProgramID: programID})
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}

	now := s.now().UTC()
	table := export.Table{
		Title:       program.Title + " roster",
		Columns:     []string{"Student", "Email", "Status", "Enrolled", "Completed"},
		GeneratedAt: now,
	}
	for _, e := range enrollments {
		completed := ""
		if e.CompletedAt != nil {
			completed = e.CompletedAt.Format("2006-01-02")
		}
		table.AddRow(e.StudentName, e.StudentEmail, string(e.Status), e.EnrolledAt.Format("2006-01-02"), completed)
	}
	body, err := export.Render(f, table)
	if err != nil {
		return nil, internalError(err, "failed to render roster")
	}
	return &RosterExport{
		Filename:    export.Filename("roster", f, now),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

// ensureSeat fails with CapacityExceeded when the locked program is full.
func (s *WorkflowService) ensureSeat(ctx context.Context, tx *sqlx.Tx, program *models.Program) error {
	current, err := s.enrollments.CountWithTx(ctx, tx, program.ID)
	if err != nil {
		return internalError(err, "failed to count enrollments")
	}
	if !models.NewCapacity(current, program.Limit()).Available {
		s.metrics.RecordCapacityRejection()
		s.logger.Info("enrollment refused, program full",
			zap.String("program_id", program.ID),
			zap.Int("current", current),
			zap.Int("max", program.Limit()),
		)
		return appErrors.ErrCapacityExceeded
	}
	return nil
}

func (s *WorkflowService) newEnrollment(programID, studentID string) *models.Enrollment {
	return &models.Enrollment{
		ProgramID:  programID,
		StudentID:  studentID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: s.now().UTC(),
	}
}

func (s *WorkflowService) afterEnrollment(ctx context.Context, caller *models.JWTClaims, enrollment *models.Enrollment, path string) {
	s.invalidateCatalog(ctx)
	s.metrics.RecordEnrollment(path)
	s.effects.record(ctx, auditEntry(caller, models.AuditEnrollmentCreate, "enrollment", enrollment.ID, enrollment))
	s.effects.publish(ctx, events.EnrollmentCreated, caller, enrollment)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("program_id", enrollment.ProgramID),
		zap.String("path", path),
	)
}

func (s *WorkflowService) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
}

// staffScope returns nil for admins (no restriction) and the assigned
// program ids for mentors.
func (s *WorkflowService) staffScope(ctx context.Context, caller *models.JWTClaims) ([]string, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	switch caller.Role {
	case models.RoleAdmin:
		return nil, nil
	case models.RoleMentor:
		ids, err := s.programs.ProgramIDsForMentor(ctx, caller.UserID)
		if err != nil {
			return nil, internalError(err, "failed to load mentor programs")
		}
		return ids, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and mentors can list this resource")
	}
}

func (s *WorkflowService) requireStudent(caller *models.JWTClaims) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if caller.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students have their own applications and enrollments")
	}
	return nil
}
