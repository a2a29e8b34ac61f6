package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/repository"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/events"
)

var tracer = otel.Tracer("github.com/noah-isme/cohort-api/internal/service")

var textPolicy = bluemonday.StrictPolicy()

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type mentorChecker interface {
	IsMentor(ctx context.Context, programID, mentorID string) (bool, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// sanitizeText strips markup from free text and trims it.
func sanitizeText(raw string) string {
	return strings.TrimSpace(textPolicy.Sanitize(raw))
}

func optionalText(raw string) *string {
	clean := sanitizeText(raw)
	if clean == "" {
		return nil
	}
	return &clean
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// lookupError maps sql.ErrNoRows to NotFound and anything else to Internal.
func lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return internalError(err, "failed to load "+what)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, repository.ErrUniqueViolation)
}

func requireCaller(caller *models.JWTClaims) error {
	if caller == nil || caller.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// authorizeProgramStaff allows admins and mentors assigned to the program.
func authorizeProgramStaff(ctx context.Context, mentors mentorChecker, caller *models.JWTClaims, programID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if caller.IsAdmin() {
		return nil
	}
	if caller.Role != models.RoleMentor {
		return appErrors.ErrForbidden
	}
	ok, err := mentors.IsMentor(ctx, programID, caller.UserID)
	if err != nil {
		return internalError(err, "failed to check mentor assignment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not assigned to this program")
	}
	return nil
}

func auditEntry(caller *models.JWTClaims, action, resource, resourceID string, values interface{}) models.AuditLog {
	entry := models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		CreatedAt: time.Now().UTC(),
	}
	if caller != nil && caller.UserID != "" {
		id := caller.UserID
		entry.UserID = &id
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	return entry
}

// sideEffects bundles the post-commit work shared by mutating services.
type sideEffects struct {
	audit     auditRecorder
	publisher events.Publisher
	logger    *zap.Logger
}

func newSideEffects(audit auditRecorder, publisher events.Publisher, logger *zap.Logger) sideEffects {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return sideEffects{audit: audit, publisher: publisher, logger: logger}
}

func (s sideEffects) record(ctx context.Context, entry models.AuditLog) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}

func (s sideEffects) publish(ctx context.Context, eventType string, caller *models.JWTClaims, data interface{}) {
	actor := ""
	if caller != nil {
		actor = caller.UserID
	}
	if err := s.publisher.Publish(ctx, eventType, actor, data); err != nil {
		s.logger.Warn("event publish failed", zap.String("event", eventType), zap.Error(err))
	}
}

// finishSpan records err on the span before ending it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErrors.FromError(err).Code)
	}
	span.End()
}
