package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/events"
)

type submissionRepository interface {
	HasFinal(ctx context.Context, assessmentID, studentID string) (bool, error)
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindLatestForStudent(ctx context.Context, assessmentID, studentID string) (*models.Submission, error)
	ListFinal(ctx context.Context, assessmentID string) ([]models.SubmissionDetail, error)
	Grade(ctx context.Context, submission *models.Submission) error
}

type assessmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	FindAnswer(ctx context.Context, assessmentID string) (*models.AssessmentAnswer, error)
}

// SubmissionService gates submissions to one final attempt and handles grading.
type SubmissionService struct {
	repo        submissionRepository
	assessments assessmentReader
	mentors     mentorChecker
	memberships membershipReader
	effects     sideEffects
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, assessments assessmentReader, mentors mentorChecker, memberships membershipReader, audit auditRecorder, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assessments: assessments,
		mentors:     mentors,
		memberships: memberships,
		effects:     newSideEffects(audit, publisher, logger),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit records a student's attempt. Drafts are always new rows; once a
// final submission exists every further attempt fails with AlreadySubmitted.
func (s *SubmissionService) Submit(ctx context.Context, caller *models.JWTClaims, assessmentID string, req dto.SubmissionRequest) (*models.Submission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit assessments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	status := models.SubmissionStatus(req.Status)
	if status == "" {
		status = models.SubmissionSubmitted
	}
	data := types.JSONText(`{}`)
	if len(req.SubmissionData) > 0 {
		var doc map[string]interface{}
		if err := json.Unmarshal(req.SubmissionData, &doc); err != nil || doc == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "submission_data must be an object")
		}
		data = types.JSONText(req.SubmissionData)
	}

	assessment, err := s.assessments.FindByID(ctx, assessmentID)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err := requireMembership(ctx, s.memberships, caller.UserID, assessment.ProgramID); err != nil {
		return nil, err
	}
	submitted, err := s.repo.HasFinal(ctx, assessmentID, caller.UserID)
	if err != nil {
		return nil, internalError(err, "failed to check submissions")
	}
	if submitted {
		return nil, appErrors.ErrAlreadySubmitted
	}

	submission := &models.Submission{
		AssessmentID:   assessmentID,
		StudentID:      caller.UserID,
		SubmissionData: data,
		Status:         status,
	}
	if status == models.SubmissionSubmitted {
		now := s.now().UTC()
		submission.SubmittedAt = &now
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrAlreadySubmitted
		}
		return nil, internalError(err, "failed to save submission")
	}
	s.logger.Info("assessment submission saved",
		zap.String("submission_id", submission.ID),
		zap.String("status", string(status)),
	)
	return submission, nil
}

// Mine returns the caller's final submission, else the newest draft, else nil.
func (s *SubmissionService) Mine(ctx context.Context, caller *models.JWTClaims, assessmentID string) (*models.Submission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	submission, err := s.repo.FindLatestForStudent(ctx, assessmentID, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load submission")
	}
	return submission, nil
}

// List returns final submissions for staff, each with a suggested score
// computed from the answer key where one applies.
func (s *SubmissionService) List(ctx context.Context, caller *models.JWTClaims, assessmentID string) ([]models.SubmissionDetail, error) {
	assessment, err := s.assessments.FindByID(ctx, assessmentID)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err := authorizeProgramStaff(ctx, s.mentors, caller, assessment.ProgramID); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListFinal(ctx, assessmentID)
	if err != nil {
		return nil, internalError(err, "failed to list submissions")
	}
	answer, err := s.assessments.FindAnswer(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submissions, nil
		}
		s.logger.Warn("answer key unavailable", zap.String("assessment_id", assessmentID), zap.Error(err))
		return submissions, nil
	}
	for i := range submissions {
		submissions[i].SuggestedScore = SuggestScore(assessment, answer.Answers, submissions[i].QuizAnswers())
	}
	return submissions, nil
}

// Grade sets score and feedback and marks the submission graded. Grading
// again overwrites the previous result.
func (s *SubmissionService) Grade(ctx context.Context, caller *models.JWTClaims, req dto.GradeRequest) (_ *models.Submission, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req.SubmissionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submissionId is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "score is required and must not be negative")
	}

	ctx, span := tracer.Start(ctx, "submission.grade", trace.WithAttributes(attribute.String("submission.id", req.SubmissionID)))
	defer func() { finishSpan(span, err) }()

	submission, err := s.repo.FindByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, lookupError(err, "submission")
	}
	assessment, err := s.assessments.FindByID(ctx, submission.AssessmentID)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err = authorizeProgramStaff(ctx, s.mentors, caller, assessment.ProgramID); err != nil {
		return nil, err
	}
	if !submission.Status.Final() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "drafts cannot be graded")
	}
	score := *req.Score
	if score > float64(assessment.MaxScore) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score must be between 0 and %d", assessment.MaxScore))
	}

	now := s.now().UTC()
	submission.Score = &score
	submission.Feedback = optionalText(req.Feedback)
	submission.GradedBy = &caller.UserID
	submission.GradedAt = &now
	if err = s.repo.Grade(ctx, submission); err != nil {
		return nil, lookupError(err, "submission")
	}

	s.effects.record(ctx, auditEntry(caller, models.AuditSubmissionGrade, "submission", submission.ID, map[string]interface{}{
		"score": score, "assessment_id": submission.AssessmentID,
	}))
	s.effects.publish(ctx, events.SubmissionGraded, caller, submission)
	return submission, nil
}

// SuggestScore compares objective answers with the key and scales the
// earned points to the assessment's max score. It returns nil when no
// objective question has a key entry.
func SuggestScore(assessment *models.Assessment, key models.AnswerKey, answers map[int]string) *float64 {
	if assessment == nil || len(key) == 0 {
		return nil
	}
	var total, earned float64
	for idx, q := range assessment.Questions {
		expected, ok := key[idx]
		if !ok || !q.Type.Objective() {
			continue
		}
		total += q.Points
		if strings.EqualFold(strings.TrimSpace(answers[idx]), strings.TrimSpace(expected)) {
			earned += q.Points
		}
	}
	if total == 0 {
		return nil
	}
	score := math.Round(earned/total*float64(assessment.MaxScore)*100) / 100
	return &score
}
