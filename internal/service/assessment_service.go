package service

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

//go:embed schemas/questions.schema.json
var questionsSchemaJSON []byte

var questionsSchema = mustCompileSchema("https://schemas.cohort-api.dev/questions.schema.json", questionsSchemaJSON)

func mustCompileSchema(name string, raw []byte) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

type assessmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	ListByProgram(ctx context.Context, programID string) ([]models.Assessment, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, assessment *models.Assessment) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, assessment *models.Assessment) error
	Delete(ctx context.Context, id string) error
	UpsertAnswerWithTx(ctx context.Context, tx *sqlx.Tx, answer *models.AssessmentAnswer) error
	FindAnswer(ctx context.Context, assessmentID string) (*models.AssessmentAnswer, error)
}

type assessmentProgramReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	IsMentor(ctx context.Context, programID, mentorID string) (bool, error)
}

type membershipReader interface {
	FindByProgramAndStudent(ctx context.Context, programID, studentID string) (*models.EnrollmentDetail, error)
}

// AssessmentService manages assessments, their question lists and answer keys.
type AssessmentService struct {
	repo        assessmentRepository
	programs    assessmentProgramReader
	memberships membershipReader
	tx          txProvider
	effects     sideEffects
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssessmentService constructs AssessmentService.
func NewAssessmentService(repo assessmentRepository, programs assessmentProgramReader, memberships membershipReader, tx txProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		repo:        repo,
		programs:    programs,
		memberships: memberships,
		tx:          tx,
		effects:     newSideEffects(audit, nil, logger),
		validator:   validate,
		logger:      logger,
	}
}

// ListByProgram returns the assessments of a program for staff and enrolled students.
func (s *AssessmentService) ListByProgram(ctx context.Context, caller *models.JWTClaims, programID string) ([]models.Assessment, error) {
	if _, err := s.programs.FindByID(ctx, programID); err != nil {
		return nil, lookupError(err, "program")
	}
	if err := s.authorizeView(ctx, caller, programID); err != nil {
		return nil, err
	}
	assessments, err := s.repo.ListByProgram(ctx, programID)
	if err != nil {
		return nil, internalError(err, "failed to list assessments")
	}
	return assessments, nil
}

// Get returns one assessment.
func (s *AssessmentService) Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.Assessment, error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err := s.authorizeView(ctx, caller, assessment.ProgramID); err != nil {
		return nil, err
	}
	return assessment, nil
}

// Answers returns the answer key. Staff only.
func (s *AssessmentService) Answers(ctx context.Context, caller *models.JWTClaims, id string) (*models.AssessmentAnswer, error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, assessment.ProgramID); err != nil {
		return nil, err
	}
	answer, err := s.repo.FindAnswer(ctx, id)
	if err != nil {
		return nil, lookupError(err, "answer key")
	}
	return answer, nil
}

// Create stores an assessment and its answer key in one transaction.
func (s *AssessmentService) Create(ctx context.Context, caller *models.JWTClaims, programID string, req dto.AssessmentRequest) (_ *models.Assessment, err error) {
	if _, err := s.programs.FindByID(ctx, programID); err != nil {
		return nil, lookupError(err, "program")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, programID); err != nil {
		return nil, err
	}
	assessment := &models.Assessment{ProgramID: programID, CreatedBy: &caller.UserID}
	if err := s.apply(assessment, req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "assessment.create")
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

	if err = s.repo.CreateWithTx(ctx, tx, assessment); err != nil {
		return nil, internalError(err, "failed to create assessment")
	}
	if err = s.saveAnswers(ctx, tx, assessment.ID, req); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit assessment")
	}

	s.effects.record(ctx, auditEntry(caller, models.AuditAssessmentCreate, "assessment", assessment.ID, map[string]interface{}{
		"program_id": programID, "title": assessment.Title, "questions": len(assessment.Questions),
	}))
	return assessment, nil
}

// Update replaces an assessment. A nil AnswerKey leaves the stored key in place.
func (s *AssessmentService) Update(ctx context.Context, caller *models.JWTClaims, id string, req dto.AssessmentRequest) (_ *models.Assessment, err error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, assessment.ProgramID); err != nil {
		return nil, err
	}
	if err := s.apply(assessment, req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "assessment.update")
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

	if err = s.repo.UpdateWithTx(ctx, tx, assessment); err != nil {
		return nil, lookupError(err, "assessment")
	}
	if err = s.saveAnswers(ctx, tx, assessment.ID, req); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit assessment")
	}

	s.effects.record(ctx, auditEntry(caller, models.AuditAssessmentUpdate, "assessment", assessment.ID, map[string]interface{}{
		"title": assessment.Title, "questions": len(assessment.Questions),
	}))
	return assessment, nil
}

// Delete removes an assessment together with its answers and submissions.
func (s *AssessmentService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "assessment")
	}
	if err := authorizeProgramStaff(ctx, s.programs, caller, assessment.ProgramID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "assessment")
	}
	s.effects.record(ctx, auditEntry(caller, models.AuditAssessmentDelete, "assessment", id, nil))
	return nil
}

// apply validates req and copies it onto assessment.
func (s *AssessmentService) apply(assessment *models.Assessment, req dto.AssessmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid assessment payload")
	}
	title := sanitizeText(req.Title)
	if title == "" {
		return appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	questions := normalizeQuestions(req.Questions)
	if err := ValidateQuestions(questions); err != nil {
		return err
	}
	if req.AnswerKey != nil {
		if err := ValidateAnswerKey(questions, req.AnswerKey); err != nil {
			return err
		}
	}
	description, err := models.EncodeContent(sanitizeText(req.Instructions), questions)
	if err != nil {
		return internalError(err, "failed to encode assessment content")
	}

	assessment.Title = title
	assessment.Type = models.AssessmentType(req.Type)
	assessment.DueDate = req.DueDate
	assessment.MaxScore = req.MaxScore
	if assessment.MaxScore <= 0 {
		assessment.MaxScore = 100
	}
	assessment.Description = description
	assessment.DecodeContent()
	return nil
}

// saveAnswers upserts the answer key. Notes without a key keep the stored key.
func (s *AssessmentService) saveAnswers(ctx context.Context, tx *sqlx.Tx, assessmentID string, req dto.AssessmentRequest) error {
	if req.AnswerKey == nil && req.GradingNotes == "" {
		return nil
	}
	key := req.AnswerKey
	if key == nil {
		existing, err := s.repo.FindAnswer(ctx, assessmentID)
		switch {
		case err == nil:
			key = existing.Answers
		case !errors.Is(err, sql.ErrNoRows):
			return internalError(err, "failed to load answer key")
		}
	}
	encoded, err := key.Encode()
	if err != nil {
		return internalError(err, "failed to encode answer key")
	}
	answer := &models.AssessmentAnswer{
		AssessmentID:  assessmentID,
		CorrectAnswer: encoded,
		GradingNotes:  optionalText(req.GradingNotes),
	}
	if err := s.repo.UpsertAnswerWithTx(ctx, tx, answer); err != nil {
		return internalError(err, "failed to save answer key")
	}
	return nil
}

// authorizeView allows staff of the program and students actively enrolled in it.
func (s *AssessmentService) authorizeView(ctx context.Context, caller *models.JWTClaims, programID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if caller.Role != models.RoleStudent {
		return authorizeProgramStaff(ctx, s.programs, caller, programID)
	}
	return requireMembership(ctx, s.memberships, caller.UserID, programID)
}

func requireMembership(ctx context.Context, memberships membershipReader, studentID, programID string) error {
	enrollment, err := memberships.FindByProgramAndStudent(ctx, programID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this program")
		}
		return internalError(err, "failed to check enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this program")
	}
	return nil
}

func normalizeQuestions(in []models.Question) []models.Question {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Question, len(in))
	for i, q := range in {
		q.Question = sanitizeText(q.Question)
		options := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, sanitizeText(opt))
		}
		q.Options = options
		if q.Type != models.QuestionMultipleChoice {
			q.Options = nil
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		out[i] = q
	}
	return out
}

// ValidateQuestions checks a question list against the questions schema.
func ValidateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return internalError(err, "failed to encode questions")
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return internalError(err, "failed to decode questions")
	}
	if err := questionsSchema.Validate(doc); err != nil {
		return validationError(err, "invalid questions: "+schemaMessage(err))
	}
	return nil
}

// ValidateAnswerKey checks that every key references an existing question
// and that objective answers are admissible for the question.
func ValidateAnswerKey(questions []models.Question, key models.AnswerKey) error {
	for _, idx := range key.Indices() {
		if idx < 0 || idx >= len(questions) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("answer key references unknown question %d", idx))
		}
		answer := strings.TrimSpace(key[idx])
		q := questions[idx]
		switch q.Type {
		case models.QuestionTrueFalse:
			if a := strings.ToLower(answer); a != "true" && a != "false" {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d expects true or false", idx))
			}
		case models.QuestionMultipleChoice:
			if !containsFold(q.Options, answer) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d answer is not one of its options", idx))
			}
		}
	}
	return nil
}

func containsFold(options []string, value string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), value) {
			return true
		}
	}
	return false
}

// schemaMessage flattens the first leaf error of a schema failure.
func schemaMessage(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	location := verr.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, verr.Message)
}
