package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/dto"
	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/repository"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/events"
)

type submissionRepoFake struct {
	rows  []*models.Submission
	names map[string]string
}

func (f *submissionRepoFake) final(assessmentID, studentID string) *models.Submission {
	for _, s := range f.rows {
		if s.AssessmentID == assessmentID && s.StudentID == studentID && s.Status.Final() {
			return s
		}
	}
	return nil
}

func (f *submissionRepoFake) HasFinal(_ context.Context, assessmentID, studentID string) (bool, error) {
	return f.final(assessmentID, studentID) != nil, nil
}

func (f *submissionRepoFake) Create(_ context.Context, submission *models.Submission) error {
	if submission.Status.Final() && f.final(submission.AssessmentID, submission.StudentID) != nil {
		return fmt.Errorf("create submission (submissions_one_final): %w", repository.ErrUniqueViolation)
	}
	submission.ID = fmt.Sprintf("sub-%d", len(f.rows)+1)
	cp := *submission
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *submissionRepoFake) FindByID(_ context.Context, id string) (*models.Submission, error) {
	for _, s := range f.rows {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *submissionRepoFake) FindLatestForStudent(_ context.Context, assessmentID, studentID string) (*models.Submission, error) {
	if s := f.final(assessmentID, studentID); s != nil {
		cp := *s
		return &cp, nil
	}
	for i := len(f.rows) - 1; i >= 0; i-- {
		s := f.rows[i]
		if s.AssessmentID == assessmentID && s.StudentID == studentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *submissionRepoFake) ListFinal(_ context.Context, assessmentID string) ([]models.SubmissionDetail, error) {
	out := []models.SubmissionDetail{}
	for _, s := range f.rows {
		if s.AssessmentID == assessmentID && s.Status.Final() {
			out = append(out, models.SubmissionDetail{Submission: *s, StudentName: f.names[s.StudentID]})
		}
	}
	return out, nil
}

func (f *submissionRepoFake) Grade(_ context.Context, submission *models.Submission) error {
	for _, s := range f.rows {
		if s.ID == submission.ID {
			s.Score = submission.Score
			s.Feedback = submission.Feedback
			s.GradedBy = submission.GradedBy
			s.GradedAt = submission.GradedAt
			s.Status = models.SubmissionGraded
			submission.Status = models.SubmissionGraded
			return nil
		}
	}
	return sql.ErrNoRows
}

type submissionFixture struct {
	svc       *SubmissionService
	repo      *submissionRepoFake
	audit     *auditRecorderStub
	publisher *publisherStub
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	assessments := newAssessmentRepoFake(models.Assessment{ID: "asm-1", ProgramID: "p-1", Title: "Quiz", Type: models.AssessmentQuiz, MaxScore: 10})
	content, err := models.EncodeContent("", normalizeQuestions(quizQuestions()))
	require.NoError(t, err)
	assessments.assessments["asm-1"].Description = content
	assessments.answers["asm-1"] = &models.AssessmentAnswer{AssessmentID: "asm-1", CorrectAnswer: `{"0":"Paris","1":"true"}`}

	memberships := newEnrollmentRepoFake(
		models.Enrollment{ID: "e-1", ProgramID: "p-1", StudentID: "student-1", Status: models.EnrollmentStatusActive},
		models.Enrollment{ID: "e-2", ProgramID: "p-1", StudentID: "student-2", Status: models.EnrollmentStatusActive},
	)
	f := &submissionFixture{
		repo:      &submissionRepoFake{names: map[string]string{}},
		audit:     &auditRecorderStub{},
		publisher: &publisherStub{},
	}
	f.svc = NewSubmissionService(f.repo, assessments, mentorSet{"p-1/mentor-1": true}, memberships, f.audit, f.publisher, nil, nil)
	return f
}

func scorePtr(v float64) *float64 { return &v }

func TestSubmitOnlyOnce(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{SubmissionData: json.RawMessage(`{"answers":{"0":"Paris"}}`)})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, first.Status)
	assert.NotNil(t, first.SubmittedAt)

	_, err = f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{SubmissionData: json.RawMessage(`{"answers":{"0":"Lyon"}}`)})
	assert.ErrorIs(t, err, appErrors.ErrAlreadySubmitted)

	_, err = f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{Status: "draft"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadySubmitted)

	require.Len(t, f.repo.rows, 1)
	assert.JSONEq(t, `{"answers":{"0":"Paris"}}`, string(f.repo.rows[0].SubmissionData))
}

func TestSubmitUniqueViolationMapsToAlreadySubmitted(t *testing.T) {
	f := newSubmissionFixture(t)
	racing := &racingSubmissionRepo{submissionRepoFake: f.repo}
	f.svc.repo = racing

	_, err := f.svc.Submit(context.Background(), student(), "asm-1", dto.SubmissionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrAlreadySubmitted)
}

// racingSubmissionRepo reports no final submission but rejects the insert,
// as when a concurrent request wins.
type racingSubmissionRepo struct {
	*submissionRepoFake
}

func (r *racingSubmissionRepo) HasFinal(context.Context, string, string) (bool, error) {
	return false, nil
}

func (r *racingSubmissionRepo) Create(context.Context, *models.Submission) error {
	return fmt.Errorf("create submission: %w", repository.ErrUniqueViolation)
}

func TestSubmitDraftsThenFinal(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	draft, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{Status: "draft", SubmissionData: json.RawMessage(`{"answers":{"0":"Lyon"}}`)})
	require.NoError(t, err)
	assert.Nil(t, draft.SubmittedAt)
	_, err = f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{Status: "draft"})
	require.NoError(t, err)

	mine, err := f.svc.Mine(ctx, student(), "asm-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-2", mine.ID)

	final, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(final.SubmissionData))

	mine, err = f.svc.Mine(ctx, student(), "asm-1")
	require.NoError(t, err)
	assert.Equal(t, final.ID, mine.ID)

	none, err := f.svc.Mine(ctx, studentNamed("student-2"), "asm-1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSubmitRules(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, mentor(), "asm-1", dto.SubmissionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Submit(ctx, studentNamed("outsider"), "asm-1", dto.SubmissionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{SubmissionData: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{Status: "graded"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(ctx, student(), "missing", dto.SubmissionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, f.repo.rows)
}

func TestListSuggestsScores(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{SubmissionData: json.RawMessage(`{"answers":{"0":"paris","1":"false"}}`)})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, studentNamed("student-2"), "asm-1", dto.SubmissionRequest{Status: "draft"})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, mentor(), "asm-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].SuggestedScore)
	assert.InDelta(t, 6.67, *list[0].SuggestedScore, 0.001)

	_, err = f.svc.List(ctx, student(), "asm-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGradeOverwritesPreviousResult(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{})
	require.NoError(t, err)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: sub.ID, Score: scorePtr(6), Feedback: "ok"})
	require.NoError(t, err)
	graded, err := f.svc.Grade(ctx, admin(), dto.GradeRequest{SubmissionID: sub.ID, Score: scorePtr(9), Feedback: "<b>great</b>"})
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionGraded, graded.Status)
	assert.Equal(t, 9.0, *graded.Score)
	assert.Equal(t, "great", *graded.Feedback)
	assert.Equal(t, "admin-1", *graded.GradedBy)

	stored, err := f.repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, *stored.Score)
	assert.Equal(t, []string{models.AuditSubmissionGrade, models.AuditSubmissionGrade}, f.audit.actions())
	assert.Equal(t, []string{events.SubmissionGraded, events.SubmissionGraded}, f.publisher.types())
}

func TestGradeRules(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	final, err := f.svc.Submit(ctx, student(), "asm-1", dto.SubmissionRequest{})
	require.NoError(t, err)
	draft, err := f.svc.Submit(ctx, studentNamed("student-2"), "asm-1", dto.SubmissionRequest{Status: "draft"})
	require.NoError(t, err)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: final.ID, Score: scorePtr(11)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: final.ID, Score: scorePtr(-1)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: final.ID})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: draft.ID, Score: scorePtr(5)})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.Grade(ctx, claimsFor("mentor-2", models.RoleMentor), dto.GradeRequest{SubmissionID: final.ID, Score: scorePtr(5)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Grade(ctx, student(), dto.GradeRequest{SubmissionID: final.ID, Score: scorePtr(5)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: "missing", Score: scorePtr(5)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	zero, err := f.svc.Grade(ctx, mentor(), dto.GradeRequest{SubmissionID: final.ID, Score: scorePtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *zero.Score)
	assert.Nil(t, zero.Feedback)
}

func TestSuggestScore(t *testing.T) {
	assessment := &models.Assessment{MaxScore: 100, Questions: normalizeQuestions(quizQuestions())}
	key := models.AnswerKey{0: "Paris", 1: "true", 2: "anything"}

	full := SuggestScore(assessment, key, map[int]string{0: " PARIS", 1: "True", 2: "nope"})
	require.NotNil(t, full)
	assert.Equal(t, 100.0, *full)

	partial := SuggestScore(assessment, key, map[int]string{1: "true"})
	require.NotNil(t, partial)
	assert.Equal(t, 33.33, *partial)

	assert.Nil(t, SuggestScore(assessment, models.AnswerKey{}, nil))
	assert.Nil(t, SuggestScore(assessment, models.AnswerKey{2: "x"}, nil))
	assert.Nil(t, SuggestScore(nil, key, nil))
}

func TestQuizAnswersFromSubmissionData(t *testing.T) {
	sub := models.Submission{SubmissionData: types.JSONText(`{"answers":{"0":"Paris","1":true}}`)}
	assert.Equal(t, map[int]string{0: "Paris", 1: "true"}, sub.QuizAnswers())
}
