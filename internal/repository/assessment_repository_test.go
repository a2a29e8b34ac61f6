package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/models"
)

func TestAssessmentRepositoryFindByIDDecodesQuestions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	now := time.Now()
	desc := `{"questions":[{"question":"Go is compiled","type":"true_false","points":1}],"totalQuestions":1}`
	mock.ExpectQuery(regexp.QuoteMeta("FROM assessments WHERE id = $1")).
		WithArgs("as1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "title", "description", "type", "due_date", "max_score", "created_by", "created_at", "updated_at"}).
			AddRow("as1", "p1", "Quiz 1", desc, "quiz", nil, 10, "m1", now, now))

	assessment, err := repo.FindByID(context.Background(), "as1")
	require.NoError(t, err)
	require.Len(t, assessment.Questions, 1)
	assert.Equal(t, models.QuestionTrueFalse, assessment.Questions[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryUpsertAnswer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (assessment_id) DO UPDATE")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpsertAnswerWithTx(context.Background(), tx, &models.AssessmentAnswer{AssessmentID: "as1", CorrectAnswer: `{"0":"true"}`}))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepositoryFindAnswer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM assessment_answers WHERE assessment_id = $1")).
		WithArgs("as1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_id", "correct_answer", "grading_notes", "created_at", "updated_at"}).
			AddRow("k1", "as1", `{"0":"B","1":"true"}`, nil, now, now))

	answer, err := repo.FindAnswer(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerKey{0: "B", 1: "true"}, answer.Answers)
}

func TestAssessmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assessments WHERE id = $1")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, repo.Delete(context.Background(), "nope"))
}
