package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SubmissionStatus is the state of a submission.
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
	SubmissionReturned  SubmissionStatus = "returned"
)

// Final reports whether the status counts as the student's one submission.
func (s SubmissionStatus) Final() bool {
	return s != SubmissionDraft
}

// Submission is a student's attempt at an assessment.
type Submission struct {
	ID             string           `db:"id" json:"id"`
	AssessmentID   string           `db:"assessment_id" json:"assessment_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	SubmissionData types.JSONText   `db:"submission_data" json:"submission_data"`
	Score          *float64         `db:"score" json:"score"`
	Feedback       *string          `db:"feedback" json:"feedback,omitempty"`
	GradedBy       *string          `db:"graded_by" json:"graded_by,omitempty"`
	SubmittedAt    *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	GradedAt       *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	Status         SubmissionStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail is the reviewer view of a submission.
type SubmissionDetail struct {
	Submission
	StudentName    string   `db:"student_name" json:"student_name"`
	StudentEmail   string   `db:"student_email" json:"student_email"`
	SuggestedScore *float64 `db:"-" json:"suggested_score,omitempty"`
}

// QuizAnswers extracts {"answers": {"0": ...}} from quiz submission data.
func (s *Submission) QuizAnswers() map[int]string {
	if len(s.SubmissionData) == 0 {
		return nil
	}
	var payload struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal(s.SubmissionData, &payload); err != nil || len(payload.Answers) == 0 {
		return nil
	}
	key, err := DecodeAnswerKey(string(payload.Answers))
	if err != nil {
		return nil
	}
	return key
}
