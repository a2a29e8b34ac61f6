package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/cohort-api/internal/models"
)

// AssessmentRequest creates or replaces an assessment. AnswerKey is keyed by
// question index; nil leaves a stored key untouched on update.
type AssessmentRequest struct {
	Title        string            `json:"title" validate:"required,max=200"`
	Instructions string            `json:"instructions"`
	Type         string            `json:"type" validate:"required,oneof=quiz assignment project exam"`
	DueDate      *time.Time        `json:"due_date"`
	MaxScore     int               `json:"max_score" validate:"omitempty,gt=0"`
	Questions    []models.Question `json:"questions"`
	AnswerKey    models.AnswerKey  `json:"answer_key"`
	GradingNotes string            `json:"grading_notes"`
}

// SubmissionRequest is a student's attempt. Status defaults to submitted.
type SubmissionRequest struct {
	SubmissionData json.RawMessage `json:"submission_data"`
	Status         string          `json:"status" validate:"omitempty,oneof=draft submitted"`
}

// GradeRequest backs grade_assessment and the REST grading route.
type GradeRequest struct {
	SubmissionID string   `json:"submissionId"`
	Score        *float64 `json:"score" validate:"required,gte=0"`
	Feedback     string   `json:"feedback"`
}
