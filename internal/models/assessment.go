package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AssessmentType classifies an assessment.
type AssessmentType string

const (
	AssessmentQuiz       AssessmentType = "quiz"
	AssessmentAssignment AssessmentType = "assignment"
	AssessmentProject    AssessmentType = "project"
	AssessmentExam       AssessmentType = "exam"
)

// QuestionType is the answer format of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
	QuestionTrueFalse      QuestionType = "true_false"
)

// Objective reports whether answers can be compared automatically.
func (t QuestionType) Objective() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Question is one item of a quiz-like assessment.
type Question struct {
	Question string       `json:"question"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Points   float64      `json:"points"`
}

// Assessment is a gradable unit of work in a program. Description holds the
// stored text; Instructions and Questions are its decoded form.
type Assessment struct {
	ID           string         `db:"id" json:"id"`
	ProgramID    string         `db:"program_id" json:"program_id"`
	Title        string         `db:"title" json:"title"`
	Description  *string        `db:"description" json:"-"`
	Type         AssessmentType `db:"type" json:"type"`
	DueDate      *time.Time     `db:"due_date" json:"due_date,omitempty"`
	MaxScore     int            `db:"max_score" json:"max_score"`
	CreatedBy    *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Instructions string         `db:"-" json:"instructions,omitempty"`
	Questions    []Question     `db:"-" json:"questions,omitempty"`
}

// storedContent is the serialized description of a question-based assessment.
type storedContent struct {
	Instructions   string     `json:"instructions,omitempty"`
	Questions      []Question `json:"questions"`
	TotalQuestions int        `json:"totalQuestions"`
}

// EncodeContent produces the description column. Plain instructions are
// stored as-is; a question list is stored as JSON.
func EncodeContent(instructions string, questions []Question) (*string, error) {
	if len(questions) == 0 {
		if instructions == "" {
			return nil, nil
		}
		return &instructions, nil
	}
	raw, err := json.Marshal(storedContent{
		Instructions:   instructions,
		Questions:      questions,
		TotalQuestions: len(questions),
	})
	if err != nil {
		return nil, fmt.Errorf("encode assessment content: %w", err)
	}
	s := string(raw)
	return &s, nil
}

// DecodeContent fills Instructions and Questions from Description.
func (a *Assessment) DecodeContent() {
	a.Instructions, a.Questions = "", nil
	if a.Description == nil {
		return
	}
	raw := strings.TrimSpace(*a.Description)
	if strings.HasPrefix(raw, "{") {
		var content storedContent
		if err := json.Unmarshal([]byte(raw), &content); err == nil && content.Questions != nil {
			a.Instructions = content.Instructions
			a.Questions = content.Questions
			return
		}
	}
	a.Instructions = *a.Description
}

// TotalPoints sums question points.
func (a *Assessment) TotalPoints() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// AnswerKey maps a question index to its accepted answer.
type AnswerKey map[int]string

// Encode serializes the key as {"0": "...", ...}.
func (k AnswerKey) Encode() (string, error) {
	if k == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("encode answer key: %w", err)
	}
	return string(raw), nil
}

// DecodeAnswerKey parses a stored key. Non-numeric keys are rejected.
func DecodeAnswerKey(raw string) (AnswerKey, error) {
	if strings.TrimSpace(raw) == "" {
		return AnswerKey{}, nil
	}
	var loose map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	key := make(AnswerKey, len(loose))
	for k, v := range loose {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode answer key: index %q is not a number", k)
		}
		key[idx] = stringify(v)
	}
	return key, nil
}

// Indices returns the sorted question indices present in the key.
func (k AnswerKey) Indices() []int {
	out := make([]int, 0, len(k))
	for idx := range k {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// AssessmentAnswer is the stored answer key row.
type AssessmentAnswer struct {
	ID            string    `db:"id" json:"id"`
	AssessmentID  string    `db:"assessment_id" json:"assessment_id"`
	CorrectAnswer string    `db:"correct_answer" json:"-"`
	GradingNotes  *string   `db:"grading_notes" json:"grading_notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	Answers       AnswerKey `db:"-" json:"answers"`
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}
