package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// ReviewDecision is the reviewer's verdict.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

// Application is a student's request to join a program.
type Application struct {
	ID              string            `db:"id" json:"id"`
	ProgramID       string            `db:"program_id" json:"program_id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	Status          ApplicationStatus `db:"status" json:"status"`
	ApplicationData types.JSONText    `db:"application_data" json:"application_data"`
	SubmittedAt     time.Time         `db:"submitted_at" json:"submitted_at"`
	ReviewedAt      *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy      *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail adds program and student context.
type ApplicationDetail struct {
	Application
	ProgramTitle string `db:"program_title" json:"program_title"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// ApplicationFilter narrows application listings. An empty non-nil
// ProgramIDs matches nothing.
type ApplicationFilter struct {
	ProgramIDs []string
	ProgramID  string
	StudentID  string
	Status     ApplicationStatus
}

// WorkflowResult carries whichever records a workflow step produced.
type WorkflowResult struct {
	Application *Application `json:"application,omitempty"`
	Enrollment  *Enrollment  `json:"enrollment,omitempty"`
}
