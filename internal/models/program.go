package models

import "time"

// ProgramStatus is the lifecycle state of a program.
type ProgramStatus string

const (
	ProgramStatusDraft     ProgramStatus = "draft"
	ProgramStatusOpen      ProgramStatus = "open"
	ProgramStatusClosed    ProgramStatus = "closed"
	ProgramStatusCompleted ProgramStatus = "completed"
)

// Valid reports whether s is a known program status.
func (s ProgramStatus) Valid() bool {
	switch s {
	case ProgramStatusDraft, ProgramStatusOpen, ProgramStatusClosed, ProgramStatusCompleted:
		return true
	}
	return false
}

// Program is a cohort students can join. MaxStudents nil or 0 means unlimited.
// MentorID is the legacy single-mentor column; assignments live in program_mentors.
type Program struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description *string       `db:"description" json:"description,omitempty"`
	StartDate   *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time    `db:"end_date" json:"end_date,omitempty"`
	MaxStudents *int          `db:"max_students" json:"max_students,omitempty"`
	Status      ProgramStatus `db:"status" json:"status"`
	CreatedBy   *string       `db:"created_by" json:"created_by,omitempty"`
	MentorID    *string       `db:"mentor_id" json:"mentor_id,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Limit returns the enrollment cap, 0 meaning unlimited.
func (p *Program) Limit() int {
	if p == nil || p.MaxStudents == nil || *p.MaxStudents < 0 {
		return 0
	}
	return *p.MaxStudents
}

// ProgramMentor assigns a mentor to a program.
type ProgramMentor struct {
	ID         string    `db:"id" json:"id"`
	ProgramID  string    `db:"program_id" json:"program_id"`
	MentorID   string    `db:"mentor_id" json:"mentor_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// MentorSummary is the mentor view attached to program listings.
type MentorSummary struct {
	ProgramID string `db:"program_id" json:"-"`
	ID        string `db:"id" json:"id"`
	FullName  string `db:"full_name" json:"full_name"`
	Email     string `db:"email" json:"email"`
}

// ProgramDetail enriches Program with enrollment counts and mentors.
type ProgramDetail struct {
	Program
	EnrollmentsCount int             `db:"enrollments_count" json:"enrollments_count"`
	IsFull           bool            `db:"-" json:"is_full"`
	Mentors          []MentorSummary `db:"-" json:"mentors"`
}

// ProgramFilter narrows program listings.
type ProgramFilter struct {
	Status ProgramStatus
	IDs    []string
	// IDsSet distinguishes "no id filter" from "filter by an empty set".
	IDsSet bool
}
