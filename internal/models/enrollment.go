package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment is confirmed membership of a student in a program.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	ProgramID   string           `db:"program_id" json:"program_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with program and student info.
type EnrollmentDetail struct {
	Enrollment
	ProgramTitle string `db:"program_title" json:"program_title"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// EnrollmentFilter narrows enrollment listings. An empty non-nil
// ProgramIDs matches nothing.
type EnrollmentFilter struct {
	ProgramIDs []string
	ProgramID  string
	StudentID  string
	Status     EnrollmentStatus
}

// Capacity reports whether a program can take another enrollment.
type Capacity struct {
	Available bool `json:"available"`
	Current   int  `json:"current"`
	Max       int  `json:"max"`
}

// NewCapacity computes availability; max 0 is unlimited.
func NewCapacity(current, max int) Capacity {
	return Capacity{Available: max == 0 || current < max, Current: current, Max: max}
}
