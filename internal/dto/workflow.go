package dto

import "encoding/json"

// EnrollmentRequest backs create_enrollment. StudentID defaults to the caller.
type EnrollmentRequest struct {
	ProgramID string `json:"programId" validate:"required"`
	StudentID string `json:"studentId"`
}

// ApplicationRequest backs create_application.
type ApplicationRequest struct {
	ProgramID       string          `json:"programId" validate:"required"`
	ApplicationData json.RawMessage `json:"applicationData"`
}

// ReviewRequest backs review_application.
type ReviewRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	ReviewAction  string `json:"reviewAction" validate:"required,oneof=approve reject"`
}

// ApplicationRef identifies a single application.
type ApplicationRef struct {
	ApplicationID string `json:"applicationId" validate:"required"`
}

// ProgramScope optionally narrows a listing to one program.
type ProgramScope struct {
	ProgramID string `json:"programId"`
	Status    string `json:"status"`
}

// ProgramRef identifies a single program.
type ProgramRef struct {
	ProgramID string `json:"programId" validate:"required"`
}

// EnrollmentLookup backs get_enrollment. StudentID defaults to the caller.
type EnrollmentLookup struct {
	ProgramID string `json:"programId" validate:"required"`
	StudentID string `json:"studentId"`
}

// EnrollmentUpdate backs update_enrollment.
type EnrollmentUpdate struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=completed dropped"`
}
