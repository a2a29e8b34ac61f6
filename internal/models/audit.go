package models

import "time"

// Audit actions recorded for workflow transitions.
const (
	AuditApplicationCreate   = "APPLICATION_CREATE"
	AuditApplicationReview   = "APPLICATION_REVIEW"
	AuditApplicationWithdraw = "APPLICATION_WITHDRAW"
	AuditEnrollmentCreate    = "ENROLLMENT_CREATE"
	AuditEnrollmentUpdate    = "ENROLLMENT_UPDATE"
	AuditProgramCreate       = "PROGRAM_CREATE"
	AuditProgramUpdate       = "PROGRAM_UPDATE"
	AuditAssessmentCreate    = "ASSESSMENT_CREATE"
	AuditAssessmentUpdate    = "ASSESSMENT_UPDATE"
	AuditAssessmentDelete    = "ASSESSMENT_DELETE"
	AuditSubmissionGrade     = "SUBMISSION_GRADE"
	AuditUserApprove         = "USER_APPROVE"
	AuditUserRoleUpdate      = "USER_ROLE_UPDATE"
	AuditUserDelete          = "USER_DELETE"
	AuditRosterExport        = "ROSTER_EXPORT"
	AuditAnswerKeyView       = "ANSWER_KEY_VIEW"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
