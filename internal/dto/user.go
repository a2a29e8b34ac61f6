package dto

// UserRef backs approve_user.
type UserRef struct {
	UserID string `json:"userId" validate:"required"`
}

// RoleUpdate backs update_user_role.
type RoleUpdate struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=student mentor admin"`
}

// EnsureProfileRequest is sent on first sign-in.
type EnsureProfileRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
}
