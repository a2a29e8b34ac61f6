package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the action credential payload. UserID mirrors the subject;
// Role is replaced by the stored profile role once the caller is resolved.
type JWTClaims struct {
	UserID string   `json:"-"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller acts as an admin.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
