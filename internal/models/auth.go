package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry an administrative role.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleSuperAdmin)
}
