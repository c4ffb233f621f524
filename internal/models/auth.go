package models

import "github.com/golang-jwt/jwt/v5"

// UserRole scopes API access.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims are the access token claims issued by the identity provider.
// Token issuance lives outside this service; only validation happens here.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
