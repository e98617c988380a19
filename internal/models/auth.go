package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SignupRequest registers a new account.
type SignupRequest struct {
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role"`
	Department string   `json:"department"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string   `json:"accessToken"`
	ExpiresIn   int64    `json:"expiresIn"`
	User        UserInfo `json:"user"`
}

// UserInfo describes a user in responses.
type UserInfo struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Role       UserRole `json:"role,omitempty"`
	Department string   `json:"department,omitempty"`
}

// NewUserInfo projects u for responses.
func NewUserInfo(u User) UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Department: u.Department}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Viewer converts verified claims into a request identity.
func (c *JWTClaims) Viewer() Viewer {
	return Viewer{
		UserID:        c.UserID,
		Name:          c.Name,
		Email:         c.Email,
		Role:          c.Role,
		Department:    c.Department,
		Authenticated: true,
	}
}
