package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest is the credential payload for admin authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and basic user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public slice of a user returned on login.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims are the custom claims embedded in access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
