package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
)

// LoginRequest holds credentials for authenticating a user. The captcha pair
// references a verification code previously issued via /auth/captcha.
type LoginRequest struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Captcha    string `json:"captcha" validate:"required"`
	CaptchaKey string `json:"captcha_key" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest updates the caller's own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// ResetPasswordRequest resets a password through the captcha-guarded flow
// used by the login screen.
type ResetPasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
	Captcha     string `json:"captcha" validate:"required"`
	CaptchaKey  string `json:"captcha_key" validate:"required"`
}

// CaptchaResponse carries a freshly issued verification code. Image rendering
// is delegated to the frontend; the backend only owns the code lifecycle.
type CaptchaResponse struct {
	Key       string    `json:"captcha_key"`
	Code      string    `json:"captcha_text"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Role           authz.Role `json:"role"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	TeacherID      *string    `json:"teacher_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string     `json:"user_id"`
	Role     authz.Role `json:"role"`
	Username string     `json:"username"`
	jwt.RegisteredClaims
}
