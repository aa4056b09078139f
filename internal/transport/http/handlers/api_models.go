package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary is the external view of an account. Credential material is
// stripped before it reaches this type.
type AccountSummary struct {
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	DepartmentID     string      `json:"department_id,omitempty"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
	CreatedAt        time.Time   `json:"created_at"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email         string `json:"email" binding:"required"`
	Password      string `json:"password" binding:"required"`
	TwoFactorCode string `json:"two_factor_code"`
}

// LoginResponse is returned for a fully authenticated login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	Account      AccountSummary `json:"account"`
}

// TokenRefreshRequest represents the payload to rotate a refresh token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRefreshResponse contains the token pair issued by the refresh endpoint.
type TokenRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutAllResponse summarises a bulk revocation.
type LogoutAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"role" binding:"required"`
	DepartmentID string `json:"department_id"`
}

// RegistrationResponse contains the created account.
type RegistrationResponse struct {
	Account AccountSummary `json:"account"`
}

// PasswordChangeRequest captures a password change body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordForgotRequest initiates a password reset.
type PasswordForgotRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetRequest redeems a reset token.
type PasswordResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// TwoFactorSetupResponse returns the enrollment material. The secret and
// backup codes are shown to the caller exactly once.
type TwoFactorSetupResponse struct {
	Secret      string   `json:"secret"`
	OtpauthURI  string   `json:"otpauth_uri"`
	BackupCodes []string `json:"backup_codes"`
}

// TwoFactorCodeRequest carries a TOTP code for enable/disable confirmation.
type TwoFactorCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// SessionPayload describes a refresh session in API responses. The token
// hash never appears here.
type SessionPayload struct {
	ID        string    `json:"id"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionListResponse wraps the caller's active sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:               account.ID,
		Email:            account.Email,
		Role:             account.Role,
		DepartmentID:     account.DepartmentID,
		TwoFactorEnabled: account.TOTPEnabled,
		CreatedAt:        account.CreatedAt,
	}
}

func newSessionPayload(session domain.RefreshSession) SessionPayload {
	return SessionPayload{
		ID:        session.ID,
		IP:        session.IssuedIP,
		UserAgent: session.IssuedUA,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}

func newTokenRefreshResponse(pair usecase.TokenPair, at time.Time) TokenRefreshResponse {
	return TokenRefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(pair.AccessExpiresAt, at),
	}
}

func expiresIn(expiresAt, at time.Time) int {
	remaining := expiresAt.Sub(at)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds())
}
