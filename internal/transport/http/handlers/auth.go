package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// AuthHandler exposes authentication and session lifecycle endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	sessions     *usecase.SessionService
	registration *usecase.RegistrationService
	now          func() time.Time
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, registration *usecase.RegistrationService) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		sessions:     sessions,
		registration: registration,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// AuthRouteMiddlewares carries optional per-route middleware chains applied
// ahead of the matching handler.
type AuthRouteMiddlewares struct {
	Register []gin.HandlerFunc
	Login    []gin.HandlerFunc
	Refresh  []gin.HandlerFunc
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, mw AuthRouteMiddlewares) {
	r.POST("/register", chain(mw.Register, h.register)...)
	r.POST("/login", chain(mw.Login, h.login)...)
	r.POST("/refresh", chain(mw.Refresh, h.refresh)...)
	r.POST("/logout", h.logout)
	r.POST("/logout-all", middleware.RequireAuth(h.auth), h.logoutAll)
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := append([]gin.HandlerFunc{}, middlewares...)
	return append(out, handler)
}

func (h *AuthHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	account, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email address"},
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{Account: newAccountSummary(account)})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:         strings.TrimSpace(req.Email),
		Password:      req.Password,
		TwoFactorCode: strings.TrimSpace(req.TwoFactorCode),
		IP:            c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account inactive"},
			{Err: usecase.ErrTwoFactorRequired, Status: http.StatusUnauthorized, Message: "two-factor code required"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusUnauthorized, Message: "invalid two-factor code"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(result.Tokens.AccessExpiresAt, h.now()),
		Account:      newAccountSummary(result.Account),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, _, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account inactive"},
		}, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, newTokenRefreshResponse(pair, h.now()))
}

func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	// Revocation is idempotent; an unknown or already revoked token still
	// acknowledges with 204.
	if err := h.sessions.RevokeOne(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	count, err := h.sessions.RevokeAll(c.Request.Context(), accountID, "user_logout_all")
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{RevokedCount: count})
}
