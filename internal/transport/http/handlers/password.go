package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// PasswordHandler exposes password change and reset endpoints.
type PasswordHandler struct {
	auth      *usecase.AuthService
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(auth *usecase.AuthService, passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{auth: auth, passwords: passwords}
}

// RegisterRoutes binds password routes. Forgot-password accepts optional
// middleware so the route can be rate limited.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, forgotMiddlewares ...gin.HandlerFunc) {
	r.POST("/change", middleware.RequireAuth(h.auth), h.change)
	r.POST("/forgot", chain(forgotMiddlewares, h.forgot)...)
	r.POST("/reset", h.reset)
}

func (h *PasswordHandler) change(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	err := h.passwords.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWrongPassword, Status: http.StatusBadRequest, Message: "current password incorrect"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; all sessions revoked"})
}

func (h *PasswordHandler) forgot(c *gin.Context) {
	var req PasswordForgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	// The acknowledgement is identical whether or not the email exists.
	if _, err := h.passwords.RequestReset(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{
		Message: "if the email is registered, reset instructions have been sent",
	})
}

func (h *PasswordHandler) reset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	err := h.passwords.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidResetToken, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset; all sessions revoked"})
}
