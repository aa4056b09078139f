package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// TwoFactorHandler exposes the TOTP enrollment lifecycle.
type TwoFactorHandler struct {
	auth      *usecase.AuthService
	twoFactor *usecase.TwoFactorService
}

// NewTwoFactorHandler constructs TwoFactorHandler.
func NewTwoFactorHandler(auth *usecase.AuthService, twoFactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{auth: auth, twoFactor: twoFactor}
}

// RegisterRoutes binds two-factor routes. All of them require authentication.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup) {
	authed := r.Group("", middleware.RequireAuth(h.auth))
	authed.POST("/setup", h.setup)
	authed.POST("/enable", h.enable)
	authed.POST("/disable", h.disable)
}

func (h *TwoFactorHandler) setup(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	setup, err := h.twoFactor.Setup(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to start two-factor setup")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		Secret:      setup.Secret,
		OtpauthURI:  setup.OtpauthURI,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *TwoFactorHandler) enable(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code is required"))
		return
	}

	if err := h.twoFactor.Enable(c.Request.Context(), accountID, req.Code); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNoPendingSecret, Status: http.StatusConflict, Message: "two-factor setup has not been started"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusBadRequest, Message: "invalid two-factor code"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to enable two-factor")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication enabled"})
}

func (h *TwoFactorHandler) disable(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code is required"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), accountID, req.Code); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotEnabled, Status: http.StatusConflict, Message: "two-factor authentication is not enabled"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusBadRequest, Message: "invalid two-factor code"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to disable two-factor")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}
