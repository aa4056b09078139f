package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// AccountHandler exposes administrative account lifecycle endpoints.
type AccountHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	sessions     *usecase.SessionService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, sessions *usecase.SessionService) *AccountHandler {
	return &AccountHandler{auth: auth, registration: registration, sessions: sessions}
}

// RegisterAdminRoutes binds administrative account routes behind the access guard.
func (h *AccountHandler) RegisterAdminRoutes(r *gin.RouterGroup, guard *middleware.AccessGuard) {
	adminOnly := guard.Require(domain.Requirement{AllowedRoles: []domain.Role{domain.RoleAdmin}}, nil)
	authed := r.Group("", middleware.RequireAuth(h.auth), adminOnly)
	authed.POST("/accounts/:account_id/deactivate", h.deactivate)
}

func (h *AccountHandler) deactivate(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account_id is required"))
		return
	}

	if err := h.registration.Deactivate(c.Request.Context(), accountID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to deactivate account")
		return
	}

	// A deactivated account keeps no live sessions.
	revoked, err := h.sessions.RevokeAll(c.Request.Context(), accountID, "account_deactivated")
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked_count": revoked})
}
