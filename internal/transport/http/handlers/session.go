package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// SessionHandler exposes session introspection for the current account.
type SessionHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(auth *usecase.AuthService, sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{auth: auth, sessions: sessions}
}

// RegisterRoutes binds session routes.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", middleware.RequireAuth(h.auth), h.list)
}

// RegisterAdminRoutes binds administrative session routes behind the access guard.
func (h *SessionHandler) RegisterAdminRoutes(r *gin.RouterGroup, guard *middleware.AccessGuard) {
	adminOnly := guard.Require(domain.Requirement{AllowedRoles: []domain.Role{domain.RoleAdmin}}, nil)
	authed := r.Group("", middleware.RequireAuth(h.auth), adminOnly)
	authed.GET("/accounts/:account_id/sessions", h.listForAccount)
	authed.POST("/sessions/purge", h.purgeExpired)
}

func (h *SessionHandler) list(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: payloads,
		Total:    len(payloads),
	})
}

func (h *SessionHandler) listForAccount(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account_id is required"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: payloads,
		Total:    len(payloads),
	})
}

func (h *SessionHandler) purgeExpired(c *gin.Context) {
	count, err := h.sessions.PurgeExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to purge sessions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged_count": count})
}
