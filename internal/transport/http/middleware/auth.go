package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/telemetry"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

const claimsKey = "claims"

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the verified
// claims for downstream handlers.
func RequireAuth(authService *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := authService.ParseAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrInvalidAccessToken),
				errors.Is(err, usecase.ErrMalformedAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(AccountIDKey, claims.Subject)
		c.Set(claimsKey, &claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = claims.Subject
		}

		c.Next()
	}
}

// TargetResolver extracts the access target coordinates from the request.
// A nil resolver means the endpoint has no request-bound target.
type TargetResolver func(*gin.Context) domain.AccessTarget

// DepartmentFromParam resolves the target department from a path parameter.
func DepartmentFromParam(name string) TargetResolver {
	return func(c *gin.Context) domain.AccessTarget {
		return domain.AccessTarget{DepartmentID: c.Param(name)}
	}
}

// DepartmentFromQuery resolves the target department from a query parameter.
func DepartmentFromQuery(name string) TargetResolver {
	return func(c *gin.Context) domain.AccessTarget {
		return domain.AccessTarget{DepartmentID: c.Query(name)}
	}
}

// OwnerFromParam resolves the target owner from a path parameter.
func OwnerFromParam(name string) TargetResolver {
	return func(c *gin.Context) domain.AccessTarget {
		return domain.AccessTarget{OwnerID: c.Param(name)}
	}
}

// AccessGuard evaluates endpoint access requirements against verified claims.
type AccessGuard struct {
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewAccessGuard builds a guard. The metrics handle may be nil.
func NewAccessGuard(metrics *telemetry.Metrics) *AccessGuard {
	return &AccessGuard{
		metrics: metrics,
		now:     time.Now,
	}
}

// WithClock injects a custom clock, primarily for tests.
func (g *AccessGuard) WithClock(now func() time.Time) *AccessGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// Require enforces the endpoint's access requirement. It must run after
// RequireAuth on the same route.
func (g *AccessGuard) Require(req domain.Requirement, resolve TargetResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			g.record("unauthenticated")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		var target domain.AccessTarget
		if resolve != nil {
			target = resolve(c)
		}

		if err := domain.EvaluateAccess(claims, req, target, g.now()); err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				g.record("denied")
				c.AbortWithStatusJSON(http.StatusForbidden,
					newErrorResponse(c, "insufficient permissions"))
				return
			}

			g.record("unauthenticated")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		g.record("allowed")
		c.Next()
	}
}

func (g *AccessGuard) record(result string) {
	if g.metrics == nil {
		return
	}
	g.metrics.AccessDecisions.WithLabelValues(result).Inc()
}

// GetClaims retrieves the verified access claims stored by RequireAuth.
func GetClaims(c *gin.Context) (*domain.AccessClaims, bool) {
	val, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}

	claims, ok := val.(*domain.AccessClaims)
	return claims, ok
}

// GetAuthenticatedAccountID retrieves the account ID from context.
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	val, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}

	id, ok := val.(string)
	return id, ok && id != ""
}
