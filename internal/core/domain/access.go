package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnauthenticated indicates the request carries no usable identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the verified identity may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// ForbiddenError carries the roles that would have satisfied the requirement.
type ForbiddenError struct {
	RequiredRoles []Role
}

func (e *ForbiddenError) Error() string {
	if len(e.RequiredRoles) == 0 {
		return "forbidden"
	}
	names := make([]string, 0, len(e.RequiredRoles))
	for _, role := range e.RequiredRoles {
		names = append(names, string(role))
	}
	return fmt.Sprintf("forbidden: requires one of [%s]", strings.Join(names, ", "))
}

// Unwrap lets errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Requirement is the static access descriptor attached to an endpoint at
// registration time. It is plain data consumed by EvaluateAccess.
type Requirement struct {
	AllowedRoles     []Role
	DepartmentScoped bool
	OwnershipField   string
}

// AccessTarget carries the request-resolved coordinates the requirement is
// evaluated against. Empty fields mean the request carries no such target.
type AccessTarget struct {
	DepartmentID string
	OwnerID      string
}

// EvaluateAccess decides allow/deny for verified claims against a
// requirement. Checks run in a fixed order and the first failure wins:
// authentication, role membership, department scope, ownership.
func EvaluateAccess(claims *AccessClaims, req Requirement, target AccessTarget, at time.Time) error {
	if claims == nil || claims.Subject == "" || claims.Role == "" {
		return ErrUnauthenticated
	}
	if claims.Expired(at) {
		return ErrUnauthenticated
	}

	if len(req.AllowedRoles) > 0 && !roleAllowed(claims.Role, req.AllowedRoles) {
		return &ForbiddenError{RequiredRoles: req.AllowedRoles}
	}

	if req.DepartmentScoped && claims.Role != RoleAdmin {
		if target.DepartmentID != "" && target.DepartmentID != claims.DepartmentID {
			return &ForbiddenError{}
		}
	}

	if req.OwnershipField != "" {
		if claims.Role != RoleAdmin && claims.Subject != target.OwnerID {
			return &ForbiddenError{}
		}
	}

	return nil
}

func roleAllowed(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
