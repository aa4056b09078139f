package domain

import (
	"errors"
	"testing"
	"time"
)

var evalTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func preparerClaims() *AccessClaims {
	return &AccessClaims{
		Subject:      "acc-1",
		Email:        "prep@example.com",
		Role:         RolePreparer,
		DepartmentID: "D1",
		IssuedAt:     evalTime.Add(-time.Minute),
		ExpiresAt:    evalTime.Add(14 * time.Minute),
	}
}

func adminClaims() *AccessClaims {
	claims := preparerClaims()
	claims.Subject = "acc-admin"
	claims.Role = RoleAdmin
	claims.DepartmentID = ""
	return claims
}

func TestEvaluateAccessRejectsMissingClaims(t *testing.T) {
	err := EvaluateAccess(nil, Requirement{}, AccessTarget{}, evalTime)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for nil claims, got %v", err)
	}

	err = EvaluateAccess(&AccessClaims{}, Requirement{}, AccessTarget{}, evalTime)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty claims, got %v", err)
	}
}

func TestEvaluateAccessRejectsExpiredClaims(t *testing.T) {
	claims := preparerClaims()
	claims.ExpiresAt = evalTime.Add(-time.Second)

	err := EvaluateAccess(claims, Requirement{}, AccessTarget{}, evalTime)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired claims, got %v", err)
	}
}

func TestEvaluateAccessRoleMembership(t *testing.T) {
	req := Requirement{AllowedRoles: []Role{RoleAdmin}}

	err := EvaluateAccess(preparerClaims(), req, AccessTarget{}, evalTime)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for preparer on admin-only requirement, got %v", err)
	}

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	if len(forbidden.RequiredRoles) != 1 || forbidden.RequiredRoles[0] != RoleAdmin {
		t.Fatalf("expected required roles [ADMIN], got %v", forbidden.RequiredRoles)
	}

	if err := EvaluateAccess(adminClaims(), req, AccessTarget{}, evalTime); err != nil {
		t.Fatalf("expected admin to pass admin-only requirement, got %v", err)
	}
}

func TestEvaluateAccessDepartmentScope(t *testing.T) {
	req := Requirement{
		AllowedRoles:     []Role{RolePreparer, RoleIPDFReviewer},
		DepartmentScoped: true,
	}

	err := EvaluateAccess(preparerClaims(), req, AccessTarget{DepartmentID: "D2"}, evalTime)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign department, got %v", err)
	}

	if err := EvaluateAccess(preparerClaims(), req, AccessTarget{DepartmentID: "D1"}, evalTime); err != nil {
		t.Fatalf("expected own-department access to pass, got %v", err)
	}

	// A request that resolves no department target skips the scope check.
	if err := EvaluateAccess(preparerClaims(), req, AccessTarget{}, evalTime); err != nil {
		t.Fatalf("expected request without department target to pass, got %v", err)
	}
}

func TestEvaluateAccessAdminBypassesDepartmentScope(t *testing.T) {
	req := Requirement{
		AllowedRoles:     []Role{RolePreparer, RoleAdmin},
		DepartmentScoped: true,
	}

	if err := EvaluateAccess(adminClaims(), req, AccessTarget{DepartmentID: "D7"}, evalTime); err != nil {
		t.Fatalf("expected admin to bypass department scope, got %v", err)
	}
}

func TestEvaluateAccessOwnership(t *testing.T) {
	req := Requirement{OwnershipField: "account_id"}

	err := EvaluateAccess(preparerClaims(), req, AccessTarget{OwnerID: "acc-2"}, evalTime)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign resource, got %v", err)
	}

	if err := EvaluateAccess(preparerClaims(), req, AccessTarget{OwnerID: "acc-1"}, evalTime); err != nil {
		t.Fatalf("expected owner access to pass, got %v", err)
	}

	if err := EvaluateAccess(adminClaims(), req, AccessTarget{OwnerID: "acc-2"}, evalTime); err != nil {
		t.Fatalf("expected admin to bypass ownership, got %v", err)
	}
}

func TestEvaluateAccessCheckOrder(t *testing.T) {
	// Role failure must win over later checks even when those would also fail.
	req := Requirement{
		AllowedRoles:     []Role{RoleAdmin},
		DepartmentScoped: true,
		OwnershipField:   "account_id",
	}

	err := EvaluateAccess(preparerClaims(), req, AccessTarget{DepartmentID: "D2", OwnerID: "acc-9"}, evalTime)

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected *ForbiddenError, got %v", err)
	}
	if len(forbidden.RequiredRoles) == 0 {
		t.Fatal("expected role failure to be reported first")
	}
}
