package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordPolicyAcceptsStrongPassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	if err := policy.Validate("Viaduct-Quartz-91"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestDefaultPasswordPolicyRejectsShortPassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	err := policy.Validate("Ab1!")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != "min_length" {
		t.Fatalf("expected min_length violation, got %s", violation.Code)
	}
}

func TestDefaultPasswordPolicyRejectsSingleClass(t *testing.T) {
	policy := DefaultPasswordPolicy()

	err := policy.Validate("alllowercaseletters")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != "character_classes" {
		t.Fatalf("expected character_classes violation, got %s", violation.Code)
	}
}

func TestDefaultPasswordPolicyRejectsWeakPassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	err := policy.Validate("Password1!")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %s", violation.Code)
	}
}

func TestDefaultPasswordPolicyUsesUserInputs(t *testing.T) {
	email := "ghizlen.maaroufi@example.com"
	policy := DefaultPasswordPolicy(email)

	err := policy.Validate("Ghizlen.Maaroufi@example.com1")
	var violation *PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected email-derived password rejected, got %v", err)
	}
	if violation.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %s", violation.Code)
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("Viaduct-Quartz-91")

	if err := rule.Validate("Viaduct-Quartz-91"); err == nil {
		t.Fatal("expected reuse of current password to be rejected")
	}
	if err := rule.Validate("Granite-Osprey-44"); err != nil {
		t.Fatalf("expected different password to pass, got %v", err)
	}
}
