package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHashAndVerifySuccess(t *testing.T) {
	// Low cost keeps the test fast; production uses DefaultHashCost.
	hasher := NewBcryptHasher(bcrypt.MinCost)
	password := "correct horse battery staple"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if encoded == "" {
		t.Fatal("Hash returned empty string")
	}
	if !strings.HasPrefix(encoded, "$2") {
		t.Fatalf("unexpected hash format: %q", encoded)
	}

	ok, err := hasher.Verify(password, encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("Verify returned false for correct password")
	}
}

func TestBcryptHasherVerifyIncorrectPassword(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := hasher.Verify("Tr0ub4dor&3", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("Verify returned true for incorrect password")
	}
}

func TestBcryptHasherVerifyMalformedHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	if _, err := hasher.Verify("anything", "not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestBcryptHasherEmptyInputs(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error hashing empty password")
	}

	ok, err := hasher.Verify("", "$2a$04$abcdefghijklmnopqrstuv")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("Verify returned true for empty password")
	}
}

func TestNewBcryptHasherCostOutOfRange(t *testing.T) {
	hasher := NewBcryptHasher(99)
	if hasher.cost != DefaultHashCost {
		t.Fatalf("expected fallback cost %d, got %d", DefaultHashCost, hasher.cost)
	}
}
