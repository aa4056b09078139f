package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
)

// DefaultHashCost is the bcrypt work factor applied when none is configured.
const DefaultHashCost = 12

// BcryptHasher hashes and verifies passwords using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a hasher with the provided work factor.
// Costs outside bcrypt's supported range fall back to DefaultHashCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash generates a bcrypt hash for the provided password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(digest), nil
}

// Verify compares the provided password against a stored bcrypt hash.
// A mismatch is reported as (false, nil); errors indicate a malformed hash.
func (h *BcryptHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("verify password: %w", err)
}

var _ port.PasswordHasher = (*BcryptHasher)(nil)
