package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
)

// ErrTokenExpired indicates a structurally valid, correctly signed token past its expiry.
var ErrTokenExpired = errors.New("jwt: token expired")

// ErrInvalidSignature indicates the token signature does not match the configured key.
var ErrInvalidSignature = errors.New("jwt: invalid signature")

// ErrTokenMalformed indicates a token that cannot be decoded or lacks required claims.
var ErrTokenMalformed = errors.New("jwt: malformed token")

// accessTokenClaims is the wire representation of domain.AccessClaims.
type accessTokenClaims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	DepartmentID string `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies access tokens using an HMAC-SHA256 shared secret.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

const defaultAccessTokenTTL = 15 * time.Minute

// NewTokenIssuer constructs a TokenIssuer for the supplied signing key.
func NewTokenIssuer(signingKey string, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("jwt: signing key is required")
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	return &TokenIssuer{
		signingKey: []byte(signingKey),
		issuer:     strings.TrimSpace(issuer),
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		t.now = now
	}
	return t
}

// TTL reports the configured access token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a short-lived access token embedding the account's identity snapshot.
func (t *TokenIssuer) Issue(account domain.Account) (string, domain.AccessClaims, error) {
	if account.ID == "" {
		return "", domain.AccessClaims{}, fmt.Errorf("jwt: account id is required")
	}

	issuedAt := t.now()
	expiresAt := issuedAt.Add(t.ttl)

	claims := accessTokenClaims{
		Email:        account.Email,
		Role:         string(account.Role),
		DepartmentID: account.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", domain.AccessClaims{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	verified := domain.AccessClaims{
		Subject:      account.ID,
		Email:        account.Email,
		Role:         account.Role,
		DepartmentID: account.DepartmentID,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}

	return signed, verified, nil
}

// Verify parses and validates a compact token, distinguishing expiry,
// signature, and structural failures.
func (t *TokenIssuer) Verify(compact string) (domain.AccessClaims, error) {
	if strings.TrimSpace(compact) == "" {
		return domain.AccessClaims{}, ErrTokenMalformed
	}

	var claims accessTokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(compact, &claims, func(token *jwt.Token) (any, error) {
		return t.signingKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.AccessClaims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.AccessClaims{}, ErrInvalidSignature
		default:
			return domain.AccessClaims{}, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return domain.AccessClaims{}, ErrTokenMalformed
	}

	return claimsFromToken(claims)
}

// claimsFromToken converts wire claims into domain claims, rejecting tokens
// that are signed correctly but lack required fields.
func claimsFromToken(claims accessTokenClaims) (domain.AccessClaims, error) {
	if claims.Subject == "" || claims.Email == "" {
		return domain.AccessClaims{}, ErrTokenMalformed
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.AccessClaims{}, ErrTokenMalformed
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return domain.AccessClaims{}, ErrTokenMalformed
	}

	return domain.AccessClaims{
		Subject:      claims.Subject,
		Email:        claims.Email,
		Role:         role,
		DepartmentID: claims.DepartmentID,
		IssuedAt:     claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
