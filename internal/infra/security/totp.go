package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrMissingSecret is returned when a TOTP operation is attempted without a secret.
var ErrMissingSecret = errors.New("totp secret is required")

const totpPeriod = 30

// TOTPProvider generates and validates time-based one-time passwords.
type TOTPProvider struct {
	issuer string
	skew   uint
	now    func() time.Time
}

// NewTOTPProvider constructs a provider. skew is the number of adjacent
// 30-second steps accepted on either side of the current one.
func NewTOTPProvider(issuer string, skew uint) *TOTPProvider {
	return &TOTPProvider{
		issuer: issuer,
		skew:   skew,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (p *TOTPProvider) WithClock(now func() time.Time) *TOTPProvider {
	if now != nil {
		p.now = now
	}
	return p
}

// Setup generates a fresh shared secret and the otpauth provisioning URI
// that authenticator apps consume.
func (p *TOTPProvider) Setup(accountEmail string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountEmail,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// Validate checks a six-digit code against the shared secret, accepting
// the configured clock skew.
func (p *TOTPProvider) Validate(code, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}

	ok, err := totp.ValidateCustom(code, secret, p.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      p.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Wrong-length input (a backup code tried against the TOTP check)
		// or a corrupt secret is a failed validation, not an internal error.
		if errors.Is(err, otp.ErrValidateInputInvalidLength) || errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
			return false, nil
		}
		return false, fmt.Errorf("validate totp code: %w", err)
	}

	return ok, nil
}
