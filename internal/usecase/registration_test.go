package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
)

func newRegistrationFixture(t *testing.T, accounts ...domain.Account) (*RegistrationService, *fakeAccountRepository) {
	t.Helper()

	accountRepo := newFakeAccountRepository(accounts...)
	service := NewRegistrationService(accountRepo, fakeHasher{}, zaptest.NewLogger(t))
	service.WithClock(func() time.Time { return testTime })

	return service, accountRepo
}

func TestRegisterSuccess(t *testing.T) {
	service, repo := newRegistrationFixture(t)

	account, err := service.Register(context.Background(), RegisterInput{
		Email:        "A@X.com",
		Password:     "Viaduct-Quartz-91",
		Role:         "end_user",
		DepartmentID: "D1",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if account.Email != "a@x.com" {
		t.Fatalf("email not normalized: %s", account.Email)
	}
	if account.Role != domain.RoleEndUser {
		t.Fatalf("unexpected role: %s", account.Role)
	}
	if !account.IsActive {
		t.Fatal("new accounts must be active")
	}
	if account.PasswordHash != "" {
		t.Fatal("password hash leaked in result")
	}

	stored := repo.accounts[account.ID]
	if stored.PasswordHash != "hashed:Viaduct-Quartz-91" {
		t.Fatalf("stored hash mismatch: %s", stored.PasswordHash)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _ := newRegistrationFixture(t, activeAccount())

	_, err := service.Register(context.Background(), RegisterInput{
		Email:        "a@x.com",
		Password:     "Viaduct-Quartz-91",
		Role:         "PREPARER",
		DepartmentID: "D1",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterInvalidRole(t *testing.T) {
	service, _ := newRegistrationFixture(t)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "b@x.com",
		Password: "Viaduct-Quartz-91",
		Role:     "SUPERUSER",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	service, _ := newRegistrationFixture(t)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "b@x.com",
		Password: "password",
		Role:     "END_USER",
	})
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
}

func TestRegisterInvalidEmail(t *testing.T) {
	service, _ := newRegistrationFixture(t)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Password: "Viaduct-Quartz-91",
		Role:     "END_USER",
	})
	if err == nil {
		t.Fatal("expected error for invalid email")
	}
}

func TestDeactivateDisablesAccount(t *testing.T) {
	service, repo := newRegistrationFixture(t, activeAccount())

	if err := service.Deactivate(context.Background(), "acc-1"); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}

	if repo.accounts["acc-1"].IsActive {
		t.Fatal("expected account to be inactive after deactivation")
	}
}

func TestDeactivateUnknownAccount(t *testing.T) {
	service, _ := newRegistrationFixture(t)

	if err := service.Deactivate(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
