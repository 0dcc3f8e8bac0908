package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelichko/workchat/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidEmail(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "Alice", "password123"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice@example.com", "Alice", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_NormalizesEmailAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, user, err := svc.Register(ctx, " Alice@Example.com ", "Alice", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	// Should collide because the stored email is normalized.
	if _, _, err := svc.Register(ctx, "alice@example.com", "Alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "bob@example.com", "Bob", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "bob@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	token, user, err := svc.Login(ctx, "bob@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != user.ID || claims.Name != "Bob" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
