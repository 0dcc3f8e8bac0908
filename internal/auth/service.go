package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avelichko/workchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email doesn't meet constraints.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidName is returned when the display name doesn't meet constraints.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token
// plus the created user.
func (s *Service) Register(ctx context.Context, email, name, password string) (string, *store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if len(email) < 3 || !strings.Contains(email, "@") {
		return "", nil, ErrInvalidEmail
	}
	if len(name) < 1 || len(name) > 64 {
		return "", nil, ErrInvalidName
	}
	if len(password) < 6 {
		return "", nil, ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, name, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", nil, ErrUserExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email, user.Name)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login validates credentials and returns a JWT token plus the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email, user.Name)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
