package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
// deactivated accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service provides authentication operations: password login, token
// issuance and bearer-token verification.
type Service struct {
	users      Repository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(users Repository, secret []byte, tokenTTL time.Duration, bcryptCost int) *Service {
	return &Service{
		users:      users,
		secret:     secret,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

// HashPassword hashes a plaintext password at the service's configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// Login checks the email/password pair and issues a session token. All
// failure causes collapse into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}

	if !u.Active {
		return "", nil, ErrInvalidCredentials
	}
	if VerifyPassword(u.PasswordHash, password) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := signToken(s.secret, u, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}

	return token, u, nil
}

// Verify validates a bearer token and re-fetches the referenced user so
// that role changes and deactivation take effect on the very next request.
func (s *Service) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	claims, err := parseToken(s.secret, rawToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("fetching user for token: %w", err)
	}

	if !u.Active {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
	}, nil
}

// Bootstrap creates the initial admin account if the users table is empty.
// Returns true when an account was created.
func (s *Service) Bootstrap(ctx context.Context, email, password string) (bool, error) {
	count, err := s.users.CountAll(ctx)
	if err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if email == "" || password == "" {
		return false, errors.New("users table is empty and no admin seed configured")
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing admin password: %w", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         RoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("creating admin: %w", err)
	}

	slog.Info("seed admin account created", "email", u.Email)
	return true, nil
}
