// Package auth is the credential service: registration, login and bearer
// tokens with a revocation set.
//
// Revocation lookups may fail open. When the revocation store is unreachable
// and failOpen is set, tokens that are otherwise valid are accepted. This keeps
// the API available during a cache outage at the cost of honouring logouts.
// Deployments that prefer the opposite set revocation_fail_open to false.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

const (
	DefaultTokenTTL = 15 * time.Minute

	invalidCredentials = "invalid credentials"
	invalidToken       = "invalid or expired token"
)

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	users    UserRepository
	revoked  cache.RevocationSet
	secret   []byte
	tokenTTL time.Duration
	failOpen bool
	timeout  time.Duration
	now      func() time.Time
}

func New(users UserRepository, revoked cache.RevocationSet, secret string) *Service {
	return &Service{
		users:    users,
		revoked:  revoked,
		secret:   []byte(secret),
		tokenTTL: DefaultTokenTTL,
		failOpen: true,
		timeout:  3 * time.Second,
		now:      time.Now,
	}
}

func (s *Service) WithTokenTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
	return s
}

func (s *Service) WithFailOpen(failOpen bool) *Service {
	s.failOpen = failOpen
	return s
}

func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Register creates a user. The returned user has no password hash set.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("hash password", "error", err.Error())
		return nil, apperr.Dependency("register", err)
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.CreateUser(tctx, models.User{
		Nickname:     strings.TrimSpace(req.Nickname),
		Names:        strings.TrimSpace(req.Names),
		Lastnames:    strings.TrimSpace(req.Lastnames),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		City:         strings.TrimSpace(req.City),
		Phone:        strings.TrimSpace(req.Phone),
	})
	if errors.Is(err, models.ErrEmailTaken) {
		return nil, apperr.Conflict("email already registered")
	}
	if err != nil {
		slog.Error("create user", "error", err.Error())
		return nil, apperr.Dependency("register", err)
	}

	u.PasswordHash = ""
	return u, nil
}

// Login returns a fresh token. Unknown email and wrong password are reported identically.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.GetUserByEmail(tctx, normalizeEmail(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		slog.Error("get user by email", "error", err.Error())
		return nil, apperr.Dependency("login", err)
	}
	if !VerifyPassword(req.Password, u.PasswordHash) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	token, exp, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

func (s *Service) IssueToken(userID uint64) (string, time.Time, error) {
	token, c, err := s.signToken(userID)
	if err != nil {
		slog.Error("issue token", "user_id", userID, "error", err.Error())
		return "", time.Time{}, apperr.Dependency("issue token", err)
	}
	return token, c.ExpiresAt, nil
}

// VerifyToken checks the token and its revocation state.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	c, err := s.parseToken(token)
	if err != nil {
		return nil, apperr.Unauthorized(invalidToken)
	}

	revoked, err := s.IsRevoked(ctx, c.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.Unauthorized(invalidToken)
	}
	return &c, nil
}

// Revoke adds the token to the revocation set for the rest of its lifetime.
// Revoking an expired token is a no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	c, err := s.parseToken(token)
	if err != nil {
		return apperr.Unauthorized(invalidToken)
	}
	if s.revoked == nil {
		return nil
	}

	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.revoked.Revoke(tctx, c.TokenID, ttl); err != nil {
		slog.Error("revoke token", "token_id", c.TokenID, "error", err.Error())
		return apperr.Dependency("revoke token", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is in the revocation set. On a store
// error the result follows the fail-open switch.
func (s *Service) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.revoked == nil {
		return false, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	revoked, err := s.revoked.IsRevoked(tctx, tokenID)
	if err == nil {
		return revoked, nil
	}
	if s.failOpen {
		slog.Warn("revocation check failed, accepting token", "token_id", tokenID, "error", err.Error())
		return false, nil
	}
	slog.Error("revocation check failed", "token_id", tokenID, "error", err.Error())
	return false, apperr.Dependency("check revocation", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
