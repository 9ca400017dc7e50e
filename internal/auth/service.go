// Package auth guards the mutating HTTP endpoints with bearer tokens.
// Tokens carry a role; casbin decides what each role may do.
package auth

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/storage"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"

	// BootstrapTokenID identifies the token configured through
	// server.refresh_token rather than stored in the database.
	BootstrapTokenID = "bootstrap"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownRole  = errors.New("unknown role")
)

//go:embed model.conf
var modelConf string

// policies lists sub, obj, act rules. "*" matches any object or action.
var policies = [][]string{
	{RoleAdmin, "*", "*"},
	{RoleOperator, "prices", "refresh"},
	{RoleOperator, "prices", "read"},
	{RoleViewer, "prices", "read"},
}

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer

	// bootstrap is the bcrypt hash of the configured static token, if any.
	bootstrap []byte
	now       func() time.Time
}

// NewService builds the enforcer from the embedded model. s holds issued
// tokens and may be nil when only a bootstrap token is used.
func NewService(s storage.Storage) (*Service, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("auth model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("auth policies: %w", err)
	}
	return &Service{storage: s, enforcer: e, now: time.Now}, nil
}

// SetBootstrapToken accepts raw as an admin token without a database row.
// An empty raw disables it.
func (s *Service) SetBootstrapToken(raw string) error {
	if raw == "" {
		s.bootstrap = nil
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap token: %w", err)
	}
	s.bootstrap = hash
	return nil
}

// ValidRole reports whether role has any policy.
func ValidRole(role string) bool {
	for _, p := range policies {
		if p[0] == role {
			return true
		}
	}
	return false
}

// CreateToken issues a token and returns the stored row plus the raw
// `<id>.<secret>` value. The raw value is never persisted.
func (s *Service) CreateToken(ctx context.Context, name, role string, expiresAt *time.Time) (*storage.APIToken, string, error) {
	if s.storage == nil {
		return nil, "", errors.New("no token store configured")
	}
	if !ValidRole(role) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	id := uuid.New().String()
	secret := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	t := storage.APIToken{
		ID:         id,
		Name:       name,
		SecretHash: string(hash),
		Role:       role,
		CreatedAt:  s.now().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}
	return &t, id + "." + secret, nil
}

// ValidateToken resolves a raw bearer value to its token.
func (s *Service) ValidateToken(ctx context.Context, raw string) (*storage.APIToken, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	if s.bootstrap != nil && bcrypt.CompareHashAndPassword(s.bootstrap, []byte(raw)) == nil {
		return &storage.APIToken{ID: BootstrapTokenID, Name: BootstrapTokenID, Role: RoleAdmin}, nil
	}

	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" || s.storage == nil {
		return nil, ErrInvalidToken
	}
	t, err := s.storage.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidToken
	}
	now := s.now()
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	if err := s.storage.UpdateTokenLastUsed(ctx, t.ID, now.UTC()); err != nil {
		logger.WithModule("auth").Warnf("token %s: record last use: %v", t.ID, err)
	}
	return t, nil
}

func (s *Service) ListTokens(ctx context.Context) ([]storage.APIToken, error) {
	if s.storage == nil {
		return nil, nil
	}
	return s.storage.ListTokens(ctx)
}

// RevokeToken deletes the token. Revoking an unknown id is an error so
// typos do not look like success.
func (s *Service) RevokeToken(ctx context.Context, id string) error {
	if s.storage == nil {
		return errors.New("no token store configured")
	}
	t, err := s.storage.GetToken(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("token %s not found", id)
	}
	return s.storage.DeleteToken(ctx, id)
}

// Enforce reports whether role may perform act on obj.
func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}
