package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/storage"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownRole  = errors.New("unknown role")
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
	log      logrus.FieldLogger
}

func NewService(s storage.Storage, log logrus.FieldLogger) (*Service, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	policies := [][]string{
		{RoleAdmin, "*", "*"},
		{RoleEditor, "rates", "read"},
		{RoleEditor, "rates", "write"},
		{RoleEditor, "submissions", "read"},
		{RoleEditor, "submissions", "write"},
		{RoleEditor, "users", "read"},
		{RoleEditor, "jobs", "read"},
		{RoleViewer, "rates", "read"},
		{RoleViewer, "submissions", "read"},
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("auth: load policies: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{storage: s, enforcer: e, log: log}, nil
}

// ValidRole reports whether role has policies.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CreateToken issues a new bearer token. Only the sha256 of the raw token is
// stored; the raw value is returned once.
func (s *Service) CreateToken(ctx context.Context, userID, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	if !ValidRole(role) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	rawToken := uuid.New().String() + uuid.New().String()

	t := storage.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		TokenHash: hashToken(rawToken),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}
	return &t, rawToken, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	t, err := s.storage.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if err := s.storage.UpdateTokenLastUsed(ctx, t.ID); err != nil {
		s.log.WithError(err).WithField("token_id", t.ID).Warn("auth: update last used failed")
	}
	return t, nil
}

// Enforce checks whether role may perform act on obj.
func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
