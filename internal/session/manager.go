// Package session authenticates the operator and persists the bearer token
// and profile for the lifetime of the console session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/platform/sentinel"
	"fleetwatch/pkg/requestcontext"
)

// Authenticator exchanges operator credentials for a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, models.UserProfile, error)
}

// Manager owns the operator session.
type Manager struct {
	auth    Authenticator
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager constructs a Manager persisting into store.
func NewManager(auth Authenticator, store Store, opts ...Option) *Manager {
	m := &Manager{auth: auth, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates and persists the token and profile.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username and password required")
	}

	token, profile, err := m.auth.Authenticate(ctx, username, password)
	if err != nil {
		m.logger.WarnContext(ctx, "login failed",
			"username", username,
			"code", string(dErrors.CodeOf(err)),
		)
		return nil, err
	}
	if token == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "login response carried no token")
	}
	if profile.Username == "" {
		profile.Username = username
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode profile")
	}
	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}
	if err := m.store.Set(ctx, KeyUser, string(raw)); err != nil {
		_ = m.store.Delete(ctx, KeyToken)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}

	m.logAudit(ctx, "operator_logged_in", "username", profile.Username)
	return &profile, nil
}

// Logout clears the persisted token and profile.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session")
	}
	m.logAudit(ctx, "operator_logged_out")
	return nil
}

// ForceLogout ends the session after the backend rejected the token.
func (m *Manager) ForceLogout(ctx context.Context) {
	m.metrics.IncrementForcedLogout()
	m.logger.WarnContext(ctx, "backend rejected credentials, logging out")
	if err := m.Logout(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear session after unauthorized response", "error", err)
	}
}

// Token returns the bearer token, or "" when logged out.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Get(ctx, KeyToken)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session")
	}
	return token, nil
}

// Profile returns the logged-in operator.
func (m *Manager) Profile(ctx context.Context) (*models.UserProfile, error) {
	raw, err := m.store.Get(ctx, KeyUser)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not logged in")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session")
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored profile is corrupt")
	}
	return &profile, nil
}

// IsAuthenticated reports whether a token is held. Tokens that parse as a
// JWT with an exp claim in the past are treated as absent; opaque tokens
// are trusted until the backend rejects them.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, err := m.Token(ctx)
	if err != nil || token == "" {
		return false
	}
	return !Expired(token, requestcontext.Now(ctx))
}

// Expired reports whether token is a JWT whose exp is at or before now.
// The signature is not verified; the backend remains the authority.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

func (m *Manager) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if m.logger != nil {
		m.logger.InfoContext(ctx, event, args...)
	}
}
