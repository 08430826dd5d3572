package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/tracking/models"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/platform/sentinel"
	"fleetwatch/pkg/requestcontext"
)

type authFunc func(ctx context.Context, username, password string) (string, models.UserProfile, error)

func (f authFunc) Authenticate(ctx context.Context, username, password string) (string, models.UserProfile, error) {
	return f(ctx, username, password)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Set(context.Context, string, string) error { return sentinel.ErrUnavailable }

type ManagerSuite struct {
	suite.Suite
	store   *MemoryStore
	metrics *metrics.Metrics
	calls   int
	authErr error
	token   string
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.calls = 0
	s.authErr = nil
	s.token = "opaque-token"
	s.manager = NewManager(authFunc(s.authenticate), s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
}

func (s *ManagerSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *ManagerSuite) authenticate(_ context.Context, username, password string) (string, models.UserProfile, error) {
	s.calls++
	if s.authErr != nil {
		return "", models.UserProfile{}, s.authErr
	}
	return s.token, models.UserProfile{Username: username, Extra: map[string]any{"role": "admin"}}, nil
}

func signed(exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return token
}

func (s *ManagerSuite) TestLogin() {
	ctx := context.Background()

	s.Run("persists token and profile", func() {
		profile, err := s.manager.Login(ctx, " operator ", "secret")
		s.Require().NoError(err)
		s.Equal("operator", profile.Username)

		token, err := s.store.Get(ctx, KeyToken)
		s.Require().NoError(err)
		s.Equal("opaque-token", token)

		stored, err := s.manager.Profile(ctx)
		s.Require().NoError(err)
		s.Equal("operator", stored.Username)
		s.Equal("admin", stored.Extra["role"])
		s.True(s.manager.IsAuthenticated(ctx))
	})

	s.Run("missing credentials are rejected without a backend call", func() {
		_, err := s.manager.Login(ctx, "", "secret")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		_, err = s.manager.Login(ctx, "operator", "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Zero(s.calls)
	})

	s.Run("authentication failure stores nothing", func() {
		s.authErr = dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		_, err := s.manager.Login(ctx, "operator", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid credentials", dErrors.Message(err))
		s.False(s.manager.IsAuthenticated(ctx))
	})

	s.Run("empty token is a malformed response", func() {
		s.token = ""
		_, err := s.manager.Login(ctx, "operator", "secret")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure surfaces as internal error", func() {
		m := NewManager(authFunc(s.authenticate), failingStore{NewMemoryStore()})
		_, err := m.Login(ctx, "operator", "secret")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.True(errors.Is(err, sentinel.ErrUnavailable))
	})
}

func (s *ManagerSuite) TestLogout() {
	ctx := context.Background()
	_, err := s.manager.Login(ctx, "operator", "secret")
	s.Require().NoError(err)

	s.Require().NoError(s.manager.Logout(ctx))

	token, err := s.manager.Token(ctx)
	s.Require().NoError(err)
	s.Empty(token)
	_, err = s.manager.Profile(ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.False(s.manager.IsAuthenticated(ctx))
}

func (s *ManagerSuite) TestForceLogout() {
	ctx := context.Background()
	_, err := s.manager.Login(ctx, "operator", "secret")
	s.Require().NoError(err)

	s.manager.ForceLogout(ctx)

	s.False(s.manager.IsAuthenticated(ctx))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ForcedLogouts))
}

func (s *ManagerSuite) TestJWTExpiry() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("unexpired jwt is authenticated", func() {
		s.token = signed(now.Add(time.Hour))
		_, err := s.manager.Login(ctx, "operator", "secret")
		s.Require().NoError(err)
		s.True(s.manager.IsAuthenticated(ctx))
	})

	s.Run("expired jwt is not authenticated", func() {
		s.token = signed(now.Add(-time.Minute))
		_, err := s.manager.Login(ctx, "operator", "secret")
		s.Require().NoError(err)
		s.False(s.manager.IsAuthenticated(ctx))
	})
}

func (s *ManagerSuite) TestExpired() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.True(Expired(signed(now), now), "exp equal to now is expired")
	s.False(Expired(signed(now.Add(time.Second)), now))
	s.False(Expired("not-a-jwt", now))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	s.Require().NoError(err)
	s.False(Expired(noExp, now))
}

func (s *ManagerSuite) TestMemoryStore() {
	ctx := context.Background()
	_, err := s.store.Get(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Set(ctx, "k", "v"))
	v, err := s.store.Get(ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", v)

	s.Require().NoError(s.store.Delete(ctx, "k", "absent"))
	_, err = s.store.Get(ctx, "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
