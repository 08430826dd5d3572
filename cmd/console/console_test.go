package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fleetwatch/internal/display"
	"fleetwatch/internal/tracking/history"
	"fleetwatch/internal/tracking/liveness"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/track"
	dErrors "fleetwatch/pkg/domain-errors"
)

type fakeSession struct {
	authenticated bool
	loginErr      error
	username      string
	password      string
	loggedOut     bool
}

func (f *fakeSession) Login(_ context.Context, username, password string) (*models.UserProfile, error) {
	f.username, f.password = username, password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.authenticated = true
	return &models.UserProfile{Username: username}, nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.loggedOut = true
	f.authenticated = false
	return nil
}

func (f *fakeSession) Profile(context.Context) (*models.UserProfile, error) {
	if !f.authenticated {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not logged in")
	}
	return &models.UserProfile{Username: "admin"}, nil
}

func (f *fakeSession) IsAuthenticated(context.Context) bool { return f.authenticated }

type fakeEngine struct {
	starts    int
	stops     int
	rows      []display.DeviceRow
	view      display.TrackView
	markers   []display.Marker
	entries   []models.AuditEntry
	selected  []string
	selectErr error
	revoked   []string
	revokeErr error
}

func (f *fakeEngine) Start(context.Context) error { f.starts++; return nil }

func (f *fakeEngine) Stop() { f.stops++ }

func (f *fakeEngine) RosterView(time.Time) []display.DeviceRow { return f.rows }

func (f *fakeEngine) TrackView() display.TrackView { return f.view }

func (f *fakeEngine) MapDevices(time.Time) []display.Marker { return f.markers }

func (f *fakeEngine) AuditEntries() []models.AuditEntry { return f.entries }

func (f *fakeEngine) Select(_ context.Context, id string) error {
	f.selected = append(f.selected, id)
	return f.selectErr
}

func (f *fakeEngine) RefreshHistory(context.Context) (*track.Task, error) {
	return nil, dErrors.New(dErrors.CodeBadRequest, "no device selected")
}

func (f *fakeEngine) RefreshAudit(context.Context) error { return nil }

func (f *fakeEngine) Revoke(_ context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	return f.revokeErr
}

func (f *fakeEngine) Delete(ctx context.Context, id string) error { return f.Revoke(ctx, id) }

type ConsoleSuite struct {
	suite.Suite
	session *fakeSession
	engine  *fakeEngine
	expired chan struct{}
	out     *bytes.Buffer
}

func TestConsoleSuite(t *testing.T) {
	suite.Run(t, new(ConsoleSuite))
}

func (s *ConsoleSuite) SetupTest() {
	s.session = &fakeSession{}
	s.engine = &fakeEngine{}
	s.expired = make(chan struct{}, 1)
	s.out = &bytes.Buffer{}
}

func (s *ConsoleSuite) SetupSubTest() {
	s.SetupTest()
}

// run feeds input to a console and returns everything it printed.
func (s *ConsoleSuite) run(input string) string {
	op := newOperator(strings.NewReader(input), s.out)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := newConsole(op, s.session, s.engine, s.expired, logger)
	s.Require().NoError(c.Run(context.Background()))
	return s.out.String()
}

func (s *ConsoleSuite) TestLogin() {
	s.Run("credentials on the command line", func() {
		s.engine.rows = []display.DeviceRow{{ID: "dev-1", Name: "alice", Liveness: liveness.Online, Battery: "80%"}}

		out := s.run("login admin secret\nquit\n")

		s.Contains(out, "Welcome, admin.")
		s.Contains(out, "1 active device(s).")
		s.Equal("secret", s.session.password)
		s.Equal(1, s.engine.starts)
		s.GreaterOrEqual(s.engine.stops, 1, "engine stops on exit")
	})

	s.Run("prompts for missing password", func() {
		out := s.run("login admin\nhunter2\n")

		s.Contains(out, "Password: ")
		s.Equal("admin", s.session.username)
		s.Equal("hunter2", s.session.password)
	})

	s.Run("shows the backend message on failure", func() {
		s.session.loginErr = dErrors.Wrap(io.ErrUnexpectedEOF, dErrors.CodeUnauthorized, "Invalid credentials")

		out := s.run("login admin wrong\n")

		s.Contains(out, "Invalid credentials")
		s.Zero(s.engine.starts)
	})

	s.Run("commands require a session", func() {
		out := s.run("devices\n")

		s.Contains(out, "Please log in first.")
	})

	s.Run("stored session is resumed", func() {
		s.session.authenticated = true

		out := s.run("whoami\n")

		s.Contains(out, "Resuming session for admin.")
		s.Equal(1, s.engine.starts)
	})
}

func (s *ConsoleSuite) TestLogout() {
	s.session.authenticated = true

	out := s.run("logout\ndevices\n")

	s.Contains(out, "Logged out.")
	s.Contains(out, "Please log in first.")
	s.True(s.session.loggedOut)
}

func (s *ConsoleSuite) TestExpiredSessionReturnsToLogin() {
	s.session.authenticated = true
	s.expired <- struct{}{}

	out := s.run("devices\n")

	s.Contains(out, "Session expired. Please log in again.")
	s.Contains(out, "Please log in first.")
	s.GreaterOrEqual(s.engine.stops, 1)
}

func (s *ConsoleSuite) TestDevices() {
	s.session.authenticated = true
	s.engine.rows = []display.DeviceRow{
		{ID: "dev-1", Name: "alice", Liveness: liveness.Online, Network: models.NetworkOnline, Battery: "80%", Selected: true},
		{ID: "dev-2", Name: "dev-2", Liveness: liveness.Offline, Battery: "N/A"},
	}

	out := s.run("devices\n")

	s.Contains(out, "LIVENESS")
	s.Contains(out, "alice")
	s.Contains(out, "N/A")
	s.Contains(out, "Never")
}

func (s *ConsoleSuite) TestSelect() {
	s.Run("selects by id", func() {
		s.session.authenticated = true

		out := s.run("select dev-1\ndeselect\n")

		s.Contains(out, "Selected dev-1.")
		s.Equal([]string{"dev-1", ""}, s.engine.selected)
	})

	s.Run("reports unknown devices", func() {
		s.session.authenticated = true
		s.engine.selectErr = dErrors.New(dErrors.CodeNotFound, "device not in active roster")

		out := s.run("select ghost\n")

		s.Contains(out, "device not in active roster")
	})

	s.Run("requires an id", func() {
		s.session.authenticated = true

		out := s.run("select\n")

		s.Contains(out, "Usage: select <id>")
		s.Empty(s.engine.selected)
	})
}

func (s *ConsoleSuite) TestHistory() {
	s.Run("nothing selected", func() {
		s.session.authenticated = true

		out := s.run("history\nrefresh\n")

		s.Contains(out, "No device selected.")
		s.Contains(out, "no device selected")
	})

	s.Run("prints key events", func() {
		s.session.authenticated = true
		t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
		s.engine.view = display.TrackView{
			DeviceID: "dev-1",
			Start:    &display.TrackPoint{Point: display.Point{Lat: 1, Lng: 2}, Timestamp: t0},
			KeyEvents: []models.KeyEvent{
				{LocationSample: models.LocationSample{Timestamp: t0, Lat: 1, Lng: 2, Battery: 90, Network: models.NetworkOnline}, IsFirst: true},
				{LocationSample: models.LocationSample{Timestamp: t0.Add(time.Hour), Lat: 1.1, Lng: 2.1, Battery: 70, Network: models.NetworkOnline}},
			},
			Summary: history.Summary{TotalLocations: 5, KeyEvents: 2},
		}

		out := s.run("history\n")

		s.Contains(out, "5 locations, 2 key events")
		s.Contains(out, "Jan 05, 09:00")
		s.Contains(out, "start")
		s.Contains(out, "battery")
	})
}

func (s *ConsoleSuite) TestAudit() {
	s.session.authenticated = true
	s.engine.entries = []models.AuditEntry{
		{Timestamp: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), Action: "DEVICE_REVOKE", User: "admin", DeviceID: "dev-1"},
	}

	out := s.run("audit\n")

	s.Contains(out, "DEVICE REVOKE")
	s.Contains(out, "compliance")
	s.Contains(out, "dev-1")
}

func (s *ConsoleSuite) TestCommands() {
	s.Run("declined", func() {
		s.session.authenticated = true
		s.engine.revokeErr = dErrors.New(dErrors.CodeDeclined, "operator declined")

		out := s.run("revoke dev-1\n")

		s.Contains(out, "Cancelled.")
		s.Equal([]string{"dev-1"}, s.engine.revoked)
	})

	s.Run("rejected is left to the notice", func() {
		s.session.authenticated = true
		s.engine.revokeErr = dErrors.New(dErrors.CodeCommandRejected, "Failed to delete device")

		out := s.run("delete dev-1\n")

		s.NotContains(out, "Failed to delete device")
	})

	s.Run("requires an id", func() {
		s.session.authenticated = true

		out := s.run("revoke\n")

		s.Contains(out, "Usage: revoke <id> | delete <id>")
		s.Empty(s.engine.revoked)
	})
}

func TestOperatorConfirm(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		op := newOperator(strings.NewReader(tc.input), &out)
		ok, err := op.Confirm(ctx, "Are you sure?")
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "input %q", tc.input)
		assert.Equal(t, "Are you sure? [y/N]: ", out.String())
	}
}

func TestOperatorNotify(t *testing.T) {
	var out bytes.Buffer
	op := newOperator(strings.NewReader(""), &out)

	op.Notify(context.Background(), models.Notice{Level: models.NoticeError, Message: "Failed to revoke device"})
	op.Notify(context.Background(), models.Notice{Level: models.NoticeInfo, Message: "Device deleted successfully"})

	assert.Equal(t, "\n!! Failed to revoke device\n\n\nDevice deleted successfully\n\n", out.String())
}

func TestOperatorReadLineHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	op := newOperator(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := op.readLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
