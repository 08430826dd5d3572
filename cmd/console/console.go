package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"fleetwatch/internal/audit"
	"fleetwatch/internal/display"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/track"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/requestcontext"
)

// Session is the operator's authentication state.
type Session interface {
	Login(ctx context.Context, username, password string) (*models.UserProfile, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.UserProfile, error)
	IsAuthenticated(ctx context.Context) bool
}

// Engine is the dashboard as seen from the console.
type Engine interface {
	Start(ctx context.Context) error
	Stop()
	RosterView(now time.Time) []display.DeviceRow
	TrackView() display.TrackView
	MapDevices(now time.Time) []display.Marker
	AuditEntries() []models.AuditEntry
	Select(ctx context.Context, deviceID string) error
	RefreshHistory(ctx context.Context) (*track.Task, error)
	RefreshAudit(ctx context.Context) error
	Revoke(ctx context.Context, deviceID string) error
	Delete(ctx context.Context, deviceID string) error
}

const helpText = `Commands:
  login [username] [password]  sign in to the tracking service
  logout                       end the session
  whoami                       show the signed-in operator
  devices                      list active devices
  select <id>                  select a device and load its weekly history
  deselect                     clear the selection
  history                      show the selected device's key events
  refresh                      reload the selected device's weekly history
  map                          show the device pins and map center
  audit                        reload and show the audit log
  revoke <id>                  erase all location data of a device
  delete <id>                  delete a device and all its data
  help                         show this text
  quit                         leave the console
`

// Console is the line-oriented operator interface.
type Console struct {
	op       *operator
	session  Session
	engine   Engine
	expired  <-chan struct{}
	logger   *slog.Logger
	loggedIn bool
}

func newConsole(op *operator, session Session, engine Engine, expired <-chan struct{}, logger *slog.Logger) *Console {
	return &Console{op: op, session: session, engine: engine, expired: expired, logger: logger}
}

// Run serves commands until quit, end of input or ctx cancellation. A
// stored session is resumed without asking for credentials.
func (c *Console) Run(ctx context.Context) error {
	defer c.engine.Stop()

	c.op.printf("Fleetwatch operator console. Type \"help\" for commands.\n")
	if c.session.IsAuthenticated(ctx) {
		if profile, err := c.session.Profile(ctx); err == nil {
			c.op.printf("Resuming session for %s.\n", profile.Username)
		}
		c.startEngine(ctx)
	}

	for {
		c.drainExpired(ctx)
		c.prompt()
		select {
		case <-ctx.Done():
			c.op.printf("\n")
			return nil
		case <-c.expired:
			c.op.printf("\n")
			c.onExpired(ctx)
		case line, ok := <-c.op.lines:
			if !ok {
				return nil
			}
			if quit := c.dispatch(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (c *Console) prompt() {
	if c.loggedIn {
		c.op.printf("fleetwatch> ")
		return
	}
	c.op.printf("fleetwatch (signed out)> ")
}

// dispatch runs one command line and reports whether the console should
// exit.
func (c *Console) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	ctx, _ = requestcontext.EnsureRequestID(ctx)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.op.printf("%s", helpText)
		return false
	case "login":
		c.login(ctx, args)
		return false
	}

	if !c.loggedIn {
		c.op.printf("Please log in first.\n")
		return false
	}

	switch cmd {
	case "logout":
		c.logout(ctx)
	case "whoami":
		c.whoami(ctx)
	case "devices":
		c.devices(ctx)
	case "select":
		c.selectDevice(ctx, args)
	case "deselect":
		c.report(c.engine.Select(ctx, ""))
	case "history":
		c.history()
	case "refresh":
		c.refresh(ctx)
	case "map":
		c.mapView(ctx)
	case "audit":
		c.auditLog(ctx)
	case "revoke":
		c.command(ctx, args, c.engine.Revoke)
	case "delete":
		c.command(ctx, args, c.engine.Delete)
	default:
		c.op.printf("Unknown command %q. Type \"help\" for commands.\n", cmd)
	}
	return false
}

func (c *Console) login(ctx context.Context, args []string) {
	if c.loggedIn {
		c.op.printf("Already logged in. Use \"logout\" first.\n")
		return
	}
	var username, password string
	if len(args) > 0 {
		username = args[0]
	}
	if len(args) > 1 {
		password = args[1]
	}

	var err error
	if username == "" {
		if username, err = c.op.ask(ctx, "Username: "); err != nil {
			return
		}
	}
	if password == "" {
		if password, err = c.op.ask(ctx, "Password: "); err != nil {
			return
		}
	}

	profile, err := c.session.Login(ctx, username, password)
	if err != nil {
		c.op.printf("%s\n", userMessage(err))
		return
	}
	c.op.printf("Welcome, %s.\n", profile.Username)
	c.startEngine(ctx)
}

func (c *Console) startEngine(ctx context.Context) {
	c.loggedIn = true
	if err := c.engine.Start(ctx); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			c.logger.ErrorContext(ctx, "failed to start dashboard", "error", err)
		}
		return
	}
	c.op.printf("%d active device(s).\n", len(c.engine.RosterView(requestcontext.Now(ctx))))
}

func (c *Console) logout(ctx context.Context) {
	c.engine.Stop()
	c.loggedIn = false
	if err := c.session.Logout(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to clear session", "error", err)
	}
	c.op.printf("Logged out.\n")
}

// drainExpired handles a forced logout raised while the last command ran.
func (c *Console) drainExpired(ctx context.Context) {
	select {
	case <-c.expired:
		c.onExpired(ctx)
	default:
	}
}

func (c *Console) onExpired(ctx context.Context) {
	c.engine.Stop()
	if !c.loggedIn {
		return
	}
	c.loggedIn = false
	c.op.printf("Session expired. Please log in again.\n")
	c.logger.InfoContext(ctx, "returned to login after unauthorized response")
}

func (c *Console) whoami(ctx context.Context) {
	profile, err := c.session.Profile(ctx)
	if err != nil {
		c.op.printf("%s\n", userMessage(err))
		return
	}
	c.op.printf("%s\n", profile.Username)
}

func (c *Console) devices(ctx context.Context) {
	rows := c.engine.RosterView(requestcontext.Now(ctx))
	if len(rows) == 0 {
		c.op.printf("No active devices.\n")
		return
	}
	c.table(func(w io.Writer) {
		fmt.Fprintln(w, "\tID\tNAME\tLIVENESS\tNETWORK\tBATTERY\tLAST SEEN")
		for _, r := range rows {
			mark := ""
			if r.Selected {
				mark = "*"
			}
			lastSeen := display.FormatTime(r.LastSeen)
			if lastSeen == "" {
				lastSeen = "Never"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				mark, r.ID, r.Name, r.Liveness, dash(string(r.Network)), r.Battery, lastSeen)
		}
	})
}

func (c *Console) selectDevice(ctx context.Context, args []string) {
	if len(args) != 1 {
		c.op.printf("Usage: select <id>\n")
		return
	}
	if err := c.engine.Select(ctx, args[0]); err != nil {
		c.report(err)
		return
	}
	c.op.printf("Selected %s. Loading weekly history...\n", args[0])
}

func (c *Console) history() {
	view := c.engine.TrackView()
	if view.DeviceID == "" {
		c.op.printf("No device selected.\n")
		return
	}
	c.op.printf("Weekly history of %s: %d locations, %d key events.\n",
		view.DeviceID, view.Summary.TotalLocations, view.Summary.KeyEvents)
	if view.Start != nil {
		c.op.printf("Start: %.5f, %.5f at %s\n", view.Start.Lat, view.Start.Lng, display.FormatTime(&view.Start.Timestamp))
	}
	if view.End != nil {
		c.op.printf("End:   %.5f, %.5f at %s\n", view.End.Lat, view.End.Lng, display.FormatTime(&view.End.Timestamp))
	}
	if len(view.KeyEvents) == 0 {
		c.op.printf("No location history for the last 7 days.\n")
		return
	}
	c.table(func(w io.Writer) {
		fmt.Fprintln(w, "TIME\tLAT\tLNG\tBATTERY\tNETWORK\tEVENT")
		for _, e := range view.KeyEvents {
			fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%d%%\t%s\t%s\n",
				display.FormatTime(&e.Timestamp), e.Lat, e.Lng, e.Battery, e.Network, eventLabel(e))
		}
	})
}

func eventLabel(e models.KeyEvent) string {
	var labels []string
	if e.IsFirst {
		labels = append(labels, "start")
	}
	if e.IsLast {
		labels = append(labels, "end")
	}
	if e.IsStatusChange {
		labels = append(labels, "status change")
	}
	if len(labels) == 0 {
		return "battery"
	}
	return strings.Join(labels, ", ")
}

func (c *Console) refresh(ctx context.Context) {
	task, err := c.engine.RefreshHistory(ctx)
	if err != nil {
		c.report(err)
		return
	}
	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Cancel()
		return
	}
	c.history()
}

func (c *Console) mapView(ctx context.Context) {
	view := c.engine.TrackView()
	c.op.printf("Map center %.5f, %.5f (zoom %d), route color %s.\n",
		view.Viewport.Center.Lat, view.Viewport.Center.Lng, view.Viewport.Zoom, view.Color)

	markers := c.engine.MapDevices(requestcontext.Now(ctx))
	if len(markers) == 0 {
		c.op.printf("No devices with a known location.\n")
		return
	}
	c.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tLAT\tLNG\tLIVENESS\tBATTERY\tLAST SEEN")
		for _, m := range markers {
			lastSeen := m.LastSeen
			if lastSeen == "" {
				lastSeen = "Never"
			}
			fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\t%s\t%s\t%s\n",
				m.DeviceID, m.Name, m.Position.Lat, m.Position.Lng, m.Liveness, m.Battery, lastSeen)
		}
	})
}

func (c *Console) auditLog(ctx context.Context) {
	if err := c.engine.RefreshAudit(ctx); err != nil && !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		c.op.printf("Could not reload the audit log; showing the last copy.\n")
	}
	entries := c.engine.AuditEntries()
	if len(entries) == 0 {
		c.op.printf("No audit entries.\n")
		return
	}
	c.table(func(w io.Writer) {
		fmt.Fprintln(w, "TIME\tACTION\tCATEGORY\tUSER\tDEVICE\tDETAILS")
		for _, e := range entries {
			ts := e.Timestamp
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				display.FormatTime(&ts), audit.HumanAction(e.Action), audit.Category(e.Action),
				dash(e.User), dash(e.DeviceID), e.Details)
		}
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (c *Console) command(ctx context.Context, args []string, run func(context.Context, string) error) {
	if len(args) != 1 {
		c.op.printf("Usage: revoke <id> | delete <id>\n")
		return
	}
	err := run(ctx, args[0])
	switch {
	case err == nil, dErrors.HasCode(err, dErrors.CodeCommandRejected):
		// The outcome was already shown as a notice.
	case dErrors.HasCode(err, dErrors.CodeDeclined):
		c.op.printf("Cancelled.\n")
	default:
		c.report(err)
	}
}

// report prints a failed command. Unauthorized errors are left to the
// forced-logout path.
func (c *Console) report(err error) {
	if err == nil || dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return
	}
	c.op.printf("%s\n", userMessage(err))
}

func (c *Console) table(render func(w io.Writer)) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	render(w)
	_ = w.Flush()
	c.op.write(buf.Bytes())
}

// userMessage returns the outermost coded message of err.
func userMessage(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
