package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"fleetwatch/internal/tracking/models"
	dErrors "fleetwatch/pkg/domain-errors"
)

// LoginFailedMessage is shown when a failed login carries no explanation.
const LoginFailedMessage = "Login failed. Please check your credentials."

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string             `json:"token"`
	User  models.UserProfile `json:"user"`
}

type devicesResponse struct {
	Devices []models.Device `json:"devices"`
}

type trackResponse struct {
	Track []models.LocationSample `json:"track"`
}

type logsResponse struct {
	Logs []models.AuditEntry `json:"logs"`
}

// checkDeviceID rejects IDs that cannot name a single path segment. The
// request URL is joined with path semantics, so "." and ".." would
// address a different endpoint.
func checkDeviceID(deviceID string) error {
	switch deviceID {
	case "":
		return dErrors.New(dErrors.CodeBadRequest, "device ID required")
	case ".", "..":
		return dErrors.New(dErrors.CodeBadRequest, "invalid device ID "+strconv.Quote(deviceID))
	}
	return nil
}

func devicePath(format, deviceID string) string {
	return "/" + format + "/" + url.PathEscape(deviceID)
}

// Authenticate exchanges credentials for a bearer token. A rejected login
// does not invoke the unauthorized hook. The error message prefers the
// backend's detail, then its message, then LoginFailedMessage.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, models.UserProfile, error) {
	var out loginResponse
	err := c.do(ctx, call{
		operation: "Authenticate",
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      loginRequest{Username: username, Password: password},
		out:       &out,
		anonymous: true,
	})
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			return "", models.UserProfile{}, err
		}
		msg := se.Message
		if msg == "" {
			msg = LoginFailedMessage
		}
		code := dErrors.CodeUnauthorized
		if se.StatusCode >= http.StatusInternalServerError {
			code = dErrors.CodeTransport
		}
		return "", models.UserProfile{}, dErrors.Wrap(err, code, msg)
	}
	return out.Token, out.User, nil
}

// ListDevices returns every device, revoked ones included. A malformed
// body yields an empty roster.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var out devicesResponse
	err := c.do(ctx, call{operation: "ListDevices", method: http.MethodGet, path: "/devices", out: &out})
	if dErrors.HasCode(err, dErrors.CodeValidation) {
		return []models.Device{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Devices == nil {
		return []models.Device{}, nil
	}
	return out.Devices, nil
}

// GetDevice returns one device.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}
	var out models.Device
	if err := c.do(ctx, call{operation: "GetDevice", method: http.MethodGet, path: devicePath("devices", deviceID), out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWeeklyHistory returns the trailing seven days of samples for
// deviceID. A malformed body yields an empty series.
func (c *Client) GetWeeklyHistory(ctx context.Context, deviceID string) ([]models.LocationSample, error) {
	return c.track(ctx, "GetWeeklyHistory", deviceID, "weekly")
}

// GetRecentLocations returns the most recent samples for deviceID.
func (c *Client) GetRecentLocations(ctx context.Context, deviceID string) ([]models.LocationSample, error) {
	return c.track(ctx, "GetRecentLocations", deviceID, "recent")
}

func (c *Client) track(ctx context.Context, operation, deviceID, window string) ([]models.LocationSample, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}
	var out trackResponse
	err := c.do(ctx, call{
		operation: operation,
		method:    http.MethodGet,
		path:      devicePath("locations", deviceID) + "/" + window,
		out:       &out,
	})
	if dErrors.HasCode(err, dErrors.CodeValidation) {
		return []models.LocationSample{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Track == nil {
		return []models.LocationSample{}, nil
	}
	return out.Track, nil
}

// RevokeDevice stops tracking deviceID and erases its location data.
func (c *Client) RevokeDevice(ctx context.Context, deviceID string) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	return c.do(ctx, call{operation: "RevokeDevice", method: http.MethodPost, path: devicePath("devices", deviceID) + "/revoke"})
}

// DeleteDevice erases deviceID and all its data.
func (c *Client) DeleteDevice(ctx context.Context, deviceID string) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	return c.do(ctx, call{operation: "DeleteDevice", method: http.MethodDelete, path: devicePath("devices", deviceID)})
}

// ListAuditLogs returns up to limit entries, newest first. A malformed
// body yields no entries.
func (c *Client) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out logsResponse
	err := c.do(ctx, call{
		operation: "ListAuditLogs",
		method:    http.MethodGet,
		path:      "/audit/logs",
		query:     url.Values{"limit": []string{strconv.Itoa(limit)}},
		out:       &out,
	})
	if dErrors.HasCode(err, dErrors.CodeValidation) {
		return []models.AuditEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Logs == nil {
		return []models.AuditEntry{}, nil
	}
	return out.Logs, nil
}
