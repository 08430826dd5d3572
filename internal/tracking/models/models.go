package models

import (
	"encoding/json"
	"time"
)

// DeviceStatus is the consent lifecycle state held by the backend.
type DeviceStatus string

const (
	DeviceStatusActive  DeviceStatus = "active"
	DeviceStatusRevoked DeviceStatus = "revoked"
)

// NetworkState is what the device agent last asserted about its own
// connectivity. It is distinct from computed liveness.
type NetworkState string

const (
	NetworkOnline  NetworkState = "online"
	NetworkOffline NetworkState = "offline"
)

// HistoryWindow is the trailing window served by the weekly history endpoint.
const HistoryWindow = 7 * 24 * time.Hour

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Device is one roster entry. Instances are created and replaced only by
// roster refresh responses.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"username,omitempty"`
	Status       DeviceStatus `json:"status"`
	LastSeen     *time.Time   `json:"last_seen,omitempty"`
	Battery      *int         `json:"battery,omitempty"`
	Network      NetworkState `json:"network,omitempty"`
	LastLocation *Location    `json:"last_location,omitempty"`
}

// DisplayName returns the operator-facing name, defaulting to the ID.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// IsRevoked reports whether the backend marked the device revoked.
func (d Device) IsRevoked() bool {
	return d.Status == DeviceStatusRevoked
}

// UnmarshalJSON decodes last_seen leniently: unparseable timestamps become
// nil instead of failing the whole roster response.
func (d *Device) UnmarshalJSON(data []byte) error {
	type alias Device
	aux := struct {
		*alias
		LastSeen *string `json:"last_seen"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.LastSeen = nil
	if aux.LastSeen != nil {
		if t, ok := ParseTimestamp(*aux.LastSeen); ok {
			d.LastSeen = &t
		}
	}
	return nil
}

// LocationSample is one immutable point of a device's history.
type LocationSample struct {
	Timestamp time.Time    `json:"timestamp"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	Battery   int          `json:"battery"`
	Network   NetworkState `json:"network"`
}

// UnmarshalJSON decodes the timestamp leniently; an unparseable value leaves
// the zero time rather than discarding the sample.
func (s *LocationSample) UnmarshalJSON(data []byte) error {
	type alias LocationSample
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Timestamp = time.Time{}
	if t, ok := ParseTimestamp(aux.Timestamp); ok {
		s.Timestamp = t
	}
	return nil
}

// KeyEvent is a retained sample of a compressed history.
type KeyEvent struct {
	LocationSample
	IsFirst        bool `json:"is_first"`
	IsLast         bool `json:"is_last"`
	IsStatusChange bool `json:"is_status_change"`
}

// AuditEntry is one line of the backend audit log.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Details   string    `json:"details,omitempty"`
}

func (e *AuditEntry) UnmarshalJSON(data []byte) error {
	type alias AuditEntry
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Timestamp = time.Time{}
	if t, ok := ParseTimestamp(aux.Timestamp); ok {
		e.Timestamp = t
	}
	return nil
}

// UserProfile is the operator profile returned at login. Attributes other
// than the username are kept verbatim in Extra.
type UserProfile struct {
	Username string         `json:"username"`
	Extra    map[string]any `json:"-"`
}

func (p *UserProfile) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Username, _ = raw["username"].(string)
	delete(raw, "username")
	p.Extra = nil
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

func (p UserProfile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+1)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["username"] = p.Username
	return json.Marshal(out)
}

// NoticeLevel grades operator notices.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a blocking, human-readable message for the operator.
type Notice struct {
	Level   NoticeLevel
	Message string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z0700",
}

// ParseTimestamp accepts RFC 3339 and naive ISO timestamps (taken as UTC).
// It never panics; ok is false for anything it cannot read.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
