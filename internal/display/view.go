// Package display projects the tracking state into the shapes rendered by
// the device list, the map and the history panel. Everything here is a
// pure function of its inputs.
package display

import (
	"strconv"
	"time"

	"fleetwatch/internal/tracking/history"
	"fleetwatch/internal/tracking/liveness"
	"fleetwatch/internal/tracking/models"
	"fleetwatch/internal/tracking/routecolor"
)

// TimeLayout renders timestamps in lists and popups.
const TimeLayout = "Jan 02, 15:04"

// FormatTime renders t with TimeLayout, or "" for nil.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// FormatBattery renders a battery level as "N%" or "N/A".
func FormatBattery(level *int) string {
	if level == nil {
		return "N/A"
	}
	return strconv.Itoa(*level) + "%"
}

// Point is a map coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Viewport is the map center and zoom.
type Viewport struct {
	Center Point `json:"center"`
	Zoom   int   `json:"zoom"`
}

// DeviceRow is one line of the device list.
type DeviceRow struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Liveness liveness.Verdict    `json:"liveness"`
	Network  models.NetworkState `json:"network,omitempty"`
	Battery  string              `json:"battery"`
	LastSeen *time.Time          `json:"last_seen,omitempty"`
	Color    routecolor.Color    `json:"color"`
	Selected bool                `json:"selected"`
}

// RosterView builds the device list from the active roster. Liveness is
// computed against now; the device's self-reported network is shown
// alongside it.
func RosterView(active []models.Device, selected *models.Device, now time.Time) []DeviceRow {
	rows := make([]DeviceRow, 0, len(active))
	for _, d := range active {
		if d.IsRevoked() {
			continue
		}
		rows = append(rows, DeviceRow{
			ID:       d.ID,
			Name:     d.DisplayName(),
			Liveness: liveness.ForDevice(d, now),
			Network:  d.Network,
			Battery:  FormatBattery(d.Battery),
			LastSeen: d.LastSeen,
			Color:    routecolor.For(d.ID),
			Selected: selected != nil && selected.ID == d.ID,
		})
	}
	return rows
}

// TrackPoint is a labelled start or end marker.
type TrackPoint struct {
	Point
	Timestamp time.Time `json:"timestamp"`
}

// TrackView is the map and history panel for the selection.
type TrackView struct {
	DeviceID  string            `json:"device_id,omitempty"`
	Viewport  Viewport          `json:"viewport"`
	Color     routecolor.Color  `json:"color"`
	Polyline  []Point           `json:"polyline,omitempty"`
	Start     *TrackPoint       `json:"start,omitempty"`
	End       *TrackPoint       `json:"end,omitempty"`
	KeyEvents []models.KeyEvent `json:"key_events"`
	Summary   history.Summary   `json:"summary"`
}

// NewTrackView projects the held series, put in order with
// history.Ordered so markers and key events agree. The viewport centers on
// the most recent sample when there is one, else on fallback. A start marker needs
// one sample; the end marker and the polyline need two.
func NewTrackView(selected *models.Device, series []models.LocationSample, fallback Viewport) TrackView {
	view := TrackView{Viewport: fallback, Color: routecolor.Default}
	if selected != nil {
		view.DeviceID = selected.ID
		view.Color = routecolor.For(selected.ID)
	}

	series = history.Ordered(series)
	view.KeyEvents = history.Compress(series)
	view.Summary = history.Summarize(series, view.KeyEvents)
	if selected == nil || len(series) == 0 {
		return view
	}

	last := series[len(series)-1]
	view.Viewport.Center = Point{Lat: last.Lat, Lng: last.Lng}
	first := series[0]
	view.Start = &TrackPoint{Point: Point{Lat: first.Lat, Lng: first.Lng}, Timestamp: first.Timestamp}

	if len(series) > 1 {
		view.End = &TrackPoint{Point: Point{Lat: last.Lat, Lng: last.Lng}, Timestamp: last.Timestamp}
		view.Polyline = make([]Point, len(series))
		for i, s := range series {
			view.Polyline[i] = Point{Lat: s.Lat, Lng: s.Lng}
		}
	}
	return view
}

// Marker is a device pin on the map.
type Marker struct {
	DeviceID string              `json:"device_id"`
	Name     string              `json:"name"`
	Position Point               `json:"position"`
	Status   models.DeviceStatus `json:"status"`
	Battery  string              `json:"battery"`
	Network  models.NetworkState `json:"network,omitempty"`
	LastSeen string              `json:"last_seen,omitempty"`
	Liveness liveness.Verdict    `json:"liveness"`
}

// MapDevices returns the pins to draw: only the selection when there is
// one, else every active device. Devices without a known location are
// skipped.
func MapDevices(active []models.Device, selected *models.Device, now time.Time) []Marker {
	shown := active
	if selected != nil {
		shown = []models.Device{*selected}
	}
	markers := make([]Marker, 0, len(shown))
	for _, d := range shown {
		if d.LastLocation == nil || d.IsRevoked() {
			continue
		}
		markers = append(markers, Marker{
			DeviceID: d.ID,
			Name:     d.DisplayName(),
			Position: Point{Lat: d.LastLocation.Lat, Lng: d.LastLocation.Lng},
			Status:   d.Status,
			Battery:  FormatBattery(d.Battery),
			Network:  d.Network,
			LastSeen: FormatTime(d.LastSeen),
			Liveness: liveness.ForDevice(d, now),
		})
	}
	return markers
}
