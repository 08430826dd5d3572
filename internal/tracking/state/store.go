// Package state holds the console's mutable tracking state: the roster, the
// selection and the held history series. Every transition runs under one
// mutex, so transitions are applied atomically in completion order.
//
// Only the roster synchronizer and the track controller hold a *Store; the
// lifecycle handler reaches it through their contracts.
package state

import (
	"slices"
	"sync"

	"fleetwatch/internal/tracking/models"
	"fleetwatch/pkg/platform/sentinel"
)

// Ticket correlates an asynchronous history fetch with the selection that
// issued it.
type Ticket struct {
	Generation uint64
	DeviceID   string
}

// Snapshot is a read-only copy of the state for displays.
type Snapshot struct {
	Roster    []models.Device
	Selection *models.Device
	Series    []models.LocationSample
	PollSeq   uint64
}

// Store is the explicitly owned state container.
type Store struct {
	mu         sync.Mutex
	roster     []models.Device
	pollSeq    uint64
	selection  *models.Device
	generation uint64
	series     []models.LocationSample
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// ApplyRoster replaces the roster wholesale with devices. seq is the poll
// sequence number; the result is applied even when an older poll completes
// after a newer one, and outOfOrder reports that case.
func (s *Store) ApplyRoster(seq uint64, devices []models.Device) (outOfOrder bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outOfOrder = seq < s.pollSeq
	if !outOfOrder {
		s.pollSeq = seq
	}
	s.roster = slices.Clone(devices)
	return outOfOrder
}

// Roster returns a copy of the full roster as last received.
func (s *Store) Roster() []models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roster)
}

// ActiveRoster returns the roster without revoked entries.
func (s *Store) ActiveRoster() []models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeOf(s.roster)
}

// ActiveDevice looks up a non-revoked roster entry.
func (s *Store) ActiveDevice(deviceID string) (models.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(deviceID)
}

// Select makes d the selection and clears the held series. A nil d clears
// the selection. Each call invalidates tickets issued before it.
// Returns sentinel.ErrNotFound when d is not an active roster entry.
func (s *Store) Select(d *models.Device) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d == nil {
		s.clearSelectionLocked()
		return Ticket{Generation: s.generation}, nil
	}
	current, ok := s.findActive(d.ID)
	if !ok {
		return Ticket{}, sentinel.ErrNotFound
	}
	s.generation++
	s.selection = &current
	s.series = nil
	return Ticket{Generation: s.generation, DeviceID: current.ID}, nil
}

// IsCurrent reports whether t still matches the live selection.
func (s *Store) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCurrentLocked(t)
}

// ApplySeries stores series for the selection t was issued for. It returns
// false and leaves the state untouched when t is stale.
func (s *Store) ApplySeries(t Ticket, series []models.LocationSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(t) {
		return false
	}
	s.series = slices.Clone(series)
	return true
}

// Selection returns a copy of the selected device, or nil.
func (s *Store) Selection() *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return nil
	}
	sel := *s.selection
	return &sel
}

// Series returns a copy of the held history series.
func (s *Store) Series() []models.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.series)
}

// RemoveDevice drops deviceID from the roster. When it is the selection, the
// selection and held series are cleared in the same transition.
func (s *Store) RemoveDevice(deviceID string) (removed, clearedSelection bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.roster)
	s.roster = slices.DeleteFunc(s.roster, func(d models.Device) bool {
		return d.ID == deviceID
	})
	removed = len(s.roster) != before

	if s.selection != nil && s.selection.ID == deviceID {
		s.clearSelectionLocked()
		clearedSelection = true
	}
	return removed, clearedSelection
}

// Snapshot copies the whole state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Roster:  activeOf(s.roster),
		Series:  slices.Clone(s.series),
		PollSeq: s.pollSeq,
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	return snap
}

func (s *Store) clearSelectionLocked() {
	s.generation++
	s.selection = nil
	s.series = nil
}

func (s *Store) isCurrentLocked(t Ticket) bool {
	return s.selection != nil &&
		t.Generation == s.generation &&
		t.DeviceID == s.selection.ID
}

func (s *Store) findActive(deviceID string) (models.Device, bool) {
	for _, d := range s.roster {
		if d.ID == deviceID && !d.IsRevoked() {
			return d, true
		}
	}
	return models.Device{}, false
}

func activeOf(roster []models.Device) []models.Device {
	out := make([]models.Device, 0, len(roster))
	for _, d := range roster {
		if !d.IsRevoked() {
			out = append(out, d)
		}
	}
	return out
}
