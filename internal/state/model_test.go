package state

import (
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/ironfathom/stationctl/internal/logger"
)

func newTestModel() *Model {
	return NewModel(NewBus(), logger.New())
}

func TestMayFireRequiresEveryCondition(t *testing.T) {
	m := newTestModel()

	snap := m.Snapshot()
	if snap.Safety.MayFire() {
		t.Fatalf("expected MayFire false with no conditions set")
	}

	m.Update(withSafety(m.Snapshot(), SafetyState{
		StationEnabled:      true,
		GunArmed:            true,
		DeadmanSwitchActive: true,
	}))
	if !m.Snapshot().Safety.MayFire() {
		t.Fatalf("expected MayFire true once station/gun/deadman are all set")
	}

	m.SetDeadmanSwitch(false)
	if m.Snapshot().Safety.MayFire() {
		t.Fatalf("expected MayFire false once deadman switch releases")
	}
}

func TestMayFireBlockedByNoFireZoneOrEStop(t *testing.T) {
	m := newTestModel()
	m.Update(withSafety(m.Snapshot(), SafetyState{
		StationEnabled:      true,
		GunArmed:            true,
		DeadmanSwitchActive: true,
	}))
	if !m.Snapshot().Safety.MayFire() {
		t.Fatalf("expected MayFire true as baseline")
	}

	m.SetReticleZoneFlags(true, false)
	if m.Snapshot().Safety.MayFire() {
		t.Fatalf("expected MayFire false while reticle is in a no-fire zone")
	}
	m.SetReticleZoneFlags(false, false)

	snap := m.Snapshot()
	snap.Safety.EmergencyStopActive = true
	m.Update(snap)
	if m.Snapshot().Safety.MayFire() {
		t.Fatalf("expected MayFire false while emergency stop is active")
	}
}

func withSafety(s SystemState, safety SafetyState) SystemState {
	s.Safety = safety
	return s
}

func TestTrackingAcquisitionAssignsAndClearsSessionID(t *testing.T) {
	m := newTestModel()

	if _, ok := m.StartTrackingAcquisition(); !ok {
		t.Fatalf("expected StartTrackingAcquisition to succeed from TrackingOff")
	}
	snap := m.Snapshot()
	if snap.Tracking.SessionID == uuid.Nil {
		t.Fatalf("expected a non-nil session id after acquisition starts")
	}
	if snap.Tracking.Phase != TrackingAcquisition {
		t.Fatalf("expected phase TrackingAcquisition, got %v", snap.Tracking.Phase)
	}

	if _, ok := m.StartTrackingAcquisition(); ok {
		t.Fatalf("expected a second StartTrackingAcquisition to fail while already acquiring")
	}

	m.StopTracking()
	snap = m.Snapshot()
	if snap.Tracking.SessionID != uuid.Nil {
		t.Fatalf("expected session id cleared after StopTracking")
	}
	if snap.Tracking.Phase != TrackingOff {
		t.Fatalf("expected phase TrackingOff after stop, got %v", snap.Tracking.Phase)
	}
}

func TestAreaZoneRoundTripsThroughFile(t *testing.T) {
	m := newTestModel()

	_, id := m.AddAreaZone(AreaZone{
		Type:       ZoneNoFire,
		IsEnabled:  true,
		StartAzDeg: 10,
		EndAzDeg:   80,
		MinElDeg:   -5,
		MaxElDeg:   40,
		Name:       "range-fan",
	})

	f, err := os.CreateTemp(t.TempDir(), "zones-*.json")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	if !m.SaveZonesToFile(path) {
		t.Fatalf("expected SaveZonesToFile to succeed")
	}

	reloaded := newTestModel()
	if !reloaded.LoadZonesFromFile(path) {
		t.Fatalf("expected LoadZonesFromFile to succeed")
	}

	snap := reloaded.Snapshot()
	if len(snap.AreaZones) != 1 {
		t.Fatalf("expected 1 area zone after reload, got %d", len(snap.AreaZones))
	}
	got := snap.AreaZones[0]
	if got.ID != id || got.Name != "range-fan" || got.Type != ZoneNoFire {
		t.Fatalf("unexpected zone after round trip: %+v", got)
	}

	// A freshly added zone in the reloaded model must not collide with the
	// restored id counter.
	_, nextID := reloaded.AddAreaZone(AreaZone{Type: ZoneNoTraverse, Name: "second"})
	if nextID == id {
		t.Fatalf("expected next area zone id to advance past the reloaded id %d", id)
	}
}

func TestIsPointInNoFireZoneHonoursAzimuthWrap(t *testing.T) {
	m := newTestModel()
	m.AddAreaZone(AreaZone{
		Type:       ZoneNoFire,
		IsEnabled:  true,
		StartAzDeg: 350,
		EndAzDeg:   10,
		MinElDeg:   -10,
		MaxElDeg:   10,
		Name:       "wraps-north",
	})

	if !m.IsPointInNoFireZone(0, 0, 0) {
		t.Fatalf("expected azimuth 0 to fall inside a zone spanning 350->10")
	}
	if m.IsPointInNoFireZone(180, 0, 0) {
		t.Fatalf("expected azimuth 180 to fall outside a zone spanning 350->10")
	}
}
