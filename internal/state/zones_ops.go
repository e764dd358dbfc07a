package state

// AddAreaZone appends a new AreaZone, assigning it the next area-zone id.
func (m *Model) AddAreaZone(zone AreaZone) (snapshot SystemState, id int) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		zone.ID = s.nextAreaZoneID
		s.nextAreaZoneID++
		s.AreaZones = append(append([]AreaZone(nil), s.AreaZones...), zone)
		id = zone.ID
	})
	return snapshot, id
}

// ModifyAreaZone replaces the zone with matching id in place, preserving
// its position in the ordered sequence. ok is false and state is
// unchanged if no zone with that id exists.
func (m *Model) ModifyAreaZone(id int, updated AreaZone) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, z := range s.AreaZones {
			if z.ID == id {
				zones := append([]AreaZone(nil), s.AreaZones...)
				updated.ID = id
				zones[i] = updated
				s.AreaZones = zones
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// DeleteAreaZone removes the zone with matching id. ok is false and
// state is unchanged if no zone with that id exists.
func (m *Model) DeleteAreaZone(id int) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, z := range s.AreaZones {
			if z.ID == id {
				zones := make([]AreaZone, 0, len(s.AreaZones)-1)
				zones = append(zones, s.AreaZones[:i]...)
				zones = append(zones, s.AreaZones[i+1:]...)
				s.AreaZones = zones
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// AddSectorScanZone appends a new SectorScanZone, assigning it the next
// sector-scan id.
func (m *Model) AddSectorScanZone(zone SectorScanZone) (snapshot SystemState, id int) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		zone.ID = s.nextSectorID
		s.nextSectorID++
		s.SectorScanZones = append(append([]SectorScanZone(nil), s.SectorScanZones...), zone)
		id = zone.ID
	})
	return snapshot, id
}

// ModifySectorScanZone replaces the sector-scan zone with matching id.
func (m *Model) ModifySectorScanZone(id int, updated SectorScanZone) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, z := range s.SectorScanZones {
			if z.ID == id {
				zones := append([]SectorScanZone(nil), s.SectorScanZones...)
				updated.ID = id
				zones[i] = updated
				s.SectorScanZones = zones
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// DeleteSectorScanZone removes the sector-scan zone with matching id.
func (m *Model) DeleteSectorScanZone(id int) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, z := range s.SectorScanZones {
			if z.ID == id {
				zones := make([]SectorScanZone, 0, len(s.SectorScanZones)-1)
				zones = append(zones, s.SectorScanZones[:i]...)
				zones = append(zones, s.SectorScanZones[i+1:]...)
				s.SectorScanZones = zones
				if s.SelectedSectorScanZoneID == id {
					s.SelectedSectorScanZoneID = 0
				}
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// AddTRP appends a new TargetReferencePoint, assigning it the next TRP id.
func (m *Model) AddTRP(trp TargetReferencePoint) (snapshot SystemState, id int) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		trp.ID = s.nextTRPID
		s.nextTRPID++
		s.TRPs = append(append([]TargetReferencePoint(nil), s.TRPs...), trp)
		id = trp.ID
	})
	return snapshot, id
}

// ModifyTRP replaces the TRP with matching id.
func (m *Model) ModifyTRP(id int, updated TargetReferencePoint) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, t := range s.TRPs {
			if t.ID == id {
				trps := append([]TargetReferencePoint(nil), s.TRPs...)
				updated.ID = id
				trps[i] = updated
				s.TRPs = trps
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// DeleteTRP removes the TRP with matching id.
func (m *Model) DeleteTRP(id int) (snapshot SystemState, ok bool) {
	snapshot = m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		for i, t := range s.TRPs {
			if t.ID == id {
				trps := make([]TargetReferencePoint, 0, len(s.TRPs)-1)
				trps = append(trps, s.TRPs[:i]...)
				trps = append(trps, s.TRPs[i+1:]...)
				s.TRPs = trps
				ok = true
				return
			}
		}
	})
	return snapshot, ok
}

// SelectNextSectorScanZone cycles the selected sector-scan zone forward,
// wrapping to the first zone after the last. A no-op if there are none.
func (m *Model) SelectNextSectorScanZone() SystemState {
	return m.commit(nil, func(s *SystemState) {
		if len(s.SectorScanZones) == 0 {
			s.SelectedSectorScanZoneID = 0
			return
		}
		idx := indexOfSectorZone(s.SectorScanZones, s.SelectedSectorScanZoneID)
		next := (idx + 1) % len(s.SectorScanZones)
		s.SelectedSectorScanZoneID = s.SectorScanZones[next].ID
	})
}

func indexOfSectorZone(zones []SectorScanZone, id int) int {
	for i, z := range zones {
		if z.ID == id {
			return i
		}
	}
	return -1
}

// SelectNextTRPPage advances the selected TRP page by one, wrapping back
// to page 1 after the highest page present among the current TRPs (a
// no-op, leaving page 1, when there are no TRPs at all).
func (m *Model) SelectNextTRPPage() SystemState {
	return m.commit(nil, func(s *SystemState) {
		maxPage := 1
		for _, t := range s.TRPs {
			if t.LocationPage > maxPage {
				maxPage = t.LocationPage
			}
		}
		s.SelectedTRPPage++
		if s.SelectedTRPPage > maxPage {
			s.SelectedTRPPage = 1
		}
	})
}

// SaveZonesToFile implements save_zones_to_file: serializes the three
// zone collections and the next-id counters to path atomically. Returns
// false (state unchanged) on any I/O or marshal failure.
func (m *Model) SaveZonesToFile(path string) bool {
	m.mu.RLock()
	areas := append([]AreaZone(nil), m.state.AreaZones...)
	sectors := append([]SectorScanZone(nil), m.state.SectorScanZones...)
	trps := append([]TargetReferencePoint(nil), m.state.TRPs...)
	nextArea, nextSector, nextTRP := m.state.nextAreaZoneID, m.state.nextSectorID, m.state.nextTRPID
	m.mu.RUnlock()

	if err := saveZonesToFile(path, areas, sectors, trps, nextArea, nextSector, nextTRP); err != nil {
		if m.log != nil {
			m.log.Errorf("save zones to %q: %v", path, err)
		}
		return false
	}
	return true
}

// LoadZonesFromFile implements load_zones_from_file: replaces the zone
// collections and advances the next-id counters to at least
// max(existing id)+1. Returns false (state unchanged) on any I/O or
// parse failure; unknown or malformed individual entries are skipped
// with a warning rather than failing the whole load.
func (m *Model) LoadZonesFromFile(path string) bool {
	warn := func(msg string) {
		if m.log != nil {
			m.log.Warnf("zone file %q: %s", path, msg)
		}
	}

	areas, sectors, trps, nextArea, nextSector, nextTRP, err := loadZonesFromFile(path, warn)
	if err != nil {
		if m.log != nil {
			m.log.Errorf("load zones from %q: %v", path, err)
		}
		return false
	}

	m.commit([]EventKind{ZonesChanged}, func(s *SystemState) {
		s.AreaZones = areas
		s.SectorScanZones = sectors
		s.TRPs = trps
		s.nextAreaZoneID = nextArea
		s.nextSectorID = nextSector
		s.nextTRPID = nextTRP
		s.SelectedSectorScanZoneID = 0
		s.SelectedTRPPage = 1
	})
	return true
}
