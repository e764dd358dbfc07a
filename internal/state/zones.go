package state

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// AreaZoneType classifies an AreaZone's safety semantics.
type AreaZoneType int

const (
	ZoneNoFire AreaZoneType = iota
	ZoneNoTraverse
	ZoneSafety
)

func (t AreaZoneType) String() string {
	switch t {
	case ZoneNoFire:
		return "NoFire"
	case ZoneNoTraverse:
		return "NoTraverse"
	case ZoneSafety:
		return "Safety"
	default:
		return "Unknown"
	}
}

func parseAreaZoneType(s string) (AreaZoneType, bool) {
	switch s {
	case "NoFire":
		return ZoneNoFire, true
	case "NoTraverse":
		return ZoneNoTraverse, true
	case "Safety":
		return ZoneSafety, true
	default:
		return 0, false
	}
}

// AreaZone is an azimuth/elevation/range polytope with a safety classification.
type AreaZone struct {
	ID             int
	Type           AreaZoneType
	IsEnabled      bool
	IsFactorySet   bool
	IsOverridable  bool
	StartAzDeg     float64
	EndAzDeg       float64
	MinElDeg       float64
	MaxElDeg       float64
	HasRange       bool
	MinRangeM      float64
	MaxRangeM      float64
	Name           string
}

// SectorScanZone bounds an AutoSectorScan sweep between two corner points.
type SectorScanZone struct {
	ID           int
	IsEnabled    bool
	Az1Deg       float64
	El1Deg       float64
	Az2Deg       float64
	El2Deg       float64
	ScanSpeedDps float64
	Name         string
}

// TargetReferencePoint is a named aim point for quick recall (TRPScan).
type TargetReferencePoint struct {
	ID            int
	LocationPage  int
	TRPInPage     int
	AzDeg         float64
	ElDeg         float64
	HaltTimeS     float64
	Name          string
}

// normalizeDeg wraps a a degree value into [0, 360).
func normalizeDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// inAzimuthRange implements the azimuth range membership rule: both
// endpoints and the target are normalised to [0,360); if start <= end the
// arc is [start,end], otherwise it wraps through 360 -> 0.
func inAzimuthRange(target, start, end float64) bool {
	t := normalizeDeg(target)
	s := normalizeDeg(start)
	e := normalizeDeg(end)
	if s <= e {
		return t >= s && t <= e
	}
	return t >= s || t <= e
}

// zoneFileVersion is the only version this loader understands; unknown
// future fields are tolerated (json.Unmarshal ignores unknown keys).
const zoneFileVersion = 1

type zoneFile struct {
	ZoneFileVersion    int                 `json:"zoneFileVersion"`
	NextAreaZoneID     int                 `json:"nextAreaZoneId"`
	NextSectorScanID   int                 `json:"nextSectorScanId"`
	NextTRPID          int                 `json:"nextTRPId"`
	AreaZones          []areaZoneJSON      `json:"areaZones"`
	SectorScanZones    []sectorScanJSON    `json:"sectorScanZones"`
	TRPs               []trpJSON           `json:"targetReferencePoints"`
}

type areaZoneJSON struct {
	ID            int     `json:"id"`
	Type          string  `json:"type"`
	IsEnabled     bool    `json:"isEnabled"`
	IsFactorySet  bool    `json:"isFactorySet"`
	IsOverridable bool    `json:"isOverridable"`
	StartAzimuth  float64 `json:"startAzimuth"`
	EndAzimuth    float64 `json:"endAzimuth"`
	MinElevation  float64 `json:"minElevation"`
	MaxElevation  float64 `json:"maxElevation"`
	MinRange      *float64 `json:"minRange,omitempty"`
	MaxRange      *float64 `json:"maxRange,omitempty"`
	Name          string  `json:"name"`
}

type sectorScanJSON struct {
	ID        int     `json:"id"`
	IsEnabled bool    `json:"isEnabled"`
	Az1       float64 `json:"az1"`
	El1       float64 `json:"el1"`
	Az2       float64 `json:"az2"`
	El2       float64 `json:"el2"`
	ScanSpeed float64 `json:"scanSpeed"`
	Name      string  `json:"name,omitempty"`
}

type trpJSON struct {
	ID           int     `json:"id"`
	LocationPage int     `json:"locationPage"`
	TRPInPage    int     `json:"trpInPage"`
	Azimuth      float64 `json:"azimuth"`
	Elevation    float64 `json:"elevation"`
	HaltTime     float64 `json:"haltTime"`
	Name         string  `json:"name,omitempty"`
}

// saveZonesToFile serializes the zone collections atomically: write to a
// temp file in the same directory, then rename over the target.
func saveZonesToFile(path string, areas []AreaZone, sectors []SectorScanZone, trps []TargetReferencePoint, nextArea, nextSector, nextTRP int) error {
	file := zoneFile{
		ZoneFileVersion:  zoneFileVersion,
		NextAreaZoneID:   nextArea,
		NextSectorScanID: nextSector,
		NextTRPID:        nextTRP,
	}

	for _, z := range areas {
		entry := areaZoneJSON{
			ID:            z.ID,
			Type:          z.Type.String(),
			IsEnabled:     z.IsEnabled,
			IsFactorySet:  z.IsFactorySet,
			IsOverridable: z.IsOverridable,
			StartAzimuth:  z.StartAzDeg,
			EndAzimuth:    z.EndAzDeg,
			MinElevation:  z.MinElDeg,
			MaxElevation:  z.MaxElDeg,
			Name:          z.Name,
		}
		if z.HasRange {
			minR, maxR := z.MinRangeM, z.MaxRangeM
			entry.MinRange = &minR
			entry.MaxRange = &maxR
		}
		file.AreaZones = append(file.AreaZones, entry)
	}

	for _, z := range sectors {
		file.SectorScanZones = append(file.SectorScanZones, sectorScanJSON{
			ID:        z.ID,
			IsEnabled: z.IsEnabled,
			Az1:       z.Az1Deg,
			El1:       z.El1Deg,
			Az2:       z.Az2Deg,
			El2:       z.El2Deg,
			ScanSpeed: z.ScanSpeedDps,
			Name:      z.Name,
		})
	}

	for _, t := range trps {
		file.TRPs = append(file.TRPs, trpJSON{
			ID:           t.ID,
			LocationPage: t.LocationPage,
			TRPInPage:    t.TRPInPage,
			Azimuth:      t.AzDeg,
			Elevation:    t.ElDeg,
			HaltTime:     t.HaltTimeS,
			Name:         t.Name,
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal zone file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp zone file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename zone file: %w", err)
	}
	return nil
}

// loadZonesFromFile deserializes the zone file. Entries with an unknown or
// missing required field are skipped with a warning (via the supplied
// logger-free callback) rather than failing the whole load.
func loadZonesFromFile(path string, warn func(string)) (areas []AreaZone, sectors []SectorScanZone, trps []TargetReferencePoint, nextArea, nextSector, nextTRP int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, 1, 1, 1, err
	}

	var file zoneFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, nil, 1, 1, 1, fmt.Errorf("parse zone file: %w", err)
	}

	maxArea, maxSector, maxTRP := 0, 0, 0

	for _, a := range file.AreaZones {
		zt, ok := parseAreaZoneType(a.Type)
		if !ok || a.ID == 0 {
			if warn != nil {
				warn(fmt.Sprintf("skipping area zone %q: unknown type or missing id", a.Name))
			}
			continue
		}
		zone := AreaZone{
			ID:            a.ID,
			Type:          zt,
			IsEnabled:     a.IsEnabled,
			IsFactorySet:  a.IsFactorySet,
			IsOverridable: a.IsOverridable,
			StartAzDeg:    a.StartAzimuth,
			EndAzDeg:      a.EndAzimuth,
			MinElDeg:      a.MinElevation,
			MaxElDeg:      a.MaxElevation,
			Name:          a.Name,
		}
		if a.MinRange != nil && a.MaxRange != nil {
			zone.HasRange = true
			zone.MinRangeM = *a.MinRange
			zone.MaxRangeM = *a.MaxRange
		}
		areas = append(areas, zone)
		if a.ID > maxArea {
			maxArea = a.ID
		}
	}

	for _, s := range file.SectorScanZones {
		if s.ID == 0 {
			if warn != nil {
				warn("skipping sector scan zone: missing id")
			}
			continue
		}
		sectors = append(sectors, SectorScanZone{
			ID:           s.ID,
			IsEnabled:    s.IsEnabled,
			Az1Deg:       s.Az1,
			El1Deg:       s.El1,
			Az2Deg:       s.Az2,
			El2Deg:       s.El2,
			ScanSpeedDps: s.ScanSpeed,
			Name:         s.Name,
		})
		if s.ID > maxSector {
			maxSector = s.ID
		}
	}

	for _, t := range file.TRPs {
		if t.ID == 0 {
			if warn != nil {
				warn("skipping TRP: missing id")
			}
			continue
		}
		trps = append(trps, TargetReferencePoint{
			ID:           t.ID,
			LocationPage: t.LocationPage,
			TRPInPage:    t.TRPInPage,
			AzDeg:        t.Azimuth,
			ElDeg:        t.Elevation,
			HaltTimeS:    t.HaltTime,
			Name:         t.Name,
		})
		if t.ID > maxTRP {
			maxTRP = t.ID
		}
	}

	nextArea = maxArea + 1
	nextSector = maxSector + 1
	nextTRP = maxTRP + 1
	if file.NextAreaZoneID > nextArea {
		nextArea = file.NextAreaZoneID
	}
	if file.NextSectorScanID > nextSector {
		nextSector = file.NextSectorScanID
	}
	if file.NextTRPID > nextTRP {
		nextTRP = file.NextTRPID
	}

	return areas, sectors, trps, nextArea, nextSector, nextTRP, nil
}
