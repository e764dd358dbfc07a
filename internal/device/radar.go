package device

import (
	"strconv"
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// Radar decodes $RATTM tracked-target sentences from the NMEA 0183
// feed and republishes the accumulated plot list each cycle.
type Radar struct {
	transport transport.Transport
	parser    parser.RadarParser
	model     *state.Model
	watchdog  *Watchdog
	log       logger.Logger

	connected bool
	tracks    map[int]state.RadarPlot
}

func NewRadar(log logger.Logger) *Radar {
	return &Radar{log: log.WithPrefix("device.radar"), tracks: make(map[int]state.RadarPlot)}
}

func (d *Radar) SetDependencies(t transport.Transport) {
	d.transport = t
	d.transport.Subscribe(d.onEvent)
}

func (d *Radar) SetModel(m *state.Model) { d.model = m }

func (d *Radar) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(5*time.Second, d.onConnectedChange)
	return nil
}

func (d *Radar) Shutdown() {
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

func (d *Radar) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.FrameReceived:
		tracks := d.parser.Feed(ev.Frame)
		if len(tracks) == 0 {
			return
		}
		d.watchdog.Arm()
		for _, t := range tracks {
			d.mergeTrack(t)
		}
		d.publish()
	case transport.LinkError:
		d.log.Warnf("radar link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
	}
}

func (d *Radar) onConnectedChange(connected bool) {
	d.connected = connected
}

func (d *Radar) mergeTrack(t parser.RadarTrack) {
	id, err := strconv.Atoi(t.TrackID)
	if err != nil {
		return
	}
	if t.Lost {
		delete(d.tracks, id)
		return
	}
	d.tracks[id] = state.RadarPlot{
		TrackID:    id,
		RangeM:     t.RangeM,
		BearingDeg: t.BearingDeg,
		SpeedMps:   t.SpeedMps,
		LastSeen:   time.Now(),
	}
}

func (d *Radar) publish() {
	if d.model == nil {
		return
	}
	plots := make([]state.RadarPlot, 0, len(d.tracks))
	for _, p := range d.tracks {
		plots = append(plots, p)
	}
	d.model.OnRadarPlots(plots)
}
