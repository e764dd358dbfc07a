package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// DayCamera drives the Pelco-D day camera over framed serial: polls
// zoom and focus position on a timer and merges the replies.
type DayCamera struct {
	transport transport.Transport
	parser    parser.DayCameraParser
	model     *state.Model
	watchdog  *Watchdog
	poll      *PollTimer
	log       logger.Logger
	addr      byte

	connected bool
	zoomRaw   uint16
	hfovDeg   float64
}

// NewDayCamera constructs a day camera device; call SetDependencies and
// Initialize before use.
func NewDayCamera(log logger.Logger) *DayCamera {
	return &DayCamera{log: log.WithPrefix("device.day_camera"), addr: 1}
}

func (d *DayCamera) SetDependencies(t transport.Transport) {
	d.transport = t
	d.transport.Subscribe(d.onEvent)
}

func (d *DayCamera) SetModel(m *state.Model) { d.model = m }

// Initialize opens the transport, arms the watchdog, and starts the
// zoom/focus poll cycle (2 Hz).
func (d *DayCamera) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(5*time.Second, d.onConnectedChange)
	d.poll = StartPollTimer(500*time.Millisecond, d.pollTick)
	return nil
}

func (d *DayCamera) Shutdown() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

func (d *DayCamera) pollTick() {
	_ = d.transport.Send(parser.BuildQueryZoom(d.addr))
	_ = d.transport.Send(parser.BuildQueryFocus(d.addr))
}

// Zoom drives the zoom motor toward tele (zoom in) or wide (zoom out)
// for as long as the caller keeps calling it; StopZoom halts it.
func (d *DayCamera) Zoom(tele bool) {
	_ = d.transport.Send(parser.BuildZoomCommand(d.addr, tele))
}

// StopZoom halts any in-progress zoom motion.
func (d *DayCamera) StopZoom() {
	_ = d.transport.Send(parser.BuildStopCommand(d.addr))
}

// Focus drives the focus motor toward near or far.
func (d *DayCamera) Focus(near bool) {
	_ = d.transport.Send(parser.BuildFocusCommand(d.addr, near))
}

// StopFocus halts any in-progress focus motion.
func (d *DayCamera) StopFocus() {
	_ = d.transport.Send(parser.BuildStopCommand(d.addr))
}

func (d *DayCamera) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.FrameReceived:
		for _, msg := range d.parser.Feed(ev.Frame) {
			d.watchdog.Arm()
			d.mergeMessage(msg)
		}
	case transport.LinkError:
		d.log.Warnf("day camera link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *DayCamera) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *DayCamera) mergeMessage(msg parser.DayCameraMessage) {
	changed := false
	switch msg.Kind {
	case parser.DayCameraZoomPosition:
		if !fuzzyEqual(float64(d.zoomRaw), float64(msg.ZoomRaw)) || !fuzzyEqual(d.hfovDeg, msg.HFOVDeg) {
			d.zoomRaw = msg.ZoomRaw
			d.hfovDeg = msg.HFOVDeg
			changed = true
		}
	case parser.DayCameraFocusPosition:
		changed = true
	}
	if changed {
		d.publish()
	}
}

func (d *DayCamera) publish() {
	if d.model == nil {
		return
	}
	d.model.OnDayCameraData(state.CameraData{
		Connected: d.connected,
		HFOVDeg:   d.hfovDeg,
	})
}
