package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// LRF drives the Jioptics laser range finder: issues single-shot range
// requests on demand and merges replies as they arrive.
type LRF struct {
	transport transport.Transport
	parser    parser.LRFParser
	model     *state.Model
	watchdog  *Watchdog
	log       logger.Logger

	connected  bool
	distanceM  float64
	laserCount int
}

func NewLRF(log logger.Logger) *LRF {
	return &LRF{log: log.WithPrefix("device.lrf")}
}

func (d *LRF) SetDependencies(t transport.Transport) {
	d.transport = t
	d.transport.Subscribe(d.onEvent)
}

func (d *LRF) SetModel(m *state.Model) { d.model = m }

func (d *LRF) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(15*time.Second, d.onConnectedChange)
	return nil
}

func (d *LRF) Shutdown() {
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

// RequestRange issues a single-shot ranging command.
func (d *LRF) RequestRange() {
	_ = d.transport.Send(parser.BuildLRFCommand(parser.LRFCmdRangeSingle))
}

// RequestStop halts continuous ranging.
func (d *LRF) RequestStop() {
	_ = d.transport.Send(parser.BuildLRFCommand(parser.LRFCmdStop))
}

func (d *LRF) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.FrameReceived:
		for _, msg := range d.parser.Feed(ev.Frame) {
			d.watchdog.Arm()
			d.mergeMessage(msg)
		}
	case transport.LinkError:
		d.log.Warnf("LRF link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
	}
}

func (d *LRF) onConnectedChange(connected bool) {
	d.connected = connected
}

// mergeMessage updates the device's own reading cache. It does not call
// into the model: OnLRFData never raises DataChanged (see its doc
// comment), so there is nothing for a commit to notify here.
func (d *LRF) mergeMessage(msg parser.LRFMessage) {
	switch msg.Command {
	case parser.LRFCmdRangeSingle, parser.LRFCmdRangeContinuous,
		parser.LRFCmdRangeSingleAlt, parser.LRFCmdRangeContinuousAlt:
		d.distanceM = msg.DistanceM
	case parser.LRFCmdAccumulatedPulses:
		d.laserCount = msg.LaserCount
	}
}

// LastRangeM returns the most recently merged range reading, used by
// the weapon controller's ballistics feed (the range itself is not part
// of the invariant-bearing system state).
func (d *LRF) LastRangeM() float64 { return d.distanceM }
