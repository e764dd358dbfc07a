package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// NightCamera drives the FLIR-Tau-style thermal camera link: polls FPA
// temperature and LUT index, and merges any unsolicited status frames.
type NightCamera struct {
	transport transport.Transport
	parser    parser.NightCameraParser
	model     *state.Model
	watchdog  *Watchdog
	poll      *PollTimer
	log       logger.Logger

	connected bool
	hfovDeg   float64
	ffcBusy   bool
	lutIndex  int
	fpaTempC  float64
}

func NewNightCamera(log logger.Logger) *NightCamera {
	return &NightCamera{log: log.WithPrefix("device.night_camera"), hfovDeg: 18.0}
}

func (d *NightCamera) SetDependencies(t transport.Transport) {
	d.transport = t
	d.transport.Subscribe(d.onEvent)
}

func (d *NightCamera) SetModel(m *state.Model) { d.model = m }

func (d *NightCamera) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(5*time.Second, d.onConnectedChange)
	d.poll = StartPollTimer(time.Second, d.pollTick)
	return nil
}

func (d *NightCamera) Shutdown() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

func (d *NightCamera) pollTick() {
	_ = d.transport.Send(parser.BuildNightCommand(0, parser.NightFuncReadTempSensor, nil))
	_ = d.transport.Send(parser.BuildNightCommand(0, parser.NightFuncLUT, nil))
}

func (d *NightCamera) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.FrameReceived:
		for _, msg := range d.parser.Feed(ev.Frame) {
			d.watchdog.Arm()
			d.mergeMessage(msg)
		}
	case transport.LinkError:
		d.log.Warnf("night camera link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *NightCamera) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *NightCamera) mergeMessage(msg parser.NightCameraMessage) {
	changed := false
	switch msg.Function {
	case parser.NightFuncFFC:
		if d.ffcBusy != msg.FFCBusy {
			d.ffcBusy = msg.FFCBusy
			changed = true
		}
	case parser.NightFuncLUT:
		if d.lutIndex != msg.LUTIndex {
			d.lutIndex = msg.LUTIndex
			changed = true
		}
	case parser.NightFuncReadTempSensor:
		if !fuzzyEqual(d.fpaTempC, msg.FPATempC) {
			d.fpaTempC = msg.FPATempC
			changed = true
		}
	}
	if changed {
		d.publish()
	}
}

func (d *NightCamera) publish() {
	if d.model == nil {
		return
	}
	d.model.OnNightCameraData(state.CameraData{
		Connected:     d.connected,
		HFOVDeg:       d.hfovDeg,
		FFCInProgress: d.ffcBusy,
		LUTIndex:      d.lutIndex,
		FPATempC:      d.fpaTempC,
	})
}

// RunFFC triggers a flat-field correction cycle.
func (d *NightCamera) RunFFC() {
	_ = d.transport.Send(parser.BuildNightCommand(0, parser.NightFuncFFC, []byte{0x01}))
}

// SetLUTIndex selects a colour LUT (clamped to [0,12] by the model on merge).
func (d *NightCamera) SetLUTIndex(index int) {
	_ = d.transport.Send(parser.BuildNightCommand(0, parser.NightFuncLUT, []byte{byte(index)}))
}
