package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// PLC21 polls the operator panel's discrete switches and its fire-mode
// holding registers over Modbus RTU.
type PLC21 struct {
	transport transport.Transport
	model     *state.Model
	watchdog  *Watchdog
	poll      *PollTimer
	log       logger.Logger
	slaveID   byte

	connected bool
	discrete  parser.PLC21DiscreteInputs
	holding   parser.PLC21HoldingRegisters
	tickCount int
}

func NewPLC21(log logger.Logger) *PLC21 {
	return &PLC21{log: log.WithPrefix("device.plc21")}
}

func (d *PLC21) SetDependencies(t transport.Transport, slaveID byte) {
	d.transport = t
	d.slaveID = slaveID
	d.transport.Subscribe(d.onEvent)
}

func (d *PLC21) SetModel(m *state.Model) { d.model = m }

func (d *PLC21) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(3*time.Second, d.onConnectedChange)
	d.poll = StartPollTimer(100*time.Millisecond, d.pollTick)
	return nil
}

func (d *PLC21) Shutdown() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

// pollTick polls discrete switches every cycle and the slower-changing
// fire-mode/speed/temperature holding registers every fifth cycle.
func (d *PLC21) pollTick() {
	d.tickCount++
	_ = d.transport.SendReadRequest(transport.ModbusRequest{FunctionCode: 0x02, StartAddr: 0, Quantity: 10})
	if d.tickCount%5 == 0 {
		_ = d.transport.SendReadRequest(transport.ModbusRequest{FunctionCode: 0x03, StartAddr: 0, Quantity: 3})
	}
}

func (d *PLC21) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.ReplyReady:
		if ev.UnitID != d.slaveID {
			return
		}
		data := parser.ModbusReplyData(ev.Frame)
		switch ev.Frame[1] {
		case 0x02:
			if disc, ok := parser.DecodePLC21DiscreteInputs(data); ok {
				d.watchdog.Arm()
				d.mergeDiscrete(disc)
			}
		case 0x03:
			if hold, ok := parser.DecodePLC21HoldingRegisters(data); ok {
				d.watchdog.Arm()
				d.mergeHolding(hold)
			}
		}
	case transport.LinkError:
		d.log.Warnf("PLC21 link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *PLC21) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *PLC21) mergeDiscrete(disc parser.PLC21DiscreteInputs) {
	if disc == d.discrete {
		return
	}
	d.discrete = disc
	d.publish()
}

func (d *PLC21) mergeHolding(hold parser.PLC21HoldingRegisters) {
	if hold == d.holding {
		return
	}
	d.holding = hold
	d.publish()
}

func fireModeFromRaw(raw int) state.FireMode {
	switch raw {
	case 1:
		return state.FireModeSingleShot
	case 2:
		return state.FireModeShortBurst
	case 3:
		return state.FireModeLongBurst
	default:
		return state.FireModeUnknown
	}
}

func (d *PLC21) publish() {
	if d.model == nil {
		return
	}
	d.model.OnPLC21Data(state.PLC21Data{
		StationEnabled: d.discrete.StationEnabled,
		GunArmed:       d.discrete.GunArmed,
		AmmoLoaded:     d.discrete.AmmoLoaded,
		HomeRequested:  d.discrete.Home,
		Stabilise:      d.discrete.Stabilise,
		Authorise:      d.discrete.Authorise,
		SwitchCamera:   d.discrete.SwitchCamera,
		MenuUp:         d.discrete.MenuUp,
		MenuDown:       d.discrete.MenuDown,
		MenuVal:        d.discrete.MenuVal,
		FireMode:       fireModeFromRaw(d.holding.FireModeRaw),
		SpeedPct:       d.holding.SpeedPct,
		PanelTempC:     d.holding.PanelTempC,
	})
}
