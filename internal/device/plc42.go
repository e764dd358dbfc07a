package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// PLC42 polls the weapon/gimbal-interlock PLC's limit switches,
// emergency stop, and solenoid/speed holding registers over Modbus RTU.
type PLC42 struct {
	transport transport.Transport
	model     *state.Model
	watchdog  *Watchdog
	poll      *PollTimer
	log       logger.Logger
	slaveID   byte
	tickCount int

	connected bool
	discrete  parser.PLC42DiscreteInputs
	holding   parser.PLC42HoldingRegisters
}

func NewPLC42(log logger.Logger) *PLC42 {
	return &PLC42{log: log.WithPrefix("device.plc42")}
}

func (d *PLC42) SetDependencies(t transport.Transport, slaveID byte) {
	d.transport = t
	d.slaveID = slaveID
	d.transport.Subscribe(d.onEvent)
}

func (d *PLC42) SetModel(m *state.Model) { d.model = m }

func (d *PLC42) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(3*time.Second, d.onConnectedChange)
	d.poll = StartPollTimer(100*time.Millisecond, d.pollTick)
	return nil
}

func (d *PLC42) Shutdown() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

func (d *PLC42) pollTick() {
	d.tickCount++
	_ = d.transport.SendReadRequest(transport.ModbusRequest{FunctionCode: 0x02, StartAddr: 0, Quantity: 5})
	if d.tickCount%5 == 0 {
		_ = d.transport.SendReadRequest(transport.ModbusRequest{FunctionCode: 0x03, StartAddr: 0, Quantity: 10})
	}
}

// WriteSolenoidMode writes the solenoid-mode holding register, mapping
// the active fire mode to SingleShot=1, ShortBurst=2, LongBurst=3.
func (d *PLC42) WriteSolenoidMode(code int) error {
	return d.transport.SendWriteRequest(transport.ModbusRequest{
		FunctionCode: 0x06,
		StartAddr:    0,
		WriteValues:  []uint16{uint16(code)},
	})
}

// WriteGimbalVelocity writes the az/el speed (each as a 32-bit pair,
// high word first, in registers 3-4 and 5-6) and the direction holding
// registers (7 and 8) the gimbal controller commands each control cycle.
func (d *PLC42) WriteGimbalVelocity(azSpeedRaw, elSpeedRaw uint16, azForward, elForward bool) error {
	azDir, elDir := uint16(0), uint16(0)
	if !azForward {
		azDir = 1
	}
	if !elForward {
		elDir = 1
	}
	return d.transport.SendWriteRequest(transport.ModbusRequest{
		FunctionCode: 0x10,
		StartAddr:    3,
		WriteValues:  []uint16{0, azSpeedRaw, 0, elSpeedRaw, azDir, elDir},
	})
}

// WriteSolenoidState pulses the firing solenoid's state holding
// register on or off; callers must have already checked the
// fire-permission predicate before setting active to true.
func (d *PLC42) WriteSolenoidState(active bool) error {
	v := uint16(0)
	if active {
		v = 1
	}
	return d.transport.SendWriteRequest(transport.ModbusRequest{
		FunctionCode: 0x06,
		StartAddr:    1,
		WriteValues:  []uint16{v},
	})
}

func (d *PLC42) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.ReplyReady:
		if ev.UnitID != d.slaveID {
			return
		}
		data := parser.ModbusReplyData(ev.Frame)
		switch ev.Frame[1] {
		case 0x02:
			if disc, ok := parser.DecodePLC42DiscreteInputs(data); ok {
				d.watchdog.Arm()
				d.mergeDiscrete(disc)
			}
		case 0x03:
			if hold, ok := parser.DecodePLC42HoldingRegisters(data); ok {
				d.watchdog.Arm()
				d.mergeHolding(hold)
			}
		}
	case transport.LinkError:
		d.log.Warnf("PLC42 link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *PLC42) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *PLC42) mergeDiscrete(disc parser.PLC42DiscreteInputs) {
	if disc == d.discrete {
		return
	}
	d.discrete = disc
	d.publish()
}

func (d *PLC42) mergeHolding(hold parser.PLC42HoldingRegisters) {
	if hold == d.holding {
		return
	}
	d.holding = hold
	d.publish()
}

func (d *PLC42) publish() {
	if d.model == nil {
		return
	}
	d.model.OnPLC42Data(state.PLC42Data{
		UpperLimit:     d.discrete.UpperLimit,
		LowerLimit:     d.discrete.LowerLimit,
		EmergencyStop:  d.discrete.EmergencyStop,
		AmmoLevelOK:    d.discrete.AmmoLevelOK,
		SolenoidActive: d.discrete.SolenoidActive,
		SolenoidMode:   d.holding.SolenoidMode,
		GimbalOpMode:   d.holding.GimbalOpMode,
		AzSpeedRaw:     d.holding.AzSpeedRaw,
		ElSpeedRaw:     d.holding.ElSpeedRaw,
		AzDirection:    d.holding.AzDirection,
		ElDirection:    d.holding.ElDirection,
		ResetAlarm:     d.holding.ResetAlarm,
	})
}
