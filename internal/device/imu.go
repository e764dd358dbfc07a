package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// IMU polls the SST810 orientation sensor's input register block over
// Modbus RTU at a fixed cadence and merges the decoded telemetry.
type IMU struct {
	transport transport.Transport
	model     *state.Model
	watchdog  *Watchdog
	poll      *PollTimer
	log       logger.Logger
	slaveID   byte

	connected bool
	last      parser.IMUInputRegisters
}

func NewIMU(log logger.Logger) *IMU {
	return &IMU{log: log.WithPrefix("device.imu")}
}

func (d *IMU) SetDependencies(t transport.Transport, slaveID byte) {
	d.transport = t
	d.slaveID = slaveID
	d.transport.Subscribe(d.onEvent)
}

func (d *IMU) SetModel(m *state.Model) { d.model = m }

func (d *IMU) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(3*time.Second, d.onConnectedChange)
	d.poll = StartPollTimer(100*time.Millisecond, d.pollTick)
	return nil
}

func (d *IMU) Shutdown() {
	if d.poll != nil {
		d.poll.Stop()
	}
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

func (d *IMU) pollTick() {
	_ = d.transport.SendReadRequest(transport.ModbusRequest{
		FunctionCode: 0x04,
		StartAddr:    parser.IMURegisterStartAddr,
		Quantity:     parser.IMURegisterCount,
	})
}

func (d *IMU) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.ReplyReady:
		if ev.UnitID != d.slaveID {
			return
		}
		regs, ok := parser.DecodeIMUInputRegisters(parser.ModbusReplyData(ev.Frame))
		if !ok {
			d.log.Warnf("malformed IMU reply, discarding")
			return
		}
		d.watchdog.Arm()
		d.mergeRegisters(regs)
	case transport.LinkError:
		d.log.Warnf("IMU link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *IMU) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *IMU) mergeRegisters(regs parser.IMUInputRegisters) {
	if fuzzyEqual(d.last.PitchDeg, regs.PitchDeg) &&
		fuzzyEqual(d.last.RollDeg, regs.RollDeg) &&
		fuzzyEqual(d.last.AccelX, regs.AccelX) &&
		fuzzyEqual(d.last.AccelY, regs.AccelY) &&
		fuzzyEqual(d.last.AccelZ, regs.AccelZ) &&
		fuzzyEqual(d.last.GyroX, regs.GyroX) &&
		fuzzyEqual(d.last.GyroY, regs.GyroY) &&
		fuzzyEqual(d.last.GyroZ, regs.GyroZ) {
		return
	}
	d.last = regs
	d.publish()
}

func (d *IMU) publish() {
	if d.model == nil {
		return
	}
	d.model.OnIMUData(state.IMUData{
		RollDeg: d.last.RollDeg, PitchDeg: d.last.PitchDeg,
		AccelX: d.last.AccelX, AccelY: d.last.AccelY, AccelZ: d.last.AccelZ,
		GyroX: d.last.GyroX, GyroY: d.last.GyroY, GyroZ: d.last.GyroZ,
	})
}
