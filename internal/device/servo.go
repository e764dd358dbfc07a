package device

import (
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// servoRegisterAddrs names the three register blocks each servo driver
// exposes: position (2 input registers), temperature (2), alarm (1).
const (
	servoPositionAddr    = 0x0000
	servoTemperatureAddr = 0x0010
	servoAlarmAddr       = 0x0020
)

// ServoAxis owns one azimuth or elevation servo driver's transport on a
// dedicated goroutine that blocks on each reply up to the transport
// timeout before retrying, mirroring the one-thread-per-axis model.
type ServoAxis struct {
	transport transport.Transport
	model     *state.Model
	watchdog  *Watchdog
	log       logger.Logger
	slaveID   byte
	isAz      bool
	elMinDeg  float64
	elMaxDeg  float64

	replies chan transport.Event
	stop    chan struct{}

	connected bool
	position  int32
	driverTC  float64
	motorTC   float64
	alarm     int
}

// NewServoAxis constructs one axis device; isAz selects the azimuth
// merge path (vs. elevation, which additionally needs clamp limits).
func NewServoAxis(log logger.Logger, isAz bool, elMinDeg, elMaxDeg float64) *ServoAxis {
	name := "device.servo_el"
	if isAz {
		name = "device.servo_az"
	}
	return &ServoAxis{
		log: log.WithPrefix(name), isAz: isAz,
		elMinDeg: elMinDeg, elMaxDeg: elMaxDeg,
		replies: make(chan transport.Event, 8),
		stop:    make(chan struct{}),
	}
}

func (d *ServoAxis) SetDependencies(t transport.Transport, slaveID byte) {
	d.transport = t
	d.slaveID = slaveID
	d.transport.Subscribe(d.onEvent)
}

func (d *ServoAxis) SetModel(m *state.Model) { d.model = m }

// Initialize opens the transport and starts the axis's dedicated
// request/reply loop (100 ms cadence, 500 ms reply timeout per cycle).
func (d *ServoAxis) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(3*time.Second, d.onConnectedChange)
	go d.runLoop()
	return nil
}

// Shutdown requests the loop to quit, joining with a 1 s bound before
// giving up and logging a resource-leak warning.
func (d *ServoAxis) Shutdown() {
	close(d.stop)
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	done := make(chan struct{})
	go func() {
		_ = d.transport.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		d.log.Warnf("servo axis transport close exceeded shutdown bound, abandoning")
	}
}

func (d *ServoAxis) runLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	blocks := []struct {
		function byte
		addr     uint16
		qty      uint16
	}{
		{0x04, servoPositionAddr, 2},
		{0x04, servoTemperatureAddr, 2},
		{0x04, servoAlarmAddr, 1},
	}
	cursor := 0

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			block := blocks[cursor]
			cursor = (cursor + 1) % len(blocks)
			if err := d.transport.SendReadRequest(transport.ModbusRequest{
				FunctionCode: block.function, StartAddr: block.addr, Quantity: block.qty,
			}); err != nil {
				continue
			}
			d.awaitReply(block.addr, 500*time.Millisecond)
		}
	}
}

func (d *ServoAxis) awaitReply(addr uint16, timeout time.Duration) {
	select {
	case ev := <-d.replies:
		d.handleReply(addr, ev)
	case <-time.After(timeout):
		// Transport timeout: non-fatal, the next tick retries.
	case <-d.stop:
	}
}

func (d *ServoAxis) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.ReplyReady:
		if ev.UnitID != d.slaveID {
			return
		}
		select {
		case d.replies <- ev:
		default:
		}
	case transport.LinkError:
		d.log.Warnf("servo axis link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *ServoAxis) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *ServoAxis) handleReply(addr uint16, ev transport.Event) {
	data := parser.ModbusReplyData(ev.Frame)
	changed := false

	switch addr {
	case servoPositionAddr:
		if pos, ok := parser.DecodeServoPositionRegisters(data); ok && pos != d.position {
			d.position = pos
			changed = true
		}
	case servoTemperatureAddr:
		if driverTC, motorTC, ok := parser.DecodeServoTemperatureRegisters(data); ok &&
			(!fuzzyEqual(driverTC, d.driverTC) || !fuzzyEqual(motorTC, d.motorTC)) {
			d.driverTC, d.motorTC = driverTC, motorTC
			changed = true
		}
	case servoAlarmAddr:
		if alarm, ok := parser.DecodeServoAlarmRegister(data); ok && alarm != d.alarm {
			d.alarm = alarm
			changed = true
		}
	}

	if changed {
		d.watchdog.Arm()
		d.publish()
	}
}

func (d *ServoAxis) publish() {
	if d.model == nil {
		return
	}
	data := state.ServoAxisData{
		PositionCounts: d.position,
		DriverTempC:    d.driverTC,
		MotorTempC:     d.motorTC,
		Fault:          d.alarm != 0,
	}
	if d.isAz {
		d.model.OnServoAzData(data)
	} else {
		d.model.OnServoElData(data, d.elMinDeg, d.elMaxDeg)
	}
}
