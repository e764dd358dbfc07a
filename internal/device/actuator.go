package device

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/parser"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// Ammunition load/clear sequences are each a fixed list of actuator
// positions (in sensor counts) the weapon controller steps through,
// waiting for a position-reached ACK before advancing.
var (
	loadSequenceCounts  = []int{500, 1500, 3000}
	clearSequenceCounts = []int{1500, 0}
)

// Actuator drives the linear actuator's line-oriented ASCII protocol:
// one command occupies the pending slot at a time, ACK/NACK clears it,
// and the next queued command follows after the inter-command delay.
type Actuator struct {
	transport transport.Transport
	parser    parser.ActuatorParser
	queue     *CommandQueue
	model     *state.Model
	watchdog  *Watchdog
	log       logger.Logger

	connected     bool
	positionCnts  int
	lastError     string
	sequenceSteps []int
	sequenceIdx   int
	onStepDone    func()
}

func NewActuator(log logger.Logger) *Actuator {
	return &Actuator{log: log.WithPrefix("device.servo_actuator")}
}

func (d *Actuator) SetDependencies(t transport.Transport) {
	d.transport = t
	d.transport.Subscribe(d.onEvent)
}

func (d *Actuator) SetModel(m *state.Model) { d.model = m }

func (d *Actuator) Initialize(cfg config.TransportConfig) error {
	if err := d.transport.Open(cfg); err != nil {
		return err
	}
	d.watchdog = NewWatchdog(5*time.Second, d.onConnectedChange)
	d.queue = NewCommandQueue(20*time.Millisecond, d.transport.Send, d.onCommandTimeout, d.log)
	return nil
}

func (d *Actuator) Shutdown() {
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	_ = d.transport.Close()
}

// MoveTo enqueues a single move-to-position command (~1 s ACK timeout,
// per the ASCII protocol's command budget).
func (d *Actuator) MoveTo(counts int) {
	d.queue.Enqueue(Command{
		Bytes:   parser.BuildActuatorCommand(fmt.Sprintf("MV %d", counts)),
		Timeout: time.Second,
	})
}

// StartLoadSequence enqueues the ammunition-load position sequence.
// onComplete is called after the final step's ACK (or a NACK cancels
// the remainder).
func (d *Actuator) StartLoadSequence(onComplete func()) {
	d.startSequence(loadSequenceCounts, onComplete)
}

// StartClearSequence enqueues the ammunition-clear position sequence.
func (d *Actuator) StartClearSequence(onComplete func()) {
	d.startSequence(clearSequenceCounts, onComplete)
}

func (d *Actuator) startSequence(steps []int, onComplete func()) {
	d.sequenceSteps = steps
	d.sequenceIdx = 0
	d.onStepDone = onComplete
	if len(steps) > 0 {
		d.MoveTo(steps[0])
	}
}

func (d *Actuator) advanceSequence() {
	if d.sequenceSteps == nil {
		return
	}
	d.sequenceIdx++
	if d.sequenceIdx >= len(d.sequenceSteps) {
		cb := d.onStepDone
		d.sequenceSteps = nil
		d.onStepDone = nil
		if cb != nil {
			cb()
		}
		return
	}
	d.MoveTo(d.sequenceSteps[d.sequenceIdx])
}

func (d *Actuator) onCommandTimeout(cmd Command) {
	d.lastError = "actuator command timeout"
	d.log.Warnf("%s", d.lastError)
	d.publish()
}

func (d *Actuator) onEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.FrameReceived:
		for _, msg := range d.parser.Feed(ev.Frame) {
			d.watchdog.Arm()
			d.handleMessage(msg)
		}
	case transport.LinkError:
		d.log.Warnf("actuator link error: %v", ev.Err)
	case transport.ConnectionStateChanged:
		d.connected = ev.Connected
		d.publish()
	}
}

func (d *Actuator) onConnectedChange(connected bool) {
	d.connected = connected
	d.publish()
}

func (d *Actuator) handleMessage(msg parser.ActuatorMessage) {
	d.queue.ResolvePending()

	switch {
	case msg.Ack:
		if len(msg.Fields) > 0 {
			if counts, err := strconv.Atoi(msg.Fields[0]); err == nil {
				d.positionCnts = counts
			}
		}
		d.lastError = ""
		d.publish()
		d.advanceSequence()
	case msg.Nack:
		reason := "nack"
		if len(msg.Fields) > 0 {
			reason = msg.Fields[0]
		}
		d.lastError = "actuator nack: " + reason
		d.log.Warnf("%s", d.lastError)
		cb := d.onStepDone
		d.sequenceSteps = nil
		d.onStepDone = nil
		d.publish()
		if cb != nil {
			cb()
		}
	}
}

// PositionCounts returns the actuator's last-known position in sensor
// counts, as reported by the most recent ACK.
func (d *Actuator) PositionCounts() int { return d.positionCnts }

// Connected reports the actuator's communication watchdog state.
func (d *Actuator) Connected() bool { return d.connected }

// LastError returns the most recent NACK reason or timeout message, or
// the empty string once a subsequent command succeeds.
func (d *Actuator) LastError() string { return d.lastError }

func (d *Actuator) publish() {
	// The actuator has no dedicated SystemState field group; its
	// position and fault status feed the weapon controller's load/clear
	// sequencing directly via the accessors above rather than through
	// the invariant-bearing state record.
}
