// Package transport implements the abstract byte-stream / register-IO
// link every device rides on: a framed-serial variant for the
// byte-oriented peripherals and a Modbus RTU variant for the
// register-oriented ones. Devices never touch go.bug.st/serial directly;
// they hold a Transport and react to its events.
package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
)

// EventKind discriminates the events a Transport publishes.
type EventKind int

const (
	FrameReceived EventKind = iota
	ReplyReady
	LinkError
	ConnectionStateChanged
)

// Event is one transport-level notification.
type Event struct {
	Kind      EventKind
	Frame     []byte
	UnitID    byte
	Err       error
	Connected bool
}

// Listener receives transport events. Called synchronously from the
// transport's own reader goroutine; listeners must not block.
type Listener func(Event)

// Transport is the contract both the framed-serial and Modbus RTU
// variants implement.
type Transport interface {
	Open(cfg config.TransportConfig) error
	Close() error
	Send(frame []byte) error
	SendReadRequest(unit ModbusRequest) error
	SendWriteRequest(unit ModbusRequest) error
	Subscribe(Listener)
	IsConnected() bool
}

// ModbusRequest names a register range to read or write. FunctionCode
// follows standard Modbus RTU conventions (0x01 coils, 0x02 discrete
// inputs, 0x03 holding registers, 0x04 input registers, 0x06/0x10 writes).
type ModbusRequest struct {
	FunctionCode byte
	StartAddr    uint16
	Quantity     uint16
	WriteValues  []uint16
}

// reconnectState is shared by both variants: exponential backoff capped
// at the configured retry count, following a
// "delay = base_delay_ms * 2^(retry-1)" backoff schedule.
type reconnectState struct {
	mu         sync.Mutex
	retry      int
	maxRetries int
	baseDelay  time.Duration
}

func newReconnectState(maxRetries int, baseDelay time.Duration) *reconnectState {
	return &reconnectState{maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *reconnectState) reset() {
	r.mu.Lock()
	r.retry = 0
	r.mu.Unlock()
}

// nextDelay returns the backoff delay for the next retry attempt and
// whether retries are exhausted.
func (r *reconnectState) nextDelay() (delay time.Duration, exhausted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retry >= r.maxRetries {
		return 0, true
	}
	r.retry++
	shift := r.retry - 1
	if shift > 20 {
		shift = 20
	}
	return r.baseDelay * time.Duration(1<<uint(shift)), false
}

func parityFromString(p string) serial.Parity {
	switch p {
	case "even":
		return serial.EvenParity
	case "odd":
		return serial.OddParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func stopBitsFromInt(n int) serial.StopBits {
	switch n {
	case 2:
		return serial.TwoStopBits
	case 15:
		return serial.OnePointFiveStopBits
	default:
		return serial.OneStopBit
	}
}

func openSerialPort(cfg config.TransportConfig) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   parityFromString(cfg.Parity),
		StopBits: stopBitsFromInt(cfg.StopBits),
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if cfg.TimeoutMs > 0 {
		_ = port.SetReadTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)
	}
	// Flush both directions before subscribing to data.
	_ = port.ResetInputBuffer()
	_ = port.ResetOutputBuffer()
	return port, nil
}

func newLogger(base logger.Logger, name string) logger.Logger {
	if base == nil {
		return logger.WithPrefix("transport." + name)
	}
	return base.WithPrefix("transport." + name)
}
