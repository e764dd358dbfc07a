package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
)

// FramedSerial is the framed byte-stream Transport variant: day camera,
// night camera, LRF, servo actuator, and radar all ride on one of these.
// It owns exactly one serial.Port and one reader goroutine for its
// lifetime; Close stops the goroutine and releases the port.
type FramedSerial struct {
	mu        sync.Mutex
	port      serial.Port
	cfg       config.TransportConfig
	listeners []Listener
	connected bool
	stop      chan struct{}
	reconnect *reconnectState
	log       logger.Logger
}

// NewFramedSerial returns an unopened framed-serial transport.
func NewFramedSerial(name string, log logger.Logger) *FramedSerial {
	return &FramedSerial{log: newLogger(log, name)}
}

func (t *FramedSerial) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

func (t *FramedSerial) notify(ev Event) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (t *FramedSerial) Open(cfg config.TransportConfig) error {
	port, err := openSerialPort(cfg)
	if err != nil {
		t.notify(Event{Kind: LinkError, Err: err})
		return err
	}

	t.mu.Lock()
	t.port = port
	t.cfg = cfg
	t.stop = make(chan struct{})
	t.reconnect = newReconnectState(cfg.Retries, 200*time.Millisecond)
	t.mu.Unlock()

	t.setConnected(true)
	go t.readLoop(t.stop)
	return nil
}

func (t *FramedSerial) setConnected(connected bool) {
	t.mu.Lock()
	changed := t.connected != connected
	t.connected = connected
	t.mu.Unlock()
	if changed {
		t.notify(Event{Kind: ConnectionStateChanged, Connected: connected})
	}
}

func (t *FramedSerial) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *FramedSerial) readLoop(stop chan struct{}) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}

		t.mu.Lock()
		port := t.port
		t.mu.Unlock()

		n, err := port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.setConnected(false)
			t.notify(Event{Kind: LinkError, Err: err})
			if t.attemptReconnect(stop) {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		chunk := append([]byte(nil), buf[:n]...)
		t.notify(Event{Kind: FrameReceived, Frame: chunk})
	}
}

// attemptReconnect implements the serial variant's exponential backoff
// reconnect schedule. Returns false once retries are exhausted.
func (t *FramedSerial) attemptReconnect(stop chan struct{}) bool {
	delay, exhausted := t.reconnect.nextDelay()
	if exhausted {
		t.log.Errorf("reconnect to %s exhausted after max retries", t.cfg.Port)
		return false
	}

	select {
	case <-time.After(delay):
	case <-stop:
		return false
	}

	port, err := openSerialPort(t.cfg)
	if err != nil {
		t.log.Warnf("reconnect to %s failed: %v", t.cfg.Port, err)
		return true
	}

	t.mu.Lock()
	_ = t.port.Close()
	t.port = port
	t.mu.Unlock()
	t.reconnect.reset()
	t.setConnected(true)
	return true
}

func (t *FramedSerial) Send(frame []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return errors.New("transport not open")
	}
	_, err := port.Write(frame)
	if err != nil {
		t.notify(Event{Kind: LinkError, Err: err})
	}
	return err
}

// SendReadRequest and SendWriteRequest are no-ops on the framed-serial
// variant: Modbus register semantics belong to the RTU transport only.
func (t *FramedSerial) SendReadRequest(ModbusRequest) error  { return errUnsupportedModbus }
func (t *FramedSerial) SendWriteRequest(ModbusRequest) error { return errUnsupportedModbus }

var errUnsupportedModbus = errors.New("framed serial transport does not support Modbus requests")

func (t *FramedSerial) Close() error {
	t.mu.Lock()
	stop := t.stop
	port := t.port
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	t.setConnected(false)
	if port != nil {
		return port.Close()
	}
	return nil
}
