package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/logger"
)

// ModbusRTU is the register-IO Transport variant: IMU, PLC21, PLC42, and
// both servo drivers ride on one of these. No Modbus RTU client library
// exists anywhere in the retrieval pack, so framing (slave address +
// function code + payload + CRC16/Modbus) is hand-rolled here the same
// way the rest of this system's wire protocols are.
type ModbusRTU struct {
	mu        sync.Mutex
	port      serial.Port
	cfg       config.TransportConfig
	listeners []Listener
	connected bool
	stop      chan struct{}
	reconnect *reconnectState
	log       logger.Logger

	rxBuf []byte
}

// NewModbusRTU returns an unopened Modbus RTU transport.
func NewModbusRTU(name string, log logger.Logger) *ModbusRTU {
	return &ModbusRTU{log: newLogger(log, name)}
}

func (t *ModbusRTU) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

func (t *ModbusRTU) notify(ev Event) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (t *ModbusRTU) Open(cfg config.TransportConfig) error {
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
	t.rxBuf = nil
	t.mu.Unlock()

	t.setConnected(true)
	go t.readLoop(t.stop)
	return nil
}

func (t *ModbusRTU) setConnected(connected bool) {
	t.mu.Lock()
	changed := t.connected != connected
	t.connected = connected
	t.mu.Unlock()
	if changed {
		t.notify(Event{Kind: ConnectionStateChanged, Connected: connected})
	}
}

func (t *ModbusRTU) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *ModbusRTU) readLoop(stop chan struct{}) {
	buf := make([]byte, 512)
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

		t.mu.Lock()
		t.rxBuf = append(t.rxBuf, buf[:n]...)
		frame, rest, ok := extractModbusReply(t.rxBuf)
		t.rxBuf = rest
		t.mu.Unlock()

		if ok {
			t.notify(Event{Kind: ReplyReady, Frame: frame, UnitID: frame[0]})
		}
	}
}

func (t *ModbusRTU) attemptReconnect(stop chan struct{}) bool {
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
	t.rxBuf = nil
	t.mu.Unlock()
	t.reconnect.reset()
	t.setConnected(true)
	return true
}

// extractModbusReply scans buf for one complete Modbus RTU response
// frame. It handles the two response shapes this system needs: a
// read-data reply (slave, function, byteCount, data..., crcLo, crcHi)
// and a write-ack reply (slave, function, addrHi, addrLo, valueHi,
// valueLo, crcLo, crcHi). Returns the frame, the remaining unconsumed
// bytes, and whether a frame was found.
func extractModbusReply(buf []byte) (frame []byte, rest []byte, ok bool) {
	if len(buf) < 2 {
		return nil, buf, false
	}

	function := buf[1]
	var frameLen int
	switch {
	case function == 0x01 || function == 0x02 || function == 0x03 || function == 0x04:
		if len(buf) < 3 {
			return nil, buf, false
		}
		byteCount := int(buf[2])
		frameLen = 3 + byteCount + 2
	case function == 0x05 || function == 0x06 || function == 0x10:
		frameLen = 8
	case function&0x80 != 0:
		// Exception response: slave, function|0x80, exceptionCode, crcLo, crcHi.
		frameLen = 5
	default:
		// Unknown function code: drop one byte and resync, matching the
		// parser contract's resync-on-error policy for other protocols.
		return nil, buf[1:], false
	}

	if len(buf) < frameLen {
		return nil, buf, false
	}

	candidate := buf[:frameLen]
	crc := modbusCRC16(candidate[:frameLen-2])
	gotLo, gotHi := candidate[frameLen-2], candidate[frameLen-1]
	if byte(crc) != gotLo || byte(crc>>8) != gotHi {
		// Checksum mismatch: discard one byte and keep scanning.
		return nil, buf[1:], false
	}

	return append([]byte(nil), candidate...), buf[frameLen:], true
}

func (t *ModbusRTU) Send([]byte) error { return errUnsupportedSerial }

var errUnsupportedSerial = errors.New("modbus RTU transport does not support raw byte sends")

func (t *ModbusRTU) SendReadRequest(req ModbusRequest) error {
	frame := buildModbusReadRequest(t.cfg.ModbusSlaveID, req.FunctionCode, req.StartAddr, req.Quantity)
	return t.write(frame)
}

func (t *ModbusRTU) SendWriteRequest(req ModbusRequest) error {
	var frame []byte
	switch req.FunctionCode {
	case 0x06:
		if len(req.WriteValues) != 1 {
			return fmt.Errorf("function 0x06 requires exactly one value, got %d", len(req.WriteValues))
		}
		frame = buildModbusWriteSingleRequest(t.cfg.ModbusSlaveID, req.StartAddr, req.WriteValues[0])
	case 0x10:
		frame = buildModbusWriteMultipleRequest(t.cfg.ModbusSlaveID, req.StartAddr, req.WriteValues)
	default:
		return fmt.Errorf("unsupported write function code 0x%02X", req.FunctionCode)
	}
	return t.write(frame)
}

func (t *ModbusRTU) write(frame []byte) error {
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

func (t *ModbusRTU) Close() error {
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

// --- Frame construction ---------------------------------------------------

func buildModbusReadRequest(slave, function byte, startAddr, quantity uint16) []byte {
	frame := []byte{
		slave, function,
		byte(startAddr >> 8), byte(startAddr),
		byte(quantity >> 8), byte(quantity),
	}
	return appendModbusCRC(frame)
}

func buildModbusWriteSingleRequest(slave byte, addr uint16, value uint16) []byte {
	frame := []byte{
		slave, 0x06,
		byte(addr >> 8), byte(addr),
		byte(value >> 8), byte(value),
	}
	return appendModbusCRC(frame)
}

func buildModbusWriteMultipleRequest(slave byte, startAddr uint16, values []uint16) []byte {
	byteCount := byte(len(values) * 2)
	frame := []byte{
		slave, 0x10,
		byte(startAddr >> 8), byte(startAddr),
		byte(len(values) >> 8), byte(len(values)),
		byteCount,
	}
	for _, v := range values {
		frame = append(frame, byte(v>>8), byte(v))
	}
	return appendModbusCRC(frame)
}

func appendModbusCRC(frame []byte) []byte {
	crc := modbusCRC16(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// modbusCRC16 implements the standard Modbus RTU CRC-16 (poly 0xA001,
// init 0xFFFF, result sent little-endian).
func modbusCRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc >>= 1
				crc ^= 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
