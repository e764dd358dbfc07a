// Package parser holds the stateful per-protocol decoders every device
// rides on. Each parser owns an accumulation buffer, consumes raw bytes
// or Modbus reply frames handed to it by a transport.Listener, and
// emits typed messages. Checksum failures are never surfaced past a
// warning: the offending frame is discarded and the parser resynchronises
// by advancing one byte and continuing to scan for the next header.
package parser

// DeviceKind enumerates the device families the parsers in this package
// serve. Replies are not routed by it: each device subscribes its own
// transport.Listener and decodes with its own parser.
type DeviceKind int

const (
	DeviceDayCamera DeviceKind = iota
	DeviceNightCamera
	DeviceLRF
	DeviceIMU
	DevicePLC21
	DevicePLC42
	DeviceServoAz
	DeviceServoEl
	DeviceServoActuator
	DeviceRadar
)
