package parser

import "math"

// ModbusReplyData strips the slave address, function code, and CRC from
// a raw Modbus RTU read-reply frame (as delivered by
// transport.ModbusRTU's ReplyReady event), leaving just the byte-count
// field's payload.
func ModbusReplyData(frame []byte) []byte {
	if len(frame) < 5 {
		return nil
	}
	byteCount := int(frame[2])
	if len(frame) < 3+byteCount+2 {
		return nil
	}
	return frame[3 : 3+byteCount]
}

func beUint16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func beInt32(b []byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}
func beFloat32(b []byte) float64 {
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return float64(math.Float32frombits(bits))
}

// IMUInputRegisters is the decoded SST810 Input Register block: 18
// registers (9 big-endian IEEE-754 floats) starting at 0x03E8, ordered
// pitch, roll, temp x10, ax, ay, az, gx, gy, gz.
type IMUInputRegisters struct {
	PitchDeg    float64
	RollDeg     float64
	TempC       float64
	AccelX      float64
	AccelY      float64
	AccelZ      float64
	GyroX       float64
	GyroY       float64
	GyroZ       float64
}

const IMURegisterStartAddr = 0x03E8
const IMURegisterCount = 18

// DecodeIMUInputRegisters decodes a 36-byte SST810 reply payload.
func DecodeIMUInputRegisters(data []byte) (IMUInputRegisters, bool) {
	if len(data) < 36 {
		return IMUInputRegisters{}, false
	}
	return IMUInputRegisters{
		PitchDeg: beFloat32(data[0:4]),
		RollDeg:  beFloat32(data[4:8]),
		TempC:    beFloat32(data[8:12]) / 10.0,
		AccelX:   beFloat32(data[12:16]),
		AccelY:   beFloat32(data[16:20]),
		AccelZ:   beFloat32(data[20:24]),
		GyroX:    beFloat32(data[24:28]),
		GyroY:    beFloat32(data[28:32]),
		GyroZ:    beFloat32(data[32:36]),
	}, true
}

// PLC21DiscreteInputs is the panel-switch bit map PLC21 exposes.
type PLC21DiscreteInputs struct {
	StationEnabled bool
	GunArmed       bool
	AmmoLoaded     bool
	Home           bool
	Stabilise      bool
	Authorise      bool
	SwitchCamera   bool
	MenuUp         bool
	MenuDown       bool
	MenuVal        bool
}

// DecodePLC21DiscreteInputs decodes the PLC21 discrete-input bit map
// from a coil/discrete-input reply payload (2 bytes holding 10 bits,
// LSB first, per standard Modbus bit packing).
func DecodePLC21DiscreteInputs(data []byte) (PLC21DiscreteInputs, bool) {
	if len(data) < 2 {
		return PLC21DiscreteInputs{}, false
	}
	bit := func(byteIdx, bitIdx int) bool {
		return data[byteIdx]&(1<<uint(bitIdx)) != 0
	}
	return PLC21DiscreteInputs{
		StationEnabled: bit(0, 0),
		GunArmed:       bit(0, 1),
		AmmoLoaded:     bit(0, 2),
		Home:           bit(0, 3),
		Stabilise:      bit(0, 4),
		Authorise:      bit(0, 5),
		SwitchCamera:   bit(0, 6),
		MenuUp:         bit(0, 7),
		MenuDown:       bit(1, 0),
		MenuVal:        bit(1, 1),
	}, true
}

// PLC21HoldingRegisters is the fire-mode/speed/panel-temp register block.
type PLC21HoldingRegisters struct {
	FireModeRaw int
	SpeedPct    float64
	PanelTempC  float64
}

// DecodePLC21HoldingRegisters decodes 3 holding registers (6 bytes).
func DecodePLC21HoldingRegisters(data []byte) (PLC21HoldingRegisters, bool) {
	if len(data) < 6 {
		return PLC21HoldingRegisters{}, false
	}
	return PLC21HoldingRegisters{
		FireModeRaw: int(beUint16(data[0:2])),
		SpeedPct:    float64(beUint16(data[2:4])) / 100.0,
		PanelTempC:  float64(int16(beUint16(data[4:6]))) / 10.0,
	}, true
}

// PLC42DiscreteInputs is the weapon/limit-switch/E-stop bit map.
type PLC42DiscreteInputs struct {
	UpperLimit     bool
	LowerLimit     bool
	EmergencyStop  bool
	AmmoLevelOK    bool
	SolenoidActive bool
}

// DecodePLC42DiscreteInputs decodes the PLC42 discrete-input bit map.
func DecodePLC42DiscreteInputs(data []byte) (PLC42DiscreteInputs, bool) {
	if len(data) < 1 {
		return PLC42DiscreteInputs{}, false
	}
	bit := func(bitIdx int) bool { return data[0]&(1<<uint(bitIdx)) != 0 }
	return PLC42DiscreteInputs{
		UpperLimit:     bit(0),
		LowerLimit:     bit(1),
		EmergencyStop:  bit(2),
		AmmoLevelOK:    bit(3),
		SolenoidActive: bit(4),
	}, true
}

// PLC42HoldingRegisters is the 10-register solenoid/gimbal-speed block:
// solenoid mode, solenoid state, gimbal op mode, az speed (32-bit pair),
// el speed (32-bit pair), az direction, el direction, reset alarm.
type PLC42HoldingRegisters struct {
	SolenoidMode  int
	SolenoidState int
	GimbalOpMode  int
	AzSpeedRaw    int32
	ElSpeedRaw    int32
	AzDirection   int
	ElDirection   int
	ResetAlarm    bool
}

// DecodePLC42HoldingRegisters decodes 10 holding registers (20 bytes).
func DecodePLC42HoldingRegisters(data []byte) (PLC42HoldingRegisters, bool) {
	if len(data) < 20 {
		return PLC42HoldingRegisters{}, false
	}
	return PLC42HoldingRegisters{
		SolenoidMode:  int(beUint16(data[0:2])),
		SolenoidState: int(beUint16(data[2:4])),
		GimbalOpMode:  int(beUint16(data[4:6])),
		AzSpeedRaw:    beInt32(data[6:10]),
		ElSpeedRaw:    beInt32(data[10:14]),
		AzDirection:   int(beUint16(data[14:16])),
		ElDirection:   int(beUint16(data[16:18])),
		ResetAlarm:    beUint16(data[18:20]) != 0,
	}, true
}

// ServoDriverRegisters is the decoded servo driver telemetry block:
// 32-bit signed position, driver and motor temperatures (each x0.1), and
// an alarm status word.
type ServoDriverRegisters struct {
	PositionCounts int32
	DriverTempC    float64
	MotorTempC     float64
	AlarmStatus    int
}

// DecodeServoPositionRegisters decodes the 2-register (4-byte) 32-bit
// signed position block.
func DecodeServoPositionRegisters(data []byte) (int32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return beInt32(data[0:4]), true
}

// DecodeServoTemperatureRegisters decodes the 2-register driver/motor
// temperature block, each scaled by 0.1.
func DecodeServoTemperatureRegisters(data []byte) (driverTempC, motorTempC float64, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	return float64(int16(beUint16(data[0:2]))) * 0.1, float64(int16(beUint16(data[2:4]))) * 0.1, true
}

// DecodeServoAlarmRegister decodes the single-register alarm status word.
func DecodeServoAlarmRegister(data []byte) (int, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return int(beUint16(data[0:2])), true
}
