// Package hardware is the composition root that wires every
// transport, parser, and device to the shared state model. It holds a
// small tagged set of typed fields rather than a generic device
// registry, matching the way this system replaces polymorphic
// peripheral collections with named, statically-typed components.
package hardware

import (
	"github.com/ironfathom/stationctl/internal/config"
	"github.com/ironfathom/stationctl/internal/device"
	"github.com/ironfathom/stationctl/internal/logger"
	"github.com/ironfathom/stationctl/internal/state"
	"github.com/ironfathom/stationctl/internal/transport"
)

// Manager owns every peripheral device and the transports backing
// them. Bring-up and teardown happen in declaration order; teardown
// runs in reverse.
type Manager struct {
	cfg   *config.Config
	model *state.Model
	log   logger.Logger

	DayCamera     *device.DayCamera
	NightCamera   *device.NightCamera
	LRF           *device.LRF
	IMU           *device.IMU
	PLC21         *device.PLC21
	PLC42         *device.PLC42
	ServoAz       *device.ServoAxis
	ServoEl       *device.ServoAxis
	Actuator      *device.Actuator
	Radar         *device.Radar
	Joystick      *device.Joystick

	transports []transport.Transport
}

// NewManager constructs every device and its backing transport, but
// does not open any link yet — call Start to bring the station online.
func NewManager(cfg *config.Config, model *state.Model, log logger.Logger) *Manager {
	m := &Manager{cfg: cfg, model: model, log: log.WithPrefix("hardware")}

	m.DayCamera = device.NewDayCamera(log)
	m.NightCamera = device.NewNightCamera(log)
	m.LRF = device.NewLRF(log)
	m.IMU = device.NewIMU(log)
	m.PLC21 = device.NewPLC21(log)
	m.PLC42 = device.NewPLC42(log)
	m.ServoAz = device.NewServoAxis(log, true, cfg.Gimbal.ElMinDeg, cfg.Gimbal.ElMaxDeg)
	m.ServoEl = device.NewServoAxis(log, false, cfg.Gimbal.ElMinDeg, cfg.Gimbal.ElMaxDeg)
	m.Actuator = device.NewActuator(log)
	m.Radar = device.NewRadar(log)
	m.Joystick = device.NewJoystick(log, cfg.JoystickGUID)

	m.DayCamera.SetModel(model)
	m.NightCamera.SetModel(model)
	m.LRF.SetModel(model)
	m.IMU.SetModel(model)
	m.PLC21.SetModel(model)
	m.PLC42.SetModel(model)
	m.ServoAz.SetModel(model)
	m.ServoEl.SetModel(model)
	m.Actuator.SetModel(model)
	m.Radar.SetModel(model)
	m.Joystick.SetModel(model)

	serialTransport := func(name string) transport.Transport {
		t := transport.NewFramedSerial(name, log)
		m.transports = append(m.transports, t)
		return t
	}
	modbusTransport := func(name string) transport.Transport {
		t := transport.NewModbusRTU(name, log)
		m.transports = append(m.transports, t)
		return t
	}

	m.DayCamera.SetDependencies(serialTransport(config.DeviceDayCamera))
	m.NightCamera.SetDependencies(serialTransport(config.DeviceNightCamera))
	m.LRF.SetDependencies(serialTransport(config.DeviceLRF))
	m.Actuator.SetDependencies(serialTransport(config.DeviceServoActuator))
	m.Radar.SetDependencies(serialTransport(config.DeviceRadar))

	imuCfg := cfg.Devices[config.DeviceIMU]
	m.IMU.SetDependencies(modbusTransport(config.DeviceIMU), imuCfg.ModbusSlaveID)
	plc21Cfg := cfg.Devices[config.DevicePLC21]
	m.PLC21.SetDependencies(modbusTransport(config.DevicePLC21), plc21Cfg.ModbusSlaveID)
	plc42Cfg := cfg.Devices[config.DevicePLC42]
	m.PLC42.SetDependencies(modbusTransport(config.DevicePLC42), plc42Cfg.ModbusSlaveID)
	azCfg := cfg.Devices[config.DeviceServoAz]
	m.ServoAz.SetDependencies(modbusTransport(config.DeviceServoAz), azCfg.ModbusSlaveID)
	elCfg := cfg.Devices[config.DeviceServoEl]
	m.ServoEl.SetDependencies(modbusTransport(config.DeviceServoEl), elCfg.ModbusSlaveID)

	return m
}

// Start opens every transport and begins each device's watchdog/poll
// cycle. A device that fails to open is logged and skipped rather than
// aborting the whole bring-up, since a disconnected peripheral is an
// expected operating condition (its snapshot simply reports
// disconnected until plugged in).
func (m *Manager) Start() error {
	type initializer struct {
		name string
		fn   func(config.TransportConfig) error
	}
	steps := []initializer{
		{config.DeviceDayCamera, m.DayCamera.Initialize},
		{config.DeviceNightCamera, m.NightCamera.Initialize},
		{config.DeviceLRF, m.LRF.Initialize},
		{config.DeviceIMU, m.IMU.Initialize},
		{config.DevicePLC21, m.PLC21.Initialize},
		{config.DevicePLC42, m.PLC42.Initialize},
		{config.DeviceServoAz, m.ServoAz.Initialize},
		{config.DeviceServoEl, m.ServoEl.Initialize},
		{config.DeviceServoActuator, m.Actuator.Initialize},
		{config.DeviceRadar, m.Radar.Initialize},
	}
	for _, step := range steps {
		cfg, ok := m.cfg.Devices[step.name]
		if !ok {
			continue
		}
		if err := step.fn(cfg); err != nil {
			m.log.Warnf("%s failed to open (%v), will retry via reconnect", step.name, err)
		}
	}

	if err := m.Joystick.Initialize(); err != nil {
		m.log.Warnf("joystick unavailable: %v", err)
	}

	return nil
}

// Shutdown tears every device down in reverse bring-up order.
func (m *Manager) Shutdown() {
	m.Joystick.Shutdown()
	m.Radar.Shutdown()
	m.Actuator.Shutdown()
	m.ServoEl.Shutdown()
	m.ServoAz.Shutdown()
	m.PLC42.Shutdown()
	m.PLC21.Shutdown()
	m.IMU.Shutdown()
	m.LRF.Shutdown()
	m.NightCamera.Shutdown()
	m.DayCamera.Shutdown()
}

// DeviceNames lists every peripheral this manager owns, for status
// reporting in the CLI and about screen.
func (m *Manager) DeviceNames() []string {
	return []string{
		config.DeviceDayCamera, config.DeviceNightCamera, config.DeviceLRF,
		config.DeviceIMU, config.DevicePLC21, config.DevicePLC42,
		config.DeviceServoAz, config.DeviceServoEl, config.DeviceServoActuator,
		config.DeviceRadar, "joystick",
	}
}
