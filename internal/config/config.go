// Package config loads station.yaml: transport parameters for every
// peripheral, the zone file location, and gimbal/ballistics tuning
// constants. Loading follows the teacher's viper + yaml.v3 layering:
// defaults, then station.yaml, then STATIONCTL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// TransportConfig is the map a Transport's Open(config) contract takes.
type TransportConfig struct {
	Port          string `yaml:"port" mapstructure:"port"`
	Baud          int    `yaml:"baud" mapstructure:"baud"`
	Parity        string `yaml:"parity" mapstructure:"parity"`
	DataBits      int    `yaml:"data_bits" mapstructure:"data_bits"`
	StopBits      int    `yaml:"stop_bits" mapstructure:"stop_bits"`
	FlowControl   string `yaml:"flow" mapstructure:"flow"`
	TimeoutMs     int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Retries       int    `yaml:"retries" mapstructure:"retries"`
	ModbusSlaveID byte   `yaml:"modbus_slave_id" mapstructure:"modbus_slave_id"`
}

// GimbalConfig holds per-axis rate limits and controller gains.
type GimbalConfig struct {
	MaxAzRateDps    float64 `yaml:"max_az_rate_dps" mapstructure:"max_az_rate_dps"`
	MaxElRateDps    float64 `yaml:"max_el_rate_dps" mapstructure:"max_el_rate_dps"`
	ElMinDeg        float64 `yaml:"el_min_deg" mapstructure:"el_min_deg"`
	ElMaxDeg        float64 `yaml:"el_max_deg" mapstructure:"el_max_deg"`
	AutoTrackKp     float64 `yaml:"auto_track_kp" mapstructure:"auto_track_kp"`
	AutoTrackKi     float64 `yaml:"auto_track_ki" mapstructure:"auto_track_ki"`
	DefaultSpeedPct float64 `yaml:"default_speed_pct" mapstructure:"default_speed_pct"`
}

// BallisticsConfig holds the tuning constants fed to the ballistics processor.
type BallisticsConfig struct {
	MuzzleVelocityMps  float64 `yaml:"muzzle_velocity_mps" mapstructure:"muzzle_velocity_mps"`
	LagTofThresholdS   float64 `yaml:"lag_tof_threshold_s" mapstructure:"lag_tof_threshold_s"`
	ZoomOutFovFraction float64 `yaml:"zoom_out_fov_fraction" mapstructure:"zoom_out_fov_fraction"`
}

// PipelineConfig names the video capture device and detector model the
// camera worker for one camera (day or night) should use.
// DetectEveryNFrames is loaded but not passed to the pipeline, which
// runs its detector on every third frame regardless of this value.
type PipelineConfig struct {
	CaptureDeviceIndex int    `yaml:"capture_device_index" mapstructure:"capture_device_index"`
	DetectorModelPath  string `yaml:"detector_model_path" mapstructure:"detector_model_path"`
	DetectEveryNFrames int    `yaml:"detect_every_n_frames" mapstructure:"detect_every_n_frames"`
}

// Config is the fully-resolved station configuration.
type Config struct {
	ZoneFilePath string                     `yaml:"zone_file_path" mapstructure:"zone_file_path"`
	LogLevel     string                     `yaml:"log_level" mapstructure:"log_level"`
	NoColor      bool                       `yaml:"no_color" mapstructure:"no_color"`
	Devices      map[string]TransportConfig `yaml:"devices" mapstructure:"devices"`
	Gimbal       GimbalConfig               `yaml:"gimbal" mapstructure:"gimbal"`
	Ballistics   BallisticsConfig           `yaml:"ballistics" mapstructure:"ballistics"`
	JoystickGUID string                     `yaml:"joystick_guid" mapstructure:"joystick_guid"`
	DayPipeline   PipelineConfig `yaml:"day_pipeline" mapstructure:"day_pipeline"`
	NightPipeline PipelineConfig `yaml:"night_pipeline" mapstructure:"night_pipeline"`
}

// Device name keys used in the Devices map and by the hardware manager.
const (
	DeviceDayCamera    = "day_camera"
	DeviceNightCamera  = "night_camera"
	DeviceLRF          = "lrf"
	DeviceIMU          = "imu"
	DevicePLC21        = "plc21"
	DevicePLC42        = "plc42"
	DeviceServoAz      = "servo_az"
	DeviceServoEl      = "servo_el"
	DeviceServoActuator = "servo_actuator"
	DeviceRadar        = "radar"
)

func defaults() *Config {
	return &Config{
		ZoneFilePath: "./zones.json",
		LogLevel:     "info",
		Devices: map[string]TransportConfig{
			DeviceDayCamera:     {Port: "/dev/ttyUSB0", Baud: 9600, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5},
			DeviceNightCamera:   {Port: "/dev/ttyUSB1", Baud: 57600, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5},
			DeviceLRF:           {Port: "/dev/ttyUSB2", Baud: 115200, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5},
			DeviceIMU:           {Port: "/dev/ttyUSB3", Baud: 115200, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5, ModbusSlaveID: 1},
			DevicePLC21:         {Port: "/dev/ttyUSB4", Baud: 19200, DataBits: 8, StopBits: 1, Parity: "even", TimeoutMs: 500, Retries: 5, ModbusSlaveID: 21},
			DevicePLC42:         {Port: "/dev/ttyUSB4", Baud: 19200, DataBits: 8, StopBits: 1, Parity: "even", TimeoutMs: 500, Retries: 5, ModbusSlaveID: 42},
			DeviceServoAz:       {Port: "/dev/ttyUSB5", Baud: 115200, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5, ModbusSlaveID: 1},
			DeviceServoEl:       {Port: "/dev/ttyUSB6", Baud: 115200, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5, ModbusSlaveID: 2},
			DeviceServoActuator: {Port: "/dev/ttyUSB7", Baud: 9600, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 1000, Retries: 3},
			DeviceRadar:         {Port: "/dev/ttyUSB8", Baud: 4800, DataBits: 8, StopBits: 1, Parity: "none", TimeoutMs: 500, Retries: 5},
		},
		Gimbal: GimbalConfig{
			MaxAzRateDps:    40,
			MaxElRateDps:    30,
			ElMinDeg:        -20,
			ElMaxDeg:        60,
			AutoTrackKp:     0.04,
			AutoTrackKi:     0.002,
			DefaultSpeedPct: 0.5,
		},
		Ballistics: BallisticsConfig{
			MuzzleVelocityMps:  850,
			LagTofThresholdS:   1.2,
			ZoomOutFovFraction: 0.25,
		},
		DayPipeline:   PipelineConfig{CaptureDeviceIndex: 0, DetectEveryNFrames: 5},
		NightPipeline: PipelineConfig{CaptureDeviceIndex: 1, DetectEveryNFrames: 5},
	}
}

// Load reads station.yaml (if present) from path, layers STATIONCTL_*
// environment overrides on top via viper, and returns the resolved config.
// A missing file is not an error; an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STATIONCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading station config %q: %w", path, err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing station config %q: %w", path, err)
	}

	return cfg, nil
}
