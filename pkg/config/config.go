package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
//
// A Config is built once at startup (Default or Load) and shared by pointer
// with every consumer. Consumers only read it.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Serial      SerialConfig      `yaml:"serial"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Cloud       CloudConfig       `yaml:"cloud"`
	Debug       DebugConfig       `yaml:"debug"`
	Mock        MockConfig        `yaml:"mock"`
}

// SensorConfig contains ultrasonic ranging and classification parameters.
type SensorConfig struct {
	MinInches             int           `yaml:"min_inches"`               // Lower bound of the presence band (inclusive)
	MaxInches             int           `yaml:"max_inches"`               // Upper bound of the presence band (inclusive)
	SampleCount           int           `yaml:"sample_count"`             // Consecutive agreeing samples before a state change is confirmed
	MaxTimeBetweenSamples time.Duration `yaml:"max_time_between_samples"` // Larger gaps make the sequence stale
	MaxTimestampDiff      time.Duration `yaml:"max_timestamp_diff"`       // Allowed drift between sensor and host clocks
	MaxUltraRange         int           `yaml:"max_ultra_range"`          // Largest valid echo width (sensor-native units, µs)
	TriggerInterval       time.Duration `yaml:"trigger_interval"`         // Minimum time between trigger pulses (ms scale)
	TriggerPause          time.Duration `yaml:"trigger_pause"`            // Trigger pulse width (µs scale)
}

// MeasurementConfig contains pipeline parameters.
type MeasurementConfig struct {
	AverageSamples  int           `yaml:"average_samples"`  // Number of echoes to average per channel (0 = disabled, default)
	History         int           `yaml:"history"`          // Number of crossing events kept in memory
	CrossingTimeout time.Duration `yaml:"crossing_timeout"` // Unfinished crossings older than this are abandoned
}

// SerialConfig contains serial port configuration for the sensor link.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// GPIOConfig contains GPIO character device lines for directly wired sensors.
type GPIOConfig struct {
	Chip         string `yaml:"chip"`
	LeftTrigger  int    `yaml:"left_trigger"`
	LeftEcho     int    `yaml:"left_echo"`
	RightTrigger int    `yaml:"right_trigger"`
	RightEcho    int    `yaml:"right_echo"`
}

// WebhookConfig contains crossing webhook configuration.
type WebhookConfig struct {
	LeftID    string        `yaml:"left_id"`  // Left crossing webhook
	RightID   string        `yaml:"right_id"` // Right crossing webhook
	BaseURL   string        `yaml:"base_url"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CloudConfig contains the periodic report configuration.
type CloudConfig struct {
	TimeZone       int           `yaml:"time_zone"` // UTC offset in hours
	UpdateInterval time.Duration `yaml:"update_interval"`
	URL            string        `yaml:"url"`
	DeviceID       string        `yaml:"device_id"`
	Secret         string        `yaml:"secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DebugConfig contains the debug channel configuration.
type DebugConfig struct {
	SerialTxRate int    `yaml:"serial_tx_rate"` // Baud rate of the serial debug mirror
	SerialPort   string `yaml:"serial_port"`    // Empty disables the serial mirror
	File         string `yaml:"file"`           // Empty disables the rotated log file
	Human        bool   `yaml:"human"`          // Human action info
	System       bool   `yaml:"system"`         // System action info
	State        bool   `yaml:"state"`          // State change info
	Variable     bool   `yaml:"variable"`       // Variable or branch change info
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	SampleRate     time.Duration `yaml:"sample_rate"`       // Time between readings per channel
	CrossingPeriod time.Duration `yaml:"crossing_period"`   // Time between simulated crossings
	DwellTime      time.Duration `yaml:"dwell_time"`        // Time a walker stays in front of one sensor
	PassingInches  float64       `yaml:"passing_inches"`    // Distance reported while a walker is present
	IdleInches     float64       `yaml:"idle_inches"`       // Distance reported to the opposite wall
	NoiseInches    float64       `yaml:"noise_inches"`      // Peak noise added to every reading
	RightToLeftPct int           `yaml:"right_to_left_pct"` // Share of crossings that start on the right
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			MinInches:             2,
			MaxInches:             20,
			SampleCount:           1,
			MaxTimeBetweenSamples: 300000 * time.Microsecond,
			MaxTimestampDiff:      10000000 * time.Microsecond, // 10 s
			MaxUltraRange:         10000,
			TriggerInterval:       100 * time.Millisecond,
			TriggerPause:          10 * time.Microsecond,
		},
		Measurement: MeasurementConfig{
			AverageSamples:  0,
			History:         100,
			CrossingTimeout: 5 * time.Second,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 9600, // Must match the firmware UART rate
		},
		GPIO: GPIOConfig{
			Chip:         "gpiochip0",
			LeftTrigger:  23,
			LeftEcho:     24,
			RightTrigger: 5,
			RightEcho:    6,
		},
		Webhook: WebhookConfig{
			LeftID:    "xing1",
			RightID:   "xing2",
			QueueSize: 32,
			Timeout:   5 * time.Second,
		},
		Cloud: CloudConfig{
			TimeZone: -5, // Eastern Standard Time
			// 90 s, although older notes describe it as 15 minutes
			UpdateInterval: 90000000 * time.Microsecond,
			DeviceID:       "xing",
			TokenTTL:       5 * time.Minute,
			Timeout:        10 * time.Second,
		},
		Debug: DebugConfig{
			SerialTxRate: 9600,
			Human:        true,
			System:       true,
			State:        true,
			Variable:     true,
		},
		Mock: MockConfig{
			SampleRate:     100 * time.Millisecond,
			CrossingPeriod: 5 * time.Second,
			DwellTime:      600 * time.Millisecond,
			PassingInches:  12,
			IdleInches:     48,
			NoiseInches:    0.5,
			RightToLeftPct: 50,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values. The result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Location returns the fixed time zone used for timestamped reporting.
func (c *Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.Cloud.TimeZone), c.Cloud.TimeZone*3600)
}

// ensureDefaults fills fields whose zero value is never meaningful.
// Fields where zero is legitimate (time zone, min inches, trigger pause, debug
// flags) are left alone, and an explicit sample_count of zero is left for
// Validate to reject.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sensor.MaxInches == 0 {
		c.Sensor.MaxInches = def.Sensor.MaxInches
	}
	if c.Sensor.MaxTimeBetweenSamples == 0 {
		c.Sensor.MaxTimeBetweenSamples = def.Sensor.MaxTimeBetweenSamples
	}
	if c.Sensor.MaxTimestampDiff == 0 {
		c.Sensor.MaxTimestampDiff = def.Sensor.MaxTimestampDiff
	}
	if c.Sensor.MaxUltraRange == 0 {
		c.Sensor.MaxUltraRange = def.Sensor.MaxUltraRange
	}
	if c.Sensor.TriggerInterval == 0 {
		c.Sensor.TriggerInterval = def.Sensor.TriggerInterval
	}

	if c.Measurement.History == 0 {
		c.Measurement.History = def.Measurement.History
	}
	if c.Measurement.CrossingTimeout == 0 {
		c.Measurement.CrossingTimeout = def.Measurement.CrossingTimeout
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.Webhook.LeftID == "" {
		c.Webhook.LeftID = def.Webhook.LeftID
	}
	if c.Webhook.RightID == "" {
		c.Webhook.RightID = def.Webhook.RightID
	}
	if c.Webhook.QueueSize == 0 {
		c.Webhook.QueueSize = def.Webhook.QueueSize
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = def.Webhook.Timeout
	}

	if c.Cloud.UpdateInterval == 0 {
		c.Cloud.UpdateInterval = def.Cloud.UpdateInterval
	}
	if c.Cloud.DeviceID == "" {
		c.Cloud.DeviceID = def.Cloud.DeviceID
	}
	if c.Cloud.TokenTTL == 0 {
		c.Cloud.TokenTTL = def.Cloud.TokenTTL
	}
	if c.Cloud.Timeout == 0 {
		c.Cloud.Timeout = def.Cloud.Timeout
	}

	if c.Debug.SerialTxRate == 0 {
		c.Debug.SerialTxRate = def.Debug.SerialTxRate
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.CrossingPeriod == 0 {
		c.Mock.CrossingPeriod = def.Mock.CrossingPeriod
	}
	if c.Mock.DwellTime == 0 {
		c.Mock.DwellTime = def.Mock.DwellTime
	}
	if c.Mock.PassingInches == 0 {
		c.Mock.PassingInches = def.Mock.PassingInches
	}
	if c.Mock.IdleInches == 0 {
		c.Mock.IdleInches = def.Mock.IdleInches
	}
}
