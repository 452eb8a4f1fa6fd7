package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds application identity.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig configures the status and metrics server.
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// LumberjackConfig configures the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// ProtocolConfig holds the request timing shared by every device session.
type ProtocolConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	MinInterval time.Duration `mapstructure:"minInterval"`
}

// Setup write value types.
const (
	TypeUint8  = "uint8"
	TypeInt8   = "int8"
	TypeUint16 = "uint16"
	TypeInt16  = "int16"
	TypeUint32 = "uint32"
	TypeInt32  = "int32"
	TypeString = "string"
	TypeData   = "data"
)

// SetupWrite is a write command applied after a device has been identified,
// e.g. update rate, distance output selection or stream enable.
// Value is used by the integer types, Text by string and Data by data.
type SetupWrite struct {
	Command int    `mapstructure:"command"`
	Type    string `mapstructure:"type"`
	Value   int64  `mapstructure:"value"`
	Text    string `mapstructure:"text"`
	Data    []int  `mapstructure:"data"`
}

// DeviceConfig describes one rangefinder on a serial port.
type DeviceConfig struct {
	Name        string        `mapstructure:"name"`
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	Setup       []SetupWrite  `mapstructure:"setup"`

	// When Stream is set the device pushes StreamCommand frames unsolicited
	// and a gap longer than StreamTimeout restarts the connection. Idle
	// devices are polled for transport errors every StreamTimeout.
	Stream        bool          `mapstructure:"stream"`
	StreamCommand int           `mapstructure:"streamCommand"`
	StreamTimeout time.Duration `mapstructure:"streamTimeout"`
}

// Config is the top level configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Devices  []DeviceConfig `mapstructure:"devices"`
}

// Device defaults.
const (
	DefaultBaud          = 115200
	DefaultReadTimeout   = 50 * time.Millisecond
	DefaultStreamTimeout = time.Second
)

// Load reads configuration from a YAML/TOML/JSON file and the environment.
// If path is empty LWNX_CONFIG is consulted, then config.yaml in . or ./configs.
// Environment variables prefixed LWNX_ override file values, with dots
// replaced by underscores (LWNX_PROTOCOL_TIMEOUT).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		_ = v.BindEnv("config", "LWNX_CONFIG")
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("LWNX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// running from defaults and environment alone is allowed
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDeviceDefaults()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lwnx-monitor")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("protocol.timeout", "200ms")
	v.SetDefault("protocol.retries", 4)
	v.SetDefault("protocol.minInterval", "0s")
}

func (c *Config) applyDeviceDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Baud == 0 {
			d.Baud = DefaultBaud
		}
		if d.ReadTimeout == 0 {
			d.ReadTimeout = DefaultReadTimeout
		}
		if d.StreamTimeout == 0 {
			d.StreamTimeout = DefaultStreamTimeout
		}
		if d.Name == "" {
			d.Name = d.Port
		}
	}
}

// Validate checks that the configuration can drive at least one device.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return errors.New("no devices configured")
	}
	if c.Protocol.Timeout <= 0 {
		return fmt.Errorf("protocol.timeout must be positive, got %v", c.Protocol.Timeout)
	}
	if c.Protocol.Retries < 1 {
		return fmt.Errorf("protocol.retries must be at least 1, got %d", c.Protocol.Retries)
	}
	names := make(map[string]bool)
	for i, d := range c.Devices {
		if err := d.validate(); err != nil {
			return fmt.Errorf("devices[%d]: %w", i, err)
		}
		if names[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name)
		}
		names[d.Name] = true
	}
	return nil
}

func (d *DeviceConfig) validate() error {
	if d.Port == "" {
		return errors.New("port is required")
	}
	if d.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", d.Baud)
	}
	if d.Stream && !validCommand(d.StreamCommand) {
		return fmt.Errorf("invalid stream command %d", d.StreamCommand)
	}
	for i, s := range d.Setup {
		if err := s.validate(); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *SetupWrite) validate() error {
	if !validCommand(s.Command) {
		return fmt.Errorf("invalid command %d", s.Command)
	}
	var lo, hi int64
	switch s.Type {
	case TypeUint8:
		lo, hi = 0, 0xFF
	case TypeInt8:
		lo, hi = -0x80, 0x7F
	case TypeUint16:
		lo, hi = 0, 0xFFFF
	case TypeInt16:
		lo, hi = -0x8000, 0x7FFF
	case TypeUint32:
		lo, hi = 0, 0xFFFFFFFF
	case TypeInt32:
		lo, hi = -0x80000000, 0x7FFFFFFF
	case TypeString:
		if len(s.Text) > 16 {
			return fmt.Errorf("text %q longer than 16 bytes", s.Text)
		}
		return nil
	case TypeData:
		for _, b := range s.Data {
			if b < 0 || b > 0xFF {
				return fmt.Errorf("data byte %d out of range", b)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown type %q", s.Type)
	}
	if s.Value < lo || s.Value > hi {
		return fmt.Errorf("value %d out of range for %s", s.Value, s.Type)
	}
	return nil
}

// Bytes returns Data as raw bytes. Only meaningful after Validate.
func (s *SetupWrite) Bytes() []byte {
	out := make([]byte, len(s.Data))
	for i, b := range s.Data {
		out[i] = byte(b)
	}
	return out
}

func validCommand(c int) bool {
	return c >= 0 && c <= 0xFF
}
