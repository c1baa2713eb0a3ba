package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Device     DeviceConfig     `mapstructure:"device" yaml:"device"`
	Web        WebConfig        `mapstructure:"web" yaml:"web"`
	Stability  StabilityConfig  `mapstructure:"stability" yaml:"stability"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	Controller ControllerConfig `mapstructure:"controller" yaml:"controller"`
	MCP        MCPConfig        `mapstructure:"mcp" yaml:"mcp"`
}

// LoggerConfig configures zap and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"file" yaml:"file"`
	MaxSize     int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DeviceConfig selects and drives the target device.
type DeviceConfig struct {
	Serial       string        `mapstructure:"serial" yaml:"serial"`
	ADBPath      string        `mapstructure:"adb_path" yaml:"adb_path"`
	Density      float64       `mapstructure:"density" yaml:"density"`
	DumpPath     string        `mapstructure:"dump_path" yaml:"dump_path"`
	DumpRetries  int           `mapstructure:"dump_retries" yaml:"dump_retries"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// WebConfig configures web surface access.
type WebConfig struct {
	DevToolsURL  string        `mapstructure:"devtools_url" yaml:"devtools_url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	CSSPxPerDp   float64       `mapstructure:"css_px_per_dp" yaml:"css_px_per_dp"`
}

// StabilityConfig holds the screen stability timers.
type StabilityConfig struct {
	FirstLoadDelay time.Duration `mapstructure:"first_load_delay" yaml:"first_load_delay"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	CeilingDelay   time.Duration `mapstructure:"ceiling_delay" yaml:"ceiling_delay"`
}

// DispatchConfig tunes synthesized gestures.
type DispatchConfig struct {
	ScrollDistance    int           `mapstructure:"scroll_distance" yaml:"scroll_distance"`
	ScrollDuration    time.Duration `mapstructure:"scroll_duration" yaml:"scroll_duration"`
	LongPressDuration time.Duration `mapstructure:"long_press_duration" yaml:"long_press_duration"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// ControllerConfig addresses the remote controller.
type ControllerConfig struct {
	Address           string        `mapstructure:"address" yaml:"address"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"`
	Port      int    `mapstructure:"port" yaml:"port"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "uibridge")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 7)
	v.SetDefault("logger.compress", false)

	v.SetDefault("device.serial", "")
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.density", 0.0)
	v.SetDefault("device.dump_path", "/data/local/tmp/uibridge.xml")
	v.SetDefault("device.dump_retries", 3)
	v.SetDefault("device.poll_interval", 500*time.Millisecond)

	v.SetDefault("web.devtools_url", "")
	v.SetDefault("web.probe_timeout", 5*time.Second)
	v.SetDefault("web.css_px_per_dp", 1.0)

	v.SetDefault("stability.first_load_delay", 2*time.Second)
	v.SetDefault("stability.settle_delay", 5*time.Second)
	v.SetDefault("stability.ceiling_delay", 10*time.Second)

	v.SetDefault("dispatch.scroll_distance", 400)
	v.SetDefault("dispatch.scroll_duration", 300*time.Millisecond)
	v.SetDefault("dispatch.long_press_duration", time.Second)
	v.SetDefault("dispatch.action_timeout", 10*time.Second)

	v.SetDefault("controller.address", "127.0.0.1:12345")
	v.SetDefault("controller.dial_timeout", 5*time.Second)
	v.SetDefault("controller.reconnect_interval", 2*time.Second)

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.port", 8080)
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads the configuration. An explicit path must exist; without one
// the usual locations are searched and a missing file is not an error.
// UIBRIDGE_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("uibridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("uibridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/uibridge")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates a configuration from v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logger.level %q must be one of debug, info, warn, error", c.Logger.Level)
	}
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		return fmt.Errorf("logger.format %q must be console or json", c.Logger.Format)
	}
	if err := c.Stability.Validate(); err != nil {
		return fmt.Errorf("stability configuration invalid: %w", err)
	}
	if c.Web.CSSPxPerDp <= 0 {
		return fmt.Errorf("web.css_px_per_dp must be positive")
	}
	if c.Web.ProbeTimeout <= 0 {
		return fmt.Errorf("web.probe_timeout must be a positive duration")
	}
	if c.Device.Density < 0 {
		return fmt.Errorf("device.density must not be negative")
	}
	if c.Device.DumpRetries <= 0 {
		return fmt.Errorf("device.dump_retries must be a positive integer")
	}
	if c.Dispatch.ScrollDistance <= 0 {
		return fmt.Errorf("dispatch.scroll_distance must be a positive integer")
	}
	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("mcp.transport %q must be stdio or http", c.MCP.Transport)
	}
	return nil
}

// Validate checks the stability timers.
func (s *StabilityConfig) Validate() error {
	if s.FirstLoadDelay <= 0 || s.SettleDelay <= 0 || s.CeilingDelay <= 0 {
		return fmt.Errorf("all delays must be positive durations")
	}
	if s.SettleDelay >= s.CeilingDelay {
		return fmt.Errorf("settle_delay (%s) must be shorter than ceiling_delay (%s)", s.SettleDelay, s.CeilingDelay)
	}
	return nil
}
