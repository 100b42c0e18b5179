package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dshills/mudstream/internal/ansi"
	"github.com/dshills/mudstream/internal/logging"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "MUDSTREAM_"

// Duration is a time.Duration read from a string such as "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete client configuration.
type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	Display    DisplayConfig    `toml:"display"`
	MXP        MXPConfig        `toml:"mxp"`
	Logging    LoggingConfig    `toml:"logging"`
	Scripting  ScriptingConfig  `toml:"scripting"`
}

// ConnectionConfig configures the server connection.
type ConnectionConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	DialTimeout Duration `toml:"dialTimeout"`
}

// DisplayConfig configures output rendering.
type DisplayConfig struct {
	// DefaultFg and DefaultBg are "name-intensity" color ids.
	DefaultFg  string `toml:"defaultFg"`
	DefaultBg  string `toml:"defaultBg"`
	UTF8       bool   `toml:"utf8"`
	Scrollback int    `toml:"scrollback"`
	Mouse      bool   `toml:"mouse"`
}

// MXPConfig configures the markup interpreter.
type MXPConfig struct {
	Enabled    bool   `toml:"enabled"`
	Images     bool   `toml:"images"`
	ClientName string `toml:"clientName"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ScriptingConfig configures the Lua variable store.
type ScriptingConfig struct {
	// Init is a Lua file run at startup.
	Init    string   `toml:"init"`
	Timeout Duration `toml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Port:        23,
			DialTimeout: Duration(10 * time.Second),
		},
		Display: DisplayConfig{
			DefaultFg:  "green-low",
			DefaultBg:  "black-low",
			UTF8:       true,
			Scrollback: 5000,
			Mouse:      true,
		},
		MXP: MXPConfig{
			Enabled:    true,
			Images:     true,
			ClientName: "mudstream",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scripting: ScriptingConfig{
			Timeout: Duration(2 * time.Second),
		},
	}
}

// Addr returns the host:port to dial.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Connection.Host, strconv.Itoa(c.Connection.Port))
}

// Colors returns the parsed default colors.
func (c *Config) Colors() (fg, bg ansi.Color, err error) {
	if fg, err = ansi.ParseColor(c.Display.DefaultFg); err != nil {
		return fg, bg, fmt.Errorf("%w: display.defaultFg: %v", ErrValidationFailed, err)
	}
	if bg, err = ansi.ParseColor(c.Display.DefaultBg); err != nil {
		return fg, bg, fmt.Errorf("%w: display.defaultBg: %v", ErrValidationFailed, err)
	}
	return fg, bg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("%w: connection.port %d out of range", ErrValidationFailed, c.Connection.Port)
	}
	if c.Connection.DialTimeout < 0 {
		return fmt.Errorf("%w: connection.dialTimeout is negative", ErrValidationFailed)
	}
	if _, _, err := c.Colors(); err != nil {
		return err
	}
	if c.Display.Scrollback <= 0 {
		return fmt.Errorf("%w: display.scrollback must be positive", ErrValidationFailed)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrValidationFailed, c.Logging.Level)
	}
	return nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}
