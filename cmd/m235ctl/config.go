package main

import (
	"time"

	"github.com/nasa-jpl/m235/m235"
	"github.com/nasa-jpl/m235/util"
)

// PacingConfig mirrors m235.Pacing
type PacingConfig struct {
	Command time.Duration `koanf:"command" yaml:"command"`
	Settle  time.Duration `koanf:"settle" yaml:"settle"`
	Poll    time.Duration `koanf:"poll" yaml:"poll"`
}

// LimitConfig holds optional software limits on HTTP moves, in mm
type LimitConfig struct {
	Enabled bool    `koanf:"enabled" yaml:"enabled"`
	Min     float64 `koanf:"min" yaml:"min"`
	Max     float64 `koanf:"max" yaml:"max"`
}

// Limiter returns the limits, or nil if they are disabled
func (l LimitConfig) Limiter() *util.Limiter {
	if !l.Enabled {
		return nil
	}
	return &util.Limiter{Min: l.Min, Max: l.Max}
}

// LogConfig controls the diagnostic log
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `koanf:"level" yaml:"level"`

	// Format is console or json
	Format string `koanf:"format" yaml:"format"`

	// Output is stderr, stdout, or a file path.  Files are rotated.
	Output string `koanf:"output" yaml:"output"`

	MaxSize    int  `koanf:"maxsize" yaml:"maxsize"`
	MaxBackups int  `koanf:"maxbackups" yaml:"maxbackups"`
	MaxAge     int  `koanf:"maxage" yaml:"maxage"`
	Compress   bool `koanf:"compress" yaml:"compress"`
}

// Config is the full configuration of m235ctl
type Config struct {
	// Port is the serial device, e.g. /dev/ttyUSB0 or COM3, or host:port for
	// the tcp driver
	Port string `koanf:"port" yaml:"port"`

	// Driver is one of tarm, bugst, tcp, mock
	Driver string `koanf:"driver" yaml:"driver"`

	// Baud is used by the bugst driver; tarm is fixed at 19200
	Baud int `koanf:"baud" yaml:"baud"`

	// Timeout bounds every reply
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// Listen is the address run serves HTTP on
	Listen string `koanf:"listen" yaml:"listen"`

	// Endpoint is the URL prefix the actuator's routes are mounted under
	Endpoint string `koanf:"endpoint" yaml:"endpoint"`

	// OriginTimeout bounds origin searches
	OriginTimeout time.Duration `koanf:"origintimeout" yaml:"origintimeout"`

	Pacing  PacingConfig       `koanf:"pacing" yaml:"pacing"`
	Startup m235.StartupParams `koanf:"startup" yaml:"startup"`
	Limits  LimitConfig        `koanf:"limits" yaml:"limits"`
	Log     LogConfig          `koanf:"log" yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Port:          "/dev/ttyUSB0",
		Driver:        "tarm",
		Baud:          19200,
		Timeout:       m235.DefaultTimeout,
		Listen:        ":8000",
		Endpoint:      "m235",
		OriginTimeout: m235.DefaultOriginTimeout,
		Pacing: PacingConfig{
			Command: m235.DefaultPacing.Command,
			Settle:  m235.DefaultPacing.Settle,
			Poll:    m235.DefaultPacing.Poll},
		Startup: m235.StartupParams{
			Velocity:     20480,
			Acceleration: 100000},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28}}
}
