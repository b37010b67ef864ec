package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the diagnostic logger described by c.  The returned func
// flushes and releases the log file, if there is one.
func newLogger(c LogConfig) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	var encoder zapcore.Encoder
	switch c.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(enc)
	case "console":
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		encoder = zapcore.NewConsoleEncoder(enc)
	default:
		return nil, nil, fmt.Errorf("log format %q not understood", c.Format)
	}

	// terminals reject fsync, so only the file sink is ever synced
	done := func() error { return nil }
	var sink zapcore.WriteSyncer
	switch c.Output {
	case "", "stderr":
		sink = zapcore.Lock(os.Stderr)
	case "stdout":
		sink = zapcore.Lock(os.Stdout)
	default:
		lj := &lumberjack.Logger{
			Filename:   c.Output,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress}
		sink = zapcore.AddSync(lj)
		done = func() error { return multierr.Append(sink.Sync(), lj.Close()) }
	}
	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), done, nil
}
