package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "grpc-health-probe.log"

type Options struct {
	Dir     string    // rotating JSON log directory; empty disables the file core
	Verbose bool      // lowers the console level from warn to debug
	Console io.Writer // defaults to os.Stderr; stdout is reserved for the probe result
}

// NewLogger builds the probe logger. The returned closer flushes the logger
// and closes the rotating file.
func NewLogger(opts Options) (*zap.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := zap.WarnLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	var rotating *lumberjack.Logger
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, err
		}
		rotating = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, logFile),
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(rotating), zap.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closer := func() error {
		err := logger.Sync()
		if rotating != nil {
			err = multierr.Append(err, rotating.Close())
		}
		return err
	}
	return logger, closer, nil
}
