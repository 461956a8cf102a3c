package config

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects level, format and sinks of the global logger.
type LogConfig struct {
	WithCaller bool
	Level      string
	Format     string
	File       string
}

// InitLogger configures the global zerolog logger. Output goes to stderr in
// console ("text") or JSON form, and additionally to a rotated file when
// File is set.
func InitLogger(config LogConfig) error {
	return initLogger(config, os.Stderr)
}

func initLogger(config LogConfig, stderr io.Writer) error {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return err
	}

	// default is json
	var logWriter io.Writer
	if config.Format == "text" {
		logWriter = zerolog.ConsoleWriter{Out: stderr}
	} else {
		logWriter = stderr
	}

	if config.File != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.File,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	logger := zerolog.New(logWriter).With().Timestamp()
	if config.WithCaller {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()
	zerolog.SetGlobalLevel(level)

	return nil
}

// ParseLevel maps a level name to zerolog. "" means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, errors.Errorf("unknown log level %q", name)
	}
}
