// Package config loads mammal settings from flags, environment and an
// optional config file, and sets up logging.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MAMMAL_DB.
const EnvPrefix = "mammal"

// Keys shared by flags, environment and config file.
const (
	KeyDB         = "db"
	KeyTable      = "table"
	KeyArchiveDir = "archive-dir"
	KeyLogLevel   = "log-level"
	KeyLogFormat  = "log-format"
	KeyLogFile    = "log-file"
	KeyWithCaller = "with-caller"
	KeyTraceSQL   = "trace-sql"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	DB         string
	Table      string
	ArchiveDir string

	// Logging
	Log      LogConfig
	TraceSQL bool
}

// AddFlags registers the persistent flags of the CLI.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(KeyDB, "mammal.db", "SQLite database file (\":memory:\" for a throwaway store)")
	flags.String(KeyTable, "messages", "Message table name")
	flags.String(KeyArchiveDir, ".", "Directory for exported threads")

	flags.Bool(KeyWithCaller, false, "Log caller")
	flags.String(KeyLogLevel, "info", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String(KeyLogFormat, "text", "Log format (json, text)")
	flags.String(KeyLogFile, "", "Log file (default: stderr)")
	flags.Bool(KeyTraceSQL, false, "Log every SQL statement at trace level")
}

// Setup wires v to the environment, the config file and flags. configFile
// overrides the search in ".", "$HOME/.mammal" and the user config dir.
// A missing config file is not an error.
func Setup(v *viper.Viper, configFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mammal")
		if xdg, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(xdg, "mammal"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return errors.Wrap(err, "bind flags")
		}
	}
	return nil
}

// Load reads the current values out of v.
func Load(v *viper.Viper) Config {
	v.SetDefault(KeyDB, "mammal.db")
	v.SetDefault(KeyTable, "messages")
	v.SetDefault(KeyArchiveDir, ".")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	return Config{
		DB:         v.GetString(KeyDB),
		Table:      v.GetString(KeyTable),
		ArchiveDir: v.GetString(KeyArchiveDir),
		Log: LogConfig{
			Level:      v.GetString(KeyLogLevel),
			Format:     v.GetString(KeyLogFormat),
			File:       v.GetString(KeyLogFile),
			WithCaller: v.GetBool(KeyWithCaller),
		},
		TraceSQL: v.GetBool(KeyTraceSQL),
	}
}
