package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the settings that can come from the environment or a .env
// file. Variables already set in the environment take precedence over the
// file.
type Config struct {
	LogLevel    string
	MonitorPort int
	DBPath      string
}

const (
	envLogLevel    = "PROCSIM_LOG_LEVEL"
	envMonitorPort = "PROCSIM_MONITOR_PORT"
	envDB          = "PROCSIM_DB"
)

func defaultConfig() Config {
	return Config{
		LogLevel:    "info",
		MonitorPort: -1,
	}
}

// loadConfig reads the configuration. A missing env file is not an error.
func loadConfig(envFile string) (Config, error) {
	cfg := defaultConfig()

	fileValues := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := fileValues[key]

		return v, ok
	}

	if v, ok := lookup(envLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v, ok := lookup(envMonitorPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envMonitorPort, err)
		}

		cfg.MonitorPort = port
	}

	if v, ok := lookup(envDB); ok {
		cfg.DBPath = v
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("%s: %w", envLogLevel, err)
	}

	return cfg, nil
}

func newLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
