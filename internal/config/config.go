package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"kharazmi/internal/logging"
	"kharazmi/internal/utils"
)

const (
	envDataDir         = "KHARAZMI_DATA_DIR"
	envSettingsFile    = "KHARAZMI_SETTINGS_FILE"
	envDBFile          = "KHARAZMI_DB_FILE"
	envLogFile         = "KHARAZMI_LOG_FILE"
	envLogLevel        = "KHARAZMI_LOG_LEVEL"
	envKeyringBackend  = "KHARAZMI_KEYRING_BACKEND"
	envKeyringDir      = "KHARAZMI_KEYRING_DIR"
	envKeyringPassword = "KHARAZMI_KEYRING_PASSWORD"
	envDialTimeout     = "KHARAZMI_DIAL_TIMEOUT"
	envProbeTimeout    = "KHARAZMI_PROBE_TIMEOUT"
	envPingInterval    = "KHARAZMI_PING_INTERVAL"
)

// Config is the bootstrap configuration: where files live and how the
// process talks to the keyring and the collaboration server. User-editable
// settings are not here, they live in settings.json.
type Config struct {
	DataDir      string
	SettingsFile string
	DBFile       string
	LogFile      string
	LogLevel     logger.LogLevel

	KeyringBackend  string
	KeyringDir      string
	KeyringPassword string

	DialTimeout  time.Duration
	ProbeTimeout time.Duration
	// PingInterval of zero keeps the supervisor default; negative disables pings.
	PingInterval time.Duration
}

// Load reads the project .env file when present and then the process
// environment.
func Load() (*Config, error) {
	if err := utils.LoadEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, filling defaults for unset keys.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DataDir:         getenv(envDataDir),
		SettingsFile:    getenv(envSettingsFile),
		DBFile:          getenv(envDBFile),
		LogFile:         getenv(envLogFile),
		KeyringBackend:  getenv(envKeyringBackend),
		KeyringDir:      getenv(envKeyringDir),
		KeyringPassword: getenv(envKeyringPassword),
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = filepath.Join(cfg.DataDir, "settings.json")
	}
	if cfg.DBFile == "" {
		cfg.DBFile = filepath.Join(cfg.DataDir, "kharazmi.db")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "logs", "kharazmi.log")
	}
	if cfg.KeyringDir == "" {
		cfg.KeyringDir = filepath.Join(cfg.DataDir, "keyring")
	}

	level, err := logging.ParseLevel(getenv(envLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envLogLevel, err)
	}
	cfg.LogLevel = level

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{envDialTimeout, &cfg.DialTimeout},
		{envProbeTimeout, &cfg.ProbeTimeout},
		{envPingInterval, &cfg.PingInterval},
	}
	for _, d := range durations {
		raw := getenv(d.key)
		if raw == "" {
			continue
		}
		if d.key == envPingInterval && raw == "off" {
			*d.dst = -1
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s: must be positive, got %s", d.key, raw)
		}
		*d.dst = v
	}

	return cfg, nil
}
