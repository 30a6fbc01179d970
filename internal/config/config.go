// Package config loads usagestats configuration.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// file {Dir}/config.yaml, a .env file in the same directory, and
// USAGESTATS_* environment variables. Command-line flags are applied on
// top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dir returns the usagestats config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/usagestats if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "usagestats"), nil
}

// Config is the resolved configuration.
type Config struct {
	// DBPath is the SQLite database holding imported telemetry.
	DBPath string `yaml:"db_path"`
	// SpoolDir is where "watch" looks for new dumps.
	SpoolDir       string        `yaml:"spool_dir"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
	// APILevel overrides the platform level recorded by imported dumps
	// when probing capabilities. Zero means use the recorded level.
	APILevel int `yaml:"api_level"`
	// SelfPackage is the package the settings request is made on behalf of.
	SelfPackage string `yaml:"self_package"`
	// SettingsCommand is run to open the usage-access settings screen.
	// "{package}" is replaced by the package name.
	SettingsCommand string `yaml:"settings_command"`
	LogLevel        string `yaml:"log_level"`
	MetricsAddr     string `yaml:"metrics_addr"`
}

// Environment variables that override file values.
const (
	EnvDBPath          = "USAGESTATS_DB"
	EnvSpoolDir        = "USAGESTATS_SPOOL_DIR"
	EnvRescanInterval  = "USAGESTATS_RESCAN_INTERVAL"
	EnvAPILevel        = "USAGESTATS_API_LEVEL"
	EnvSelfPackage     = "USAGESTATS_SELF_PACKAGE"
	EnvSettingsCommand = "USAGESTATS_SETTINGS_COMMAND"
	EnvLogLevel        = "USAGESTATS_LOG_LEVEL"
	EnvMetricsAddr     = "USAGESTATS_METRICS_ADDR"
)

// Default returns the configuration used when nothing is set.
func Default(dir string) *Config {
	return &Config{
		DBPath:         filepath.Join(dir, "usagestats.db"),
		SpoolDir:       filepath.Join(dir, "spool"),
		RescanInterval: 30 * time.Second,
		LogLevel:       "info",
	}
}

// Load resolves the configuration for dir. Missing files are not an
// error; malformed ones are.
func Load(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	env, err := environment(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.apply(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment merges {dir}/.env with the process environment. The process
// environment wins.
func environment(dir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
		env = map[string]string{}
	}
	for _, key := range []string{
		EnvDBPath, EnvSpoolDir, EnvRescanInterval, EnvAPILevel,
		EnvSelfPackage, EnvSettingsCommand, EnvLogLevel, EnvMetricsAddr,
	} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

func (c *Config) apply(env map[string]string) error {
	strs := map[string]*string{
		EnvDBPath:          &c.DBPath,
		EnvSpoolDir:        &c.SpoolDir,
		EnvSelfPackage:     &c.SelfPackage,
		EnvSettingsCommand: &c.SettingsCommand,
		EnvLogLevel:        &c.LogLevel,
		EnvMetricsAddr:     &c.MetricsAddr,
	}
	for key, dst := range strs {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}

	if v := env[EnvAPILevel]; v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAPILevel, v, err)
		}
		c.APILevel = level
	}
	if v := env[EnvRescanInterval]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRescanInterval, v, err)
		}
		c.RescanInterval = d
	}
	return nil
}
