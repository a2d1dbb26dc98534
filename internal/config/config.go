// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/blobaudit/internal/domain"
)

const (
	envPrefix          = "BLOBAUDIT"
	defaultConfigName  = "config.toml"
	defaultDBName      = "blobaudit.db"
	defaultLockName    = "blobaudit.lock"
	defaultMetricsPort = 9074
)

// AppConfig wraps the loaded configuration together with the viper instance it came from.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string
	dataDir    string
}

// New loads the configuration at configPath. An empty path uses the default
// config directory. A default config file is written when none exists.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	c.resolveDataDir()

	for i, root := range c.Config.StorageRoots {
		c.Config.StorageRoots[i] = strings.TrimSpace(root)
	}

	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("appVersion", "")
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("databasePath", "")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", defaultMetricsPort)
	c.viper.SetDefault("storageRoots", []string{})
	c.viper.SetDefault("ignorePatterns", []string{})
	c.viper.SetDefault("safetyMarginSeconds", 60)
	c.viper.SetDefault("auditIntervalHours", 24)
	c.viper.SetDefault("schedulerIntervalMinutes", 60)
	c.viper.SetDefault("collectConcurrency", 4)
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath == "" {
		configPath = filepath.Join(getDefaultConfigDir(), defaultConfigName)
	} else if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configPath = filepath.Join(configPath, defaultConfigName)
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}
		log.Info().Msgf("Created default config at %s", configPath)
	} else if err != nil {
		return fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	c.viper.SetConfigFile(configPath)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	c.configPath = abs
	return nil
}

// loadFromEnv binds BLOBAUDIT__SOME_KEY style variables onto camelCase keys.
func (c *AppConfig) loadFromEnv() {
	keys := []string{
		"appVersion",
		"dataDir",
		"databasePath",
		"logLevel",
		"logPath",
		"logMaxSize",
		"logMaxBackups",
		"metricsEnabled",
		"metricsHost",
		"metricsPort",
		"metricsBasicAuthUsers",
		"safetyMarginSeconds",
		"auditIntervalHours",
		"schedulerIntervalMinutes",
		"collectConcurrency",
	}
	for _, key := range keys {
		_ = c.viper.BindEnv(key, envName(key))
	}

	// List-valued settings are comma separated in the environment.
	for _, key := range []string{"storageRoots", "ignorePatterns"} {
		if v, ok := os.LookupEnv(envName(key)); ok {
			c.viper.Set(key, splitList(v))
		}
	}
}

func envName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	b.WriteString("__")
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *AppConfig) resolveDataDir() {
	dir := c.Config.DataDir
	if dir == "" {
		dir = filepath.Dir(c.configPath)
	}
	c.dataDir = dir
	c.Config.DataDir = dir
}

// ConfigPath returns the absolute path of the loaded config file.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDataDir returns the directory holding engine-owned state.
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// GetDatabasePath returns the explicit databasePath, or blobaudit.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	return filepath.Join(c.dataDir, defaultDBName)
}

// GetLockPath returns the cross-process audit lock file.
func (c *AppConfig) GetLockPath() string {
	return filepath.Join(c.dataDir, defaultLockName)
}

func getDefaultConfigDir() string {
	// Docker images set XDG_CONFIG_HOME=/config and expect it used as-is.
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "blobaudit")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "blobaudit")
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "blobaudit")
		}
	}

	return "."
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Application version recorded after each cleanup audit.
# A change of version makes the next scheduler check run a full audit.
#appVersion = ""

# Directory for the database and lock file
# Default: directory of this config file
#dataDir = ""

# Database path
# Default: blobaudit.db in dataDir
#databasePath = ""

# Blob storage roots to audit. Must be absolute.
storageRoots = []

# Patterns to skip, gitignore syntax, relative to each storage root
#ignorePatterns = [".DS_Store", "*.partial"]

# Files modified within this many seconds before an audit starts are never deleted
# Default: 60
#safetyMarginSeconds = 60

# Minimum hours between scheduled full audits. 0 disables time-based audits.
# Default: 24
#auditIntervalHours = 24

# How often the daemon asks the scheduler whether an audit is due
# Default: 60
#schedulerIntervalMinutes = 60

# Maximum collaborators queried concurrently
# Default: 4
#collectConcurrency = 4

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/blobaudit.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Prometheus metrics endpoint
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Optional basic auth for /metrics, comma separated user:password pairs
#metricsBasicAuthUsers = ""

# Record tables that reference blob files. Every table listed here is read
# inside one snapshot at the start of each audit.
#[[collaborators]]
#name = "attachments"
#table = "attachments"
#column = "local_path"
#baseDir = "/srv/blobs/attachments"
`
