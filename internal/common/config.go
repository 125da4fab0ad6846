package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values
const (
	defaultBackupDir     = "/backups"
	defaultCheckInterval = 60 // seconds
	defaultMetricsPort   = 9090
	defaultLabelPrefix   = "db-backup"
	defaultSock          = "/var/run/docker.sock"
	defaultLogLevel      = "info"

	// DefaultConfigFile is looked up in the working directory when no
	// --config flag is given.
	DefaultConfigFile = "stevedore.yml"
)

type Config struct {
	General         GeneralConfig         `yaml:"General"`
	Backups         BackupsConfig         `yaml:"Backups"`
	Http            HttpConfig            `yaml:"Http"`
	ContainerEngine ContainerEngineConfig `yaml:"ContainerEngine"`
	Build           BuildConfig           `yaml:"-"`
}

type GeneralConfig struct {
	LogLevel string `yaml:"logLevel"`
}

type BackupsConfig struct {
	Dir           string `yaml:"dir"`
	CheckInterval int    `yaml:"checkInterval"` // seconds between scheduler polls
	LabelPrefix   string `yaml:"labelPrefix"`
}

type HttpConfig struct {
	Port int `yaml:"port"`
}

type ContainerEngineConfig struct {
	Sock string `yaml:"sock"`
}

type BuildConfig struct {
	BuildVersion string `yaml:"-"` // come from build ldflags
	BuildCommit  string `yaml:"-"` // come from build ldflags
	BuildDate    string `yaml:"-"` // come from build ldflags
}

// Load builds the configuration in precedence order: defaults, then the YAML
// file when present, then environment variables. An explicitly given path
// must exist; the default stevedore.yml is optional.
func Load(path string) (*Config, error) {
	config := &Config{}
	applyDefaults(config)

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
		}
		applyDefaults(config) // file may set fields back to zero values
	case os.IsNotExist(err) && !explicit:
		// No config file, defaults + env only
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if config.General.LogLevel == "" {
		config.General.LogLevel = defaultLogLevel
	}
	if config.Backups.Dir == "" {
		config.Backups.Dir = defaultBackupDir
	}
	if config.Backups.CheckInterval == 0 {
		config.Backups.CheckInterval = defaultCheckInterval
	}
	if config.Backups.LabelPrefix == "" {
		config.Backups.LabelPrefix = defaultLabelPrefix
	}
	if config.Http.Port == 0 {
		config.Http.Port = defaultMetricsPort
	}
	if config.ContainerEngine.Sock == "" {
		config.ContainerEngine.Sock = defaultSock
	}
}

func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("BACKUP_DIR"); v != "" {
		config.Backups.Dir = v
	}
	if v := os.Getenv("CHECK_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHECK_INTERVAL %q: %w", v, err)
		}
		config.Backups.CheckInterval = n
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_PORT %q: %w", v, err)
		}
		config.Http.Port = n
	}
	if v := os.Getenv("LABEL_PREFIX"); v != "" {
		config.Backups.LabelPrefix = v
	}
	if v := os.Getenv("DOCKER_SOCK"); v != "" {
		config.ContainerEngine.Sock = v
	}
	if v := os.Getenv("STEVEDORE_LOG_LEVEL"); v != "" {
		config.General.LogLevel = v
	}
	return nil
}

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	if c.Backups.Dir == "" {
		return fmt.Errorf("backup directory must not be empty")
	}
	if c.Backups.CheckInterval < 1 {
		return fmt.Errorf("check interval must be at least 1 second, got %d", c.Backups.CheckInterval)
	}
	if c.Backups.LabelPrefix == "" {
		return fmt.Errorf("label prefix must not be empty")
	}
	if c.Http.Port < 1 || c.Http.Port > 65535 {
		return fmt.Errorf("metrics port must be in 1-65535, got %d", c.Http.Port)
	}
	return nil
}

// CheckInterval returns the scheduler poll interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Backups.CheckInterval) * time.Second
}

// GetVersion returns the build version, or "dev" for untagged builds.
func (c *Config) GetVersion() string {
	if c.Build.BuildVersion == "" {
		return "dev"
	}
	return c.Build.BuildVersion
}
