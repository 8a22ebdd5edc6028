package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
)

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
	}

	// Add user config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dirshare"))
	}

	// Add home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "dirshare"))
		paths = append(paths, filepath.Join(homeDir, ".dirshare"))
	}

	return paths
}

// setDefaults registers the built-in defaults on a viper instance
func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.mode", string(ModeClient))
	v.SetDefault("transport.hub_addr", "localhost:7421")
	v.SetDefault("transport.listen_addr", "0.0.0.0:7421")
	v.SetDefault("transport.discovery_wait", domain.DiscoveryWait)
	v.SetDefault("monitor.poll_interval", domain.PollInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.max_size_mb", 50)
	v.SetDefault("log.file.max_age_days", 14)
	v.SetDefault("log.file.max_backups", 5)
}

// Load reads and parses a configuration file.
// If path is empty, default locations are searched for dirshare.yaml;
// a missing file yields the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dirshare")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		switch {
		case notFound && path == "":
			// No config file anywhere: run on built-in defaults
		case notFound || os.IsNotExist(err):
			// An explicitly named file must exist
			return nil, domain.ErrConfigNotFound
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoggerConfig converts the log section into the logger package's
// configuration
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  logger.ParseLevel(c.Log.Level),
		Format: logger.ParseFormat(c.Log.Format),
		File: logger.FileConfig{
			Enabled:    c.Log.File.Enabled,
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			MaxBackups: c.Log.File.MaxBackups,
			Compress:   c.Log.File.Compress,
		},
	}
}
