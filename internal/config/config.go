package config

import (
	"fmt"
	"time"

	"github.com/Ning0612/dirshare/internal/domain"
)

// TransportMode selects how the participant reaches the message hub
type TransportMode string

const (
	// ModeClient dials an external hub
	ModeClient TransportMode = "client"

	// ModeEmbedded hosts the hub in-process and dials it locally
	ModeEmbedded TransportMode = "embedded"
)

// IsValid checks if the transport mode is a known value
func (m TransportMode) IsValid() bool {
	switch m {
	case ModeClient, ModeEmbedded:
		return true
	}
	return false
}

// Config represents the complete configuration for dirshare
type Config struct {
	Transport Transport `mapstructure:"transport"`
	Monitor   Monitor   `mapstructure:"monitor"`
	Log       Log       `mapstructure:"log"`
}

// Transport configures the connection to the message hub
type Transport struct {
	// Mode: "client" dials HubAddr, "embedded" hosts a hub on ListenAddr
	Mode TransportMode `mapstructure:"mode"`

	// HubAddr is the hub address to dial (client mode)
	HubAddr string `mapstructure:"hub_addr"`

	// ListenAddr is the bind address of the embedded hub
	ListenAddr string `mapstructure:"listen_addr"`

	// DiscoveryWait bounds the startup wait for a peer
	DiscoveryWait time.Duration `mapstructure:"discovery_wait"`
}

// Monitor configures the directory scan loop
type Monitor struct {
	// PollInterval is the scan cadence
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Log configures logging output
type Log struct {
	Level  string  `mapstructure:"level"`
	Format string  `mapstructure:"format"`
	File   LogFile `mapstructure:"file"`
}

// LogFile configures the rotated log file
type LogFile struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if !c.Transport.Mode.IsValid() {
		return fmt.Errorf("%w: invalid transport mode: %s", domain.ErrConfigInvalid, c.Transport.Mode)
	}

	switch c.Transport.Mode {
	case ModeClient:
		if c.Transport.HubAddr == "" {
			return fmt.Errorf("%w: client mode requires transport.hub_addr", domain.ErrConfigInvalid)
		}
	case ModeEmbedded:
		if c.Transport.ListenAddr == "" {
			return fmt.Errorf("%w: embedded mode requires transport.listen_addr", domain.ErrConfigInvalid)
		}
	}

	if c.Transport.DiscoveryWait < 0 {
		return fmt.Errorf("%w: transport.discovery_wait cannot be negative", domain.ErrConfigInvalid)
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("%w: monitor.poll_interval must be positive", domain.ErrConfigInvalid)
	}

	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path required when file logging is enabled", domain.ErrConfigInvalid)
	}

	return nil
}
