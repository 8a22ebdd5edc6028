package config

import (
	"errors"
	"testing"
	"time"

	"github.com/Ning0612/dirshare/internal/domain"
)

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no file should fall back to defaults: %v", err)
	}

	if cfg.Transport.Mode != ModeClient {
		t.Errorf("default mode = %s, want client", cfg.Transport.Mode)
	}
	if cfg.Monitor.PollInterval != domain.PollInterval {
		t.Errorf("default poll interval = %v, want %v", cfg.Monitor.PollInterval, domain.PollInterval)
	}
	if cfg.Transport.DiscoveryWait != domain.DiscoveryWait {
		t.Errorf("default discovery wait = %v, want %v", cfg.Transport.DiscoveryWait, domain.DiscoveryWait)
	}
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist/dirshare.yaml")
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadFromString(t *testing.T) {
	cfg, err := LoadFromString(`
transport:
  mode: embedded
  listen_addr: 127.0.0.1:9999
  discovery_wait: 5s
monitor:
  poll_interval: 500ms
log:
  level: debug
  format: json
`)
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.Transport.Mode != ModeEmbedded {
		t.Errorf("mode = %s, want embedded", cfg.Transport.Mode)
	}
	if cfg.Transport.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("listen_addr = %s", cfg.Transport.ListenAddr)
	}
	if cfg.Transport.DiscoveryWait != 5*time.Second {
		t.Errorf("discovery_wait = %v, want 5s", cfg.Transport.DiscoveryWait)
	}
	if cfg.Monitor.PollInterval != 500*time.Millisecond {
		t.Errorf("poll_interval = %v, want 500ms", cfg.Monitor.PollInterval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log config = %+v", cfg.Log)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad mode", "transport:\n  mode: carrier-pigeon\n"},
		{"client without hub addr", "transport:\n  mode: client\n  hub_addr: \"\"\n"},
		{"embedded without listen addr", "transport:\n  mode: embedded\n  listen_addr: \"\"\n"},
		{"zero poll interval", "monitor:\n  poll_interval: 0s\n"},
		{"file log without path", "log:\n  file:\n    enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.yaml)
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("got %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg, err := LoadFromString("log:\n  level: warn\n  format: json\n")
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	lc := cfg.LoggerConfig()
	if lc.Level.String() != "warn" {
		t.Errorf("level = %s, want warn", lc.Level)
	}
}
