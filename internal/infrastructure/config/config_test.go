package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want test-site", cfg.Site.ID)
	}
	if cfg.Fieldbus.Port != 502 {
		t.Errorf("Fieldbus.Port = %d, want default 502", cfg.Fieldbus.Port)
	}
	if cfg.Cloud.QoS != 1 {
		t.Errorf("Cloud.QoS = %d, want default 1", cfg.Cloud.QoS)
	}
	if cfg.Engine.CommandRetries != 3 {
		t.Errorf("Engine.CommandRetries = %d, want default 3", cfg.Engine.CommandRetries)
	}
	if got := cfg.TransactionTimeout(); got != 2*time.Second {
		t.Errorf("TransactionTimeout() = %v, want 2s", got)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
site:
  id: house-7
fieldbus:
  enabled: true
  host: 10.0.0.9
  port: 1502
  transaction_timeout: 1
  poll_interval: 3
cloud:
  enabled: true
  broker:
    host: broker.example.com
    port: 8883
    tls: true
    client_id: homewatt-house-7
  qos: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Fieldbus.Host != "10.0.0.9" || cfg.Fieldbus.Port != 1502 {
		t.Errorf("fieldbus = %s:%d, want 10.0.0.9:1502", cfg.Fieldbus.Host, cfg.Fieldbus.Port)
	}
	if !cfg.Cloud.Broker.TLS {
		t.Error("Cloud.Broker.TLS = false, want true")
	}
	if got := cfg.PollInterval(); got != 3*time.Second {
		t.Errorf("PollInterval() = %v, want 3s", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOMEWATT_CLOUD_HOST", "env-broker")
	t.Setenv("HOMEWATT_CLOUD_PASSWORD", "secret")
	t.Setenv("HOMEWATT_DATABASE_PATH", "/tmp/override.db")

	path := writeConfig(t, `
site:
  id: test-site
cloud:
  broker:
    host: file-broker
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Cloud.Broker.Host != "env-broker" {
		t.Errorf("Cloud.Broker.Host = %q, want env override env-broker", cfg.Cloud.Broker.Host)
	}
	if cfg.Cloud.Auth.Password != "secret" {
		t.Errorf("Cloud.Auth.Password not overridden from environment")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want /tmp/override.db", cfg.Database.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "bad fieldbus port",
			mutate:  func(c *Config) { c.Fieldbus.Port = 0 },
			wantErr: "fieldbus.port",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Fieldbus.PollInterval = 0 },
			wantErr: "fieldbus.poll_interval",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.Cloud.QoS = 3 },
			wantErr: "cloud.qos",
		},
		{
			name:    "bad api port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() = nil error for missing file")
	}
}
