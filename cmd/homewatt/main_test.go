package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOMEWATT_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingTopology verifies run fails when the topology file
// does not exist.
func TestRun_MissingTopology(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
site:
  id: test-site

topology:
  path: ` + filepath.Join(tmpDir, "missing-topology.yaml") + `

database:
  path: ` + filepath.Join(tmpDir, "homewatt.db") + `
  wal_mode: true
  busy_timeout: 5

fieldbus:
  enabled: false

cloud:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("HOMEWATT_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when topology file is missing")
	}
}

// TestRun_FullStartupWithoutBackends boots the whole stack with the
// simulator and no cloud, then shuts it down via context cancel.
func TestRun_FullStartupWithoutBackends(t *testing.T) {
	tmpDir := t.TempDir()

	topologyPath := filepath.Join(tmpDir, "topology.yaml")
	topologyContent := `
rooms:
  - id: room-1
    name: Room 1
    slave_addr: 1
    devices:
      - id: light
        name: Light
        power_watts: 15
        register: 0
`
	if err := os.WriteFile(topologyPath, []byte(topologyContent), 0600); err != nil {
		t.Fatalf("writing topology: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
site:
  id: test-site

topology:
  path: ` + topologyPath + `

database:
  path: ` + filepath.Join(tmpDir, "homewatt.db") + `
  wal_mode: true
  busy_timeout: 5

fieldbus:
  enabled: false

cloud:
  enabled: false

influxdb:
  enabled: false

api:
  host: 127.0.0.1
  port: 18096

logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("HOMEWATT_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	// Give startup a moment, then request shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not shut down after cancel")
	}
}
