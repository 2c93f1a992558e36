package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/config"
	"github.com/cuemby/bucketsmdapi/pkg/log"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenPort != 2021 || cfg.ClaimTimeout != 5*time.Second {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("listen_port: 9999\nlog_level: debug\nlog_json: true\npostgres_dsn: postgres://x\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenPort != 9999 {
		t.Errorf("got ListenPort %d, want 9999", cfg.ListenPort)
	}
	if cfg.LogLevel != log.DebugLevel {
		t.Errorf("got LogLevel %v, want debug", cfg.LogLevel)
	}
	if !cfg.LogJSON {
		t.Error("expected LogJSON true")
	}
	if cfg.PostgresDSN != "postgres://x" {
		t.Errorf("got PostgresDSN %q", cfg.PostgresDSN)
	}
	if cfg.ListenHost != "0.0.0.0" {
		t.Errorf("expected ListenHost to keep default, got %q", cfg.ListenHost)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
