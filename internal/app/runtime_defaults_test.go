package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyRuntimeDefaultsFillsMissingSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := &Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "cache.sqlite")
	cfg.Monitoring.Prometheus.Endpoint = "metrics"
	cfg.Sync.EnabledRoles = []string{" ", ""}

	applied, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(cfg.Sync.EnabledRoles) != 1 || cfg.Sync.EnabledRoles[0] != "ADMIN" {
		t.Fatalf("expected default sync role, got %#v", cfg.Sync.EnabledRoles)
	}
	if cfg.Monitoring.Prometheus.Endpoint != "/metrics" {
		t.Fatalf("expected endpoint to be rooted, got %q", cfg.Monitoring.Prometheus.Endpoint)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected data directory to be created: %v", err)
	}
	for _, key := range []string{"sync.enabled_roles", "monitoring.prometheus.endpoint", "database.path"} {
		if !applied[key] {
			t.Fatalf("expected %s in applied map: %#v", key, applied)
		}
	}
}

func TestApplyRuntimeDefaultsPreservesExistingSettings(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}
	cfg.Database.Path = filepath.Join(dir, "cache.sqlite")
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Sync.EnabledRoles = []string{"admin", "Manager"}

	applied, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(applied) != 0 {
		t.Fatalf("expected nothing applied, got %#v", applied)
	}
	if strings.Join(cfg.Sync.EnabledRoles, ",") != "ADMIN,MANAGER" {
		t.Fatalf("expected roles to be normalised, got %#v", cfg.Sync.EnabledRoles)
	}
}

func TestApplyRuntimeDefaultsSkipsServerDatabases(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "postgres"
	cfg.Database.Path = filepath.Join(t.TempDir(), "never", "cache.sqlite")

	if _, err := ApplyRuntimeDefaults(cfg); err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.Database.Path)); !os.IsNotExist(err) {
		t.Fatalf("expected no directory for postgres driver, got %v", err)
	}
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	if err == nil || !strings.Contains(err.Error(), "config is nil") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}
