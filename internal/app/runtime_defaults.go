package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartsupply/agent/internal/auth"
)

const dataDirPerm = 0o750

// ApplyRuntimeDefaults fills settings that cannot be expressed as static
// defaults and prepares the SQLite data directory. It returns a map describing
// which keys were changed so callers can log the event.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	applied := make(map[string]bool)

	roles := make([]string, 0, len(cfg.Sync.EnabledRoles))
	for _, role := range cfg.Sync.EnabledRoles {
		if role = strings.ToUpper(strings.TrimSpace(role)); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []string{auth.DefaultSyncRole}
		applied["sync.enabled_roles"] = true
	}
	cfg.Sync.EnabledRoles = roles

	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
		applied["monitoring.prometheus.endpoint"] = true
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
		applied["monitoring.prometheus.endpoint"] = true
	}
	cfg.Monitoring.Prometheus.Endpoint = endpoint

	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if (driver == "" || driver == "sqlite") && cfg.Database.DSN == "" {
		path := strings.TrimSpace(cfg.Database.Path)
		if path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:") {
			created, err := ensureDir(filepath.Dir(path))
			if err != nil {
				return nil, fmt.Errorf("prepare cache directory: %w", err)
			}
			if created {
				applied["database.path"] = true
			}
		}
	}

	return applied, nil
}

func ensureDir(dir string) (bool, error) {
	if dir == "" || dir == "." {
		return false, nil
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s is not a directory", dir)
		}
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return false, err
	}
	return true, nil
}
