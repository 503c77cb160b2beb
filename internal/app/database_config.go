package app

import (
	"strings"

	"github.com/smartsupply/agent/internal/database"
)

// ConnectionConfig converts DatabaseConfig into the parameters expected by the database package.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	cfg := database.Config{
		Driver: driver,
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var server DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		server = c.Postgres
	case "mysql":
		server = c.MySQL
	default:
		return cfg
	}

	cfg.Host = server.Host
	cfg.Port = server.Port
	cfg.Name = server.Database
	cfg.User = server.Username
	cfg.Password = server.Password
	return cfg
}
