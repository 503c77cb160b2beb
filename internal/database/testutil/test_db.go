package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smartsupply/agent/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate bool
}

// WithMigrations applies the cache schema after opening the test database.
func WithMigrations() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// MemoryConfig returns a database config for a private in-memory SQLite database.
func MemoryConfig() database.Config {
	return database.Config{Driver: "sqlite", Name: "test-" + uuid.NewString()}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(MemoryConfig())
	require.NoError(t, err)

	if cfg.migrate {
		require.NoError(t, database.Migrate(db))
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
