package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteBusyTimeoutMillis = 5000

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN

	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		switch {
		case path == "", strings.EqualFold(path, ":memory:"):
			dsn = memoryDSN(cfg.Name)
		default:
			if err := ensureDir(path); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=%d", filepath.ToSlash(path), sqliteBusyTimeoutMillis)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one pooled connection queues writers
	// instead of surfacing "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err := enableForeignKeys(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// memoryDSN names the in-memory database so independent stores in one
// process do not share state.
func memoryDSN(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file::memory:?cache=shared&_foreign_keys=1"
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func enableForeignKeys(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && err != sql.ErrConnDone {
		return err
	}
	return nil
}
