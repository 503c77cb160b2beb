package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/smartsupply/agent/internal/models"
)

type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB) error
}

// migrations are additive: a version may create tables, columns or indexes but
// never drops or rewrites tables it does not own.
var migrations = []migration{
	{
		version: 1,
		name:    "customer directory and sync metadata",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.CachedCustomer{}, &models.SyncMetadata{})
		},
	},
	{
		version: 2,
		name:    "bottle prices",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.BottlePrice{})
		},
	},
	{
		version: 3,
		name:    "normalised customer phone columns",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.CachedCustomer{})
		},
	},
}

// LatestSchemaVersion is the version Migrate brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every pending schema version in order, recording each one.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(&models.SchemaMigration{}); err != nil {
		return fmt.Errorf("schema migrations table: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		m := m
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigration{
				Version:   m.version,
				AppliedAt: time.Now().UnixMilli(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("schema version %d (%s): %w", m.version, m.name, err)
		}
	}

	return nil
}

// SchemaVersion reports the highest applied schema version, 0 for a fresh database.
func SchemaVersion(db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(&models.SchemaMigration{}) {
		return 0, nil
	}
	var version int
	if err := db.Model(&models.SchemaMigration{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
