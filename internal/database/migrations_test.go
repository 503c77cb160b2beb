package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartsupply/agent/internal/models"
)

func TestMigrateCreatesCacheTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))

	migrator := db.Migrator()
	require.True(t, migrator.HasTable(&models.CachedCustomer{}))
	require.True(t, migrator.HasTable(&models.BottlePrice{}))
	require.True(t, migrator.HasTable(&models.SyncMetadata{}))
	require.True(t, migrator.HasIndex(&models.CachedCustomer{}, "Name"))
	require.True(t, migrator.HasIndex(&models.CachedCustomer{}, "HouseNo"))
	require.True(t, migrator.HasIndex(&models.BottlePrice{}, "CategoryName"))

	require.False(t, migrator.HasColumn(&models.CachedCustomer{}, "balance"), "balance must never be cached")
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var applied int64
	require.NoError(t, db.Model(&models.SchemaMigration{}).Count(&applied).Error)
	require.Equal(t, int64(len(migrations)), applied)
}

func TestMigrateUpgradesVersionOneWithoutTouchingCustomers(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.AutoMigrate(&models.SchemaMigration{}))
	require.NoError(t, migrations[0].apply(db))
	require.NoError(t, db.Create(&models.SchemaMigration{Version: 1, AppliedAt: 1}).Error)
	require.NoError(t, db.Create(&models.CachedCustomer{ID: "c1", Name: "Ali Traders", IsActive: true}).Error)
	require.False(t, db.Migrator().HasTable(&models.BottlePrice{}))

	require.NoError(t, Migrate(db))

	require.True(t, db.Migrator().HasTable(&models.BottlePrice{}))
	var kept models.CachedCustomer
	require.NoError(t, db.First(&kept, "id = ?", "c1").Error)
	require.Equal(t, "Ali Traders", kept.Name)

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, LatestSchemaVersion(), version)
}
