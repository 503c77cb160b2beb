package models

// LastSyncKey identifies the singleton row holding the last successful sync time.
const LastSyncKey = "lastSync"

// SyncMetadata stores sync bookkeeping keyed by name.
type SyncMetadata struct {
	Key        string `gorm:"primaryKey;size:64" json:"key"`
	LastSynced int64  `json:"lastSynced"`
}

// TableName pins the sync metadata table name.
func (SyncMetadata) TableName() string {
	return "sync_metadata"
}

// SchemaMigration records an applied local schema version.
type SchemaMigration struct {
	Version   int   `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt int64 `gorm:"not null"`
}

// TableName pins the schema migration table name.
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}
