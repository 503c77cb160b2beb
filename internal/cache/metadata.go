package cache

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smartsupply/agent/internal/models"
)

// GetLastSyncTime returns the millisecond timestamp of the last completed
// sync. The flag is false when no sync has been recorded.
func (s *CustomerStore) GetLastSyncTime(ctx context.Context) (int64, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, false, err
	}

	var meta models.SyncMetadata
	err = db.Where(map[string]any{"key": models.LastSyncKey}).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, ioError("read last sync", err)
	}
	return meta.LastSynced, true, nil
}

// SetLastSyncTime records ms as the last completed sync.
func (s *CustomerStore) SetLastSyncTime(ctx context.Context, ms int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	meta := models.SyncMetadata{Key: models.LastSyncKey, LastSynced: ms}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced"}),
	}).Create(&meta).Error
	if err != nil {
		return ioError("write last sync", err)
	}
	return nil
}
