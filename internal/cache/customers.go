package cache

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smartsupply/agent/internal/models"
)

const (
	insertBatchSize = 200
	scanBatchSize   = 500
)

// ReplaceCustomers swaps the whole customer directory for records. The clear
// and the inserts run in one transaction, so readers see either the old or
// the new directory.
func (s *CustomerStore) ReplaceCustomers(ctx context.Context, records []models.CustomerRecord) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	rows := s.customerRows(records)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CachedCustomer{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return ioError("replace customers", err)
	}

	s.log.Debug("customer directory replaced", zap.Int("customers", len(rows)))
	return nil
}

// UpsertCustomers inserts or overwrites records by id and leaves every other
// cached customer in place.
func (s *CustomerStore) UpsertCustomers(ctx context.Context, records []models.CustomerRecord) error {
	rows := s.customerRows(records)
	if len(rows) == 0 {
		return nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return ioError("upsert customers", err)
	}
	return nil
}

// SearchCustomers returns active customers whose name, house number,
// address, area or city contains query, ignoring case. Phone numbers are not
// searched. A blank query matches nothing.
func (s *CustomerStore) SearchCustomers(ctx context.Context, query string) ([]models.CachedCustomer, error) {
	needle := foldText(query)
	if needle == "" {
		return []models.CachedCustomer{}, nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.CachedCustomer, 0)
	var batch []models.CachedCustomer
	err = db.Where("is_active = ?", true).FindInBatches(&batch, scanBatchSize, func(*gorm.DB, int) error {
		for _, customer := range batch {
			if matchesDirectory(customer, needle) {
				results = append(results, customer)
			}
		}
		return nil
	}).Error
	if err != nil {
		return nil, ioError("search customers", err)
	}

	return results, nil
}

// FindByPhone returns customers whose phone or WhatsApp number is the same
// number as phone, regardless of formatting.
func (s *CustomerStore) FindByPhone(ctx context.Context, phone string) ([]models.CachedCustomer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return []models.CachedCustomer{}, nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("phone = ? OR whatsapp = ?", phone, phone)
	if e164 := normalizePhone(phone, s.region); e164 != "" {
		query = db.Where("phone_e164 = ? OR whatsapp_e164 = ?", e164, e164).
			Or("phone = ? OR whatsapp = ?", phone, phone)
	}

	results := make([]models.CachedCustomer, 0)
	if err := query.Order("id").Find(&results).Error; err != nil {
		return nil, ioError("find by phone", err)
	}
	return results, nil
}

// ListCustomers returns the whole cached directory in id order.
func (s *CustomerStore) ListCustomers(ctx context.Context) ([]models.CachedCustomer, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.CachedCustomer, 0)
	if err := db.Order("id").Find(&results).Error; err != nil {
		return nil, ioError("list customers", err)
	}
	return results, nil
}

// GetCustomer returns one cached customer by id.
func (s *CustomerStore) GetCustomer(ctx context.Context, id string) (models.CachedCustomer, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return models.CachedCustomer{}, false, err
	}

	var customer models.CachedCustomer
	err = db.Take(&customer, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CachedCustomer{}, false, nil
	}
	if err != nil {
		return models.CachedCustomer{}, false, ioError("get customer", err)
	}
	return customer, true, nil
}

// Count returns the number of cached customers.
func (s *CustomerStore) Count(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&models.CachedCustomer{}).Count(&count).Error; err != nil {
		return 0, ioError("count customers", err)
	}
	return count, nil
}

// ClearAll removes every cached customer.
func (s *CustomerStore) ClearAll(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CachedCustomer{}).Error; err != nil {
		return ioError("clear customers", err)
	}
	return nil
}

// customerRows converts upstream records into cache rows. Records without an
// id are skipped; a repeated id keeps the last occurrence.
func (s *CustomerStore) customerRows(records []models.CustomerRecord) []models.CachedCustomer {
	rows := make([]models.CachedCustomer, 0, len(records))
	index := make(map[string]int, len(records))
	skipped := 0
	now := s.now()

	for _, record := range records {
		row := record.ToCached()
		if row.ID == "" {
			skipped++
			continue
		}
		row.PhoneE164 = normalizePhone(row.Phone, s.region)
		row.WhatsAppE164 = normalizePhone(row.WhatsApp, s.region)
		row.CachedAt = now

		if i, ok := index[row.ID]; ok {
			rows[i] = row
			continue
		}
		index[row.ID] = len(rows)
		rows = append(rows, row)
	}

	if skipped > 0 {
		s.log.Warn("skipped customer records without id", zap.Int("skipped", skipped))
	}
	return rows
}

func matchesDirectory(customer models.CachedCustomer, needle string) bool {
	for _, field := range []string{customer.Name, customer.HouseNo, customer.Address, customer.Area, customer.City} {
		if field != "" && strings.Contains(foldText(field), needle) {
			return true
		}
	}
	return false
}
