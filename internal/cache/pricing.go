package cache

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smartsupply/agent/internal/models"
)

var literUnits = []string{"liter", "litre", "ltr"}

// ReplaceBottlePrices swaps the cached price list for categories.
func (s *CustomerStore) ReplaceBottlePrices(ctx context.Context, categories []models.BottleCategoryRecord) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	rows := make([]models.BottlePrice, 0, len(categories))
	seen := make(map[string]int, len(categories))
	for _, category := range categories {
		price := category.ToPrice()
		if price.ID == "" {
			continue
		}
		if i, ok := seen[price.ID]; ok {
			rows[i] = price
			continue
		}
		seen[price.ID] = len(rows)
		rows = append(rows, price)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.BottlePrice{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return ioError("replace bottle prices", err)
	}

	s.log.Debug("bottle prices replaced", zap.Int("categories", len(rows)))
	return nil
}

// ListBottlePrices returns the cached price list ordered by category name.
func (s *CustomerStore) ListBottlePrices(ctx context.Context) ([]models.BottlePrice, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	prices := make([]models.BottlePrice, 0)
	if err := db.Order("category_name").Order("id").Find(&prices).Error; err != nil {
		return nil, ioError("list bottle prices", err)
	}
	return prices, nil
}

// Find19LiterPrice returns the price of the 19-liter category. A category
// named exactly "19 liter" wins; otherwise the first category mentioning 19
// and a liter unit is used.
func (s *CustomerStore) Find19LiterPrice(ctx context.Context) (string, bool, error) {
	prices, err := s.ListBottlePrices(ctx)
	if err != nil {
		return "", false, err
	}

	for _, price := range prices {
		if normalizeCategory(price.CategoryName) == "19 liter" {
			return price.Price, true, nil
		}
	}
	for _, price := range prices {
		if is19Liter(price.CategoryName) {
			return price.Price, true, nil
		}
	}
	return "", false, nil
}

func normalizeCategory(name string) string {
	return strings.Join(strings.Fields(foldText(name)), " ")
}

func is19Liter(name string) bool {
	folded := foldText(name)
	if !strings.Contains(folded, "19") {
		return false
	}
	for _, unit := range literUnits {
		if strings.Contains(folded, unit) {
			return true
		}
	}
	return false
}
