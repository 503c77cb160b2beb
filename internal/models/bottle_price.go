package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BottlePrice is one bottle category price taken from the company setup.
// Price is kept as a canonical decimal string.
type BottlePrice struct {
	ID             string `gorm:"primaryKey;size:64" json:"id"`
	CategoryName   string `gorm:"index;size:255" json:"categoryName"`
	Price          string `gorm:"size:64;not null" json:"price"`
	CompanySetupID string `gorm:"size:64" json:"companySetupId"`
}

// TableName pins the bottle price table name.
func (BottlePrice) TableName() string {
	return "bottle_prices"
}

// BottleCategoryRecord is the bottle category shape served by the remote API.
type BottleCategoryRecord struct {
	ID             string              `json:"id"`
	CategoryName   string              `json:"categoryName"`
	Price          decimal.NullDecimal `json:"price"`
	CompanySetupID string              `json:"companySetupId"`
}

// ToPrice normalises the upstream price into its canonical string form; a
// missing price becomes "0".
func (r BottleCategoryRecord) ToPrice() BottlePrice {
	price := "0"
	if r.Price.Valid {
		price = r.Price.Decimal.String()
	}
	return BottlePrice{
		ID:             strings.TrimSpace(r.ID),
		CategoryName:   r.CategoryName,
		Price:          price,
		CompanySetupID: r.CompanySetupID,
	}
}
