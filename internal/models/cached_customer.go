package models

import "time"

// CachedCustomer is the denormalised directory entry kept on the device.
// It deliberately carries no balance or other financial field.
type CachedCustomer struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Name         string    `gorm:"index;size:255" json:"name"`
	Phone        string    `gorm:"index;size:64" json:"phone"`
	PhoneE164    string    `gorm:"column:phone_e164;index;size:32" json:"-"`
	WhatsApp     string    `gorm:"column:whatsapp;index;size:64" json:"whatsapp,omitempty"`
	WhatsAppE164 string    `gorm:"column:whatsapp_e164;index;size:32" json:"-"`
	Address      string    `gorm:"size:512" json:"address,omitempty"`
	HouseNo      string    `gorm:"index;size:64" json:"houseNo,omitempty"`
	Area         string    `gorm:"size:255" json:"area,omitempty"`
	City         string    `gorm:"size:255" json:"city,omitempty"`
	IsActive     bool      `gorm:"not null" json:"isActive"`
	CachedAt     time.Time `json:"-"`
}

// TableName pins the customer directory table name.
func (CachedCustomer) TableName() string {
	return "cached_customers"
}
