package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CustomerRecord is the customer shape served by the remote API. Fields the
// local cache must not keep, such as Balance, live only here.
type CustomerRecord struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Phone    string              `json:"phone"`
	WhatsApp string              `json:"whatsapp,omitempty"`
	Address  string              `json:"address,omitempty"`
	HouseNo  string              `json:"houseNo,omitempty"`
	Area     string              `json:"area,omitempty"`
	City     string              `json:"city,omitempty"`
	IsActive *bool               `json:"isActive,omitempty"`
	Balance  decimal.NullDecimal `json:"balance"`
}

// ToCached strips financial data and applies the upstream defaults: a missing
// isActive flag means the customer is active.
func (r CustomerRecord) ToCached() CachedCustomer {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return CachedCustomer{
		ID:       strings.TrimSpace(r.ID),
		Name:     r.Name,
		Phone:    r.Phone,
		WhatsApp: r.WhatsApp,
		Address:  r.Address,
		HouseNo:  r.HouseNo,
		Area:     r.Area,
		City:     r.City,
		IsActive: active,
	}
}
