package models

import (
	"strings"
	"time"
)

// Product is the checkout's read-only view of a catalog record.
type Product struct {
	ID        string     `gorm:"type:varchar(128);primaryKey" json:"id"`
	Name      string     `json:"name"`
	Price     int64      `gorm:"not null" json:"price"`
	Colors    []string   `gorm:"serializer:json" json:"colors"`
	Quantity  int        `json:"quantity"`
	Deleted   bool       `gorm:"-" json:"deleted"`
	DeletedAt *time.Time `json:"-"`
}

// IsDeleted reports whether the product was removed from the catalog.
func (p *Product) IsDeleted() bool {
	return p.Deleted || p.DeletedAt != nil
}

// HasColor reports whether color is one of the product's declared variants.
func (p *Product) HasColor(color string) bool {
	for _, c := range p.Colors {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}
