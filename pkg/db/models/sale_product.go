package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleProduct is an ordered snapshot of one product inside a bundled sale.
// Snapshots are frozen at purchase time so later product edits cannot skew
// notifications or payout math.
type SaleProduct struct {
	SaleID    uuid.UUID       `gorm:"column:sale_id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Position  int             `gorm:"column:position;not null"`
	Title     string          `gorm:"column:title;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL  *string         `gorm:"column:image_url"`
}
