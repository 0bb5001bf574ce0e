package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// Product is the listing; once purchased it becomes inert inventory whose
// status shadows the owning sale for query purposes.
type Product struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`

	Title    string          `gorm:"column:title;not null"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL *string         `gorm:"column:image_url"`

	Status        enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending_shipping'"`
	StatusUpdated time.Time        `gorm:"column:status_updated;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}
