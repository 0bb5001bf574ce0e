package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// SwapSpotInventoryRecord tracks a package held at a swap spot. Created at
// purchase time when the buyer routes through an intermediary; updated only
// by the status transition engine afterwards.
type SwapSpotInventoryRecord struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SwapSpotID uuid.UUID `gorm:"column:swap_spot_id;type:uuid;not null"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SaleID     uuid.UUID `gorm:"column:sale_id;type:uuid;not null"`
	BuyerID    uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID   uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`

	Status    enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending_swapspot_arrival'"`
	Updated   time.Time        `gorm:"column:updated;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides gorm's pluralized default.
func (SwapSpotInventoryRecord) TableName() string {
	return "swap_spot_inventory"
}
