package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
	"github.com/loterodev/swapmarket-backend/pkg/types"
)

// Order mirrors a sale's fulfillment state for the buyer. Keyed by
// (buyer_id, id).
type Order struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;primaryKey"`
	SaleID   uuid.UUID `gorm:"column:sale_id;type:uuid;not null"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`

	Status          enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending_shipping'"`
	SelectedAddress *types.Address   `gorm:"column:selected_address;type:jsonb;serializer:json"`
	PaymentIntentID string           `gorm:"column:payment_intent_id;not null"`
	ShippingCarrier *string          `gorm:"column:shipping_carrier"`

	Updated   time.Time `gorm:"column:updated;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
