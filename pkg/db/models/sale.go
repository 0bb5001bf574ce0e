package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// Sale is the seller-side record of one fulfillment unit. Keyed by
// (seller_id, id); mutated only by the status transition engine.
type Sale struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;primaryKey"`
	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null"`

	// ProductID is set for single-product sales; bundles carry their
	// snapshots in Bundle instead.
	ProductID  *uuid.UUID `gorm:"column:product_id;type:uuid"`
	SwapSpotID *uuid.UUID `gorm:"column:swap_spot_id;type:uuid"`

	Status         enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending_shipping'"`
	ShippingNumber *string          `gorm:"column:shipping_number"`

	PaymentIntentID string         `gorm:"column:payment_intent_id;not null"`
	Currency        enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`

	Total              decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Commission         decimal.Decimal `gorm:"column:commission;type:numeric(12,2);not null;default:0"`
	ShippingRate       decimal.Decimal `gorm:"column:shipping_rate;type:numeric(12,2);not null;default:0"`
	SwapSpotCommission decimal.Decimal `gorm:"column:swap_spot_commission;type:numeric(12,2);not null;default:0"`
	Tax                decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	ShippingIncluded   bool            `gorm:"column:shipping_included;not null;default:true"`

	Bundle []SaleProduct `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`

	PurchaseStatusUpdated time.Time `gorm:"column:purchase_status_updated;not null"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProductIDs derives the product set touched by a transition: the bundle
// snapshots when present, otherwise the single product reference.
func (s *Sale) ProductIDs() []uuid.UUID {
	if len(s.Bundle) > 0 {
		ids := make([]uuid.UUID, 0, len(s.Bundle))
		for _, item := range s.Bundle {
			ids = append(ids, item.ProductID)
		}
		return ids
	}
	if s.ProductID != nil {
		return []uuid.UUID{*s.ProductID}
	}
	return nil
}
