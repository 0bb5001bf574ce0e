package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// PendingPayout records money owed to a party who has no payout destination
// configured yet. Append-only; consumed by an external reconciliation sweep.
type PendingPayout struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	SaleID   uuid.UUID `gorm:"column:sale_id;type:uuid;not null"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	ChargeID string          `gorm:"column:charge_id;not null"`

	// PaymentIntentID is set when the row was written before the charge could
	// be resolved; the reconciliation sweep retrieves the charge from it.
	PaymentIntentID string `gorm:"column:payment_intent_id;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
