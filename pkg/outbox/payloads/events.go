package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// SaleStatusChangedEvent is emitted on every fulfillment transition.
type SaleStatusChangedEvent struct {
	SaleID         uuid.UUID        `json:"sale_id"`
	OrderID        uuid.UUID        `json:"order_id"`
	SellerID       uuid.UUID        `json:"seller_id"`
	BuyerID        uuid.UUID        `json:"buyer_id"`
	SwapSpotID     *uuid.UUID       `json:"swap_spot_id,omitempty"`
	PreviousStatus enums.SaleStatus `json:"previous_status"`
	Status         enums.SaleStatus `json:"status"`
	Action         string           `json:"action"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// SaleCompletedEvent surfaces the settled amounts when a sale reaches its terminal status.
type SaleCompletedEvent struct {
	SaleID                uuid.UUID  `json:"sale_id"`
	OrderID               uuid.UUID  `json:"order_id"`
	SellerID              uuid.UUID  `json:"seller_id"`
	BuyerID               uuid.UUID  `json:"buyer_id"`
	SwapSpotID            *uuid.UUID `json:"swap_spot_id,omitempty"`
	Currency              string     `json:"currency"`
	AmountReceivedCents   int64      `json:"amount_received_cents"`
	SellerEarningsCents   int64      `json:"seller_earnings_cents"`
	SwapSpotEarningsCents int64      `json:"swap_spot_earnings_cents"`
	MarketplaceShareCents int64      `json:"marketplace_share_cents"`
	CompletedAt           time.Time  `json:"completed_at"`
}

// PendingPayoutCreatedEvent is emitted when a transfer leg falls back to the ledger.
type PendingPayoutCreatedEvent struct {
	PayoutID        uuid.UUID `json:"payout_id"`
	UserID          uuid.UUID `json:"user_id"`
	SaleID          uuid.UUID `json:"sale_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	ChargeID        string    `json:"charge_id"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}
