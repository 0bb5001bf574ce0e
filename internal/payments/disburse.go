package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/metrics"
)

// Fallback reasons recorded on pending payout rows.
const (
	reasonMissingAccount  = "missing_payout_account"
	reasonAccountLookup   = "account_lookup_failed"
	reasonTransferFailed  = "transfer_failed"
	reasonRetrievalFailed = "payment_retrieval_failed"
)

type accountLookup interface {
	PayoutAccountID(ctx context.Context, userID uuid.UUID) (string, error)
}

// DisburseInput describes one completed sale's payout legs. ChargeID is empty
// on the Defer path, where the capture record could not be read.
type DisburseInput struct {
	SaleID          uuid.UUID
	SellerID        uuid.UUID
	SwapSpotID      *uuid.UUID
	ChargeID        string
	PaymentIntentID string
	Currency        enums.Currency
	Split           Split
}

// Disburser moves a completed sale's split to its participants. Each leg is
// attempted independently; a leg that cannot be transferred is appended to the
// pending payout ledger so the amount is never dropped. Defer skips the
// transfer attempt entirely and ledgers every leg, for callers that already
// know the processor is unreachable.
type Disburser interface {
	Disburse(ctx context.Context, input DisburseInput)
	Defer(ctx context.Context, input DisburseInput)
}

type disburser struct {
	processor Processor
	accounts  accountLookup
	ledger    Ledger
	logg      *logger.Logger
	metrics   *metrics.FulfillmentMetrics
}

// NewDisburser wires the disbursement service.
func NewDisburser(processor Processor, accounts accountLookup, ledger Ledger, logg *logger.Logger, m *metrics.FulfillmentMetrics) (Disburser, error) {
	if processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account lookup required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("pending payout ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &disburser{processor: processor, accounts: accounts, ledger: ledger, logg: logg, metrics: m}, nil
}

func (d *disburser) Disburse(ctx context.Context, input DisburseInput) {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"sale_id":   input.SaleID.String(),
		"charge_id": input.ChargeID,
	})

	if input.SwapSpotID != nil && *input.SwapSpotID != uuid.Nil && input.Split.SwapSpotEarningsCents > 0 {
		d.disburseLeg(ctx, string(enums.UserRoleSwapSpot), *input.SwapSpotID, input, input.Split.SwapSpotEarningsCents)
	}
	if input.Split.SellerEarningsCents > 0 {
		d.disburseLeg(ctx, string(enums.UserRoleSeller), input.SellerID, input, input.Split.SellerEarningsCents)
	}
}

// Defer ledgers every leg without attempting a transfer. Used when the
// capture record is unreadable at completion time: the amounts come from the
// stored breakdown and the reconciliation sweep re-drives them against the
// charge resolved from the payment intent.
func (d *disburser) Defer(ctx context.Context, input DisburseInput) {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"sale_id":           input.SaleID.String(),
		"payment_intent_id": input.PaymentIntentID,
	})

	if input.SwapSpotID != nil && *input.SwapSpotID != uuid.Nil && input.Split.SwapSpotEarningsCents > 0 {
		d.fallback(ctx, string(enums.UserRoleSwapSpot), *input.SwapSpotID, input, input.Split.SwapSpotEarningsCents, reasonRetrievalFailed)
	}
	if input.Split.SellerEarningsCents > 0 {
		d.fallback(ctx, string(enums.UserRoleSeller), input.SellerID, input, input.Split.SellerEarningsCents, reasonRetrievalFailed)
	}
}

func (d *disburser) disburseLeg(ctx context.Context, role string, userID uuid.UUID, input DisburseInput, amountCents int64) {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"role":         role,
		"user_id":      userID.String(),
		"amount_cents": amountCents,
	})

	account, err := d.accounts.PayoutAccountID(ctx, userID)
	if err != nil {
		d.logg.Error(ctx, "payout account lookup failed", err)
		d.fallback(ctx, role, userID, input, amountCents, reasonAccountLookup)
		return
	}
	if account == "" {
		d.logg.Warn(ctx, "no payout destination configured")
		d.fallback(ctx, role, userID, input, amountCents, reasonMissingAccount)
		return
	}

	transferID, err := d.processor.Transfer(ctx, TransferInput{
		AmountCents: amountCents,
		Currency:    input.Currency,
		Destination: account,
		ChargeID:    input.ChargeID,
	})
	if err != nil {
		d.logg.Error(ctx, "transfer failed", err)
		d.fallback(ctx, role, userID, input, amountCents, reasonTransferFailed)
		return
	}

	d.metrics.IncDisbursement(role, "transferred")
	d.logg.Info(d.logg.WithField(ctx, "transfer_id", transferID), "disbursement transferred")
}

func (d *disburser) fallback(ctx context.Context, role string, userID uuid.UUID, input DisburseInput, amountCents int64, reason string) {
	_, err := d.ledger.Append(ctx, AppendPayoutInput{
		UserID:          userID,
		SaleID:          input.SaleID,
		SellerID:        input.SellerID,
		AmountCents:     amountCents,
		Currency:        input.Currency,
		ChargeID:        input.ChargeID,
		PaymentIntentID: input.PaymentIntentID,
		Reason:          reason,
	})
	if err != nil {
		// The amount is recoverable from the charge record; flag loudly for
		// manual reconciliation rather than failing the transition.
		d.metrics.IncDisbursement(role, "unrecorded")
		d.logg.Error(ctx, "pending payout append failed", err)
		return
	}
	d.metrics.IncDisbursement(role, "pending")
}
