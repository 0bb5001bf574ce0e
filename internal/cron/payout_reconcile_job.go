package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/internal/payments"
	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

const payoutReconcileBatchSize = 100

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var payoutCentsFactor = decimal.NewFromInt(100)

type PayoutReconcileJobParams struct {
	Logger    *logger.Logger
	Ledger    payoutLedgerRepo
	Accounts  payoutAccounts
	Processor payoutProcessor
	BatchSize int
}

type payoutLedgerRepo interface {
	List(ctx context.Context, limit int) ([]models.PendingPayout, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type payoutAccounts interface {
	PayoutAccountID(ctx context.Context, userID uuid.UUID) (string, error)
}

type payoutProcessor interface {
	Transfer(ctx context.Context, input payments.TransferInput) (string, error)
	RetrievePayment(ctx context.Context, paymentIntentID string) (*payments.PaymentDetails, error)
}

// NewPayoutReconcileJob sweeps the pending payout ledger and re-drives
// disbursements for users who have since connected a payout account.
func NewPayoutReconcileJob(params PayoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("payout ledger repository required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = payoutReconcileBatchSize
	}
	return &payoutReconcileJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		accounts:  params.Accounts,
		processor: params.Processor,
		batch:     batch,
	}, nil
}

type payoutReconcileJob struct {
	logg      *logger.Logger
	ledger    payoutLedgerRepo
	accounts  payoutAccounts
	processor payoutProcessor
	batch     int
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

func (j *payoutReconcileJob) Run(ctx context.Context) error {
	payouts, err := j.ledger.List(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("payout reconcile: list pending payouts: %w", err)
	}

	var transferred, skipped, failed int
	for _, payout := range payouts {
		switch j.reconcile(ctx, payout) {
		case reconcileTransferred:
			transferred++
		case reconcileSkipped:
			skipped++
		case reconcileFailed:
			failed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":     len(payouts),
		"transferred": transferred,
		"skipped":     skipped,
		"failed":      failed,
	})
	j.logg.Info(logCtx, "payout reconcile sweep complete")
	return nil
}

type reconcileOutcome int

const (
	reconcileTransferred reconcileOutcome = iota
	reconcileSkipped
	reconcileFailed
)

func (j *payoutReconcileJob) reconcile(ctx context.Context, payout models.PendingPayout) reconcileOutcome {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"payout_id": payout.ID.String(),
		"user_id":   payout.UserID.String(),
		"sale_id":   payout.SaleID.String(),
	})

	destination, err := j.accounts.PayoutAccountID(ctx, payout.UserID)
	if err != nil {
		j.logg.Warn(logCtx, "payout account lookup failed, leaving payout pending")
		return reconcileFailed
	}
	if destination == "" {
		// Still not onboarded. The row stays until a later sweep.
		return reconcileSkipped
	}

	amountCents := payout.Amount.Mul(payoutCentsFactor).Round(0).IntPart()
	if amountCents <= 0 {
		j.logg.Warn(logCtx, "pending payout has non-positive amount, leaving for manual review")
		return reconcileSkipped
	}

	chargeID := payout.ChargeID
	if chargeID == "" {
		// Rows deferred before the charge could be resolved carry the
		// payment intent instead.
		if payout.PaymentIntentID == "" {
			j.logg.Warn(logCtx, "pending payout has neither charge nor payment intent, leaving for manual review")
			return reconcileSkipped
		}
		details, err := j.processor.RetrievePayment(ctx, payout.PaymentIntentID)
		if err != nil {
			j.logg.Warn(logCtx, "payment retrieval failed, will retry next sweep")
			return reconcileFailed
		}
		chargeID = details.ChargeID
	}

	transferID, err := j.processor.Transfer(ctx, payments.TransferInput{
		AmountCents: amountCents,
		Currency:    payout.Currency,
		Destination: destination,
		ChargeID:    chargeID,
	})
	if err != nil {
		j.logg.Warn(logCtx, "pending payout transfer failed, will retry next sweep")
		return reconcileFailed
	}

	if err := j.ledger.Delete(ctx, payout.ID); err != nil {
		// Transfer went through but the row survived. The next sweep would
		// double-pay, so surface loudly.
		j.logg.Error(j.logg.WithField(logCtx, "transfer_id", transferID), "failed to clear reconciled payout", err)
		return reconcileFailed
	}

	j.logg.Info(j.logg.WithField(logCtx, "transfer_id", transferID), "pending payout reconciled")
	return reconcileTransferred
}
