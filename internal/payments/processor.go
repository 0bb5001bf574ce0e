package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/transfer"

	"github.com/loterodev/swapmarket-backend/pkg/config"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	pkgstripe "github.com/loterodev/swapmarket-backend/pkg/stripe"
)

// PaymentDetails is the authoritative capture record for a payment.
type PaymentDetails struct {
	AmountReceivedCents int64
	ChargeID            string
	Currency            string
}

// TransferInput describes a single disbursement leg against the original charge.
type TransferInput struct {
	AmountCents int64
	Currency    enums.Currency
	Destination string
	ChargeID    string
}

// Processor exposes the subset of payment operations the disbursement flow needs.
type Processor interface {
	RetrievePayment(ctx context.Context, paymentIntentID string) (*PaymentDetails, error)
	Transfer(ctx context.Context, input TransferInput) (string, error)
}

type stripeProcessor struct {
	retryAttempts uint64
	retryBackoff  time.Duration
}

// NewStripeProcessor wraps the initialized Stripe client so the disbursement
// service can be tested against a fake.
func NewStripeProcessor(api *pkgstripe.Client, cfg config.PayoutsConfig) Processor {
	if api == nil {
		return nil
	}
	attempts := uint64(cfg.TransferRetryAttempts)
	if attempts == 0 {
		attempts = 3
	}
	backoff := cfg.TransferRetryBackoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &stripeProcessor{
		retryAttempts: attempts,
		retryBackoff:  backoff,
	}
}

func (p *stripeProcessor) RetrievePayment(ctx context.Context, paymentIntentID string) (*PaymentDetails, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	var intent *stripe.PaymentIntent
	backoff := retry.WithMaxRetries(p.retryAttempts, retry.NewExponential(p.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		got, err := paymentintent.Get(paymentIntentID, params)
		if err != nil {
			if isRetryableStripeErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		intent = got
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieving payment")
	}

	details := &PaymentDetails{
		AmountReceivedCents: intent.AmountReceived,
		Currency:            string(intent.Currency),
	}
	if intent.LatestCharge != nil {
		details.ChargeID = intent.LatestCharge.ID
	}
	if details.ChargeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "payment has no captured charge")
	}
	return details, nil
}

func (p *stripeProcessor) Transfer(ctx context.Context, input TransferInput) (string, error) {
	if input.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if strings.TrimSpace(input.Destination) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transfer destination is required")
	}
	if strings.TrimSpace(input.ChargeID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "source charge id is required")
	}

	params := &stripe.TransferParams{
		Amount:            stripe.Int64(input.AmountCents),
		Currency:          stripe.String(input.Currency.Lower()),
		Destination:       stripe.String(input.Destination),
		SourceTransaction: stripe.String(input.ChargeID),
	}
	params.Context = ctx

	created, err := transfer.New(params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("transferring %d cents", input.AmountCents))
	}
	return created.ID, nil
}

func isRetryableStripeErr(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			return true
		}
		return stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429
	}
	// network-level failures surface as plain errors
	return true
}
