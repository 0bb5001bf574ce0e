package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/internal/payments"
	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/metrics"
	"github.com/loterodev/swapmarket-backend/pkg/outbox"
	"github.com/loterodev/swapmarket-backend/pkg/outbox/payloads"
)

// actionTargets is the closed action table. An action missing here is a hard
// error, never a pass-through.
var actionTargets = map[enums.FulfillmentAction]enums.SaleStatus{
	enums.FulfillmentActionLabelCreated:        enums.SaleStatusLabelCreated,
	enums.FulfillmentActionShipped:             enums.SaleStatusShipped,
	enums.FulfillmentActionOutForDelivery:      enums.SaleStatusOutForDelivery,
	enums.FulfillmentActionSwapSpotReceiving:   enums.SaleStatusPendingSwapSpotPickup,
	enums.FulfillmentActionDelivered:           enums.SaleStatusCompleted,
	enums.FulfillmentActionSwapSpotFulfillment: enums.SaleStatusCompleted,
}

// TransitionNotice carries everything the notification layer needs about a
// transition that just committed.
type TransitionNotice struct {
	Action   enums.FulfillmentAction
	Status   enums.SaleStatus
	Sale     *models.Sale
	SwapSpot *models.SwapSpotInventoryRecord
}

// Notifier fans a committed transition out to push, email and in-app
// channels. Implementations must never fail the transition.
type Notifier interface {
	Dispatch(ctx context.Context, notice TransitionNotice)
}

type transitionGuard interface {
	AlreadyApplied(ctx context.Context, ref SaleRef, target enums.SaleStatus) (*models.Sale, bool, error)
}

type entitySyncer interface {
	Sync(ctx context.Context, input SyncInput) (*SaleSnapshot, error)
}

type paymentRetriever interface {
	RetrievePayment(ctx context.Context, paymentIntentID string) (*payments.PaymentDetails, error)
}

type saleDisburser interface {
	Disburse(ctx context.Context, input payments.DisburseInput)
	Defer(ctx context.Context, input payments.DisburseInput)
}

// EngineParams bundles the collaborators of the status transition engine.
type EngineParams struct {
	Guard     transitionGuard
	Syncer    entitySyncer
	Payments  paymentRetriever
	Disburser saleDisburser
	Notifier  Notifier
	DB        txRunner
	Events    eventEmitter
	Logger    *logger.Logger
	Metrics   *metrics.FulfillmentMetrics
}

// Engine advances sales through the fulfillment state machine. One call per
// inbound event; duplicates are absorbed by the guard, races by the
// compare-and-set write underneath the syncer.
type Engine struct {
	guard     transitionGuard
	syncer    entitySyncer
	payments  paymentRetriever
	disburser saleDisburser
	notifier  Notifier
	db        txRunner
	events    eventEmitter
	logg      *logger.Logger
	metrics   *metrics.FulfillmentMetrics
}

// NewEngine validates and wires the transition engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("syncer required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment retriever required")
	}
	if params.Disburser == nil {
		return nil, fmt.Errorf("disburser required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		guard:     params.Guard,
		syncer:    params.Syncer,
		payments:  params.Payments,
		disburser: params.Disburser,
		notifier:  params.Notifier,
		db:        params.DB,
		events:    params.Events,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Transition applies one fulfillment action to a sale. It never panics;
// every failure is logged and surfaced as a typed error so the boundary can
// separate terminal rejections (acknowledge, stop the sender's retries) from
// transient storage/processor failures (answer 5xx, let the sender redeliver).
// A true result covers both an applied transition and an absorbed replay.
func (e *Engine) Transition(ctx context.Context, action enums.FulfillmentAction, ref SaleRef, swapSpotID *uuid.UUID) (bool, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveTransitionDuration(string(action), time.Since(start))
	}()

	ctx = e.logg.WithSaleID(ctx, ref.SaleID.String())
	ctx = e.logg.WithSellerID(ctx, ref.SellerID.String())
	ctx = e.logg.WithAction(ctx, string(action))

	target, ok := actionTargets[action]
	if !ok {
		e.metrics.IncRejection(string(action), "unknown_action")
		err := pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown fulfillment action %q", action))
		e.logg.Error(ctx, "unknown fulfillment action", err)
		return false, err
	}

	if requiresSwapSpot(action) && (swapSpotID == nil || *swapSpotID == uuid.Nil) {
		e.metrics.IncRejection(string(action), "missing_swap_spot")
		err := pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("action %q requires a swap spot id", action))
		e.logg.Error(ctx, "swap spot action without swap spot id", err)
		return false, err
	}

	sale, applied, err := e.guard.AlreadyApplied(ctx, ref, target)
	if err != nil {
		e.metrics.IncRejection(string(action), rejectionReason(err))
		e.logg.Error(ctx, "idempotency check failed", err)
		return false, asStorageError(err, "idempotency check failed")
	}
	if applied {
		return true, nil
	}

	snapshot, err := e.syncer.Sync(ctx, SyncInput{
		Sale:       sale,
		Action:     action,
		Target:     target,
		SwapSpotID: swapSpotID,
	})
	if err != nil {
		e.metrics.IncRejection(string(action), rejectionReason(err))
		e.logg.Error(ctx, "multi-entity sync failed", err)
		return false, asStorageError(err, "multi-entity sync failed")
	}
	e.metrics.IncTransition(string(action), string(target))

	// The status change above is the source of truth. Disbursement and
	// notifications are fire-and-continue: their failures are logged, never
	// rolled back into the transition result.
	if target == enums.SaleStatusCompleted {
		e.settle(ctx, snapshot.Sale, swapSpotID)
	}

	e.notifier.Dispatch(ctx, TransitionNotice{
		Action:   action,
		Status:   target,
		Sale:     snapshot.Sale,
		SwapSpot: snapshot.SwapSpot,
	})

	return true, nil
}

// settle pays out a completed sale: reads the authoritative captured amount,
// splits it, transfers each leg, and records the settled figures. When the
// capture record cannot be read, every leg is ledgered from the stored
// breakdown instead of transferred, so the reconciliation sweep re-drives it.
func (e *Engine) settle(ctx context.Context, sale *models.Sale, swapSpotID *uuid.UUID) {
	details, err := e.payments.RetrievePayment(ctx, sale.PaymentIntentID)
	if err != nil {
		e.metrics.IncDisbursement("sale", "retrieval_failed")
		e.logg.Error(ctx, "payment retrieval failed, deferring disbursement to the ledger", err)
		e.disburser.Defer(ctx, payments.DisburseInput{
			SaleID:          sale.ID,
			SellerID:        sale.SellerID,
			SwapSpotID:      swapSpotID,
			PaymentIntentID: sale.PaymentIntentID,
			Currency:        sale.Currency,
			Split:           payments.ComputeSplit(payments.SplitInputFromBreakdown(sale)),
		})
		return
	}

	split := payments.ComputeSplit(payments.SplitInputFromSale(sale, details.AmountReceivedCents))
	e.disburser.Disburse(ctx, payments.DisburseInput{
		SaleID:          sale.ID,
		SellerID:        sale.SellerID,
		SwapSpotID:      swapSpotID,
		ChargeID:        details.ChargeID,
		PaymentIntentID: sale.PaymentIntentID,
		Currency:        sale.Currency,
		Split:           split,
	})

	completedAt := time.Now().UTC()
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		return e.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Version:       1,
			OccurredAt:    completedAt,
			Data: payloads.SaleCompletedEvent{
				SaleID:                sale.ID,
				OrderID:               sale.OrderID,
				SellerID:              sale.SellerID,
				BuyerID:               sale.BuyerID,
				SwapSpotID:            swapSpotID,
				Currency:              string(sale.Currency),
				AmountReceivedCents:   details.AmountReceivedCents,
				SellerEarningsCents:   split.SellerEarningsCents,
				SwapSpotEarningsCents: split.SwapSpotEarningsCents,
				MarketplaceShareCents: details.AmountReceivedCents - split.SellerEarningsCents - split.SwapSpotEarningsCents,
				CompletedAt:           completedAt,
			},
		})
	})
	if err != nil {
		e.logg.Error(ctx, "sale completed event emit failed", err)
	}
}

func requiresSwapSpot(action enums.FulfillmentAction) bool {
	return action == enums.FulfillmentActionSwapSpotReceiving ||
		action == enums.FulfillmentActionSwapSpotFulfillment
}

// asStorageError passes typed errors through and classifies everything else
// as a dependency failure: an untyped error on the guard/sync path is a raw
// storage error, which callers should treat as retryable.
func asStorageError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func rejectionReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeStateConflict:
		return "state_conflict"
	case pkgerrors.CodeDataIntegrity:
		return "data_integrity"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeDependency:
		return "dependency"
	case pkgerrors.CodeValidation:
		return "validation"
	default:
		return "internal"
	}
}
