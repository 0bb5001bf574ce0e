package fulfillment

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/internal/payments"
	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/metrics"
	"github.com/loterodev/swapmarket-backend/pkg/outbox"
)

type fakeGuard struct {
	sale  *models.Sale
	err   error
	calls int
}

func (f *fakeGuard) AlreadyApplied(ctx context.Context, ref SaleRef, target enums.SaleStatus) (*models.Sale, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.sale == nil {
		return nil, true, nil
	}
	if f.sale.Status.Rank() >= target.Rank() {
		return f.sale, true, nil
	}
	return f.sale, false, nil
}

type fakeSyncer struct {
	guard   *fakeGuard
	emitter *fakeEmitter
	err     error
	inputs  []SyncInput
}

func (f *fakeSyncer) Sync(ctx context.Context, input SyncInput) (*SaleSnapshot, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	updated := *input.Sale
	updated.Status = input.Target
	if f.guard != nil {
		f.guard.sale = &updated
	}
	if f.emitter != nil {
		_ = f.emitter.Emit(ctx, nil, outbox.DomainEvent{
			EventType:     enums.EventSaleStatusChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   updated.ID,
			Version:       1,
		})
	}
	snapshot := &SaleSnapshot{Sale: &updated}
	if input.SwapSpotID != nil {
		snapshot.SwapSpot = &models.SwapSpotInventoryRecord{
			SwapSpotID: *input.SwapSpotID,
			SaleID:     updated.ID,
			BuyerID:    updated.BuyerID,
			SellerID:   updated.SellerID,
			Status:     input.Target,
		}
	}
	return snapshot, nil
}

type fakeRetriever struct {
	details *payments.PaymentDetails
	err     error
	calls   int
}

func (f *fakeRetriever) RetrievePayment(ctx context.Context, paymentIntentID string) (*payments.PaymentDetails, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

type fakeDisburser struct {
	inputs   []payments.DisburseInput
	deferred []payments.DisburseInput
}

func (f *fakeDisburser) Disburse(ctx context.Context, input payments.DisburseInput) {
	f.inputs = append(f.inputs, input)
}

func (f *fakeDisburser) Defer(ctx context.Context, input payments.DisburseInput) {
	f.deferred = append(f.deferred, input)
}

type fakeNotifier struct {
	notices []TransitionNotice
}

func (f *fakeNotifier) Dispatch(ctx context.Context, notice TransitionNotice) {
	f.notices = append(f.notices, notice)
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return f.Emit(ctx, tx, event)
}

type engineFixture struct {
	engine    *Engine
	guard     *fakeGuard
	syncer    *fakeSyncer
	retriever *fakeRetriever
	disburser *fakeDisburser
	notifier  *fakeNotifier
	emitter   *fakeEmitter
}

func newEngineFixture(t *testing.T, sale *models.Sale) *engineFixture {
	t.Helper()

	guard := &fakeGuard{sale: sale}
	emitter := &fakeEmitter{}
	syncer := &fakeSyncer{guard: guard, emitter: emitter}
	retriever := &fakeRetriever{details: &payments.PaymentDetails{
		AmountReceivedCents: 10000,
		ChargeID:            "ch_test",
		Currency:            "usd",
	}}
	disburser := &fakeDisburser{}
	notifier := &fakeNotifier{}
	logg := logger.New(logger.Options{ServiceName: "fulfillment-test", Output: io.Discard})

	engine, err := NewEngine(EngineParams{
		Guard:     guard,
		Syncer:    syncer,
		Payments:  retriever,
		Disburser: disburser,
		Notifier:  notifier,
		DB:        fakeTxRunner{},
		Events:    emitter,
		Logger:    logg,
		Metrics:   metrics.NewFulfillmentMetrics(nil),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &engineFixture{
		engine:    engine,
		guard:     guard,
		syncer:    syncer,
		retriever: retriever,
		disburser: disburser,
		notifier:  notifier,
		emitter:   emitter,
	}
}

func testSale(status enums.SaleStatus) *models.Sale {
	productID := uuid.New()
	return &models.Sale{
		ID:              uuid.New(),
		SellerID:        uuid.New(),
		BuyerID:         uuid.New(),
		OrderID:         uuid.New(),
		ProductID:       &productID,
		Status:          status,
		PaymentIntentID: "pi_test",
		Currency:        enums.CurrencyUSD,
		Total:           decimal.NewFromInt(100),
		Commission:      decimal.NewFromInt(5),
		ShippingRate:    decimal.NewFromInt(15),
	}
}

func saleRef(sale *models.Sale) SaleRef {
	return SaleRef{SaleID: sale.ID, SellerID: sale.SellerID}
}

func TestTransitionShippedUpdatesAndNotifies(t *testing.T) {
	sale := testSale(enums.SaleStatusLabelCreated)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionShipped, saleRef(sale), nil)
	if err != nil || !ok {
		t.Fatalf("expected transition to succeed, got ok=%v err=%v", ok, err)
	}
	if len(f.syncer.inputs) != 1 {
		t.Fatalf("expected 1 sync, got %d", len(f.syncer.inputs))
	}
	if f.syncer.inputs[0].Target != enums.SaleStatusShipped {
		t.Fatalf("unexpected target: %s", f.syncer.inputs[0].Target)
	}
	if len(f.disburser.inputs) != 0 {
		t.Fatalf("expected no disbursement, got %d", len(f.disburser.inputs))
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(f.notifier.notices))
	}
	if f.notifier.notices[0].Status != enums.SaleStatusShipped {
		t.Fatalf("unexpected notice status: %s", f.notifier.notices[0].Status)
	}
}

func TestTransitionDeliveredDisbursesSplit(t *testing.T) {
	sale := testSale(enums.SaleStatusOutForDelivery)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionDelivered, saleRef(sale), nil)
	if err != nil || !ok {
		t.Fatalf("expected transition to succeed, got ok=%v err=%v", ok, err)
	}
	if f.retriever.calls != 1 {
		t.Fatalf("expected 1 payment retrieval, got %d", f.retriever.calls)
	}
	if len(f.disburser.inputs) != 1 {
		t.Fatalf("expected 1 disbursement, got %d", len(f.disburser.inputs))
	}
	got := f.disburser.inputs[0]
	if got.Split.SellerEarningsCents != 8000 {
		t.Fatalf("expected seller earnings 8000, got %d", got.Split.SellerEarningsCents)
	}
	if got.ChargeID != "ch_test" {
		t.Fatalf("unexpected charge id %q", got.ChargeID)
	}
	if len(f.emitter.events) != 2 {
		t.Fatalf("expected status-changed and completed events, got %d", len(f.emitter.events))
	}
	if f.emitter.events[1].EventType != enums.EventSaleCompleted {
		t.Fatalf("unexpected second event type: %s", f.emitter.events[1].EventType)
	}
}

func TestTransitionReplayIsNoOp(t *testing.T) {
	sale := testSale(enums.SaleStatusCompleted)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionDelivered, saleRef(sale), nil)
	if err != nil || !ok {
		t.Fatalf("replay must report success, got ok=%v err=%v", ok, err)
	}
	if len(f.syncer.inputs) != 0 {
		t.Fatalf("expected no sync on replay, got %d", len(f.syncer.inputs))
	}
	if len(f.disburser.inputs) != 0 {
		t.Fatalf("expected no disbursement on replay, got %d", len(f.disburser.inputs))
	}
	if len(f.notifier.notices) != 0 {
		t.Fatalf("expected no notices on replay, got %d", len(f.notifier.notices))
	}
}

func TestTransitionTwiceDisbursesOnce(t *testing.T) {
	sale := testSale(enums.SaleStatusOutForDelivery)
	f := newEngineFixture(t, sale)
	ctx := context.Background()
	ref := saleRef(sale)

	if ok, err := f.engine.Transition(ctx, enums.FulfillmentActionDelivered, ref, nil); err != nil || !ok {
		t.Fatalf("first transition should succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := f.engine.Transition(ctx, enums.FulfillmentActionDelivered, ref, nil); err != nil || !ok {
		t.Fatalf("second transition should report success, got ok=%v err=%v", ok, err)
	}
	if len(f.disburser.inputs) != 1 {
		t.Fatalf("expected exactly 1 disbursement, got %d", len(f.disburser.inputs))
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("expected exactly 1 notice, got %d", len(f.notifier.notices))
	}
}

func TestTransitionUnknownActionFails(t *testing.T) {
	sale := testSale(enums.SaleStatusLabelCreated)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentAction("bogus"), saleRef(sale), nil)
	if ok || err == nil {
		t.Fatal("unknown action must fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pkgerrors.IsRetryable(err) {
		t.Fatal("unknown action is terminal, not retryable")
	}
	if f.guard.calls != 0 {
		t.Fatalf("guard should not run for unknown action, got %d calls", f.guard.calls)
	}
}

func TestTransitionSwapSpotActionRequiresID(t *testing.T) {
	sale := testSale(enums.SaleStatusOutForDelivery)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionSwapSpotReceiving, saleRef(sale), nil)
	if ok || err == nil {
		t.Fatal("swap spot action without id must fail")
	}
}

func TestTransitionSwapSpotFulfillmentCompletes(t *testing.T) {
	sale := testSale(enums.SaleStatusPendingSwapSpotPickup)
	swapSpotID := uuid.New()
	sale.SwapSpotID = &swapSpotID
	sale.SwapSpotCommission = decimal.NewFromFloat(3.5)
	f := newEngineFixture(t, sale)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionSwapSpotFulfillment, saleRef(sale), &swapSpotID)
	if err != nil || !ok {
		t.Fatalf("expected transition to succeed, got ok=%v err=%v", ok, err)
	}
	if len(f.disburser.inputs) != 1 {
		t.Fatalf("expected 1 disbursement, got %d", len(f.disburser.inputs))
	}
	got := f.disburser.inputs[0]
	if got.SwapSpotID == nil || *got.SwapSpotID != swapSpotID {
		t.Fatal("swap spot id must flow into disbursement")
	}
	if got.Split.SwapSpotEarningsCents != 350 {
		t.Fatalf("expected swap spot earnings 350, got %d", got.Split.SwapSpotEarningsCents)
	}
	if f.notifier.notices[0].SwapSpot == nil {
		t.Fatal("notice must carry the swap spot record")
	}
}

func TestTransitionSyncConflictFails(t *testing.T) {
	sale := testSale(enums.SaleStatusLabelCreated)
	f := newEngineFixture(t, sale)
	f.syncer.err = pkgerrors.New(pkgerrors.CodeStateConflict, "sale status changed concurrently")

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionShipped, saleRef(sale), nil)
	if ok || err == nil {
		t.Fatal("sync conflict must fail the transition")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.notifier.notices) != 0 {
		t.Fatalf("expected no notices, got %d", len(f.notifier.notices))
	}
}

func TestTransitionPaymentRetrievalFailureDefersToLedger(t *testing.T) {
	sale := testSale(enums.SaleStatusOutForDelivery)
	f := newEngineFixture(t, sale)
	f.retriever.err = errors.New("processor unavailable")

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionDelivered, saleRef(sale), nil)
	if err != nil || !ok {
		t.Fatalf("status change is the source of truth; disbursement failure must not revert it, got ok=%v err=%v", ok, err)
	}
	if len(f.disburser.inputs) != 0 {
		t.Fatalf("expected no direct disbursement, got %d", len(f.disburser.inputs))
	}
	if len(f.disburser.deferred) != 1 {
		t.Fatalf("expected 1 deferred disbursement, got %d", len(f.disburser.deferred))
	}
	got := f.disburser.deferred[0]
	if got.PaymentIntentID != "pi_test" {
		t.Fatalf("deferred legs must carry the payment intent, got %q", got.PaymentIntentID)
	}
	if got.Split.SellerEarningsCents != 8000 {
		t.Fatalf("expected seller earnings 8000 from the stored breakdown, got %d", got.Split.SellerEarningsCents)
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(f.notifier.notices))
	}
}

func TestTransitionMissingSaleSwallowed(t *testing.T) {
	f := newEngineFixture(t, nil)

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionShipped, SaleRef{SaleID: uuid.New(), SellerID: uuid.New()}, nil)
	if err != nil || !ok {
		t.Fatalf("missing sale must be treated as already applied, got ok=%v err=%v", ok, err)
	}
	if len(f.syncer.inputs) != 0 {
		t.Fatalf("expected no sync, got %d", len(f.syncer.inputs))
	}
}

func TestTransitionStaleEventAfterCompletionIsNoOp(t *testing.T) {
	sale := testSale(enums.SaleStatusOutForDelivery)
	f := newEngineFixture(t, sale)
	ctx := context.Background()
	ref := saleRef(sale)

	if ok, err := f.engine.Transition(ctx, enums.FulfillmentActionDelivered, ref, nil); err != nil || !ok {
		t.Fatalf("delivery should succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := f.engine.Transition(ctx, enums.FulfillmentActionShipped, ref, nil); err != nil || !ok {
		t.Fatalf("late shipped event must be absorbed, got ok=%v err=%v", ok, err)
	}
	if len(f.syncer.inputs) != 1 {
		t.Fatalf("stale event must not move the sale backward, got %d syncs", len(f.syncer.inputs))
	}
	if len(f.disburser.inputs) != 1 {
		t.Fatalf("expected exactly 1 disbursement, got %d", len(f.disburser.inputs))
	}
}

func TestTransitionStorageFailureIsRetryable(t *testing.T) {
	sale := testSale(enums.SaleStatusLabelCreated)
	f := newEngineFixture(t, sale)
	f.guard.err = errors.New("db down")

	ok, err := f.engine.Transition(context.Background(), enums.FulfillmentActionShipped, saleRef(sale), nil)
	if ok || err == nil {
		t.Fatal("storage failure must fail the transition")
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("storage failure must be retryable, got %v", err)
	}
}
