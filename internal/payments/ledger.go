package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/outbox"
	"github.com/loterodev/swapmarket-backend/pkg/outbox/payloads"
)

// LedgerRepository manages persistence for pending payout rows.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Create(ctx context.Context, payout *models.PendingPayout) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PendingPayout, error)
	List(ctx context.Context, limit int) ([]models.PendingPayout, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository returns a pending payout repository bound to the provided database.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) Create(ctx context.Context, payout *models.PendingPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PendingPayout, error) {
	var rows []models.PendingPayout
	if limit <= 0 {
		limit = 50
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *ledgerRepository) List(ctx context.Context, limit int) ([]models.PendingPayout, error) {
	var rows []models.PendingPayout
	if limit <= 0 {
		limit = 50
	}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *ledgerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.PendingPayout{}).Error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AppendPayoutInput captures one deferred disbursement leg. ChargeID is empty
// when the leg was deferred before the capture record could be read; the
// payment intent reference is kept so reconciliation can resolve the charge.
type AppendPayoutInput struct {
	UserID          uuid.UUID
	SaleID          uuid.UUID
	SellerID        uuid.UUID
	AmountCents     int64
	Currency        enums.Currency
	ChargeID        string
	PaymentIntentID string
	Reason          string
}

// Ledger appends amounts owed to parties without a payout destination.
type Ledger interface {
	Append(ctx context.Context, input AppendPayoutInput) (*models.PendingPayout, error)
	ListPending(ctx context.Context, userID *uuid.UUID, limit int) ([]models.PendingPayout, error)
}

type ledger struct {
	repo   LedgerRepository
	db     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
}

// NewLedger wires the pending payout ledger.
func NewLedger(repo LedgerRepository, db txRunner, emitter outboxEmitter, logg *logger.Logger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledger{repo: repo, db: db, outbox: emitter, logg: logg}, nil
}

func (l *ledger) Append(ctx context.Context, input AppendPayoutInput) (*models.PendingPayout, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.SaleID == uuid.Nil {
		return nil, fmt.Errorf("sale id is required")
	}
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d cents", input.AmountCents)
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	payout := &models.PendingPayout{
		ID:              uuid.New(),
		UserID:          input.UserID,
		SaleID:          input.SaleID,
		SellerID:        input.SellerID,
		Amount:          decimal.NewFromInt(input.AmountCents).Div(centsFactor),
		Currency:        currency,
		ChargeID:        input.ChargeID,
		PaymentIntentID: input.PaymentIntentID,
	}

	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := l.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return err
		}
		return l.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPendingPayoutCreated,
			AggregateType: enums.AggregatePendingPayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PendingPayoutCreatedEvent{
				PayoutID:        payout.ID,
				UserID:          payout.UserID,
				SaleID:          payout.SaleID,
				SellerID:        payout.SellerID,
				AmountCents:     input.AmountCents,
				Currency:        string(currency),
				ChargeID:        payout.ChargeID,
				PaymentIntentID: payout.PaymentIntentID,
				Reason:          input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"payout_id":    payout.ID.String(),
		"user_id":      payout.UserID.String(),
		"sale_id":      payout.SaleID.String(),
		"amount_cents": input.AmountCents,
	}
	l.logg.Warn(l.logg.WithFields(ctx, fields), "pending payout recorded")
	return payout, nil
}

func (l *ledger) ListPending(ctx context.Context, userID *uuid.UUID, limit int) ([]models.PendingPayout, error) {
	if userID != nil && *userID != uuid.Nil {
		return l.repo.ListByUser(ctx, *userID, limit)
	}
	return l.repo.List(ctx, limit)
}
