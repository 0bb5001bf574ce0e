package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/outbox"
	"github.com/loterodev/swapmarket-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SyncInput describes one multi-entity status move.
type SyncInput struct {
	Sale       *models.Sale
	Action     enums.FulfillmentAction
	Target     enums.SaleStatus
	SwapSpotID *uuid.UUID
}

// SaleSnapshot is the post-write view of the records a transition touched.
type SaleSnapshot struct {
	Sale     *models.Sale
	SwapSpot *models.SwapSpotInventoryRecord
}

// Syncer moves a sale and its mirrored records to a target status in one
// transaction. Partial application is never observable: the sale write is
// compare-and-set on the status the caller observed, and everything else
// commits with it or not at all.
type Syncer struct {
	db     txRunner
	repo   Repository
	events eventEmitter
	logg   *logger.Logger
}

// NewSyncer wires the multi-entity sync layer.
func NewSyncer(db txRunner, repo Repository, events eventEmitter, logg *logger.Logger) (*Syncer, error) {
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Syncer{db: db, repo: repo, events: events, logg: logg}, nil
}

// Sync advances the sale, its products, the mirrored order, and (on the
// swap-spot path) the inventory record, then returns a fresh snapshot.
func (s *Syncer) Sync(ctx context.Context, input SyncInput) (*SaleSnapshot, error) {
	if input.Sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale snapshot required")
	}

	observed := input.Sale.Status
	ref := SaleRef{SaleID: input.Sale.ID, SellerID: input.Sale.SellerID}
	now := time.Now().UTC()

	snapshot := &SaleSnapshot{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.UpdateSaleStatus(ctx, ref, observed, input.Target, now); err != nil {
			return err
		}

		sale, err := repo.FindSale(ctx, ref)
		if err != nil {
			return err
		}
		snapshot.Sale = sale

		productIDs := sale.ProductIDs()
		if err := repo.UpdateProductsStatus(ctx, productIDs, input.Target, now); err != nil {
			return err
		}

		if err := repo.UpdateOrderStatus(ctx, sale.OrderID, sale.BuyerID, input.Target, now); err != nil {
			return err
		}

		if input.SwapSpotID != nil && *input.SwapSpotID != uuid.Nil {
			if len(productIDs) == 0 {
				return pkgerrors.New(pkgerrors.CodeDataIntegrity, "sale has no product for swap spot lookup")
			}
			record, err := repo.UpdateSwapSpotRecord(ctx, *input.SwapSpotID, productIDs[0], input.Target, now)
			if err != nil {
				return err
			}
			snapshot.SwapSpot = record
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleStatusChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.SaleStatusChangedEvent{
				SaleID:         sale.ID,
				OrderID:        sale.OrderID,
				SellerID:       sale.SellerID,
				BuyerID:        sale.BuyerID,
				SwapSpotID:     input.SwapSpotID,
				PreviousStatus: observed,
				Status:         input.Target,
				Action:         string(input.Action),
				OccurredAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"previous_status": string(observed),
		"status":          string(input.Target),
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "sale status synced")
	return snapshot, nil
}
