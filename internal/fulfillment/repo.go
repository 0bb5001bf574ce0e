package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
)

// SaleRef identifies a sale by its composite key.
type SaleRef struct {
	SaleID   uuid.UUID
	SellerID uuid.UUID
}

// Repository exposes the persistence operations a status transition touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSale(ctx context.Context, ref SaleRef) (*models.Sale, error)
	UpdateSaleStatus(ctx context.Context, ref SaleRef, observed, target enums.SaleStatus, now time.Time) error
	UpdateProductsStatus(ctx context.Context, ids []uuid.UUID, status enums.SaleStatus, now time.Time) error
	UpdateOrderStatus(ctx context.Context, orderID, buyerID uuid.UUID, status enums.SaleStatus, now time.Time) error
	UpdateSwapSpotRecord(ctx context.Context, swapSpotID, productID uuid.UUID, status enums.SaleStatus, now time.Time) (*models.SwapSpotInventoryRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSale(ctx context.Context, ref SaleRef) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Bundle", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? AND seller_id = ?", ref.SaleID, ref.SellerID).
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, err
	}
	return &sale, nil
}

// UpdateSaleStatus advances the sale only if its status still matches what
// the caller observed. A lost race surfaces as a state conflict instead of a
// silent overwrite.
func (r *repository) UpdateSaleStatus(ctx context.Context, ref SaleRef, observed, target enums.SaleStatus, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND seller_id = ? AND status = ?", ref.SaleID, ref.SellerID, observed).
		Updates(map[string]any{
			"status":                  target,
			"purchase_status_updated": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale status changed concurrently")
	}
	return nil
}

func (r *repository) UpdateProductsStatus(ctx context.Context, ids []uuid.UUID, status enums.SaleStatus, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":         status,
			"status_updated": now,
		}).Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID, buyerID uuid.UUID, status enums.SaleStatus, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND buyer_id = ?", orderID, buyerID).
		Updates(map[string]any{
			"status":  status,
			"updated": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeDataIntegrity, "order missing for sale")
	}
	return nil
}

// UpdateSwapSpotRecord advances the inventory entry for one package at a
// swap spot and returns the updated row, whose buyer/seller pair the
// swap-spot handlers rely on.
func (r *repository) UpdateSwapSpotRecord(ctx context.Context, swapSpotID, productID uuid.UUID, status enums.SaleStatus, now time.Time) (*models.SwapSpotInventoryRecord, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SwapSpotInventoryRecord{}).
		Where("swap_spot_id = ? AND product_id = ?", swapSpotID, productID).
		Updates(map[string]any{
			"status":  status,
			"updated": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "swap spot inventory record missing")
	}

	var record models.SwapSpotInventoryRecord
	err := r.db.WithContext(ctx).
		Where("swap_spot_id = ? AND product_id = ?", swapSpotID, productID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
