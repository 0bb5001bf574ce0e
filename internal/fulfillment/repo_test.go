package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
)

func setupFulfillmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sales := `
CREATE TABLE IF NOT EXISTS sales (
  id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  product_id TEXT,
  swap_spot_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending_shipping',
  shipping_number TEXT,
  payment_intent_id TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  total NUMERIC NOT NULL DEFAULT 0,
  commission NUMERIC NOT NULL DEFAULT 0,
  shipping_rate NUMERIC NOT NULL DEFAULT 0,
  swap_spot_commission NUMERIC NOT NULL DEFAULT 0,
  tax NUMERIC NOT NULL DEFAULT 0,
  shipping_included INTEGER NOT NULL DEFAULT 1,
  purchase_status_updated DATETIME NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (id, seller_id)
);`
	saleProducts := `
CREATE TABLE IF NOT EXISTS sale_products (
  sale_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  image_url TEXT,
  PRIMARY KEY (sale_id, product_id)
);`
	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  image_url TEXT,
  status TEXT NOT NULL DEFAULT 'pending_shipping',
  status_updated DATETIME NOT NULL,
  created_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  sale_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_shipping',
  selected_address TEXT,
  payment_intent_id TEXT NOT NULL,
  shipping_carrier TEXT,
  updated DATETIME NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (id, buyer_id)
);`
	inventory := `
CREATE TABLE IF NOT EXISTS swap_spot_inventory (
  id TEXT PRIMARY KEY,
  swap_spot_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  sale_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_swapspot_arrival',
  updated DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(sales).Error)
	require.NoError(t, db.Exec(saleProducts).Error)
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(inventory).Error)
	return db
}

func createSale(t *testing.T, db *gorm.DB, status enums.SaleStatus) *models.Sale {
	t.Helper()

	productID := uuid.New()
	sale := &models.Sale{
		ID:                    uuid.New(),
		SellerID:              uuid.New(),
		BuyerID:               uuid.New(),
		OrderID:               uuid.New(),
		ProductID:             &productID,
		Status:                status,
		PaymentIntentID:       "pi_test",
		Currency:              enums.CurrencyUSD,
		Total:                 decimal.NewFromInt(100),
		Commission:            decimal.NewFromInt(5),
		PurchaseStatusUpdated: time.Now().UTC(),
	}
	require.NoError(t, db.Create(sale).Error)
	return sale
}

func TestRepositoryUpdateSaleStatusCompareAndSet(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := createSale(t, db, enums.SaleStatusLabelCreated)
	ref := SaleRef{SaleID: sale.ID, SellerID: sale.SellerID}

	err := repo.UpdateSaleStatus(ctx, ref, enums.SaleStatusLabelCreated, enums.SaleStatusShipped, time.Now().UTC())
	require.NoError(t, err)

	updated, err := repo.FindSale(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusShipped, updated.Status)

	// A second writer still holding the stale observed status must lose.
	err = repo.UpdateSaleStatus(ctx, ref, enums.SaleStatusLabelCreated, enums.SaleStatusOutForDelivery, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestRepositoryFindSaleNotFound(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindSale(context.Background(), SaleRef{SaleID: uuid.New(), SellerID: uuid.New()})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindSaleLoadsBundleInOrder(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := createSale(t, db, enums.SaleStatusLabelCreated)
	second := models.SaleProduct{SaleID: sale.ID, ProductID: uuid.New(), Position: 2, Title: "Second", Price: decimal.NewFromInt(40)}
	first := models.SaleProduct{SaleID: sale.ID, ProductID: uuid.New(), Position: 1, Title: "First", Price: decimal.NewFromInt(60)}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&first).Error)

	found, err := repo.FindSale(ctx, SaleRef{SaleID: sale.ID, SellerID: sale.SellerID})
	require.NoError(t, err)
	require.Len(t, found.Bundle, 2)
	assert.Equal(t, "First", found.Bundle[0].Title)
	assert.Equal(t, "Second", found.Bundle[1].Title)
	assert.Equal(t, []uuid.UUID{first.ProductID, second.ProductID}, found.ProductIDs())
}

func TestRepositoryUpdateProductsStatusBatch(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		product := &models.Product{
			ID:            uuid.New(),
			SellerID:      sellerID,
			Title:         "Listing",
			Price:         decimal.NewFromInt(25),
			Status:        enums.SaleStatusLabelCreated,
			StatusUpdated: time.Now().UTC(),
		}
		require.NoError(t, db.Create(product).Error)
		ids = append(ids, product.ID)
	}

	require.NoError(t, repo.UpdateProductsStatus(ctx, ids, enums.SaleStatusShipped, time.Now().UTC()))

	var count int64
	require.NoError(t, db.Model(&models.Product{}).
		Where("id IN ? AND status = ?", ids, enums.SaleStatusShipped).
		Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestRepositoryUpdateOrderStatusMissingOrder(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateOrderStatus(context.Background(), uuid.New(), uuid.New(), enums.SaleStatusShipped, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDataIntegrity, typed.Code())
}

func TestRepositoryUpdateSwapSpotRecordReturnsParties(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := &models.SwapSpotInventoryRecord{
		ID:         uuid.New(),
		SwapSpotID: uuid.New(),
		ProductID:  uuid.New(),
		SaleID:     uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		Status:     enums.SaleStatusPendingSwapSpotArrival,
		Updated:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(record).Error)

	updated, err := repo.UpdateSwapSpotRecord(ctx, record.SwapSpotID, record.ProductID, enums.SaleStatusPendingSwapSpotPickup, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusPendingSwapSpotPickup, updated.Status)
	assert.Equal(t, record.BuyerID, updated.BuyerID)
	assert.Equal(t, record.SellerID, updated.SellerID)

	_, err = repo.UpdateSwapSpotRecord(ctx, uuid.New(), record.ProductID, enums.SaleStatusCompleted, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDataIntegrity, typed.Code())
}
