package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	cartpkg "github.com/oakfield/shopfront-backend/internal/cart"
	"github.com/oakfield/shopfront-backend/internal/products"
	"github.com/oakfield/shopfront-backend/internal/reservations"
	"github.com/oakfield/shopfront-backend/pkg/db/models"
	"github.com/oakfield/shopfront-backend/pkg/enums"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
	"github.com/oakfield/shopfront-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db       *gorm.DB
	settle   Service
	carts    cartpkg.Service
	cartRepo cartpkg.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.InventoryItem{},
		&models.Cart{},
		&models.Reservation{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tx := &testTxRunner{db: db}
	cartRepo := cartpkg.NewRepository(db)
	itemRepo := reservations.NewRepository(db)

	cartSvc, err := cartpkg.NewService(cartRepo, itemRepo, tx, 30*time.Minute)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	settleSvc, err := NewService(
		NewRepository(db),
		cartRepo,
		itemRepo,
		products.NewRepository(db),
		tx,
		outbox.NewService(outbox.NewRepository(db), nil),
		nil,
	)
	if err != nil {
		t.Fatalf("settle service: %v", err)
	}
	return &fixture{db: db, settle: settleSvc, carts: cartSvc, cartRepo: cartRepo}
}

func (f *fixture) seedProduct(t *testing.T, priceCents, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:             uuid.New(),
		SKU:            "SKU-" + uuid.NewString()[:8],
		Title:          "Trail Stove",
		UnitPriceCents: priceCents,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	item := models.InventoryItem{SKUID: product.ID, AvailableQty: stock}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return product.ID
}

func (f *fixture) stock(t *testing.T, sku uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := f.db.First(&item, "sku_id = ?", sku).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return item
}

func TestSettleConvertsCartIntoOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku := f.seedProduct(t, 1500, 10)

	view, err := f.carts.AddItem(ctx, cartpkg.AddItemInput{SKUID: sku, Qty: 3})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	order, err := f.settle.Settle(ctx, view.CartID, "pay_123")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if order.CartID != view.CartID || order.Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.TotalCents != 4500 {
		t.Fatalf("expected total 4500, got %d", order.TotalCents)
	}
	if len(order.Items) != 1 || order.Items[0].Qty != 3 || order.Items[0].UnitPriceCents != 1500 {
		t.Fatalf("unexpected line items: %+v", order.Items)
	}

	item := f.stock(t, sku)
	if item.AvailableQty != 7 || item.ReservedQty != 0 {
		t.Fatalf("settlement must drain reserved only: %+v", item)
	}

	var cartCount, resCount int64
	f.db.Model(&models.Cart{}).Where("id = ?", view.CartID).Count(&cartCount)
	f.db.Model(&models.Reservation{}).Where("cart_id = ?", view.CartID).Count(&resCount)
	if cartCount != 0 || resCount != 0 {
		t.Fatalf("cart rows not deleted: carts=%d reservations=%d", cartCount, resCount)
	}

	var events int64
	f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderPaid, order.ID).
		Count(&events)
	if events != 1 {
		t.Fatalf("expected one order_paid outbox event, got %d", events)
	}
}

func TestSettleReplayReturnsSameOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku := f.seedProduct(t, 2000, 5)

	view, err := f.carts.AddItem(ctx, cartpkg.AddItemInput{SKUID: sku, Qty: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	first, err := f.settle.Settle(ctx, view.CartID, "pay_dup")
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}

	// Duplicate webhook long after the cart row is gone.
	second, err := f.settle.Settle(ctx, view.CartID, "pay_dup")
	if err != nil {
		t.Fatalf("replay settle: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new order: %s vs %s", first.ID, second.ID)
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one order, got %d", count)
	}
	item := f.stock(t, sku)
	if item.AvailableQty != 3 || item.ReservedQty != 0 {
		t.Fatalf("replay double-consumed stock: %+v", item)
	}
}

func TestSettleWithNewReferenceAfterSettlement(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku := f.seedProduct(t, 1000, 5)

	view, err := f.carts.AddItem(ctx, cartpkg.AddItemInput{SKUID: sku, Qty: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.settle.Settle(ctx, view.CartID, "pay_a"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err = f.settle.Settle(ctx, view.CartID, "pay_b")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAlreadySettled {
		t.Fatalf("expected already settled, got %v", err)
	}
}

func TestSettleMissingCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.settle.Settle(context.Background(), uuid.New(), "pay_x")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCartExpired {
		t.Fatalf("expected cart expired or missing, got %v", err)
	}
}

func TestSettleExpiredCartLeavesStockForReclaimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku := f.seedProduct(t, 1000, 5)

	view, err := f.carts.AddItem(ctx, cartpkg.AddItemInput{SKUID: sku, Qty: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	err = f.db.Model(&models.Cart{}).
		Where("id = ?", view.CartID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("expire cart: %v", err)
	}

	_, err = f.settle.Settle(ctx, view.CartID, "pay_late")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCartExpired {
		t.Fatalf("expected cart expired, got %v", err)
	}

	item := f.stock(t, sku)
	if item.AvailableQty != 3 || item.ReservedQty != 2 {
		t.Fatalf("failed settle touched the ledger: %+v", item)
	}
}

func TestSettleEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	cartID := uuid.New()
	row := models.Cart{ID: cartID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := f.db.Create(&row).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	order, err := f.settle.Settle(ctx, cartID, "pay_empty")
	if err != nil {
		t.Fatalf("settle empty cart: %v", err)
	}
	if order.TotalCents != 0 || len(order.Items) != 0 {
		t.Fatalf("expected empty order, got %+v", order)
	}
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku := f.seedProduct(t, 500, 5)

	view, err := f.carts.AddItem(ctx, cartpkg.AddItemInput{SKUID: sku, Qty: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	created, err := f.settle.Settle(ctx, view.CartID, "pay_get")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	loaded, err := f.settle.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if loaded.PaymentReference != "pay_get" || len(loaded.Items) != 1 {
		t.Fatalf("unexpected order: %+v", loaded)
	}

	_, err = f.settle.GetOrder(ctx, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
