package reservations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
)

func TestAddCreatesThenIncrements(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	cartID := uuid.New()
	sku := uuid.New()

	if err := repo.Add(ctx, cartID, sku, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := repo.Add(ctx, cartID, sku, 3); err != nil {
		t.Fatalf("second add: %v", err)
	}

	row, err := repo.Get(ctx, cartID, sku)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row == nil || row.Qty != 5 {
		t.Fatalf("expected merged qty 5, got %+v", row)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	row, err := repo.Get(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil, got %+v", row)
	}
}

func TestSetQtyRequiresExistingRow(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	cartID := uuid.New()
	sku := uuid.New()

	if err := repo.SetQty(ctx, cartID, sku, 4); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}

	if err := repo.Add(ctx, cartID, sku, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.SetQty(ctx, cartID, sku, 4); err != nil {
		t.Fatalf("set qty: %v", err)
	}
	row, err := repo.Get(ctx, cartID, sku)
	if err != nil || row == nil {
		t.Fatalf("get: %v %+v", err, row)
	}
	if row.Qty != 4 {
		t.Fatalf("expected qty 4, got %d", row.Qty)
	}
}

func TestRemoveAndListByCart(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	cartID := uuid.New()
	skuA := uuid.New()
	skuB := uuid.New()

	if err := repo.Add(ctx, cartID, skuA, 2); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := repo.Add(ctx, cartID, skuB, 1); err != nil {
		t.Fatalf("add b: %v", err)
	}

	if err := repo.Remove(ctx, cartID, skuA); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.Remove(ctx, cartID, skuA); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}

	rows, err := repo.ListByCart(ctx, cartID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].SKUID != skuB {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDeleteByCartClearsAllRows(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	cartID := uuid.New()
	other := uuid.New()

	for _, sku := range []uuid.UUID{uuid.New(), uuid.New()} {
		if err := repo.Add(ctx, cartID, sku, 1); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := repo.Add(ctx, other, uuid.New(), 1); err != nil {
		t.Fatalf("add other: %v", err)
	}

	if err := repo.DeleteByCart(ctx, cartID); err != nil {
		t.Fatalf("delete by cart: %v", err)
	}

	rows, err := repo.ListByCart(ctx, cartID)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty cart, got %v %+v", err, rows)
	}
	rows, err = repo.ListByCart(ctx, other)
	if err != nil || len(rows) != 1 {
		t.Fatalf("other cart affected: %v %+v", err, rows)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Reservation{}); err != nil {
		t.Fatalf("migrate reservations: %v", err)
	}
	return db
}
