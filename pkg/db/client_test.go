package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "ux_orders_payment_reference"`), "") {
		t.Fatal("expected postgres duplicate key to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.payment_reference"), "") {
		t.Fatal("expected sqlite unique failure to match")
	}
	if !IsUniqueViolation(errors.New("boom ux_reservations_cart_sku boom"), "ux_reservations_cart_sku") {
		t.Fatal("expected named constraint to match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
}

func TestIsLockContention(t *testing.T) {
	cases := []string{
		"ERROR: canceling statement due to lock timeout",
		"ERROR: deadlock detected",
		"ERROR: could not serialize access due to concurrent update",
		"database is locked",
	}
	for _, msg := range cases {
		if !IsLockContention(errors.New(msg)) {
			t.Fatalf("expected %q to be treated as contention", msg)
		}
	}
	if IsLockContention(errors.New("some other failure")) {
		t.Fatal("unrelated error should not be contention")
	}
}
