package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
	"github.com/oakfield/shopfront-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderLineItem{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, ref string) models.Order {
	t.Helper()

	order := models.Order{
		ID:               uuid.New(),
		CartID:           uuid.New(),
		PaymentReference: ref,
		Status:           enums.OrderStatusPaid,
		TotalCents:       12500,
		Items: []models.OrderLineItem{
			{
				ID:             uuid.New(),
				SKUID:          uuid.New(),
				Name:           "Stoneware Mug",
				Qty:            5,
				UnitPriceCents: 2500,
				TotalCents:     12500,
			},
		},
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestRepositoryFindByPaymentReference(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, "pay_ref_lookup")

	found, err := repo.FindByPaymentReference(ctx, "pay_ref_lookup")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, 12500, found.TotalCents)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Stoneware Mug", found.Items[0].Name)

	missing, err := repo.FindByPaymentReference(ctx, "pay_ref_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryFindByCartID(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, "pay_ref_cart")

	found, err := repo.FindByCartID(ctx, seeded.CartID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.ID, found.ID)

	missing, err := repo.FindByCartID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryPaymentReferenceUnique(t *testing.T) {
	t.Parallel()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedOrder(t, db, "pay_ref_dup")

	dup := models.Order{
		ID:               uuid.New(),
		CartID:           uuid.New(),
		PaymentReference: "pay_ref_dup",
		Status:           enums.OrderStatusPaid,
	}
	err := repo.Create(ctx, &dup)
	assert.Error(t, err)
}
