package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(
		&models.Tenant{},
		&models.Product{},
		&models.InventoryItem{},
		&models.Order{},
		&models.OrderLineItem{},
	)
	require.NoError(t, err)
	return gormDB
}

func buildOrder(sessionID, eventID string) *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:                orderID,
		BuyerRef:          "buyer@example.com",
		TenantID:          uuid.New(),
		Currency:          enums.CurrencyUSD,
		TotalCents:        2000,
		Status:            enums.OrderStatusPaid,
		CheckoutSessionID: sessionID,
		EventID:           eventID,
		Items: []models.OrderLineItem{
			{
				ID:              uuid.New(),
				OrderID:         orderID,
				ProductID:       uuid.New(),
				Name:            "Stoneware Mug",
				UnitAmountCents: 1000,
				Qty:             2,
				SubtotalCents:   2000,
				TotalCents:      2000,
			},
		},
	}
}

func TestCreateAndFindOrder(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	order := buildOrder("cs_find", "evt_find")

	require.NoError(t, repo.Create(ctx, order))

	bySession, err := repo.FindBySessionID(ctx, "cs_find")
	require.NoError(t, err)
	assert.Equal(t, order.ID, bySession.ID)
	assert.Len(t, bySession.Items, 1)

	byEvent, err := repo.FindByEventID(ctx, "evt_find")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byEvent.ID)
}

func TestCreateDuplicateSessionIsTypedConflict(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, buildOrder("cs_dup", "evt_a")))

	err := repo.Create(ctx, buildOrder("cs_dup", "evt_b"))
	require.Error(t, err)
	assert.True(t, db.IsConflict(err), "expected typed conflict, got %v", err)
}

func TestMarkInventoryAdjustedIsSetOnce(t *testing.T) {
	t.Parallel()

	gormDB := newTestDB(t)
	repo := NewRepository(gormDB)
	ctx := context.Background()
	order := buildOrder("cs_mark", "evt_mark")

	require.NoError(t, repo.Create(ctx, order))

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkInventoryAdjusted(ctx, order.ID, first))
	later := first.Add(time.Hour)
	require.NoError(t, repo.MarkInventoryAdjusted(ctx, order.ID, later))

	stored, err := repo.FindBySessionID(ctx, "cs_mark")
	require.NoError(t, err)
	require.NotNil(t, stored.InventoryAdjustedAt)
	assert.True(t, stored.InventoryAdjustedAt.Equal(first), "timestamp overwritten: %v", stored.InventoryAdjustedAt)
}

func TestUpdateRefundAggregates(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	order := buildOrder("cs_refund", "evt_refund")

	require.NoError(t, repo.Create(ctx, order))

	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateRefundAggregates(ctx, order.ID, 500, &at, enums.OrderStatusPartiallyRefunded))

	stored, err := repo.FindBySessionID(ctx, "cs_refund")
	require.NoError(t, err)
	assert.Equal(t, 500, stored.RefundedTotalCents)
	assert.Equal(t, enums.OrderStatusPartiallyRefunded, stored.Status)
	require.NotNil(t, stored.LastRefundAt)
	assert.True(t, stored.LastRefundAt.Equal(at))
}
