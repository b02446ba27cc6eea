package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T, db *gorm.DB) *Ledger {
	t.Helper()
	ledger, err := NewLedger(db, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

func seedItem(t *testing.T, db *gorm.DB, item models.InventoryItem) {
	t.Helper()
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func TestDecrementReducesStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	productID := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: productID, StockQty: 5, Tracked: true})

	result, err := ledger.Decrement(context.Background(), productID, 2, true)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if result.After != 3 || result.Archived {
		t.Fatalf("unexpected result: %+v", result)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.StockQty != 3 {
		t.Fatalf("expected stock 3, got %d", item.StockQty)
	}
}

func TestDecrementNeverOversells(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	productID := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: productID, StockQty: 5, Tracked: true})

	if _, err := ledger.Decrement(context.Background(), productID, 3, false); err != nil {
		t.Fatalf("first decrement: %v", err)
	}

	_, err := ledger.Decrement(context.Background(), productID, 4, false)
	failure, ok := AsFailure(err)
	if !ok || failure.Reason != ReasonInsufficient {
		t.Fatalf("expected insufficient failure, got %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.StockQty != 2 {
		t.Fatalf("stock mutated on failed decrement: %d", item.StockQty)
	}
}

func TestDecrementToZeroArchives(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	productID := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: productID, StockQty: 2, Tracked: true})

	result, err := ledger.Decrement(context.Background(), productID, 2, true)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if result.After != 0 || !result.Archived {
		t.Fatalf("expected archive on zero, got %+v", result)
	}

	// archive never reverts, even when stock returns
	if err := db.Exec("UPDATE inventory_items SET stock_qty = 10 WHERE product_id = ?", productID).Error; err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := ledger.Decrement(context.Background(), productID, 1, true); err != nil {
		t.Fatalf("decrement after restock: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !item.Archived {
		t.Fatal("archived flag reverted")
	}
}

func TestDecrementTypedFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	untracked := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: untracked, StockQty: 5, Tracked: false})

	_, err := ledger.Decrement(context.Background(), uuid.New(), 1, false)
	if failure, ok := AsFailure(err); !ok || failure.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}

	_, err = ledger.Decrement(context.Background(), untracked, 1, false)
	if failure, ok := AsFailure(err); !ok || failure.Reason != ReasonNotTracked {
		t.Fatalf("expected not_tracked, got %v", err)
	}

	_, err = ledger.Decrement(context.Background(), untracked, 0, false)
	if failure, ok := AsFailure(err); !ok || failure.Reason != ReasonNotSupported {
		t.Fatalf("expected not_supported, got %v", err)
	}
}

func TestDecrementFallbackPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db).WithoutConditionalUpdates()
	productID := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: productID, StockQty: 3, Tracked: true})

	result, err := ledger.Decrement(context.Background(), productID, 3, true)
	if err != nil {
		t.Fatalf("fallback decrement: %v", err)
	}
	if result.After != 0 || !result.Archived {
		t.Fatalf("unexpected fallback result: %+v", result)
	}

	_, err = ledger.Decrement(context.Background(), productID, 1, false)
	if failure, ok := AsFailure(err); !ok || failure.Reason != ReasonInsufficient {
		t.Fatalf("expected insufficient on empty stock, got %v", err)
	}
}

func TestDecrementBatchReportsPerItemOutcomes(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	plenty := uuid.New()
	scarce := uuid.New()
	seedItem(t, db, models.InventoryItem{ProductID: plenty, StockQty: 5, Tracked: true})
	seedItem(t, db, models.InventoryItem{ProductID: scarce, StockQty: 1, Tracked: true})

	outcomes, err := ledger.DecrementBatch(context.Background(), map[uuid.UUID]int{
		plenty: 2,
		scarce: 2,
	}, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	byProduct := map[uuid.UUID]BatchOutcome{}
	for _, outcome := range outcomes {
		byProduct[outcome.ProductID] = outcome
	}

	if byProduct[plenty].Result == nil || byProduct[plenty].Result.After != 3 {
		t.Fatalf("unexpected outcome for stocked product: %+v", byProduct[plenty])
	}
	if byProduct[scarce].Failure == nil || byProduct[scarce].Failure.Reason != ReasonInsufficient {
		t.Fatalf("expected insufficient outcome, got %+v", byProduct[scarce])
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", scarce).Error; err != nil {
		t.Fatalf("load scarce item: %v", err)
	}
	if item.StockQty != 1 {
		t.Fatalf("failed decrement mutated stock: %d", item.StockQty)
	}
}
