package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
)

type fakeGuard struct {
	seen      map[string]bool
	failCheck error
	deleted   []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (f *fakeGuard) CheckAndMarkProcessed(_ context.Context, _, eventID string) (bool, error) {
	if f.failCheck != nil {
		return false, f.failCheck
	}
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeGuard) Delete(_ context.Context, _, eventID string) error {
	delete(f.seen, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.ProcessedEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}

func TestCheckAndMarkFirstAndRepeat(t *testing.T) {
	t.Parallel()

	guard := newFakeGuard()
	ledger, err := NewLedger(newLedgerDB(t), guard)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	already, err := ledger.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if already {
		t.Fatal("first check should report unseen")
	}

	already, err = ledger.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !already {
		t.Fatal("second check should report seen")
	}
}

func TestCheckAndMarkFallsBackToDurableMarker(t *testing.T) {
	t.Parallel()

	guard := newFakeGuard()
	ledger, err := NewLedger(newLedgerDB(t), guard)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	if err := ledger.MarkProcessed(ctx, "evt_durable", "checkout.session.completed"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	// fast path has no memory of the event (simulated eviction) but the
	// durable row must still stop reprocessing
	already, err := ledger.CheckAndMark(ctx, "evt_durable")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !already {
		t.Fatal("durable marker should report seen")
	}
}

func TestMarkProcessedIsWriteOnce(t *testing.T) {
	t.Parallel()

	gormDB := newLedgerDB(t)
	ledger, err := NewLedger(gormDB, newFakeGuard())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	if err := ledger.MarkProcessed(ctx, "evt_once", "refund.created"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := ledger.MarkProcessed(ctx, "evt_once", "refund.created"); err != nil {
		t.Fatalf("repeat mark should be a no-op: %v", err)
	}

	var count int64
	if err := gormDB.Model(&models.ProcessedEvent{}).Where("event_id = ?", "evt_once").Count(&count).Error; err != nil {
		t.Fatalf("count markers: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one marker row, got %d", count)
	}
}

func TestCheckAndMarkSurfacesFastPathError(t *testing.T) {
	t.Parallel()

	guard := newFakeGuard()
	guard.failCheck = errors.New("redis down")
	ledger, err := NewLedger(newLedgerDB(t), guard)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	if _, err := ledger.CheckAndMark(context.Background(), "evt_err"); err == nil {
		t.Fatal("expected fast path error to surface")
	}
}

func TestForgetReleasesFastClaim(t *testing.T) {
	t.Parallel()

	guard := newFakeGuard()
	ledger, err := NewLedger(newLedgerDB(t), guard)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	if _, err := ledger.CheckAndMark(ctx, "evt_retry"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := ledger.Forget(ctx, "evt_retry"); err != nil {
		t.Fatalf("forget: %v", err)
	}

	already, err := ledger.CheckAndMark(ctx, "evt_retry")
	if err != nil {
		t.Fatalf("re-check: %v", err)
	}
	if already {
		t.Fatal("forgotten event should be claimable again")
	}
}
