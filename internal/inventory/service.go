package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// Reason classifies why a decrement could not be applied.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonNotTracked   Reason = "not_tracked"
	ReasonInsufficient Reason = "insufficient"
	ReasonNotSupported Reason = "not_supported"
)

// Failure is the typed outcome for a product whose stock could not be
// decremented. It is reported, never used to abort order processing.
type Failure struct {
	ProductID uuid.UUID
	Reason    Reason
}

func (f *Failure) Error() string {
	return fmt.Sprintf("inventory decrement failed for %s: %s", f.ProductID, f.Reason)
}

// AsFailure unwraps a typed decrement failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// DecrementResult reports the stock level after a successful decrement.
type DecrementResult struct {
	After    int
	Archived bool
}

// BatchOutcome is the per-product result of DecrementBatch. Exactly one of
// Result and Failure is set.
type BatchOutcome struct {
	ProductID uuid.UUID
	Result    *DecrementResult
	Failure   *Failure
}

type failureCounter interface {
	IncInventoryFailure(reason string)
}

const (
	insufficientRetries = 2
	insufficientBackoff = 25 * time.Millisecond
)

// Ledger owns all stock mutations. The conditional UPDATE guard is the sole
// concurrency control; there is no application-level lock.
type Ledger struct {
	db          *gorm.DB
	logg        *logger.Logger
	metrics     failureCounter
	conditional bool
}

// NewLedger builds the inventory ledger. metrics may be nil.
func NewLedger(db *gorm.DB, logg *logger.Logger, metrics failureCounter) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Ledger{
		db:          db,
		logg:        logg,
		metrics:     metrics,
		conditional: true,
	}, nil
}

// WithoutConditionalUpdates switches the ledger to the read-validate-write
// fallback path. Only exists for stores lacking the conditional primitive.
func (l *Ledger) WithoutConditionalUpdates() *Ledger {
	copied := *l
	copied.conditional = false
	return &copied
}

// Decrement atomically reduces stock for one product. Zero stock after the
// decrement archives the item when autoArchive is set; archiving is a
// separate idempotent write, safe because zero stock already stops sales.
func (l *Ledger) Decrement(ctx context.Context, productID uuid.UUID, qty int, autoArchive bool) (*DecrementResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, &Failure{ProductID: productID, Reason: ReasonNotSupported}
	}

	var after int
	var err error
	if l.conditional {
		after, err = l.decrementConditional(ctx, productID, qty)
	} else {
		after, err = l.decrementReadModifyWrite(ctx, productID, qty)
	}
	if err != nil {
		return nil, err
	}

	result := &DecrementResult{After: after}
	if after == 0 && autoArchive {
		archived, archiveErr := l.archive(ctx, productID)
		if archiveErr != nil {
			return nil, archiveErr
		}
		result.Archived = archived
	}
	return result, nil
}

func (l *Ledger) decrementConditional(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	var after int
	res := l.db.WithContext(ctx).Raw(`
		UPDATE inventory_items
		SET stock_qty = stock_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND tracked = ? AND stock_qty >= ?
		RETURNING stock_qty
	`, qty, productID, true, qty).Scan(&after)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 0 {
		return 0, l.diagnose(ctx, productID)
	}
	return after, nil
}

func (l *Ledger) decrementReadModifyWrite(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	var item models.InventoryItem
	if err := l.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, &Failure{ProductID: productID, Reason: ReasonNotFound}
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	if !item.Tracked {
		return 0, &Failure{ProductID: productID, Reason: ReasonNotTracked}
	}
	if item.StockQty < qty {
		return 0, &Failure{ProductID: productID, Reason: ReasonInsufficient}
	}

	next := item.StockQty - qty
	res := l.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET stock_qty = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND stock_qty = ?
	`, next, productID, item.StockQty)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "write inventory quantity")
	}
	if res.RowsAffected == 0 {
		// lost the race against a concurrent writer
		return 0, &Failure{ProductID: productID, Reason: ReasonInsufficient}
	}
	return next, nil
}

func (l *Ledger) diagnose(ctx context.Context, productID uuid.UUID) error {
	var item models.InventoryItem
	if err := l.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &Failure{ProductID: productID, Reason: ReasonNotFound}
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "diagnose inventory miss")
	}
	if !item.Tracked {
		return &Failure{ProductID: productID, Reason: ReasonNotTracked}
	}
	return &Failure{ProductID: productID, Reason: ReasonInsufficient}
}

func (l *Ledger) archive(ctx context.Context, productID uuid.UUID) (bool, error) {
	res := l.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET archived = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND archived = ?
	`, true, productID, false)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "archive inventory item")
	}
	return res.RowsAffected > 0, nil
}

// DecrementBatch applies decrements for every product in the map. Individual
// typed failures are collected into the outcomes and never abort the batch;
// only storage errors are aggregated into the returned error. Insufficient
// outcomes get a short bounded retry to tolerate a concurrent restock.
func (l *Ledger) DecrementBatch(ctx context.Context, qtyByProduct map[uuid.UUID]int, autoArchive bool) ([]BatchOutcome, error) {
	ids := make([]uuid.UUID, 0, len(qtyByProduct))
	for id := range qtyByProduct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	outcomes := make([]BatchOutcome, 0, len(ids))
	var combined error

	for _, productID := range ids {
		qty := qtyByProduct[productID]
		outcome := BatchOutcome{ProductID: productID}

		backoff := retry.WithMaxRetries(insufficientRetries, retry.NewConstant(insufficientBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			result, derr := l.Decrement(ctx, productID, qty, autoArchive)
			if derr != nil {
				if failure, ok := AsFailure(derr); ok && failure.Reason == ReasonInsufficient {
					return retry.RetryableError(derr)
				}
				return derr
			}
			outcome.Result = result
			return nil
		})
		if err != nil {
			if failure, ok := AsFailure(err); ok {
				outcome.Failure = failure
				l.reportFailure(ctx, failure, qty)
			} else {
				combined = multierr.Append(combined, err)
				l.logg.Error(ctx, fmt.Sprintf("inventory decrement errored for %s", productID), err)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, combined
}

func (l *Ledger) reportFailure(ctx context.Context, failure *Failure, qty int) {
	l.logg.Warn(ctx, fmt.Sprintf("inventory decrement %s: product=%s qty=%d", failure.Reason, failure.ProductID, qty))
	if l.metrics != nil {
		l.metrics.IncInventoryFailure(string(failure.Reason))
	}
}
