package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
)

// Repository provides order persistence. Creation relies on the unique
// indexes on checkout_session_id and event_id, surfaced as typed conflicts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(gormDB *gorm.DB) *Repository {
	return &Repository{db: gormDB}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "checkout_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByEventID(ctx context.Context, eventID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "payment_intent_id = ?", paymentIntentID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByChargeID(ctx context.Context, chargeID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "charge_id = ?", chargeID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts the order with its line items. Unique violations come back
// as a typed ConflictError for the caller to reclassify.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return db.AsConflict(err)
	}
	return nil
}

// MarkInventoryAdjusted sets the adjustment timestamp exactly once; a second
// call is a no-op because of the IS NULL guard.
func (r *Repository) MarkInventoryAdjusted(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND inventory_adjusted_at IS NULL", orderID).
		Update("inventory_adjusted_at", at).Error
}

// UpdateRefundAggregates writes the recomputed refund totals and status.
func (r *Repository) UpdateRefundAggregates(ctx context.Context, orderID uuid.UUID, refundedTotalCents int, lastRefundAt *time.Time, status enums.OrderStatus) error {
	updates := map[string]any{
		"refunded_total_cents": refundedTotalCents,
		"status":               status,
	}
	if lastRefundAt != nil {
		updates["last_refund_at"] = *lastRefundAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
