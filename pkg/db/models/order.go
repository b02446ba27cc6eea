package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/makersrow/makersrow-backend/pkg/enums"
	"github.com/makersrow/makersrow-backend/pkg/types"
)

// Order is the aggregate produced from a completed checkout. The unique
// indexes on the session and event ids make creation idempotent under
// at-least-once event delivery.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerRef            string            `gorm:"column:buyer_ref;not null"`
	BuyerEmail          *string           `gorm:"column:buyer_email"`
	TenantID            uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	Currency            enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	TotalCents          int               `gorm:"column:total_cents;not null"`
	Status              enums.OrderStatus `gorm:"column:status;not null;default:'paid'"`
	CheckoutSessionID   string            `gorm:"column:checkout_session_id;not null;uniqueIndex"`
	EventID             string            `gorm:"column:event_id;not null;uniqueIndex"`
	PaymentIntentID     *string           `gorm:"column:payment_intent_id;index"`
	ChargeID            *string           `gorm:"column:charge_id;index"`
	InventoryAdjustedAt *time.Time        `gorm:"column:inventory_adjusted_at"`
	RefundedTotalCents  int               `gorm:"column:refunded_total_cents;not null;default:0"`
	LastRefundAt        *time.Time        `gorm:"column:last_refund_at"`
	ShippingAddress     *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items               []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
