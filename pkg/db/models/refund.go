package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/makersrow/makersrow-backend/pkg/enums"
)

// Refund mirrors a provider refund. Status is a straight copy of the latest
// provider status; there is no local state machine.
type Refund struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StripeRefundID  string             `gorm:"column:stripe_refund_id;not null;uniqueIndex"`
	OrderID         *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	AmountCents     int                `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency     `gorm:"column:currency;not null;default:'USD'"`
	Status          enums.RefundStatus `gorm:"column:status;not null;default:'pending'"`
	PaymentIntentID *string            `gorm:"column:payment_intent_id;index"`
	ChargeID        *string            `gorm:"column:charge_id;index"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
