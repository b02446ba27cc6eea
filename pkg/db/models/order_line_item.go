package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the snapshot of each purchased item.
type OrderLineItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	UnitAmountCents int       `gorm:"column:unit_amount_cents;not null"`
	Qty             int       `gorm:"column:qty;not null"`
	SubtotalCents   int       `gorm:"column:subtotal_cents;not null"`
	TaxCents        int       `gorm:"column:tax_cents;not null;default:0"`
	TotalCents      int       `gorm:"column:total_cents;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
