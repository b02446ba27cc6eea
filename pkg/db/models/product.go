package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog listing owned by a tenant.
type Product struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name            string         `gorm:"column:name;not null"`
	PriceCents      int            `gorm:"column:price_cents;not null"`
	Active          bool           `gorm:"column:is_active;not null"`
	StripeProductID *string        `gorm:"column:stripe_product_id;index"`
	Inventory       *InventoryItem `gorm:"foreignKey:ProductID"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
