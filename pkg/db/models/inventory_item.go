package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks the sellable stock count per product.
// StockQty never goes below zero; Archived flips true once and stays.
type InventoryItem struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StockQty  int       `gorm:"column:stock_qty;not null;default:0"`
	Tracked   bool      `gorm:"column:tracked;not null"`
	Archived  bool      `gorm:"column:archived;not null;default:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
