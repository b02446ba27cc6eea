package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/makersrow/makersrow-backend/pkg/enums"
)

// Tenant is a marketplace seller with a connected payment-provider account.
type Tenant struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name               string             `gorm:"column:name;not null"`
	StripeAccountID    *string            `gorm:"column:stripe_account_id;uniqueIndex"`
	ChargesEnabled     bool               `gorm:"column:charges_enabled;not null;default:false"`
	PayoutsEnabled     bool               `gorm:"column:payouts_enabled;not null;default:false"`
	Status             enums.TenantStatus `gorm:"column:status;not null;default:'active'"`
	NotificationEmails []string           `gorm:"column:notification_emails;type:jsonb;serializer:json"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
