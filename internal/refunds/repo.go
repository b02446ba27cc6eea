package refunds

import (
	"context"

	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
)

// Repository syncs locally mirrored refund records. Records are created by
// the refund-issuance path; this subsystem only updates them.
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

func (r *Repository) FindByStripeID(ctx context.Context, stripeRefundID string) (*models.Refund, error) {
	var record models.Refund
	if err := r.db.WithContext(ctx).First(&record, "stripe_refund_id = ?", stripeRefundID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) Update(ctx context.Context, record *models.Refund) error {
	return r.db.WithContext(ctx).Save(record).Error
}
