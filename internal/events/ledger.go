package events

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
)

const webhookConsumerName = "webhooks"

type fastGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Ledger is the idempotency record for webhook events: a Redis SETNX fast
// path backed by a durable processed_events row. The fast path catches most
// duplicates cheaply; the durable row survives Redis eviction.
type Ledger struct {
	db   *gorm.DB
	fast fastGuard
}

// NewLedger builds the two-tier idempotency ledger.
func NewLedger(gormDB *gorm.DB, fast fastGuard) (*Ledger, error) {
	if gormDB == nil {
		return nil, errors.New("database handle is required")
	}
	if fast == nil {
		return nil, errors.New("fast guard is required")
	}
	return &Ledger{db: gormDB, fast: fast}, nil
}

// CheckAndMark reports whether the event was seen before and claims it in the
// fast path if not. A fresh fast-path claim still consults the durable table
// so an evicted Redis key cannot cause reprocessing.
func (l *Ledger) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	already, err := l.fast.CheckAndMarkProcessed(ctx, webhookConsumerName, eventID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency fast path")
	}
	if already {
		return true, nil
	}
	return l.HasProcessed(ctx, eventID)
}

// HasProcessed reports whether a durable processed marker exists.
func (l *Ledger) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read processed marker")
	}
	return count > 0, nil
}

// MarkProcessed writes the durable marker. Re-marking an already marked
// event is a no-op.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	marker := models.ProcessedEvent{EventID: eventID, EventType: eventType}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&marker).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write processed marker")
	}
	return nil
}

// Forget releases the fast-path claim so a failed event can be retried on
// redelivery. The durable marker, if any, is left in place.
func (l *Ledger) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return l.fast.Delete(ctx, webhookConsumerName, eventID)
}
