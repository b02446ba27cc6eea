package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

type refundRepository interface {
	FindByStripeID(ctx context.Context, stripeRefundID string) (*models.Refund, error)
	Update(ctx context.Context, record *models.Refund) error
}

type orderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
	FindByChargeID(ctx context.Context, chargeID string) (*models.Order, error)
	UpdateRefundAggregates(ctx context.Context, orderID uuid.UUID, refundedTotalCents int, lastRefundAt *time.Time, status enums.OrderStatus) error
}

type tenantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type refundLister interface {
	ListRefunds(ctx context.Context, paymentIntentID, account string) ([]*stripe.Refund, error)
}

// Engine reconciles refund lifecycle events. Refund events arrive out of
// order and repeatedly; every reconciliation recomputes aggregates from the
// provider's full refund list, so replays converge.
type Engine struct {
	refunds refundRepository
	orders  orderRepository
	tenants tenantFinder
	lister  refundLister
	logg    *logger.Logger
}

func NewEngine(refundRepo refundRepository, orderRepo orderRepository, tenants tenantFinder, lister refundLister, logg *logger.Logger) (*Engine, error) {
	if refundRepo == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tenants == nil {
		return nil, fmt.Errorf("tenant finder required")
	}
	if lister == nil {
		return nil, fmt.Errorf("refund lister required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		refunds: refundRepo,
		orders:  orderRepo,
		tenants: tenants,
		lister:  lister,
		logg:    logg,
	}, nil
}

// Reconcile syncs the local refund mirror, resolves the owning order, and
// recomputes that order's refund aggregates. An unresolvable refund is
// logged and treated as terminal success; there is nothing to retry toward.
// The reconciled order is returned with its recomputed aggregates, nil when
// no order could be resolved.
func (e *Engine) Reconcile(ctx context.Context, refund *stripe.Refund) (*models.Order, error) {
	if refund == nil || refund.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund payload required")
	}

	order, err := e.resolveOrder(ctx, refund)
	if err != nil {
		return nil, err
	}
	if err := e.syncLocalStatus(ctx, refund, order); err != nil {
		return nil, err
	}
	if order == nil {
		e.logg.Warn(ctx, fmt.Sprintf("no order resolved for refund %s, skipping recompute", refund.ID))
		return nil, nil
	}

	// pending refunds count while one is in flight so the order reflects
	// money already spoken for
	includePending := refund.Status == stripe.RefundStatusPending || refund.Status == stripe.RefundStatusRequiresAction
	if err := e.Recompute(ctx, order, includePending); err != nil {
		return nil, err
	}
	return order, nil
}

// ReconcileCharge handles charge-level refund notifications, which carry no
// standalone refund object. The charge fires once a refund has settled, so
// pending refunds are excluded from the recompute.
func (e *Engine) ReconcileCharge(ctx context.Context, charge *stripe.Charge) (*models.Order, error) {
	if charge == nil || charge.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge payload required")
	}

	var order *models.Order
	if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
		found, err := e.orders.FindByPaymentIntentID(ctx, charge.PaymentIntent.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by payment intent")
		}
		order = found
	}
	if order == nil {
		found, err := e.orders.FindByChargeID(ctx, charge.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by charge")
		}
		order = found
	}
	if order == nil {
		e.logg.Warn(ctx, fmt.Sprintf("no order resolved for refunded charge %s, skipping recompute", charge.ID))
		return nil, nil
	}

	if err := e.Recompute(ctx, order, false); err != nil {
		return nil, err
	}
	return order, nil
}

// resolveOrder tries the local refund mirror first, then the payment intent,
// then the charge. A miss on all three returns nil with no error.
func (e *Engine) resolveOrder(ctx context.Context, refund *stripe.Refund) (*models.Order, error) {
	record, err := e.refunds.FindByStripeID(ctx, refund.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund record")
	}
	if record != nil && record.OrderID != nil {
		order, err := e.orders.FindByID(ctx, *record.OrderID)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for refund record")
		}
	}

	if refund.PaymentIntent != nil && refund.PaymentIntent.ID != "" {
		order, err := e.orders.FindByPaymentIntentID(ctx, refund.PaymentIntent.ID)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by payment intent")
		}
	}

	if refund.Charge != nil && refund.Charge.ID != "" {
		order, err := e.orders.FindByChargeID(ctx, refund.Charge.ID)
		if err == nil {
			return order, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by charge")
		}
	}

	return nil, nil
}

// syncLocalStatus mirrors the provider status onto the local record and
// backfills the order association when it was unknown at issuance time.
// A missing record is an accepted no-op.
func (e *Engine) syncLocalStatus(ctx context.Context, refund *stripe.Refund, order *models.Order) error {
	record, err := e.refunds.FindByStripeID(ctx, refund.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund record for sync")
	}

	status, parseErr := enums.ParseRefundStatus(string(refund.Status))
	if parseErr != nil {
		// unknown provider statuses settle on a later event
		status = enums.RefundStatusPending
	}

	changed := false
	if record.Status != status {
		record.Status = status
		changed = true
	}
	if record.OrderID == nil && order != nil {
		orderID := order.ID
		record.OrderID = &orderID
		changed = true
	}
	if !changed {
		return nil
	}
	if err := e.refunds.Update(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync refund status")
	}
	return nil
}

// Recompute derives the order's refund aggregates purely from the provider's
// full refund list. It is never incremental: replaying any subset of refund
// events lands on the same totals.
func (e *Engine) Recompute(ctx context.Context, order *models.Order, includePending bool) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required for recompute")
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		e.logg.Warn(ctx, fmt.Sprintf("order %s has no payment intent, skipping refund recompute", order.ID))
		return nil
	}

	account, err := e.connectedAccount(ctx, order.TenantID)
	if err != nil {
		return err
	}

	refunds, err := e.lister.ListRefunds(ctx, *order.PaymentIntentID, account)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider refunds")
	}

	total := 0
	var last *time.Time
	for _, refund := range refunds {
		if !countsToward(refund.Status, includePending) {
			continue
		}
		total += int(refund.Amount)
		if refund.Created > 0 {
			at := time.Unix(refund.Created, 0).UTC()
			if last == nil || at.After(*last) {
				last = &at
			}
		}
	}

	status := order.Status
	switch {
	case order.TotalCents > 0 && total >= order.TotalCents:
		status = enums.OrderStatusRefunded
	case total > 0:
		status = enums.OrderStatusPartiallyRefunded
	}

	if err := e.orders.UpdateRefundAggregates(ctx, order.ID, total, last, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write refund aggregates")
	}

	order.RefundedTotalCents = total
	order.Status = status
	if last != nil {
		order.LastRefundAt = last
	}
	return nil
}

func (e *Engine) connectedAccount(ctx context.Context, tenantID uuid.UUID) (string, error) {
	tenant, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant for refund scope")
	}
	if tenant.StripeAccountID == nil {
		return "", nil
	}
	return *tenant.StripeAccountID, nil
}

func countsToward(status stripe.RefundStatus, includePending bool) bool {
	switch status {
	case stripe.RefundStatusSucceeded:
		return true
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return includePending
	default:
		return false
	}
}
