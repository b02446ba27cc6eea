package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	analyticstypes "github.com/makersrow/makersrow-backend/internal/analytics/types"
	"github.com/makersrow/makersrow-backend/internal/dispatch"
	"github.com/makersrow/makersrow-backend/pkg/config"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/email"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

type templateMailer interface {
	SendTemplate(ctx context.Context, msg email.TemplateMessage) error
}

type analyticsCapture interface {
	OrderPaid(ctx context.Context, order *models.Order) error
	PaymentFailed(ctx context.Context, payload analyticstypes.PaymentFailedPayload, occurredAt time.Time) error
	SessionExpired(ctx context.Context, payload analyticstypes.SessionExpiredPayload, occurredAt time.Time) error
	RefundReconciled(ctx context.Context, order *models.Order) error
}

type tenantLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// Notifier fans out the side effects of admitted events: transactional mail
// and analytics capture. Every call goes through the dispatch runner, so a
// failing or panicking side effect never reaches the webhook response path.
type Notifier struct {
	runner  *dispatch.Runner
	mailer  templateMailer
	capture analyticsCapture
	tenants tenantLoader
	email   config.SendgridConfig
	flags   config.FeatureFlagsConfig
	logg    *logger.Logger
}

// NewNotifier builds the side-effect fan-out. Mailer and capture may be nil
// when the corresponding integration is not configured; the feature flags
// then gate the calls off.
func NewNotifier(
	runner *dispatch.Runner,
	mailer templateMailer,
	capture analyticsCapture,
	tenants tenantLoader,
	emailCfg config.SendgridConfig,
	flags config.FeatureFlagsConfig,
	logg *logger.Logger,
) (*Notifier, error) {
	if runner == nil {
		return nil, errors.New("dispatch runner is required")
	}
	if tenants == nil {
		return nil, errors.New("tenant loader is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Notifier{
		runner:  runner,
		mailer:  mailer,
		capture: capture,
		tenants: tenants,
		email:   emailCfg,
		flags:   flags,
		logg:    logg,
	}, nil
}

// OrderCompleted sends the buyer confirmation, fans out seller
// notifications, and captures the order_paid analytics event.
func (n *Notifier) OrderCompleted(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}

	n.runner.Run(ctx, "buyer confirmation email", n.emailsEnabled(), func(ctx context.Context) error {
		if order.BuyerEmail == nil || *order.BuyerEmail == "" {
			n.logg.Info(ctx, fmt.Sprintf("order %s has no buyer email, skipping confirmation", order.ID))
			return nil
		}
		return n.mailer.SendTemplate(ctx, email.TemplateMessage{
			TemplateID: n.email.OrderConfirmationTmpl,
			Recipients: []string{*order.BuyerEmail},
			Data:       orderTemplateData(order),
		})
	})

	n.runner.Run(ctx, "seller notification fan-out", n.emailsEnabled(), func(ctx context.Context) error {
		tenant, err := n.tenants.FindByID(ctx, order.TenantID)
		if err != nil {
			return fmt.Errorf("load tenant %s: %w", order.TenantID, err)
		}
		recipients := dispatch.NormalizeRecipients(tenant.NotificationEmails)
		if len(recipients) == 0 {
			n.logg.Info(ctx, fmt.Sprintf("tenant %s has no notification emails", tenant.ID))
			return nil
		}
		return n.mailer.SendTemplate(ctx, email.TemplateMessage{
			TemplateID: n.email.SellerNotificationTmpl,
			Recipients: recipients,
			Data:       orderTemplateData(order),
		})
	})

	n.runner.Run(ctx, "order_paid analytics capture", n.captureEnabled(), func(ctx context.Context) error {
		return n.capture.OrderPaid(ctx, order)
	})
}

// PaymentFailed captures the payment_failed analytics event.
func (n *Notifier) PaymentFailed(ctx context.Context, payload analyticstypes.PaymentFailedPayload, occurredAt time.Time) {
	n.runner.Run(ctx, "payment_failed analytics capture", n.captureEnabled(), func(ctx context.Context) error {
		return n.capture.PaymentFailed(ctx, payload, occurredAt)
	})
}

// SessionExpired captures the session_expired analytics event.
func (n *Notifier) SessionExpired(ctx context.Context, payload analyticstypes.SessionExpiredPayload, occurredAt time.Time) {
	n.runner.Run(ctx, "session_expired analytics capture", n.captureEnabled(), func(ctx context.Context) error {
		return n.capture.SessionExpired(ctx, payload, occurredAt)
	})
}

// RefundReconciled captures the refund_reconciled analytics event.
func (n *Notifier) RefundReconciled(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	n.runner.Run(ctx, "refund_reconciled analytics capture", n.captureEnabled(), func(ctx context.Context) error {
		return n.capture.RefundReconciled(ctx, order)
	})
}

func (n *Notifier) emailsEnabled() bool {
	return n.flags.SendEmails && n.mailer != nil
}

func (n *Notifier) captureEnabled() bool {
	return n.flags.Capture && n.capture != nil
}

func orderTemplateData(order *models.Order) map[string]any {
	return map[string]any{
		"order_id":    order.ID.String(),
		"buyer_ref":   order.BuyerRef,
		"currency":    order.Currency.String(),
		"total_cents": order.TotalCents,
		"item_count":  len(order.Items),
	}
}
