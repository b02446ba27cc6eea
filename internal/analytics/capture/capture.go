package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/makersrow/makersrow-backend/internal/analytics/types"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Service publishes commerce analytics envelopes to Pub/Sub. Publishing is a
// side effect of webhook processing, so callers run it best effort and never
// let a publish failure block event admission.
type Service struct {
	pub  publisher
	logg *logger.Logger
}

// NewService creates an analytics capture service.
func NewService(pub publisher, logg *logger.Logger) (*Service, error) {
	if pub == nil {
		return nil, errors.New("analytics publisher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{pub: pub, logg: logg}, nil
}

// NewGCPPublisher adapts a Pub/Sub publisher to the capture interface.
func NewGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{inner: p}
}

// OrderPaid captures the commerce facts of a freshly materialized order.
func (s *Service) OrderPaid(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	payload := types.OrderPaidPayload{
		OrderID:           order.ID.String(),
		TenantID:          order.TenantID.String(),
		CheckoutSessionID: order.CheckoutSessionID,
		BuyerRef:          order.BuyerRef,
		Currency:          order.Currency.String(),
		TotalCents:        int64(order.TotalCents),
		GrossRevenue:      centsToAmount(int64(order.TotalCents)),
		LineItemCount:     len(order.Items),
	}
	return s.publish(ctx, types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventOrderPaid,
		TenantID:   order.TenantID.String(),
		OrderID:    order.ID.String(),
		OccurredAt: order.CreatedAt,
	}, payload)
}

// PaymentFailed captures a checkout payment that did not complete.
func (s *Service) PaymentFailed(ctx context.Context, payload types.PaymentFailedPayload, occurredAt time.Time) error {
	return s.publish(ctx, types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventPaymentFailed,
		OccurredAt: occurredAt,
	}, payload)
}

// SessionExpired captures a checkout session that lapsed without payment.
func (s *Service) SessionExpired(ctx context.Context, payload types.SessionExpiredPayload, occurredAt time.Time) error {
	return s.publish(ctx, types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventSessionExpired,
		OccurredAt: occurredAt,
	}, payload)
}

// RefundReconciled captures the refund aggregates after a recompute.
func (s *Service) RefundReconciled(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	payload := types.RefundReconciledPayload{
		OrderID:            order.ID.String(),
		TenantID:           order.TenantID.String(),
		OrderTotalCents:    int64(order.TotalCents),
		RefundedTotalCents: int64(order.RefundedTotalCents),
		RefundedTotal:      centsToAmount(int64(order.RefundedTotalCents)),
		OrderStatus:        order.Status.String(),
	}
	occurredAt := time.Now().UTC()
	if order.LastRefundAt != nil {
		occurredAt = *order.LastRefundAt
	}
	return s.publish(ctx, types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventRefundReconciled,
		TenantID:   order.TenantID.String(),
		OrderID:    order.ID.String(),
		OccurredAt: occurredAt,
	}, payload)
}

func (s *Service) publish(ctx context.Context, envelope types.Envelope, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}
	envelope.Payload = raw
	envelope.OccurredAt = envelope.OccurredAt.UTC()

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal analytics envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  string(envelope.EventType),
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s: %w", envelope.EventType, err)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
	}), "analytics event published")
	return nil
}

func centsToAmount(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.inner == nil {
		return nil
	}
	return p.inner.Publish(ctx, msg)
}
