package router

import (
	"context"
	"fmt"

	"github.com/makersrow/makersrow-backend/internal/analytics/types"
	analyticswriter "github.com/makersrow/makersrow-backend/internal/analytics/writer"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

type orderPaidHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderPaidHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderPaidHandler{writer: writer, logg: logg}
}

func (h *orderPaidHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*types.OrderPaidPayload)
	if !ok {
		return fmt.Errorf("invalid payload for order_paid")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":  envelope.EventType,
		"order_id":    event.OrderID,
		"total_cents": event.TotalCents,
	})

	row, err := buildCommerceRow(envelope, rowFacts{
		orderID:           event.OrderID,
		tenantID:          event.TenantID,
		checkoutSessionID: event.CheckoutSessionID,
		currency:          event.Currency,
		grossCents:        int64Ptr(event.TotalCents),
		refundCents:       int64Ptr(0),
		netCents:          int64Ptr(event.TotalCents),
	}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commerce row", err)
		return err
	}

	if err := h.writer.InsertCommerce(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commerce row", err)
		return err
	}

	h.logg.Info(logCtx, "order_paid handler inserted commerce row")
	return nil
}

type paymentFailedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPaymentFailedHandler(writer Writer, logg *logger.Logger) Handler {
	return &paymentFailedHandler{writer: writer, logg: logg}
}

func (h *paymentFailedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*types.PaymentFailedPayload)
	if !ok {
		return fmt.Errorf("invalid payload for payment_failed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":          envelope.EventType,
		"checkout_session_id": event.CheckoutSessionID,
		"failure_code":        event.FailureCode,
	})

	row, err := buildCommerceRow(envelope, rowFacts{
		checkoutSessionID: event.CheckoutSessionID,
		currency:          event.Currency,
	}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commerce row", err)
		return err
	}

	if err := h.writer.InsertCommerce(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commerce row", err)
		return err
	}

	h.logg.Info(logCtx, "payment_failed handler inserted commerce row")
	return nil
}

type sessionExpiredHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newSessionExpiredHandler(writer Writer, logg *logger.Logger) Handler {
	return &sessionExpiredHandler{writer: writer, logg: logg}
}

func (h *sessionExpiredHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*types.SessionExpiredPayload)
	if !ok {
		return fmt.Errorf("invalid payload for session_expired")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":          envelope.EventType,
		"checkout_session_id": event.CheckoutSessionID,
	})

	row, err := buildCommerceRow(envelope, rowFacts{
		checkoutSessionID: event.CheckoutSessionID,
		currency:          event.Currency,
	}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commerce row", err)
		return err
	}

	if err := h.writer.InsertCommerce(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commerce row", err)
		return err
	}

	h.logg.Info(logCtx, "session_expired handler inserted commerce row")
	return nil
}

type refundReconciledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newRefundReconciledHandler(writer Writer, logg *logger.Logger) Handler {
	return &refundReconciledHandler{writer: writer, logg: logg}
}

func (h *refundReconciledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*types.RefundReconciledPayload)
	if !ok {
		return fmt.Errorf("invalid payload for refund_reconciled")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":           envelope.EventType,
		"order_id":             event.OrderID,
		"refunded_total_cents": event.RefundedTotalCents,
	})

	row, err := buildCommerceRow(envelope, rowFacts{
		orderID:     event.OrderID,
		tenantID:    event.TenantID,
		grossCents:  int64Ptr(event.OrderTotalCents),
		refundCents: int64Ptr(event.RefundedTotalCents),
		netCents:    int64Ptr(event.OrderTotalCents - event.RefundedTotalCents),
	}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commerce row", err)
		return err
	}

	if err := h.writer.InsertCommerce(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commerce row", err)
		return err
	}

	h.logg.Info(logCtx, "refund_reconciled handler inserted commerce row")
	return nil
}

type rowFacts struct {
	orderID           string
	tenantID          string
	checkoutSessionID string
	currency          string
	grossCents        *int64
	refundCents       *int64
	netCents          *int64
}

func buildCommerceRow(envelope types.Envelope, facts rowFacts, payload any) (types.CommerceEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.CommerceEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	orderID := facts.orderID
	if orderID == "" {
		orderID = envelope.OrderID
	}
	tenantID := facts.tenantID
	if tenantID == "" {
		tenantID = envelope.TenantID
	}

	return types.CommerceEventRow{
		EventID:           envelope.EventID,
		EventType:         string(envelope.EventType),
		OccurredAt:        envelope.OccurredAt.UTC(),
		TenantID:          stringPtr(tenantID),
		OrderID:           stringPtr(orderID),
		CheckoutSessionID: stringPtr(facts.checkoutSessionID),
		Currency:          stringPtr(facts.currency),
		GrossRevenueCents: facts.grossCents,
		RefundCents:       facts.refundCents,
		NetRevenueCents:   facts.netCents,
		Payload:           payloadJSON,
	}, nil
}
