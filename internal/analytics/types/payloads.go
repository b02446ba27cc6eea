package types

// OrderPaidPayload carries the commerce facts for a materialized order.
type OrderPaidPayload struct {
	OrderID           string `json:"order_id"`
	TenantID          string `json:"tenant_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	BuyerRef          string `json:"buyer_ref,omitempty"`
	Currency          string `json:"currency"`
	TotalCents        int64  `json:"total_cents"`
	GrossRevenue      string `json:"gross_revenue"`
	LineItemCount     int    `json:"line_item_count"`
}

// PaymentFailedPayload records a checkout payment that did not complete.
type PaymentFailedPayload struct {
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	FailureCode       string `json:"failure_code,omitempty"`
	FailureMessage    string `json:"failure_message,omitempty"`
	Currency          string `json:"currency,omitempty"`
	AmountCents       int64  `json:"amount_cents"`
}

// SessionExpiredPayload records a checkout session that lapsed unpaid.
type SessionExpiredPayload struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	Currency          string `json:"currency,omitempty"`
	AmountCents       int64  `json:"amount_cents"`
}

// RefundReconciledPayload records the aggregates after a refund recompute.
type RefundReconciledPayload struct {
	OrderID            string `json:"order_id"`
	TenantID           string `json:"tenant_id"`
	OrderTotalCents    int64  `json:"order_total_cents"`
	RefundedTotalCents int64  `json:"refunded_total_cents"`
	RefundedTotal      string `json:"refunded_total"`
	OrderStatus        string `json:"order_status"`
}
