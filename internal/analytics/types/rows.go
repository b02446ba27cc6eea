package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// CommerceEventRow mirrors the commerce_events BigQuery schema.
type CommerceEventRow struct {
	EventID           string             `bigquery:"event_id"`
	EventType         string             `bigquery:"event_type"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	TenantID          *string            `bigquery:"tenant_id"`
	OrderID           *string            `bigquery:"order_id"`
	CheckoutSessionID *string            `bigquery:"checkout_session_id"`
	Currency          *string            `bigquery:"currency"`
	GrossRevenueCents *int64             `bigquery:"gross_revenue_cents"`
	RefundCents       *int64             `bigquery:"refund_cents"`
	NetRevenueCents   *int64             `bigquery:"net_revenue_cents"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}
