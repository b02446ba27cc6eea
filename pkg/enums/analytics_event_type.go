package enums

import "fmt"

// AnalyticsEventType names the commerce events captured for analytics.
type AnalyticsEventType string

const (
	AnalyticsEventOrderPaid        AnalyticsEventType = "order_paid"
	AnalyticsEventPaymentFailed    AnalyticsEventType = "payment_failed"
	AnalyticsEventSessionExpired   AnalyticsEventType = "session_expired"
	AnalyticsEventRefundReconciled AnalyticsEventType = "refund_reconciled"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventOrderPaid,
	AnalyticsEventPaymentFailed,
	AnalyticsEventSessionExpired,
	AnalyticsEventRefundReconciled,
}

// String implements fmt.Stringer.
func (a AnalyticsEventType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AnalyticsEventType.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts raw input into an AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
