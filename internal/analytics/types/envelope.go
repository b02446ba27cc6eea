package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/makersrow/makersrow-backend/pkg/enums"
)

// Envelope is the canonical analytics Pub/Sub message body. It is fully
// self-contained so consumers never need to re-read provider state.
type Envelope struct {
	EventID    string                   `json:"event_id"`
	EventType  enums.AnalyticsEventType `json:"event_type"`
	TenantID   string                   `json:"tenant_id,omitempty"`
	OrderID    string                   `json:"order_id,omitempty"`
	OccurredAt time.Time                `json:"occurred_at"`
	Payload    json.RawMessage          `json:"payload,omitempty"`
}

// PayloadMap converts the raw payload to a map for keyed access.
func (e Envelope) PayloadMap() (map[string]any, error) {
	if len(bytes.TrimSpace(e.Payload)) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
