package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/makersrow/makersrow-backend/internal/events"
)

type fakeAdmitter struct {
	outcome events.Outcome
	err     error
	calls   int
	lastID  string
}

func (f *fakeAdmitter) Admit(_ context.Context, event *stripe.Event) (events.Outcome, error) {
	f.calls++
	f.lastID = event.ID
	return f.outcome, f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

func TestStripeWebhookAdmitsSignedEvent(t *testing.T) {
	payload, header, eventID := buildSignedEvent(t)
	admitter := &fakeAdmitter{outcome: events.OutcomeProcessed}
	handler := StripeWebhook(admitter, &fakeSigningClient{secret: "whsec_test"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if admitter.calls != 1 {
		t.Fatalf("expected admitter called once, got %d", admitter.calls)
	}
	if admitter.lastID != eventID {
		t.Fatalf("expected event %s, got %s", eventID, admitter.lastID)
	}

	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data["outcome"] != string(events.OutcomeProcessed) {
		t.Fatalf("unexpected outcome %q", body.Data["outcome"])
	}
}

func TestStripeWebhookRejectsInvalidSignature(t *testing.T) {
	payload, _, _ := buildSignedEvent(t)
	admitter := &fakeAdmitter{outcome: events.OutcomeProcessed}
	handler := StripeWebhook(admitter, &fakeSigningClient{secret: "whsec_test"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if admitter.calls != 0 {
		t.Fatalf("admitter should not be invoked on invalid signature")
	}
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	payload, _, _ := buildSignedEvent(t)
	admitter := &fakeAdmitter{}
	handler := StripeWebhook(admitter, &fakeSigningClient{secret: "whsec_test"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
	if admitter.calls != 0 {
		t.Fatalf("admitter should not be invoked without a signature")
	}
}

func TestStripeWebhookSurfacesAdmitterError(t *testing.T) {
	payload, header, _ := buildSignedEvent(t)
	admitter := &fakeAdmitter{err: errors.New("tenant unresolved")}
	handler := StripeWebhook(admitter, &fakeSigningClient{secret: "whsec_test"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when admission fails, got %d", rec.Code)
	}
}

func buildSignedEvent(t *testing.T) ([]byte, string, string) {
	t.Helper()

	session := &stripe.CheckoutSession{
		ID:          "cs_" + uuid.NewString(),
		AmountTotal: 2000,
		Currency:    stripe.CurrencyUSD,
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}

	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	header := buildStripeSignatureHeader(payload, "whsec_test", time.Now().Unix())
	return payload, header, event.ID
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
