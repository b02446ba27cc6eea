package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/makersrow/makersrow-backend/api/responses"
	"github.com/makersrow/makersrow-backend/internal/events"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// Stripe caps event payloads well below this; anything larger is not a
// webhook we want to buffer.
const maxPayloadBytes = 1 << 20

type eventAdmitter interface {
	Admit(ctx context.Context, event *stripe.Event) (events.Outcome, error)
}

type signingClient interface {
	SigningSecret() string
}

// StripeWebhook verifies the provider signature and hands the event to the
// admitter. Everything behind the signature check is the admitter's job:
// allowlist, dedup, dispatch, and terminal marking.
func StripeWebhook(admitter eventAdmitter, client signingClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if admitter == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event admitter unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		outcome, err := admitter.Admit(ctx, &event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s admitted: %s", event.ID, outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
