package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
)

// Resources retrieves provider objects scoped to a seller's connected
// account. Webhook payloads carry partial objects; these fetches return the
// full resource when the pipeline needs expanded fields.
type Resources struct{}

// NewResources wraps the initialized Stripe client for scoped retrieval.
func NewResources(api *Client) *Resources {
	if api == nil {
		return nil
	}
	return &Resources{}
}

// GetCheckoutSession fetches a checkout session on the connected account.
func (r *Resources) GetCheckoutSession(ctx context.Context, id, account string, expand ...string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	applyScope(&params.Params, account)
	for _, field := range expand {
		params.AddExpand(field)
	}
	return session.Get(id, params)
}

// GetPaymentIntent fetches a payment intent on the connected account.
func (r *Resources) GetPaymentIntent(ctx context.Context, id, account string, expand ...string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	applyScope(&params.Params, account)
	for _, field := range expand {
		params.AddExpand(field)
	}
	return paymentintent.Get(id, params)
}

// GetCharge fetches a charge on the connected account.
func (r *Resources) GetCharge(ctx context.Context, id, account string) (*stripe.Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	applyScope(&params.Params, account)
	return charge.Get(id, params)
}

// ListRefunds returns every refund recorded against the payment intent.
func (r *Resources) ListRefunds(ctx context.Context, paymentIntentID, account string) ([]*stripe.Refund, error) {
	params := &stripe.RefundListParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	if account != "" {
		params.SetStripeAccount(account)
	}

	var out []*stripe.Refund
	iter := refund.List(params)
	for iter.Next() {
		out = append(out, iter.Refund())
	}
	return out, iter.Err()
}

func applyScope(params *stripe.Params, account string) {
	if account != "" {
		params.SetStripeAccount(account)
	}
}
