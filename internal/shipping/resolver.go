package shipping

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/makersrow/makersrow-backend/pkg/types"
)

// Sources holds every payload shape a shipping address has historically
// arrived in. Any field may be nil; extractors skip absent shapes.
type Sources struct {
	Session       *stripe.CheckoutSession
	RawSession    json.RawMessage
	PaymentIntent *stripe.PaymentIntent
	Charge        *stripe.Charge
}

type extractor func(Sources) *types.Address

// Extractors are tried in priority order; the first shape yielding a
// non-empty street line wins. Order matters: newer session shapes first,
// billing details last.
var extractors = []extractor{
	fromSessionCollected,
	fromRawSession,
	fromPaymentIntent,
	fromChargeShipping,
	fromChargeBilling,
}

// Resolve walks the extractor chain and returns the first complete address.
// It never synthesizes a partial address; callers get nil when no shape
// carries a street line.
func Resolve(src Sources) *types.Address {
	for _, extract := range extractors {
		if addr := extract(src); addr != nil && addr.HasStreetLine() {
			return addr
		}
	}
	return nil
}

func fromSessionCollected(src Sources) *types.Address {
	if src.Session == nil || src.Session.CollectedInformation == nil {
		return nil
	}
	details := src.Session.CollectedInformation.ShippingDetails
	if details == nil {
		return nil
	}
	return convert(details.Name, details.Address)
}

// rawShippingPayload covers session payloads predating the
// collected-information shape. Both the shipping_details and the even older
// shipping key are decoded.
type rawShippingPayload struct {
	ShippingDetails *rawShippingGroup `json:"shipping_details"`
	Shipping        *rawShippingGroup `json:"shipping"`
}

type rawShippingGroup struct {
	Name    string      `json:"name"`
	Address *rawAddress `json:"address"`
}

type rawAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func fromRawSession(src Sources) *types.Address {
	if len(src.RawSession) == 0 {
		return nil
	}
	var payload rawShippingPayload
	if err := json.Unmarshal(src.RawSession, &payload); err != nil {
		return nil
	}
	group := payload.ShippingDetails
	if group == nil {
		group = payload.Shipping
	}
	if group == nil || group.Address == nil {
		return nil
	}
	addr := &types.Address{
		Name:       group.Name,
		Line1:      group.Address.Line1,
		City:       group.Address.City,
		State:      group.Address.State,
		PostalCode: group.Address.PostalCode,
		Country:    group.Address.Country,
	}
	if group.Address.Line2 != "" {
		line2 := group.Address.Line2
		addr.Line2 = &line2
	}
	return addr
}

func fromPaymentIntent(src Sources) *types.Address {
	if src.PaymentIntent == nil || src.PaymentIntent.Shipping == nil {
		return nil
	}
	return convert(src.PaymentIntent.Shipping.Name, src.PaymentIntent.Shipping.Address)
}

func fromChargeShipping(src Sources) *types.Address {
	if src.Charge == nil || src.Charge.Shipping == nil {
		return nil
	}
	return convert(src.Charge.Shipping.Name, src.Charge.Shipping.Address)
}

func fromChargeBilling(src Sources) *types.Address {
	if src.Charge == nil || src.Charge.BillingDetails == nil {
		return nil
	}
	return convert(src.Charge.BillingDetails.Name, src.Charge.BillingDetails.Address)
}

func convert(name string, addr *stripe.Address) *types.Address {
	if addr == nil {
		return nil
	}
	out := &types.Address{
		Name:       name,
		Line1:      addr.Line1,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
	if addr.Line2 != "" {
		line2 := addr.Line2
		out.Line2 = &line2
	}
	return out
}
