package shipping

import (
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestResolvePrefersCollectedInformation(t *testing.T) {
	t.Parallel()

	src := Sources{
		Session: &stripe.CheckoutSession{
			CollectedInformation: &stripe.CheckoutSessionCollectedInformation{
				ShippingDetails: &stripe.CheckoutSessionCollectedInformationShippingDetails{
					Name: "Ava Chen",
					Address: &stripe.Address{
						Line1:      "12 Kiln St",
						City:       "Portland",
						State:      "OR",
						PostalCode: "97201",
						Country:    "US",
					},
				},
			},
		},
		PaymentIntent: &stripe.PaymentIntent{
			Shipping: &stripe.ShippingDetails{
				Name:    "Fallback Name",
				Address: &stripe.Address{Line1: "99 Other Ave", City: "Salem"},
			},
		},
	}

	addr := Resolve(src)
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Line1 != "12 Kiln St" || addr.Name != "Ava Chen" {
		t.Fatalf("unexpected address: %+v", addr)
	}
}

func TestResolveSkipsShapesWithoutStreetLine(t *testing.T) {
	t.Parallel()

	src := Sources{
		Session: &stripe.CheckoutSession{
			CollectedInformation: &stripe.CheckoutSessionCollectedInformation{
				ShippingDetails: &stripe.CheckoutSessionCollectedInformationShippingDetails{
					Name:    "Empty Street",
					Address: &stripe.Address{City: "Boise", Country: "US"},
				},
			},
		},
		Charge: &stripe.Charge{
			Shipping: &stripe.ShippingDetails{
				Name: "Charge Ship",
				Address: &stripe.Address{
					Line1:      "400 Loom Rd",
					City:       "Boise",
					State:      "ID",
					PostalCode: "83702",
					Country:    "US",
				},
			},
		},
	}

	addr := Resolve(src)
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Line1 != "400 Loom Rd" || addr.Name != "Charge Ship" {
		t.Fatalf("expected charge shipping to win, got %+v", addr)
	}
}

func TestResolveLegacyRawSessionShape(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"id": "cs_legacy",
		"shipping_details": {
			"name": "Legacy Buyer",
			"address": {
				"line1": "7 Wheel Way",
				"line2": "Unit 3",
				"city": "Asheville",
				"state": "NC",
				"postal_code": "28801",
				"country": "US"
			}
		}
	}`)

	addr := Resolve(Sources{RawSession: raw})
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Line1 != "7 Wheel Way" || addr.Line2 == nil || *addr.Line2 != "Unit 3" {
		t.Fatalf("unexpected address: %+v", addr)
	}
}

func TestResolveBillingDetailsLast(t *testing.T) {
	t.Parallel()

	src := Sources{
		Charge: &stripe.Charge{
			BillingDetails: &stripe.ChargeBillingDetails{
				Name: "Bill To",
				Address: &stripe.Address{
					Line1:      "88 Glaze Blvd",
					City:       "Austin",
					State:      "TX",
					PostalCode: "78701",
					Country:    "US",
				},
			},
		},
	}

	addr := Resolve(src)
	if addr == nil {
		t.Fatal("expected billing details fallback")
	}
	if addr.Line1 != "88 Glaze Blvd" {
		t.Fatalf("unexpected address: %+v", addr)
	}
}

func TestResolveReturnsNilWhenNothingQualifies(t *testing.T) {
	t.Parallel()

	if addr := Resolve(Sources{}); addr != nil {
		t.Fatalf("expected nil, got %+v", addr)
	}
	src := Sources{
		PaymentIntent: &stripe.PaymentIntent{
			Shipping: &stripe.ShippingDetails{Name: "No Street", Address: &stripe.Address{City: "Reno"}},
		},
	}
	if addr := Resolve(src); addr != nil {
		t.Fatalf("expected nil, got %+v", addr)
	}
}
