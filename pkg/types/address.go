package types

import "strings"

// Address is the shipping snapshot persisted on an order (jsonb).
type Address struct {
	Name       string  `json:"name,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// HasStreetLine reports whether the address carries a usable street line.
func (a Address) HasStreetLine() bool {
	return strings.TrimSpace(a.Line1) != ""
}
