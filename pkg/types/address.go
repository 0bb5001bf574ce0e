package types

import "strings"

// Address is the buyer's selected delivery address, stored as jsonb on the
// order record. Validation happened upstream at purchase time.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// OneLine renders the address for notification and email merge fields.
func (a Address) OneLine() string {
	parts := []string{a.Line1}
	if a.Line2 != nil && strings.TrimSpace(*a.Line2) != "" {
		parts = append(parts, *a.Line2)
	}
	parts = append(parts, a.City, a.State, a.PostalCode)
	country := strings.TrimSpace(a.Country)
	if country != "" && country != "US" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}
