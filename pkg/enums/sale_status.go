package enums

import "fmt"

// SaleStatus tracks fulfillment progress for a sale and its mirrored records.
type SaleStatus string

const (
	SaleStatusPendingShipping        SaleStatus = "pending_shipping"
	SaleStatusPendingSwapSpotArrival SaleStatus = "pending_swapspot_arrival"
	SaleStatusLabelCreated           SaleStatus = "label_created"
	SaleStatusShipped                SaleStatus = "shipped"
	SaleStatusOutForDelivery         SaleStatus = "out_for_delivery"
	SaleStatusPendingSwapSpotPickup  SaleStatus = "pending_swapspot_pickup"
	SaleStatusCompleted              SaleStatus = "completed"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPendingShipping,
	SaleStatusPendingSwapSpotArrival,
	SaleStatusLabelCreated,
	SaleStatusShipped,
	SaleStatusOutForDelivery,
	SaleStatusPendingSwapSpotPickup,
	SaleStatusCompleted,
}

// saleStatusRanks orders statuses along the transition graph. Both entry
// statuses share rank zero; the swap-spot pickup stage sits between
// out-for-delivery and completed.
var saleStatusRanks = map[SaleStatus]int{
	SaleStatusPendingShipping:        0,
	SaleStatusPendingSwapSpotArrival: 0,
	SaleStatusLabelCreated:           1,
	SaleStatusShipped:                2,
	SaleStatusOutForDelivery:         3,
	SaleStatusPendingSwapSpotPickup:  4,
	SaleStatusCompleted:              5,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the fulfillment lifecycle.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusCompleted
}

// Rank returns the position of the status along the transition graph.
func (s SaleStatus) Rank() int {
	if rank, ok := saleStatusRanks[s]; ok {
		return rank
	}
	return -1
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
