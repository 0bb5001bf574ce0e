package enums

import "fmt"

// FulfillmentAction identifies an inbound fulfillment event from the carrier
// webhook or a swap-spot scan.
type FulfillmentAction string

const (
	FulfillmentActionLabelCreated        FulfillmentAction = "label_created"
	FulfillmentActionShipped             FulfillmentAction = "shipped"
	FulfillmentActionOutForDelivery      FulfillmentAction = "out_for_delivery"
	FulfillmentActionSwapSpotReceiving   FulfillmentAction = "swapspot_receiving"
	FulfillmentActionDelivered           FulfillmentAction = "delivered"
	FulfillmentActionSwapSpotFulfillment FulfillmentAction = "swapspot_fulfillment"
)

var validFulfillmentActions = []FulfillmentAction{
	FulfillmentActionLabelCreated,
	FulfillmentActionShipped,
	FulfillmentActionOutForDelivery,
	FulfillmentActionSwapSpotReceiving,
	FulfillmentActionDelivered,
	FulfillmentActionSwapSpotFulfillment,
}

// String implements fmt.Stringer.
func (a FulfillmentAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known FulfillmentAction.
func (a FulfillmentAction) IsValid() bool {
	for _, candidate := range validFulfillmentActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseFulfillmentAction converts raw input into a FulfillmentAction.
func ParseFulfillmentAction(value string) (FulfillmentAction, error) {
	for _, candidate := range validFulfillmentActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment action %q", value)
}
