package notifications

import (
	"fmt"
	"strings"

	"github.com/loterodev/swapmarket-backend/pkg/enums"
)

// template is one entry of the static push/in-app copy table. The body takes
// the bundle-aware product title as its single argument.
type template struct {
	Title string
	Body  string
	Type  enums.NotificationType
}

// templateTable maps {role}_{STATUS} keys to notification copy. A key absent
// here is logged and skipped, never an error: notification gaps must not
// block fulfillment.
var templateTable = map[string]template{
	"buyer_LABEL_CREATED": {
		Title: "Shipping label created",
		Body:  "The seller created a shipping label for %s.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"buyer_SHIPPED": {
		Title: "Your order is on the way",
		Body:  "%s has shipped.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"buyer_OUT_FOR_DELIVERY": {
		Title: "Out for delivery",
		Body:  "%s is out for delivery today.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"buyer_PENDING_SWAPSPOT_PICKUP": {
		Title: "Ready for pickup",
		Body:  "%s arrived at your swap spot and is ready for pickup.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"buyer_COMPLETED": {
		Title: "Order delivered",
		Body:  "%s was delivered. Enjoy!",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"seller_COMPLETED": {
		Title: "Sale complete",
		Body:  "%s was delivered and your earnings are on the way.",
		Type:  enums.NotificationTypeSaleUpdate,
	},
	"swap_spot_PENDING_SWAPSPOT_ARRIVAL": {
		Title: "Incoming package",
		Body:  "%s is headed to your location.",
		Type:  enums.NotificationTypeSwapSpotUpdate,
	},
	"swap_spot_PENDING_SWAPSPOT_PICKUP": {
		Title: "Package received",
		Body:  "%s has been checked into your inventory.",
		Type:  enums.NotificationTypeSwapSpotUpdate,
	},

	// Bespoke keys used outside the standard role/status grid.
	"DELIVERED": {
		Title: "Delivered",
		Body:  "%s was delivered.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
	"last_shipping_day": {
		Title: "Last day to ship",
		Body:  "Today is the last day to ship %s before the sale is canceled.",
		Type:  enums.NotificationTypeSaleUpdate,
	},
	"buyer_refund_eligibility": {
		Title: "Refund available",
		Body:  "Your order of %s is eligible for a refund.",
		Type:  enums.NotificationTypeOrderUpdate,
	},
}

func roleStatusKey(role enums.UserRole, status enums.SaleStatus) string {
	return fmt.Sprintf("%s_%s", role, strings.ToUpper(string(status)))
}

func lookupTemplate(key string) (template, bool) {
	tpl, ok := templateTable[key]
	return tpl, ok
}
