package enums

import "fmt"

// NotificationType categorizes persisted in-app notifications.
type NotificationType string

const (
	NotificationTypeSaleUpdate     NotificationType = "sale_update"
	NotificationTypeOrderUpdate    NotificationType = "order_update"
	NotificationTypeSwapSpotUpdate NotificationType = "swapspot_update"
	NotificationTypePayout         NotificationType = "payout"
	NotificationTypeSystem         NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeSaleUpdate,
	NotificationTypeOrderUpdate,
	NotificationTypeSwapSpotUpdate,
	NotificationTypePayout,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
