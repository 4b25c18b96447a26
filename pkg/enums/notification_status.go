package enums

import "fmt"

// NotificationStatus is the coarse order projection displayed in a driver's
// chat message. The message is edited in place as the status moves.
type NotificationStatus string

const (
	NotificationStatusOffered    NotificationStatus = "offered"
	NotificationStatusAssigned   NotificationStatus = "assigned"
	NotificationStatusDelivering NotificationStatus = "delivering"
	NotificationStatusDelivered  NotificationStatus = "delivered"
	NotificationStatusTaken      NotificationStatus = "taken"
	NotificationStatusRefused    NotificationStatus = "refused"
	NotificationStatusExpired    NotificationStatus = "expired"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusOffered,
	NotificationStatusAssigned,
	NotificationStatusDelivering,
	NotificationStatusDelivered,
	NotificationStatusTaken,
	NotificationStatusRefused,
	NotificationStatusExpired,
}

// String implements fmt.Stringer.
func (n NotificationStatus) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationStatus.
func (n NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == n {
			return true
		}
	}
	return false
}

// Resolved reports whether the offer can no longer be acted on by the driver.
func (n NotificationStatus) Resolved() bool {
	switch n {
	case NotificationStatusTaken, NotificationStatusRefused, NotificationStatusExpired, NotificationStatusDelivered:
		return true
	}
	return false
}

// NotificationStatusForOrder projects an order status onto the display status
// for the assigned driver's message.
func NotificationStatusForOrder(status OrderStatus) NotificationStatus {
	switch status {
	case OrderStatusAccepted, OrderStatusReady:
		return NotificationStatusAssigned
	case OrderStatusDelivery:
		return NotificationStatusDelivering
	case OrderStatusDelivered:
		return NotificationStatusDelivered
	default:
		return NotificationStatusOffered
	}
}

// ParseNotificationStatus converts raw input into a NotificationStatus.
func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}
