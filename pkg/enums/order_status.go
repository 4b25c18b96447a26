package enums

import "fmt"

// OrderStatus tracks the customer order lifecycle.
type OrderStatus string

const (
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivery  OrderStatus = "delivery"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusRejected  OrderStatus = "rejected"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusAccepted,
	OrderStatusReady,
	OrderStatusDelivery,
	OrderStatusDelivered,
	OrderStatusRejected,
}

// legacyOrderStatusAliases maps status strings still emitted by older
// restaurant clients onto the canonical lifecycle.
var legacyOrderStatusAliases = map[string]OrderStatus{
	"preparing": OrderStatusAccepted,
	"baking":    OrderStatusAccepted,
	"cooked":    OrderStatusReady,
	"shipped":   OrderStatusDelivery,
	"cancelled": OrderStatusRejected,
}

// orderStatusRank orders the forward-only lifecycle. Terminal rejected sits
// outside the progression and is handled by the transition table.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusReceived:  0,
	OrderStatusAccepted:  1,
	OrderStatusReady:     2,
	OrderStatusDelivery:  3,
	OrderStatusDelivered: 4,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusRejected
}

// CanTransition reports whether moving from o to next honors the forward-only
// state machine: received→accepted→ready→delivery→delivered, with rejected
// reachable from received and accepted only.
func (o OrderStatus) CanTransition(next OrderStatus) bool {
	if next == OrderStatusRejected {
		return o == OrderStatusReceived || o == OrderStatusAccepted
	}
	fromRank, ok := orderStatusRank[o]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// ParseOrderStatus converts raw input into an OrderStatus. Legacy aliases from
// older clients resolve to their canonical status.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	if mapped, ok := legacyOrderStatusAliases[value]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
