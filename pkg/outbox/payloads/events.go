package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order ready for dispatch.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	RestaurantID   uuid.UUID       `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Address        string          `json:"address"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// OrderAssignedEvent is emitted when a driver wins the assignment race.
type OrderAssignedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	DriverID   uuid.UUID `json:"driverId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// OrderStatusChangedEvent carries a lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID  uuid.UUID         `json:"orderId"`
	DriverID *uuid.UUID        `json:"driverId,omitempty"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
}

// OrderRejectedEvent is emitted when an order is rejected before delivery starts.
type OrderRejectedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	Reason     string    `json:"reason,omitempty"`
	RejectedAt time.Time `json:"rejectedAt"`
}

// DriverRefusedEvent records an explicit refusal of an offered order.
type DriverRefusedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	DriverID  uuid.UUID `json:"driverId"`
	RefusedAt time.Time `json:"refusedAt"`
}

// DispatchTimedOutEvent is emitted when a dispatch round expires unaccepted.
type DispatchTimedOutEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	NotifiedCount int       `json:"notifiedCount"`
	TimedOutAt    time.Time `json:"timedOutAt"`
}

// DriverStatusSetEvent reports a driver availability change.
type DriverStatusSetEvent struct {
	DriverID uuid.UUID          `json:"driverId"`
	Status   enums.DriverStatus `json:"status"`
	SetAt    time.Time          `json:"setAt"`
}
