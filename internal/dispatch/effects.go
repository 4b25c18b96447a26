package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

// Effect is a single side effect planned by the pure transition functions.
// Planners only build effect lists; the Executor performs them, so every
// gateway and ledger interaction is observable and testable without I/O.
type Effect interface {
	effect()
}

// SendOffer delivers a fresh order offer with accept/refuse buttons to a
// driver's chat and records it in the ledger.
type SendOffer struct {
	DriverID uuid.UUID
	ChatID   int64
	Offer    telegram.Offer
}

// EditMessage rewrites an existing offer message in place and moves the
// ledger record to the new displayed status. A resolution edit carries no
// keyboard, which removes the buttons.
type EditMessage struct {
	RecordID  uuid.UUID
	ChatID    int64
	MessageID int
	Text      string
	Status    enums.NotificationStatus
}

// ScheduleDeletion stamps a ledger record for the cleanup sweep.
type ScheduleDeletion struct {
	RecordID uuid.UUID
	At       time.Time
}

// AnswerCallback acknowledges a Telegram button press with a short toast.
type AnswerCallback struct {
	CallbackID string
	Text       string
}

// PushEvent fans a dispatch event out to a driver's live WebSocket sessions.
type PushEvent struct {
	DriverID uuid.UUID
	Event    DriverEvent
}

func (SendOffer) effect()        {}
func (EditMessage) effect()      {}
func (ScheduleDeletion) effect() {}
func (AnswerCallback) effect()   {}
func (PushEvent) effect()        {}

// DriverEvent is the JSON payload pushed over the realtime channel.
type DriverEvent struct {
	Type           string    `json:"type"`
	OrderID        uuid.UUID `json:"orderId"`
	RestaurantName string    `json:"restaurantName,omitempty"`
	CustomerName   string    `json:"customerName,omitempty"`
	Address        string    `json:"address,omitempty"`
	Total          string    `json:"total,omitempty"`
	Status         string    `json:"status,omitempty"`
}

const (
	EventNewOrder    = "new_order"
	EventOrderTaken  = "order_taken"
	EventOrderStatus = "order_status"
)

func newOrderEvent(order *models.Order) DriverEvent {
	return DriverEvent{
		Type:           EventNewOrder,
		OrderID:        order.ID,
		RestaurantName: order.RestaurantName,
		CustomerName:   order.CustomerName,
		Address:        order.Address,
		Total:          order.Total.StringFixed(2),
	}
}

func orderTakenEvent(orderID uuid.UUID) DriverEvent {
	return DriverEvent{Type: EventOrderTaken, OrderID: orderID}
}

func orderStatusEvent(orderID uuid.UUID, status enums.OrderStatus) DriverEvent {
	return DriverEvent{Type: EventOrderStatus, OrderID: orderID, Status: status.String()}
}
