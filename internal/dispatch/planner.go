package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

// The planners below are pure: they take the current state and return the
// effect list that moves the outside world to match it. They never touch the
// database or the gateway.

// planBroadcast offers the order to every eligible driver that does not
// already hold an active offer message for it.
func planBroadcast(order *models.Order, eligible []models.Driver, active []models.NotificationRecord, rate decimal.Decimal) []Effect {
	notified := make(map[uuid.UUID]struct{}, len(active))
	for _, record := range active {
		notified[record.DriverID] = struct{}{}
	}

	offer := telegram.Offer{
		OrderID:           order.ID,
		RestaurantName:    order.RestaurantName,
		RestaurantAddress: order.RestaurantAddress,
		CustomerName:      order.CustomerName,
		DeliveryAddress:   order.Address,
		Total:             order.Total,
		CommissionRate:    rate,
	}

	var effects []Effect
	for _, driver := range eligible {
		if driver.TelegramChatID == nil {
			continue
		}
		if _, seen := notified[driver.ID]; seen {
			continue
		}
		effects = append(effects, SendOffer{
			DriverID: driver.ID,
			ChatID:   *driver.TelegramChatID,
			Offer:    offer,
		})
		effects = append(effects, PushEvent{DriverID: driver.ID, Event: newOrderEvent(order)})
	}
	return effects
}

// planAssignment resolves a won race: the winner's message flips to the
// assignment card, every loser's message flips to "taken" and is queued for
// cleanup.
func planAssignment(order *models.Order, winnerID uuid.UUID, records []models.NotificationRecord, retention time.Duration, now time.Time) []Effect {
	deleteAt := now.Add(retention)

	var effects []Effect
	for _, record := range records {
		if record.DriverID == winnerID {
			effects = append(effects, EditMessage{
				RecordID:  record.ID,
				ChatID:    record.ChatID,
				MessageID: record.MessageID,
				Text:      telegram.AssignedText(order.ID, order.Address),
				Status:    enums.NotificationStatusAssigned,
			})
			continue
		}
		effects = append(effects,
			EditMessage{
				RecordID:  record.ID,
				ChatID:    record.ChatID,
				MessageID: record.MessageID,
				Text:      telegram.TakenText(order.ID),
				Status:    enums.NotificationStatusTaken,
			},
			ScheduleDeletion{RecordID: record.ID, At: deleteAt},
			PushEvent{DriverID: record.DriverID, Event: orderTakenEvent(order.ID)},
		)
	}
	return effects
}

// planRefusal resolves one driver's explicit refusal.
func planRefusal(orderID uuid.UUID, record *models.NotificationRecord, retention time.Duration, now time.Time) []Effect {
	if record == nil {
		return nil
	}
	return []Effect{
		EditMessage{
			RecordID:  record.ID,
			ChatID:    record.ChatID,
			MessageID: record.MessageID,
			Text:      telegram.RefusedText(orderID),
			Status:    enums.NotificationStatusRefused,
		},
		ScheduleDeletion{RecordID: record.ID, At: now.Add(retention)},
	}
}

// planStatusChange keeps the assigned driver's message in step with the order
// lifecycle and queues every remaining message for cleanup once the order is
// terminal.
func planStatusChange(order *models.Order, records []models.NotificationRecord, retention time.Duration, now time.Time) []Effect {
	terminal := order.Status == enums.OrderStatusDelivered || order.Status == enums.OrderStatusRejected
	deleteAt := now.Add(retention)

	var effects []Effect
	for _, record := range records {
		assigned := order.DriverID != nil && record.DriverID == *order.DriverID
		if assigned {
			if text, status, ok := progressEdit(order); ok {
				effects = append(effects, EditMessage{
					RecordID:  record.ID,
					ChatID:    record.ChatID,
					MessageID: record.MessageID,
					Text:      text,
					Status:    status,
				})
			}
			effects = append(effects, PushEvent{DriverID: record.DriverID, Event: orderStatusEvent(order.ID, order.Status)})
		} else if order.Status == enums.OrderStatusRejected {
			effects = append(effects, EditMessage{
				RecordID:  record.ID,
				ChatID:    record.ChatID,
				MessageID: record.MessageID,
				Text:      telegram.RejectedText(order.ID),
				Status:    enums.NotificationStatusExpired,
			})
		}
		if terminal {
			effects = append(effects, ScheduleDeletion{RecordID: record.ID, At: deleteAt})
		}
	}
	return effects
}

func progressEdit(order *models.Order) (string, enums.NotificationStatus, bool) {
	switch order.Status {
	case enums.OrderStatusAccepted, enums.OrderStatusReady:
		return telegram.AssignedText(order.ID, order.Address), enums.NotificationStatusAssigned, true
	case enums.OrderStatusDelivery:
		return telegram.DeliveringText(order.ID), enums.NotificationStatusDelivering, true
	case enums.OrderStatusDelivered:
		return telegram.DeliveredText(order.ID), enums.NotificationStatusDelivered, true
	case enums.OrderStatusRejected:
		return telegram.RejectedText(order.ID), enums.NotificationStatusExpired, true
	}
	return "", "", false
}

// planTimeout expires every outstanding offer for an order whose dispatch
// round ran out.
func planTimeout(orderID uuid.UUID, records []models.NotificationRecord, retention time.Duration, now time.Time) []Effect {
	deleteAt := now.Add(retention)

	var effects []Effect
	for _, record := range records {
		effects = append(effects,
			EditMessage{
				RecordID:  record.ID,
				ChatID:    record.ChatID,
				MessageID: record.MessageID,
				Text:      telegram.ExpiredText(orderID),
				Status:    enums.NotificationStatusExpired,
			},
			ScheduleDeletion{RecordID: record.ID, At: deleteAt},
		)
	}
	return effects
}
