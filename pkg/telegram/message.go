package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Offer carries everything the driver needs to decide on an order.
type Offer struct {
	OrderID           uuid.UUID
	RestaurantName    string
	RestaurantAddress string
	CustomerName      string
	DeliveryAddress   string
	Total             decimal.Decimal
	CommissionRate    decimal.Decimal
}

// OrderRef renders the short uppercase reference drivers see in chat.
func OrderRef(orderID uuid.UUID) string {
	return strings.ToUpper(orderID.String()[:8])
}

// Earning computes the driver's cut for the given order total.
func Earning(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(2)
}

// OfferText renders the dispatch offer message body.
func OfferText(o Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>New order %s</b>\n\n", OrderRef(o.OrderID))
	fmt.Fprintf(&b, "Pickup: %s, %s\n", o.RestaurantName, o.RestaurantAddress)
	fmt.Fprintf(&b, "Customer: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Deliver to: %s\n\n", o.DeliveryAddress)
	fmt.Fprintf(&b, "Order total: $%s\n", o.Total.StringFixed(2))
	fmt.Fprintf(&b, "Your earning: $%s", Earning(o.Total, o.CommissionRate).StringFixed(2))
	return b.String()
}

// OfferKeyboard builds the accept/refuse inline keyboard for an offer.
func OfferKeyboard(orderID, driverID uuid.UUID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Accept", EncodeCallback(ActionAccept, orderID, driverID)),
			tgbotapi.NewInlineKeyboardButtonData("Refuse", EncodeCallback(ActionRefuse, orderID, driverID)),
		),
	)
}

// AssignedText is shown in place of the offer once this driver wins the order.
func AssignedText(orderID uuid.UUID, deliveryAddress string) string {
	return fmt.Sprintf("<b>Order %s is yours.</b>\nDeliver to: %s", OrderRef(orderID), deliveryAddress)
}

// TakenText replaces the offer in every losing driver's chat.
func TakenText(orderID uuid.UUID) string {
	return fmt.Sprintf("Order %s was taken by another driver.", OrderRef(orderID))
}

// RefusedText confirms the driver's refusal.
func RefusedText(orderID uuid.UUID) string {
	return fmt.Sprintf("You refused order %s.", OrderRef(orderID))
}

// ExpiredText replaces offers after the dispatch round times out.
func ExpiredText(orderID uuid.UUID) string {
	return fmt.Sprintf("Order %s expired without a driver.", OrderRef(orderID))
}

// DeliveringText is shown once the driver picks the order up.
func DeliveringText(orderID uuid.UUID) string {
	return fmt.Sprintf("Order %s is on its way.", OrderRef(orderID))
}

// DeliveredText closes out the conversation for a completed order.
func DeliveredText(orderID uuid.UUID) string {
	return fmt.Sprintf("Order %s delivered. Nice work.", OrderRef(orderID))
}

// RejectedText replaces messages for orders the restaurant or admin rejected.
func RejectedText(orderID uuid.UUID) string {
	return fmt.Sprintf("Order %s was cancelled.", OrderRef(orderID))
}
