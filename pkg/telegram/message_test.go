package telegram

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestOrderRef(t *testing.T) {
	id := uuid.MustParse("ab12cd34-0000-4000-8000-000000000000")
	if got := OrderRef(id); got != "AB12CD34" {
		t.Fatalf("expected AB12CD34, got %q", got)
	}
}

func TestEarningRounds(t *testing.T) {
	total := decimal.RequireFromString("33.33")
	rate := decimal.RequireFromString("0.15")
	// 33.33 * 0.15 = 4.9995 -> 5.00
	if got := Earning(total, rate); got.StringFixed(2) != "5.00" {
		t.Fatalf("expected 5.00, got %s", got.StringFixed(2))
	}
}

func TestOfferText(t *testing.T) {
	orderID := uuid.New()
	text := OfferText(Offer{
		OrderID:           orderID,
		RestaurantName:    "La Esquina",
		RestaurantAddress: "Calle 10 #5",
		CustomerName:      "Marta Ruiz",
		DeliveryAddress:   "Av. Siempre Viva 742",
		Total:             decimal.RequireFromString("40.00"),
		CommissionRate:    decimal.RequireFromString("0.15"),
	})

	for _, want := range []string{
		OrderRef(orderID),
		"La Esquina",
		"Calle 10 #5",
		"Marta Ruiz",
		"Av. Siempre Viva 742",
		"$40.00",
		"$6.00",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("offer text missing %q:\n%s", want, text)
		}
	}
}

func TestOfferKeyboardCarriesCallbackData(t *testing.T) {
	orderID := uuid.New()
	driverID := uuid.New()
	kb := OfferKeyboard(orderID, driverID)

	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard shape %+v", kb)
	}

	accept, refuse := kb.InlineKeyboard[0][0], kb.InlineKeyboard[0][1]
	payload, err := ParseCallback(*accept.CallbackData)
	if err != nil {
		t.Fatalf("parse accept callback: %v", err)
	}
	if payload.Action != ActionAccept || payload.OrderID != orderID || payload.DriverID != driverID {
		t.Fatalf("accept payload mismatch %+v", payload)
	}

	payload, err = ParseCallback(*refuse.CallbackData)
	if err != nil {
		t.Fatalf("parse refuse callback: %v", err)
	}
	if payload.Action != ActionRefuse {
		t.Fatalf("expected refuse action, got %q", payload.Action)
	}
}
