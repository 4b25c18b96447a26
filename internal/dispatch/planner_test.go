package dispatch

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

func chatID(v int64) *int64 { return &v }

func testOrder() *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		RestaurantID:      uuid.New(),
		RestaurantName:    "Trattoria Nonna",
		RestaurantAddress: "12 Via Roma",
		CustomerName:      "Dana",
		CustomerPhone:     "+15550001111",
		Address:           "44 Elm Street",
		Total:             decimal.RequireFromString("33.33"),
		Status:            enums.OrderStatusReceived,
		CreatedAt:         time.Now(),
	}
}

func TestPlanBroadcastSkipsAlreadyNotified(t *testing.T) {
	order := testOrder()
	fresh := models.Driver{ID: uuid.New(), TelegramChatID: chatID(101)}
	notified := models.Driver{ID: uuid.New(), TelegramChatID: chatID(102)}
	unlinked := models.Driver{ID: uuid.New()}

	active := []models.NotificationRecord{{ID: uuid.New(), OrderID: order.ID, DriverID: notified.ID, ChatID: 102, MessageID: 5}}

	effects := planBroadcast(order, []models.Driver{fresh, notified, unlinked}, active, decimal.RequireFromString("0.15"))

	var sends []SendOffer
	var pushes []PushEvent
	for _, effect := range effects {
		switch ef := effect.(type) {
		case SendOffer:
			sends = append(sends, ef)
		case PushEvent:
			pushes = append(pushes, ef)
		}
	}
	if len(sends) != 1 || sends[0].DriverID != fresh.ID {
		t.Fatalf("expected a single offer to the fresh driver, got %+v", sends)
	}
	if sends[0].ChatID != 101 {
		t.Fatalf("offer addressed to wrong chat %d", sends[0].ChatID)
	}
	if sends[0].Offer.CustomerName != order.CustomerName {
		t.Fatalf("offer should carry the customer name, got %q", sends[0].Offer.CustomerName)
	}
	if len(pushes) != 1 || pushes[0].Event.Type != EventNewOrder {
		t.Fatalf("expected one new_order push, got %+v", pushes)
	}
}

func TestPlanAssignmentSplitsWinnerAndLosers(t *testing.T) {
	order := testOrder()
	winner := uuid.New()
	loser := uuid.New()
	records := []models.NotificationRecord{
		{ID: uuid.New(), OrderID: order.ID, DriverID: winner, ChatID: 1, MessageID: 10},
		{ID: uuid.New(), OrderID: order.ID, DriverID: loser, ChatID: 2, MessageID: 11},
	}

	now := time.Now()
	effects := planAssignment(order, winner, records, time.Hour, now)

	var edits []EditMessage
	var deletions []ScheduleDeletion
	for _, effect := range effects {
		switch ef := effect.(type) {
		case EditMessage:
			edits = append(edits, ef)
		case ScheduleDeletion:
			deletions = append(deletions, ef)
		}
	}
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}
	if edits[0].Status != enums.NotificationStatusAssigned {
		t.Fatalf("winner edit should show assigned, got %s", edits[0].Status)
	}
	if edits[1].Status != enums.NotificationStatusTaken {
		t.Fatalf("loser edit should show taken, got %s", edits[1].Status)
	}
	if len(deletions) != 1 || deletions[0].RecordID != records[1].ID {
		t.Fatalf("only the loser's record should be queued for cleanup, got %+v", deletions)
	}
	if !deletions[0].At.Equal(now.Add(time.Hour)) {
		t.Fatalf("deletion scheduled at wrong time %v", deletions[0].At)
	}
}

func TestPlanStatusChangeProgressesAssignedDriver(t *testing.T) {
	order := testOrder()
	driverID := uuid.New()
	order.DriverID = &driverID
	order.Status = enums.OrderStatusDelivery

	records := []models.NotificationRecord{
		{ID: uuid.New(), OrderID: order.ID, DriverID: driverID, ChatID: 1, MessageID: 10},
	}

	effects := planStatusChange(order, records, time.Hour, time.Now())

	var edits []EditMessage
	for _, effect := range effects {
		if ef, ok := effect.(EditMessage); ok {
			edits = append(edits, ef)
		}
	}
	if len(edits) != 1 || edits[0].Status != enums.NotificationStatusDelivering {
		t.Fatalf("expected a delivering edit, got %+v", edits)
	}
}

func TestPlanStatusChangeTerminalQueuesCleanup(t *testing.T) {
	order := testOrder()
	driverID := uuid.New()
	order.DriverID = &driverID
	order.Status = enums.OrderStatusDelivered

	records := []models.NotificationRecord{
		{ID: uuid.New(), OrderID: order.ID, DriverID: driverID, ChatID: 1, MessageID: 10},
		{ID: uuid.New(), OrderID: order.ID, DriverID: uuid.New(), ChatID: 2, MessageID: 11},
	}

	effects := planStatusChange(order, records, time.Hour, time.Now())

	var deletions int
	for _, effect := range effects {
		if _, ok := effect.(ScheduleDeletion); ok {
			deletions++
		}
	}
	if deletions != 2 {
		t.Fatalf("every record should be queued for cleanup, got %d", deletions)
	}
}

func TestPlanTimeoutExpiresEveryOffer(t *testing.T) {
	orderID := uuid.New()
	records := []models.NotificationRecord{
		{ID: uuid.New(), OrderID: orderID, DriverID: uuid.New(), ChatID: 1, MessageID: 10},
		{ID: uuid.New(), OrderID: orderID, DriverID: uuid.New(), ChatID: 2, MessageID: 11},
	}

	effects := planTimeout(orderID, records, time.Hour, time.Now())

	var edits, deletions int
	for _, effect := range effects {
		switch ef := effect.(type) {
		case EditMessage:
			if ef.Status != enums.NotificationStatusExpired {
				t.Fatalf("timeout edit should show expired, got %s", ef.Status)
			}
			edits++
		case ScheduleDeletion:
			deletions++
		}
	}
	if edits != 2 || deletions != 2 {
		t.Fatalf("expected 2 edits and 2 deletions, got %d and %d", edits, deletions)
	}
}
