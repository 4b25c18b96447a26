package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/payloads"
	"github.com/angeldelgado/deliverydash-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	mtx     sync.Mutex
	orders  map[uuid.UUID]*models.Order
	ignores map[uuid.UUID]map[uuid.UUID]bool
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{
		orders:  make(map[uuid.UUID]*models.Order),
		ignores: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if order, ok := s.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var rows []models.Order
	for _, order := range s.orders {
		if order.DriverID != nil && *order.DriverID == driverID && !order.Status.IsTerminal() {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

func (s *stubOrdersRepo) ListPendingDispatch(ctx context.Context) ([]models.Order, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var rows []models.Order
	for _, order := range s.orders {
		if order.DriverID == nil && !order.Status.IsTerminal() {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

func (s *stubOrdersRepo) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if order.DriverID != nil {
		return false, nil
	}
	order.DriverID = &driverID
	order.AssignedAt = &at
	order.TimedOutAt = nil
	return true, nil
}

func (s *stubOrdersRepo) AddIgnore(ctx context.Context, orderID, driverID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.ignores[orderID] == nil {
		s.ignores[orderID] = make(map[uuid.UUID]bool)
	}
	s.ignores[orderID][driverID] = true
	return nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

func (s *stubOrdersRepo) MarkTimedOut(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if order.DriverID != nil || order.TimedOutAt != nil {
		return false, nil
	}
	order.TimedOutAt = &at
	return true, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutboxPublisher struct {
	mtx    sync.Mutex
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var matched []outbox.DomainEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubFlagger struct {
	mtx        sync.Mutex
	onDelivery []uuid.UUID
	released   []uuid.UUID
}

func (s *stubFlagger) MarkOnDelivery(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.onDelivery = append(s.onDelivery, driverID)
	return nil
}

func (s *stubFlagger) ReleaseIfIdle(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.released = append(s.released, driverID)
	return nil
}

func newTestService(t *testing.T, repo Repository) (Service, *stubOutboxPublisher, *stubFlagger) {
	t.Helper()
	outboxStub := &stubOutboxPublisher{}
	flagger := &stubFlagger{}
	svc, err := NewService(repo, stubTxRunner{}, outboxStub, flagger)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, outboxStub, flagger
}

func validCreateInput() CreateOrderInput {
	return CreateOrderInput{
		RestaurantID:      uuid.New(),
		RestaurantName:    "La Esquina",
		RestaurantAddress: "Calle 10 #5",
		CustomerName:      "Ana",
		CustomerPhone:     "555-0100",
		Address:           "Av. Siempre Viva 742",
		Total:             decimal.RequireFromString("34.50"),
	}
}

func TestCreateEmitsOrderCreated(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, _ := newTestService(t, repo)

	order, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != enums.OrderStatusReceived {
		t.Fatalf("expected received status, got %s", order.Status)
	}

	events := outboxStub.byType(enums.EventOrderCreated)
	if len(events) != 1 {
		t.Fatalf("expected 1 order_created event, got %d", len(events))
	}
	payload, ok := events[0].Data.(payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Data)
	}
	if payload.OrderID != order.ID {
		t.Fatalf("payload order mismatch")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t, newStubOrdersRepo())

	input := validCreateInput()
	input.RestaurantName = "  "
	if _, err := svc.Create(context.Background(), input); err == nil {
		t.Fatalf("expected validation error for blank restaurant name")
	}

	input = validCreateInput()
	input.Total = decimal.RequireFromString("-1")
	_, err := svc.Create(context.Background(), input)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssignExactlyOneWinner(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, flagger := newTestService(t, repo)

	order, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 16
	driverIDs := make([]uuid.UUID, racers)
	results := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		driverIDs[i] = uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Assign(context.Background(), order.ID, driverIDs[i])
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodeConflict {
			conflicts++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Fatalf("expected %d conflicts, got %d", racers-1, conflicts)
	}

	stored, _ := repo.FindByID(context.Background(), order.ID)
	if stored.DriverID == nil {
		t.Fatalf("order not assigned: %+v", stored)
	}
	if stored.Status != enums.OrderStatusReceived {
		t.Fatalf("assignment must leave the lifecycle status alone, got %s", stored.Status)
	}
	if len(flagger.onDelivery) != 1 || flagger.onDelivery[0] != *stored.DriverID {
		t.Fatalf("winner not flagged on delivery")
	}
	if events := outboxStub.byType(enums.EventOrderAssigned); len(events) != 1 {
		t.Fatalf("expected 1 order_assigned event, got %d", len(events))
	}
}

func TestAssignUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t, newStubOrdersRepo())

	err := svc.Assign(context.Background(), uuid.New(), uuid.New())
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefuseRecordsIgnoreAndEvent(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, _ := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())
	driverID := uuid.New()

	if err := svc.Refuse(context.Background(), order.ID, driverID); err != nil {
		t.Fatalf("refuse: %v", err)
	}
	// Refusing again is a no-op, not an error.
	if err := svc.Refuse(context.Background(), order.ID, driverID); err != nil {
		t.Fatalf("second refuse: %v", err)
	}
	if !repo.ignores[order.ID][driverID] {
		t.Fatalf("ignore not recorded")
	}
	if events := outboxStub.byType(enums.EventDriverRefused); len(events) != 2 {
		t.Fatalf("expected 2 driver_refused events, got %d", len(events))
	}
}

func TestTransitionStatusHappyPath(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, flagger := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())
	driverID := uuid.New()
	if err := svc.Assign(context.Background(), order.ID, driverID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusAccepted,
		enums.OrderStatusReady,
		enums.OrderStatusDelivery,
		enums.OrderStatusDelivered,
	} {
		updated, err := svc.TransitionStatus(context.Background(), order.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected status %s, got %s", next, updated.Status)
		}
	}

	if len(flagger.released) != 1 || flagger.released[0] != driverID {
		t.Fatalf("driver not released after delivery")
	}
	if events := outboxStub.byType(enums.EventOrderStatusChanged); len(events) != 4 {
		t.Fatalf("expected 4 status change events, got %d", len(events))
	}
}

func TestTransitionStatusRejectsInvalidJump(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, _, _ := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())

	_, err := svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusDelivered)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestTransitionToRejectedEmitsBothEvents(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, _ := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())

	if _, err := svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if events := outboxStub.byType(enums.EventOrderStatusChanged); len(events) != 1 {
		t.Fatalf("expected status change event")
	}
	if events := outboxStub.byType(enums.EventOrderRejected); len(events) != 1 {
		t.Fatalf("expected order_rejected event")
	}
}

func TestMarkTimedOut(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, outboxStub, _ := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())

	marked, err := svc.MarkTimedOut(context.Background(), order.ID, 3)
	if err != nil {
		t.Fatalf("mark timed out: %v", err)
	}
	if !marked {
		t.Fatalf("expected order marked timed out")
	}

	events := outboxStub.byType(enums.EventDispatchTimedOut)
	if len(events) != 1 {
		t.Fatalf("expected dispatch_timed_out event")
	}
	payload := events[0].Data.(payloads.DispatchTimedOutEvent)
	if payload.NotifiedCount != 3 {
		t.Fatalf("expected notified count 3, got %d", payload.NotifiedCount)
	}

	// Second sweep is a no-op.
	marked, err = svc.MarkTimedOut(context.Background(), order.ID, 3)
	if err != nil || marked {
		t.Fatalf("expected no-op on second sweep, marked=%v err=%v", marked, err)
	}
}

func TestLateAcceptClearsTimedOut(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, _, _ := newTestService(t, repo)

	order, _ := svc.Create(context.Background(), validCreateInput())
	if _, err := svc.MarkTimedOut(context.Background(), order.ID, 0); err != nil {
		t.Fatalf("mark timed out: %v", err)
	}

	driverID := uuid.New()
	if err := svc.Assign(context.Background(), order.ID, driverID); err != nil {
		t.Fatalf("late accept should win: %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), order.ID)
	if stored.TimedOutAt != nil {
		t.Fatalf("timed_out_at not cleared on late accept")
	}
}
