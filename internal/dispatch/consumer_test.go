package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/payloads"
)

type fakeOrderEventHandler struct {
	created []uuid.UUID
	changed []uuid.UUID
	err     error
}

func (f *fakeOrderEventHandler) OnOrderCreated(_ context.Context, orderID uuid.UUID) error {
	f.created = append(f.created, orderID)
	return f.err
}

func (f *fakeOrderEventHandler) OnOrderStatusChanged(_ context.Context, orderID uuid.UUID) error {
	f.changed = append(f.changed, orderID)
	return f.err
}

type fakeConsumerIdempotency struct {
	already bool
	checked int
	deleted int
}

func (f *fakeConsumerIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, _ uuid.UUID) (bool, error) {
	f.checked++
	return f.already, nil
}

func (f *fakeConsumerIdempotency) Delete(_ context.Context, _ string, _ uuid.UUID) error {
	f.deleted++
	return nil
}

func testConsumer(engine orderEventHandler, manager idempotencyChecker) *Consumer {
	return &Consumer{
		engine:      engine,
		idempotency: manager,
		logg: logger.New(logger.Options{
			ServiceName: "dispatch-consumer-test",
			Output:      io.Discard,
		}),
	}
}

func dispatchMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerDispatchesOrderCreated(t *testing.T) {
	engine := &fakeOrderEventHandler{}
	manager := &fakeConsumerIdempotency{}
	consumer := testConsumer(engine, manager)

	orderID := uuid.New()
	msg := dispatchMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: orderID})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(engine.created) != 1 || engine.created[0] != orderID {
		t.Fatalf("engine not invoked with order id: %v", engine.created)
	}
	if manager.checked != 1 {
		t.Fatalf("idempotency not consulted")
	}
}

func TestConsumerDispatchesStatusChange(t *testing.T) {
	engine := &fakeOrderEventHandler{}
	consumer := testConsumer(engine, &fakeConsumerIdempotency{})

	orderID := uuid.New()
	msg := dispatchMessage(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		From:    enums.OrderStatusReceived,
		To:      enums.OrderStatusRejected,
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(engine.changed) != 1 || engine.changed[0] != orderID {
		t.Fatalf("engine not invoked with order id: %v", engine.changed)
	}
}

func TestConsumerSkipsUnrelatedEvents(t *testing.T) {
	engine := &fakeOrderEventHandler{}
	manager := &fakeConsumerIdempotency{}
	consumer := testConsumer(engine, manager)

	msg := dispatchMessage(t, enums.EventDriverStatusSet, payloads.DriverStatusSetEvent{DriverID: uuid.New()})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(engine.created) != 0 || len(engine.changed) != 0 {
		t.Fatalf("engine should not run for unrelated events")
	}
	if manager.checked != 0 {
		t.Fatalf("idempotency should not be consulted for skipped events")
	}
}

func TestConsumerSkipsAlreadyProcessed(t *testing.T) {
	engine := &fakeOrderEventHandler{}
	manager := &fakeConsumerIdempotency{already: true}
	consumer := testConsumer(engine, manager)

	msg := dispatchMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack on duplicate, got %+v", result)
	}
	if len(engine.created) != 0 {
		t.Fatalf("engine should not run for duplicates")
	}
}

func TestConsumerNacksOnHandlerFailure(t *testing.T) {
	engine := &fakeOrderEventHandler{err: errors.New("db down")}
	manager := &fakeConsumerIdempotency{}
	consumer := testConsumer(engine, manager)

	msg := dispatchMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack, got %+v", result)
	}
	if manager.deleted != 1 {
		t.Fatalf("idempotency key should be released on failure")
	}
}

func TestConsumerAcksMalformedEnvelope(t *testing.T) {
	engine := &fakeOrderEventHandler{}
	consumer := testConsumer(engine, &fakeConsumerIdempotency{})

	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte("not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)},
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("malformed envelopes must be acked, got %+v", result)
	}
	if len(engine.created) != 0 {
		t.Fatalf("engine should not run for malformed envelopes")
	}
}
