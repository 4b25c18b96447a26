package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/payloads"
)

const dispatchConsumerName = "dispatch"

type orderEventHandler interface {
	OnOrderCreated(ctx context.Context, orderID uuid.UUID) error
	OnOrderStatusChanged(ctx context.Context, orderID uuid.UUID) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer drives the engine from order events published through the outbox.
// It reacts to order_created and order_status_changed; the remaining dispatch
// events exist for downstream readers and are acked untouched.
type Consumer struct {
	engine       orderEventHandler
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a dispatch event consumer.
func NewConsumer(engine orderEventHandler, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if engine == nil {
		return nil, fmt.Errorf("dispatch engine required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("dispatch subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		engine:       engine,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderCreated) && eventType != string(enums.EventOrderStatusChanged) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, dispatchConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	orderID, err := decodeOrderID(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, dispatchConsumerName, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithOrderID(logCtx, orderID.String())
	if err := c.handle(ctx, eventType, orderID); err != nil {
		c.logg.Error(logCtx, "dispatch handling failed", err)
		_ = c.idempotency.Delete(ctx, dispatchConsumerName, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType string, orderID uuid.UUID) error {
	switch eventType {
	case string(enums.EventOrderCreated):
		return c.engine.OnOrderCreated(ctx, orderID)
	case string(enums.EventOrderStatusChanged):
		return c.engine.OnOrderStatusChanged(ctx, orderID)
	default:
		return nil
	}
}

func decodeOrderID(eventType string, data json.RawMessage) (uuid.UUID, error) {
	switch eventType {
	case string(enums.EventOrderCreated):
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return uuid.Nil, err
		}
		if payload.OrderID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("order id missing")
		}
		return payload.OrderID, nil
	case string(enums.EventOrderStatusChanged):
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return uuid.Nil, err
		}
		if payload.OrderID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("order id missing")
		}
		return payload.OrderID, nil
	default:
		return uuid.Nil, fmt.Errorf("unsupported event type %s", eventType)
	}
}
