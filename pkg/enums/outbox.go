package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateDriver             OutboxAggregateType = "driver"
	AggregateNotificationRecord OutboxAggregateType = "notification_record"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateDriver,
	AggregateNotificationRecord,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderAssigned      OutboxEventType = "order_assigned"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderRejected      OutboxEventType = "order_rejected"
	EventDriverRefused      OutboxEventType = "driver_refused"
	EventDispatchTimedOut   OutboxEventType = "dispatch_timed_out"
	EventDriverStatusSet    OutboxEventType = "driver_status_set"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderAssigned,
	EventOrderStatusChanged,
	EventOrderRejected,
	EventDriverRefused,
	EventDispatchTimedOut,
	EventDriverStatusSet,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
