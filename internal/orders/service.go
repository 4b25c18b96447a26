package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/payloads"
	"github.com/angeldelgado/deliverydash-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DriverFlagger flips driver availability as orders attach and detach.
type DriverFlagger interface {
	MarkOnDelivery(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error
	ReleaseIfIdle(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error
}

// Service defines order store operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error)
	ListPendingDispatch(ctx context.Context) ([]models.Order, error)
	Assign(ctx context.Context, orderID, driverID uuid.UUID) error
	Refuse(ctx context.Context, orderID, driverID uuid.UUID) error
	TransitionStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	MarkTimedOut(ctx context.Context, orderID uuid.UUID, notifiedCount int) (bool, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	flagger DriverFlagger
	now     func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, flagger DriverFlagger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if flagger == nil {
		return nil, fmt.Errorf("driver flagger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		flagger: flagger,
		now:     time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	if strings.TrimSpace(input.RestaurantName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant name required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if input.Total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}

	order := &models.Order{
		RestaurantID:      input.RestaurantID,
		RestaurantName:    strings.TrimSpace(input.RestaurantName),
		RestaurantAddress: strings.TrimSpace(input.RestaurantAddress),
		CustomerName:      strings.TrimSpace(input.CustomerName),
		CustomerPhone:     strings.TrimSpace(input.CustomerPhone),
		Address:           strings.TrimSpace(input.Address),
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
		Total:             input.Total,
		Status:            enums.OrderStatusReceived,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, order)
		if err != nil {
			return err
		}
		order = created
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Source: "api"},
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				RestaurantID:   order.RestaurantID,
				RestaurantName: order.RestaurantName,
				Address:        order.Address,
				Total:          order.Total,
				CreatedAt:      s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	return s.repo.List(ctx, params, filters)
}

func (s *service) ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	return s.repo.ListActiveByDriver(ctx, driverID)
}

func (s *service) ListPendingDispatch(ctx context.Context) ([]models.Order, error) {
	return s.repo.ListPendingDispatch(ctx)
}

// Assign claims the order for the driver. Exactly one concurrent accept wins;
// every other caller gets a conflict error.
func (s *service) Assign(ctx context.Context, orderID, driverID uuid.UUID) error {
	if orderID == uuid.Nil || driverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignedAt := s.now()
		won, err := repo.AssignDriver(ctx, orderID, driverID, assignedAt)
		if err != nil {
			return err
		}
		if !won {
			if _, err := repo.FindByID(ctx, orderID); errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order already taken")
		}
		if err := s.flagger.MarkOnDelivery(ctx, tx, driverID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderAssigned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{DriverID: &driverID, Source: "telegram"},
			Data: payloads.OrderAssignedEvent{
				OrderID:    orderID,
				DriverID:   driverID,
				AssignedAt: assignedAt,
			},
			Version: 1,
		})
	})
}

// Refuse records the driver's refusal so re-dispatch skips them.
func (s *service) Refuse(ctx context.Context, orderID, driverID uuid.UUID) error {
	if orderID == uuid.Nil || driverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if err := repo.AddIgnore(ctx, orderID, driverID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDriverRefused,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{DriverID: &driverID, Source: "telegram"},
			Data: payloads.DriverRefusedEvent{
				OrderID:   orderID,
				DriverID:  driverID,
				RefusedAt: s.now(),
			},
			Version: 1,
		})
	})
}

// TransitionStatus advances the order lifecycle. Rejection of an assigned
// order releases the driver if nothing else is on their plate.
func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if !order.Status.CanTransition(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition order from %s to %s", order.Status, next))
		}

		previous := order.Status
		if err := repo.UpdateStatus(ctx, orderID, next); err != nil {
			return err
		}
		order.Status = next
		updated = order

		if order.DriverID != nil && next.IsTerminal() {
			if err := s.flagger.ReleaseIfIdle(ctx, tx, *order.DriverID); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:  orderID,
				DriverID: order.DriverID,
				From:     previous,
				To:       next,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		if next == enums.OrderStatusRejected {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderRejected,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data: payloads.OrderRejectedEvent{
					OrderID:    orderID,
					RejectedAt: s.now(),
				},
				Version: 1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkTimedOut closes a dispatch round that got no acceptance. Returns false
// when a driver claimed the order before the sweep ran.
func (s *service) MarkTimedOut(ctx context.Context, orderID uuid.UUID, notifiedCount int) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var marked bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		timedOutAt := s.now()
		won, err := repo.MarkTimedOut(ctx, orderID, timedOutAt)
		if err != nil {
			return err
		}
		marked = won
		if !won {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDispatchTimedOut,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{Source: "cron"},
			Data: payloads.DispatchTimedOutEvent{
				OrderID:       orderID,
				NotifiedCount: notifiedCount,
				TimedOutAt:    timedOutAt,
			},
			Version: 1,
		})
	})
	if err != nil {
		return false, err
	}
	return marked, nil
}
