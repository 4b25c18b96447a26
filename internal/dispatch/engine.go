package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angeldelgado/deliverydash-backend/internal/ledger"
	"github.com/angeldelgado/deliverydash-backend/internal/orders"
	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/metrics"
)

// driverLister is the slice of the driver registry the engine needs.
type driverLister interface {
	ListEligibleForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Driver, error)
}

// Engine coordinates dispatch rounds: it reads state through the domain
// services, plans effects with the pure planners and hands them to the
// executor.
type Engine struct {
	orders   orders.Service
	drivers  driverLister
	ledger   ledger.Service
	executor *Executor

	roundTimeout time.Duration
	retention    time.Duration
	commission   decimal.Decimal

	metrics *metrics.DispatchMetrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewEngine wires a dispatch engine from the domain services and config.
func NewEngine(
	ordersSvc orders.Service,
	driversSvc driverLister,
	ledgerSvc ledger.Service,
	executor *Executor,
	cfg config.DispatchConfig,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
) (*Engine, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if driversSvc == nil {
		return nil, fmt.Errorf("drivers service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.RoundTimeout <= 0 {
		return nil, fmt.Errorf("round timeout must be positive")
	}
	commission, err := decimal.NewFromString(cfg.CommissionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate %q: %w", cfg.CommissionRate, err)
	}
	retention := cfg.NotificationRetention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Engine{
		orders:       ordersSvc,
		drivers:      driversSvc,
		ledger:       ledgerSvc,
		executor:     executor,
		roundTimeout: cfg.RoundTimeout,
		retention:    retention,
		commission:   commission,
		metrics:      dispatchMetrics,
		logger:       logg,
		now:          time.Now,
	}, nil
}

// OnOrderCreated runs the first dispatch round for a freshly received order.
// Having nobody to notify is a valid state, not an error; the recheck sweep
// picks the order up again as drivers free up.
func (e *Engine) OnOrderCreated(ctx context.Context, orderID uuid.UUID) error {
	ctx = e.logger.WithOrderID(ctx, orderID.String())

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.DriverID != nil || order.Status.IsTerminal() {
		e.logger.Info(ctx, "order no longer dispatchable, skipping broadcast")
		return nil
	}
	return e.dispatchRound(ctx, order)
}

// OnDriverAccept settles an accept action. Exactly one caller per order gets
// DispatchOutcomeAssigned; the rest get DispatchOutcomeConflict and a "taken"
// edit on their own offer message.
func (e *Engine) OnDriverAccept(ctx context.Context, orderID, driverID uuid.UUID, callbackID string) (enums.DispatchOutcome, error) {
	ctx = e.logger.WithDriverID(e.logger.WithOrderID(ctx, orderID.String()), driverID.String())

	err := e.orders.Assign(ctx, orderID, driverID)
	if err != nil {
		if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodeConflict {
			e.metrics.IncConflict()
			e.logger.Info(ctx, "accept lost the assignment race")
			if execErr := e.executor.Execute(ctx, e.planLostRace(ctx, orderID, driverID, callbackID)); execErr != nil {
				e.logger.Error(ctx, "settling lost race", execErr)
			}
			return enums.DispatchOutcomeConflict, nil
		}
		return "", err
	}

	e.metrics.IncAssignment()
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return enums.DispatchOutcomeAssigned, err
	}
	records, err := e.ledger.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return enums.DispatchOutcomeAssigned, err
	}

	effects := planAssignment(order, driverID, records, e.retention, e.now())
	if callbackID != "" {
		effects = append(effects, AnswerCallback{CallbackID: callbackID, Text: "Order is yours!"})
	}
	return enums.DispatchOutcomeAssigned, e.executor.Execute(ctx, effects)
}

func (e *Engine) planLostRace(ctx context.Context, orderID, driverID uuid.UUID, callbackID string) []Effect {
	var effects []Effect
	record, err := e.ledger.FindActive(ctx, orderID, driverID)
	if err == nil && record.Status == enums.NotificationStatusOffered {
		// The winner's settlement normally edits this message; cover the
		// window where this driver pressed the button before that landed.
		effects = append(effects, planAssignment(&models.Order{ID: orderID}, uuid.Nil, []models.NotificationRecord{*record}, e.retention, e.now())...)
	}
	if callbackID != "" {
		effects = append(effects, AnswerCallback{CallbackID: callbackID, Text: "Too late, the order was already taken."})
	}
	return effects
}

// OnDriverRefuse records a refusal, resolves the driver's message and
// immediately re-runs the round so newly eligible drivers hear about the
// order without waiting for the sweep.
func (e *Engine) OnDriverRefuse(ctx context.Context, orderID, driverID uuid.UUID, callbackID string) (enums.DispatchOutcome, error) {
	ctx = e.logger.WithDriverID(e.logger.WithOrderID(ctx, orderID.String()), driverID.String())

	if err := e.orders.Refuse(ctx, orderID, driverID); err != nil {
		return "", err
	}
	e.metrics.IncRefusal()

	var effects []Effect
	record, err := e.ledger.FindActive(ctx, orderID, driverID)
	if err == nil {
		effects = planRefusal(orderID, record, e.retention, e.now())
	} else if domainErr := pkgerrors.As(err); domainErr == nil || domainErr.Code() != pkgerrors.CodeNotFound {
		return "", err
	}
	if callbackID != "" {
		effects = append(effects, AnswerCallback{CallbackID: callbackID, Text: "Order refused."})
	}
	if err := e.executor.Execute(ctx, effects); err != nil {
		return enums.DispatchOutcomeRefused, err
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return enums.DispatchOutcomeRefused, err
	}
	if order.DriverID == nil && !order.Status.IsTerminal() {
		if err := e.dispatchRound(ctx, order); err != nil {
			e.logger.Error(ctx, "re-dispatch after refusal", err)
		}
	}
	return enums.DispatchOutcomeRefused, nil
}

// OnOrderStatusChanged mirrors a lifecycle transition onto the chat messages
// and the realtime channel.
func (e *Engine) OnOrderStatusChanged(ctx context.Context, orderID uuid.UUID) error {
	ctx = e.logger.WithOrderID(ctx, orderID.String())

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	records, err := e.ledger.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return e.executor.Execute(ctx, planStatusChange(order, records, e.retention, e.now()))
}

// RecheckPending sweeps unassigned orders: rounds whose oldest outstanding
// offer exceeds the timeout are marked searching-timed-out and their offers
// expired, then every pending order, timed-out ones included, is re-broadcast
// to drivers that have become eligible since.
func (e *Engine) RecheckPending(ctx context.Context) error {
	pending, err := e.orders.ListPendingDispatch(ctx)
	if err != nil {
		return err
	}

	var errs error
	for i := range pending {
		order := &pending[i]
		octx := e.logger.WithOrderID(ctx, order.ID.String())

		if order.TimedOutAt == nil {
			if err := e.maybeExpireRound(octx, order); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
		}
		if err := e.dispatchRound(octx, order); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// RecheckForDriver offers every pending order the driver is eligible for.
// Called on heartbeat and on realtime attach.
func (e *Engine) RecheckForDriver(ctx context.Context, driverID uuid.UUID) error {
	ctx = e.logger.WithDriverID(ctx, driverID.String())

	pending, err := e.orders.ListPendingDispatch(ctx)
	if err != nil {
		return err
	}

	var errs error
	for i := range pending {
		order := &pending[i]
		eligible, err := e.drivers.ListEligibleForOrder(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		var match []models.Driver
		for _, driver := range eligible {
			if driver.ID == driverID {
				match = append(match, driver)
				break
			}
		}
		if len(match) == 0 {
			continue
		}
		active, err := e.ledger.ListActiveByOrder(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, e.executor.Execute(ctx, planBroadcast(order, match, active, e.commission)))
	}
	return errs
}

func (e *Engine) dispatchRound(ctx context.Context, order *models.Order) error {
	eligible, err := e.drivers.ListEligibleForOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	active, err := e.ledger.ListActiveByOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	effects := planBroadcast(order, eligible, active, e.commission)
	if len(effects) == 0 {
		if len(active) == 0 {
			e.logger.Warn(ctx, "no eligible drivers for order")
		}
		return nil
	}
	return e.executor.Execute(ctx, effects)
}

// maybeExpireRound times out the searching round once the oldest outstanding
// offer exceeds the round timeout. The window opens when the first offer goes
// out, not when the order is created; an order that never reached a driver has
// no round to expire.
func (e *Engine) maybeExpireRound(ctx context.Context, order *models.Order) error {
	records, err := e.ledger.ListActiveByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	anchor := records[0].CreatedAt
	for _, record := range records[1:] {
		if record.CreatedAt.Before(anchor) {
			anchor = record.CreatedAt
		}
	}
	if e.now().Sub(anchor) < e.roundTimeout {
		return nil
	}
	marked, err := e.orders.MarkTimedOut(ctx, order.ID, len(records))
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}
	e.metrics.IncRoundTimeout()
	e.logger.Warn(ctx, "dispatch round timed out")
	now := e.now()
	order.TimedOutAt = &now
	return e.executor.Execute(ctx, planTimeout(order.ID, records, e.retention, now))
}
