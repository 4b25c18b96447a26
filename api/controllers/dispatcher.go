package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Dispatcher is the slice of the dispatch engine the HTTP layer drives.
type Dispatcher interface {
	OnOrderCreated(ctx context.Context, orderID uuid.UUID) error
	OnOrderStatusChanged(ctx context.Context, orderID uuid.UUID) error
	OnDriverAccept(ctx context.Context, orderID, driverID uuid.UUID, callbackID string) (enums.DispatchOutcome, error)
	OnDriverRefuse(ctx context.Context, orderID, driverID uuid.UUID, callbackID string) (enums.DispatchOutcome, error)
	RecheckForDriver(ctx context.Context, driverID uuid.UUID) error
}
