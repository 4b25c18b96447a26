package drivers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Flagger flips driver availability as orders attach and detach. It runs
// inside the caller's transaction so the flip commits with the assignment.
type Flagger struct {
	repo Repository
}

// NewFlagger builds a driver availability flagger.
func NewFlagger(repo Repository) (*Flagger, error) {
	if repo == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	return &Flagger{repo: repo}, nil
}

// MarkOnDelivery puts the driver on delivery when an order is assigned.
func (f *Flagger) MarkOnDelivery(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	return f.repo.WithTx(tx).UpdateStatus(ctx, driverID, enums.DriverStatusOnDelivery)
}

// ReleaseIfIdle returns the driver to available once their last active order
// reaches a terminal state. Drivers who went offline mid-delivery stay offline.
func (f *Flagger) ReleaseIfIdle(ctx context.Context, tx *gorm.DB, driverID uuid.UUID) error {
	repo := f.repo.WithTx(tx)
	count, err := repo.CountActiveOrders(ctx, driverID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	driver, err := repo.FindByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.Status != enums.DriverStatusOnDelivery {
		return nil
	}
	return repo.UpdateStatus(ctx, driverID, enums.DriverStatusAvailable)
}
