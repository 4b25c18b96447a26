package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/pagination"
)

// Repository defines persistence operations for the order store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListActiveByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error)
	ListPendingDispatch(ctx context.Context) ([]models.Order, error)
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error)
	AddIgnore(ctx context.Context, orderID, driverID uuid.UUID) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	MarkTimedOut(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
}
