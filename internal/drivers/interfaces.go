package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Repository defines persistence operations for the driver registry.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, driver *models.Driver) (*models.Driver, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	FindByTelegramChatID(ctx context.Context, chatID int64) (*models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	ListEligibleForOrder(ctx context.Context, orderID uuid.UUID, maxActive int) ([]models.Driver, error)
	CountActiveOrders(ctx context.Context, driverID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error
	Touch(ctx context.Context, id uuid.UUID, seenAt time.Time) error
	LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error
}
