package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a driver repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, driver *models.Driver) (*models.Driver, error) {
	if err := r.db.WithContext(ctx).Create(driver).Error; err != nil {
		return nil, err
	}
	return driver, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) FindByTelegramChatID(ctx context.Context, chatID int64) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) List(ctx context.Context) ([]models.Driver, error) {
	var rows []models.Driver
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// ListEligibleForOrder returns notifiable drivers for a dispatch round: linked
// to a chat, available or already out delivering, not at their active order
// cap, and not having refused this order before.
func (r *repository) ListEligibleForOrder(ctx context.Context, orderID uuid.UUID, maxActive int) ([]models.Driver, error) {
	var rows []models.Driver
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.DriverStatus{enums.DriverStatusAvailable, enums.DriverStatusOnDelivery}).
		Where("telegram_chat_id IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM order_ignores oi WHERE oi.driver_id = drivers.id AND oi.order_id = ?)", orderID).
		Where("(SELECT COUNT(*) FROM orders o WHERE o.driver_id = drivers.id AND o.status NOT IN ?) < ?",
			[]enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusRejected}, maxActive).
		Order("last_seen_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountActiveOrders(ctx context.Context, driverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("driver_id = ?", driverID).
		Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusRejected}).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Touch(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", id).
		Update("last_seen_at", seenAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", id).
		Update("telegram_chat_id", chatID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
