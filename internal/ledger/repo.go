package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Repository manages persistence for notification records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.NotificationRecord) error
	FindActive(ctx context.Context, orderID, driverID uuid.UUID) (*models.NotificationRecord, error)
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error)
	ListDueForDeletion(ctx context.Context, now time.Time, limit int) ([]models.NotificationRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.NotificationStatus) error
	ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a notification ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.NotificationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindActive(ctx context.Context, orderID, driverID uuid.UUID) (*models.NotificationRecord, error) {
	var record models.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND driver_id = ? AND deleted_at IS NULL", orderID, driverID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error) {
	var rows []models.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND deleted_at IS NULL", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListDueForDeletion(ctx context.Context, now time.Time, limit int) ([]models.NotificationRecord, error) {
	var rows []models.NotificationRecord
	query := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Where("scheduled_deletion_at IS NOT NULL AND scheduled_deletion_at <= ?", now).
		Order("scheduled_deletion_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.NotificationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("scheduled_deletion_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
