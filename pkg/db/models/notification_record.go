package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// NotificationRecord links an (order, driver) pair to the Telegram message that
// represents it. The record is edited in place as the order progresses and soft
// deleted by the cleanup sweep; at most one active record exists per pair
// (partial unique index where deleted_at is null).
type NotificationRecord struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID                `gorm:"column:order_id;type:uuid;not null"`
	DriverID            uuid.UUID                `gorm:"column:driver_id;type:uuid;not null"`
	ChatID              int64                    `gorm:"column:chat_id;not null"`
	MessageID           int                      `gorm:"column:message_id;not null"`
	Status              enums.NotificationStatus `gorm:"column:status;type:notification_status;not null;default:'offered'"`
	ScheduledDeletionAt *time.Time               `gorm:"column:scheduled_deletion_at"`
	DeletedAt           *time.Time               `gorm:"column:deleted_at"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
