package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Driver represents a delivery driver known to the dispatch core.
// TelegramChatID is nil for drivers who never linked the bot; they are skipped
// by dispatch but remain assignable by an admin.
type Driver struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string             `gorm:"column:name;type:text;not null"`
	Phone          string             `gorm:"column:phone;type:text;not null"`
	TelegramChatID *int64             `gorm:"column:telegram_chat_id"`
	Status         enums.DriverStatus `gorm:"column:status;type:driver_status;not null;default:'offline'"`
	LastSeenAt     time.Time          `gorm:"column:last_seen_at;type:timestamptz"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
