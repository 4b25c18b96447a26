package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderIgnore records a driver's explicit refusal of an order. The composite
// key gives native uniqueness, so re-refusing is a no-op at the database.
type OrderIgnore struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	DriverID  uuid.UUID `gorm:"column:driver_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
