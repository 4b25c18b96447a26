package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// Order represents a customer order moving through the dispatch lifecycle.
// DriverID stays nil until a driver wins the assignment race; TimedOutAt marks
// the searching-timed-out state surfaced to the customer layer.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID      uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null"`
	RestaurantName    string            `gorm:"column:restaurant_name;type:text;not null"`
	RestaurantAddress string            `gorm:"column:restaurant_address;type:text;not null"`
	CustomerName      string            `gorm:"column:customer_name;type:text;not null"`
	CustomerPhone     string            `gorm:"column:customer_phone;type:text;not null"`
	Address           string            `gorm:"column:address;type:text;not null"`
	Latitude          *float64          `gorm:"column:latitude"`
	Longitude         *float64          `gorm:"column:longitude"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'received'"`
	DriverID          *uuid.UUID        `gorm:"column:driver_id;type:uuid"`
	AssignedAt        *time.Time        `gorm:"column:assigned_at"`
	TimedOutAt        *time.Time        `gorm:"column:timed_out_at"`
	Ignores           []OrderIgnore     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
