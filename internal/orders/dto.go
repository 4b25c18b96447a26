package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

// CreateOrderInput carries the fields accepted at order intake.
type CreateOrderInput struct {
	RestaurantID      uuid.UUID
	RestaurantName    string
	RestaurantAddress string
	CustomerName      string
	CustomerPhone     string
	Address           string
	Latitude          *float64
	Longitude         *float64
	Total             decimal.Decimal
}

// ListFilters describe the inputs supported by the orders list.
type ListFilters struct {
	Status   *enums.OrderStatus
	DriverID *uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// OrderDTO is the transport shape for orders.
type OrderDTO struct {
	ID                uuid.UUID         `json:"id"`
	RestaurantID      uuid.UUID         `json:"restaurant_id"`
	RestaurantName    string            `json:"restaurant_name"`
	RestaurantAddress string            `json:"restaurant_address"`
	CustomerName      string            `json:"customer_name"`
	CustomerPhone     string            `json:"customer_phone"`
	Address           string            `json:"address"`
	Latitude          *float64          `json:"latitude,omitempty"`
	Longitude         *float64          `json:"longitude,omitempty"`
	Total             decimal.Decimal   `json:"total"`
	Status            enums.OrderStatus `json:"status"`
	DriverID          *uuid.UUID        `json:"driver_id,omitempty"`
	AssignedAt        *time.Time        `json:"assigned_at,omitempty"`
	TimedOutAt        *time.Time        `json:"timed_out_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	return &OrderDTO{
		ID:                o.ID,
		RestaurantID:      o.RestaurantID,
		RestaurantName:    o.RestaurantName,
		RestaurantAddress: o.RestaurantAddress,
		CustomerName:      o.CustomerName,
		CustomerPhone:     o.CustomerPhone,
		Address:           o.Address,
		Latitude:          o.Latitude,
		Longitude:         o.Longitude,
		Total:             o.Total,
		Status:            o.Status,
		DriverID:          o.DriverID,
		AssignedAt:        o.AssignedAt,
		TimedOutAt:        o.TimedOutAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
