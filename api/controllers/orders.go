package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angeldelgado/deliverydash-backend/api/responses"
	"github.com/angeldelgado/deliverydash-backend/api/validators"
	"github.com/angeldelgado/deliverydash-backend/internal/orders"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/pagination"
)

type orderCreateRequest struct {
	RestaurantID      uuid.UUID `json:"restaurant_id" validate:"required"`
	RestaurantName    string    `json:"restaurant_name" validate:"required,min=1"`
	RestaurantAddress string    `json:"restaurant_address" validate:"required,min=1"`
	CustomerName      string    `json:"customer_name" validate:"required,min=1"`
	CustomerPhone     string    `json:"customer_phone" validate:"required,min=5"`
	Address           string    `json:"address" validate:"required,min=1"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	Total             string    `json:"total" validate:"required"`
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderCreate accepts a new order. When an engine is wired the first dispatch
// round runs before the response; otherwise the outbox consumer picks it up.
func OrderCreate(svc orders.Service, engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body orderCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total, err := decimal.NewFromString(body.Total)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid total"))
			return
		}
		if total.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "total cannot be negative"))
			return
		}

		order, err := svc.Create(r.Context(), orders.CreateOrderInput{
			RestaurantID:      body.RestaurantID,
			RestaurantName:    validators.SanitizeString(body.RestaurantName, 200),
			RestaurantAddress: validators.SanitizeString(body.RestaurantAddress, 300),
			CustomerName:      validators.SanitizeString(body.CustomerName, 120),
			CustomerPhone:     validators.SanitizeString(body.CustomerPhone, 32),
			Address:           validators.SanitizeString(body.Address, 300),
			Latitude:          body.Latitude,
			Longitude:         body.Longitude,
			Total:             total,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if engine != nil {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithOrderID(ctx, order.ID.String())
			}
			if err := engine.OnOrderCreated(ctx, order.ID); err != nil && logg != nil {
				logg.Error(ctx, "inline dispatch failed", err)
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.FromModel(order))
	}
}

// OrderList returns a cursor-paginated page of orders.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one order by id.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		id, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.FromModel(order))
	}
}

// OrderTransitionStatus moves an order along its lifecycle. Driver-facing
// Telegram messages are refreshed after the transition commits.
func OrderTransitionStatus(svc orders.Service, engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		id, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		next, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.TransitionStatus(r.Context(), id, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if engine != nil {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithOrderID(ctx, order.ID.String())
			}
			if err := engine.OnOrderStatusChanged(ctx, order.ID); err != nil && logg != nil {
				logg.Error(ctx, "status fan-out failed", err)
			}
		}

		responses.WriteSuccess(w, orders.FromModel(order))
	}
}

func buildOrderFilters(r *http.Request) (orders.ListFilters, error) {
	var filters orders.ListFilters
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("driver_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver_id filter")
		}
		filters.DriverID = &id
	}
	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_from filter")
		}
		filters.DateFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_to filter")
		}
		filters.DateTo = &ts
	}

	return filters, nil
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
