package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/api/responses"
	"github.com/angeldelgado/deliverydash-backend/api/validators"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

type driverRegisterRequest struct {
	Name           string `json:"name" validate:"required,min=1"`
	Phone          string `json:"phone" validate:"required,min=5"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}

type driverStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type driverActionRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// DriverRegister enrolls a new driver in the registry.
func DriverRegister(svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		var body driverRegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driver, err := svc.Register(r.Context(), drivers.RegisterInput{
			Name:           validators.SanitizeString(body.Name, 120),
			Phone:          validators.SanitizeString(body.Phone, 32),
			TelegramChatID: body.TelegramChatID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, drivers.FromModel(driver))
	}
}

// DriverList returns every registered driver.
func DriverList(svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drivers"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"drivers": drivers.FromModels(rows)})
	}
}

// DriverDetail returns a single driver by id.
func DriverDetail(svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driver, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drivers.FromModel(driver))
	}
}

// DriverSetStatus updates driver availability. Going available triggers a
// catch-up dispatch pass so pending orders reach the driver immediately.
func DriverSetStatus(svc drivers.Service, engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body driverStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseDriverStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver status"))
			return
		}

		if err := svc.SetStatus(r.Context(), id, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if engine != nil && status == enums.DriverStatusAvailable {
			if err := engine.RecheckForDriver(r.Context(), id); err != nil && logg != nil {
				logg.Error(r.Context(), "driver recheck after status change failed", err)
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": status.String()})
	}
}

// DriverHeartbeat refreshes the driver's liveness timestamp.
func DriverHeartbeat(svc drivers.Service, engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "driver service unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Heartbeat(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if engine != nil {
			if err := engine.RecheckForDriver(r.Context(), id); err != nil && logg != nil {
				logg.Error(r.Context(), "driver recheck after heartbeat failed", err)
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// DriverAccept claims an order for the driver. Exactly one concurrent accept
// wins; everyone else receives a conflict.
func DriverAccept(engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch engine unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body driverActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := engine.OnDriverAccept(r.Context(), body.OrderID, id, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if outcome == enums.DispatchOutcomeConflict {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "order already assigned"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": outcome.String()})
	}
}

// DriverRefuse records the driver's refusal and moves dispatch on.
func DriverRefuse(engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch engine unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body driverActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := engine.OnDriverRefuse(r.Context(), body.OrderID, id, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": outcome.String()})
	}
}

func driverIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "driverId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver id")
	}
	return id, nil
}
