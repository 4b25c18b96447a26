package controllers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/angeldelgado/deliverydash-backend/api/responses"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	"github.com/angeldelgado/deliverydash-backend/internal/realtime"
	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

// DriverRealtime upgrades the request to a WebSocket and keeps the driver
// session attached to the hub until the peer goes away.
func DriverRealtime(hub *realtime.Hub, drv drivers.Service, engine Dispatcher, cfg config.RealtimeConfig, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.ReadBufferSize,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil || drv == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime hub unavailable"))
			return
		}

		id, err := driverIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := drv.Get(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote its own failure response.
			if logg != nil {
				logg.Error(r.Context(), "websocket upgrade failed", err)
			}
			return
		}

		session := hub.Attach(id, conn)
		defer hub.Detach(session)

		conn.SetPongHandler(func(string) error {
			session.Touch()
			return nil
		})

		if engine != nil {
			if err := engine.RecheckForDriver(r.Context(), id); err != nil && logg != nil {
				logg.Error(r.Context(), "driver recheck on connect failed", err)
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			session.Touch()
		}
	}
}
