package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/api/responses"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook handles bot updates: inline button presses on offers and
// /start deep links that bind a chat to a driver. Processing errors are
// acknowledged with 200 so Telegram does not redeliver the update.
func TelegramWebhook(secret string, drv drivers.Service, engine Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && r.Header.Get(telegramSecretHeader) != secret {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed update"))
			return
		}

		switch {
		case update.CallbackQuery != nil:
			handleCallback(r, update.CallbackQuery, engine, logg)
		case update.Message != nil:
			handleMessage(r, update.Message, drv, logg)
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func handleCallback(r *http.Request, query *tgbotapi.CallbackQuery, engine Dispatcher, logg *logger.Logger) {
	if engine == nil {
		return
	}

	payload, err := telegram.ParseCallback(query.Data)
	if err != nil {
		if logg != nil {
			logg.Error(r.Context(), "unparseable callback data", err)
		}
		return
	}

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithOrderID(ctx, payload.OrderID.String())
		ctx = logg.WithDriverID(ctx, payload.DriverID.String())
	}

	switch payload.Action {
	case telegram.ActionAccept:
		_, err = engine.OnDriverAccept(ctx, payload.OrderID, payload.DriverID, query.ID)
	case telegram.ActionRefuse:
		_, err = engine.OnDriverRefuse(ctx, payload.OrderID, payload.DriverID, query.ID)
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "callback handling failed", err)
	}
}

func handleMessage(r *http.Request, message *tgbotapi.Message, drv drivers.Service, logg *logger.Logger) {
	if drv == nil || message.Chat == nil {
		return
	}

	text := strings.TrimSpace(message.Text)
	if !strings.HasPrefix(text, "/start") {
		return
	}

	arg := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
	driverID, err := uuid.Parse(arg)
	if err != nil {
		if logg != nil {
			logg.Warn(r.Context(), "start command without a valid driver id")
		}
		return
	}

	if err := drv.LinkTelegramChat(r.Context(), driverID, message.Chat.ID); err != nil && logg != nil {
		logg.Error(r.Context(), "telegram chat link failed", err)
	}
}
