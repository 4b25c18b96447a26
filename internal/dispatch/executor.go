package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angeldelgado/deliverydash-backend/internal/ledger"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/metrics"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

// Gateway is the messaging surface the executor drives. pkg/telegram.Client
// satisfies it.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Pusher fans events out to live driver sessions. A nil pusher is allowed for
// processes that do not host the realtime hub.
type Pusher interface {
	Push(driverID uuid.UUID, event any)
}

// Executor performs planned effects. Gateway failures are logged and counted
// but never abort the batch; ledger failures are collected and returned so
// the caller surfaces them.
type Executor struct {
	gateway Gateway
	ledger  ledger.Service
	pusher  Pusher
	metrics *metrics.DispatchMetrics
	logger  *logger.Logger
}

// NewExecutor wires an effect executor.
func NewExecutor(gateway Gateway, ledgerSvc ledger.Service, pusher Pusher, dispatchMetrics *metrics.DispatchMetrics, logg *logger.Logger) (*Executor, error) {
	if gateway == nil {
		return nil, fmt.Errorf("messaging gateway required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Executor{
		gateway: gateway,
		ledger:  ledgerSvc,
		pusher:  pusher,
		metrics: dispatchMetrics,
		logger:  logg,
	}, nil
}

// Execute applies each effect in order.
func (e *Executor) Execute(ctx context.Context, effects []Effect) error {
	var errs error
	for _, effect := range effects {
		switch ef := effect.(type) {
		case SendOffer:
			errs = multierr.Append(errs, e.sendOffer(ctx, ef))
		case EditMessage:
			errs = multierr.Append(errs, e.editMessage(ctx, ef))
		case ScheduleDeletion:
			errs = multierr.Append(errs, e.ledger.ScheduleDeletion(ctx, ef.RecordID, ef.At))
		case AnswerCallback:
			if err := e.gateway.AnswerCallback(ctx, ef.CallbackID, ef.Text); err != nil {
				e.noteGatewayFailure(ctx, "answer_callback", err)
			}
		case PushEvent:
			if e.pusher != nil {
				e.pusher.Push(ef.DriverID, ef.Event)
			}
		}
	}
	return errs
}

func (e *Executor) sendOffer(ctx context.Context, ef SendOffer) error {
	ctx = e.logger.WithDriverID(e.logger.WithOrderID(ctx, ef.Offer.OrderID.String()), ef.DriverID.String())

	keyboard := telegram.OfferKeyboard(ef.Offer.OrderID, ef.DriverID)
	messageID, err := e.gateway.SendMessage(ctx, ef.ChatID, telegram.OfferText(ef.Offer), &keyboard)
	if err != nil {
		e.noteGatewayFailure(ctx, "send_message", err)
		e.metrics.IncNotificationSent("error")
		return nil
	}
	e.metrics.IncNotificationSent("ok")

	_, err = e.ledger.RecordSent(ctx, ledger.RecordSentInput{
		OrderID:   ef.Offer.OrderID,
		DriverID:  ef.DriverID,
		ChatID:    ef.ChatID,
		MessageID: messageID,
	})
	if err != nil {
		if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodeConflict {
			// Another process recorded the offer first; the duplicate message
			// will be swept by cleanup once it resolves.
			e.logger.Warn(ctx, "offer already recorded for driver")
			return nil
		}
		return err
	}
	return nil
}

func (e *Executor) editMessage(ctx context.Context, ef EditMessage) error {
	if err := e.gateway.EditMessage(ctx, ef.ChatID, ef.MessageID, ef.Text, nil); err != nil {
		e.noteGatewayFailure(ctx, "edit_message", err)
		e.metrics.IncMessageEdit("error")
	} else {
		e.metrics.IncMessageEdit("ok")
	}

	err := e.ledger.UpdateDisplayedStatus(ctx, ef.RecordID, ef.Status)
	if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodeNotFound {
		return nil
	}
	return err
}

func (e *Executor) noteGatewayFailure(ctx context.Context, op string, err error) {
	e.metrics.IncGatewayFailure(op)
	e.logger.Error(ctx, fmt.Sprintf("messaging gateway %s failed", op), err)
}
