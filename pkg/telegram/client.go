package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

var (
	errBotTokenRequired = errors.New("telegram bot token is required")
	errLoggerRequired   = errors.New("telegram logger is required")
)

// botAPI is the slice of tgbotapi.BotAPI the client depends on.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client exposes the Telegram Bot API with centralized logging and error mapping.
// Every failure comes back as a dependency error; callers decide whether the
// operation is fatal.
type Client struct {
	bot           botAPI
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the Telegram wrapper and validates the credentials
// against the Bot API (getMe).
func NewClient(ctx context.Context, cfg config.TelegramConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errBotTokenRequired
	}

	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram authentication failed")
	}
	bot.Debug = cfg.Debug

	c := &Client{
		bot:           bot,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}

	ctx = logg.WithField(ctx, "bot_username", bot.Self.UserName)
	logg.Info(ctx, "telegram client initialized")
	return c, nil
}

// WebhookSecret returns the configured webhook token for update verification.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// SendMessage delivers a text message with an optional inline keyboard and
// returns the Telegram message ID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	c.log(ctx, "request", "send_message", map[string]any{"chat_id": chatID})

	sent, err := c.bot.Send(msg)
	if err != nil {
		c.log(ctx, "error", "send_message", map[string]any{"chat_id": chatID, "error": err.Error()})
		return 0, c.mapError(err, "send message")
	}

	c.log(ctx, "response", "send_message", map[string]any{"chat_id": chatID, "message_id": sent.MessageID})
	return sent.MessageID, nil
}

// EditMessage replaces the text (and keyboard) of a previously sent message in place.
func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.Chattable
	if keyboard != nil {
		e := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		e.ParseMode = tgbotapi.ModeHTML
		edit = e
	} else {
		e := tgbotapi.NewEditMessageText(chatID, messageID, text)
		e.ParseMode = tgbotapi.ModeHTML
		edit = e
	}
	c.log(ctx, "request", "edit_message", map[string]any{"chat_id": chatID, "message_id": messageID})

	if _, err := c.bot.Request(edit); err != nil {
		c.log(ctx, "error", "edit_message", map[string]any{"chat_id": chatID, "message_id": messageID, "error": err.Error()})
		return c.mapError(err, "edit message")
	}
	return nil
}

// DeleteMessage removes a message from the driver's chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	c.log(ctx, "request", "delete_message", map[string]any{"chat_id": chatID, "message_id": messageID})

	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		c.log(ctx, "error", "delete_message", map[string]any{"chat_id": chatID, "message_id": messageID, "error": err.Error()})
		return c.mapError(err, "delete message")
	}
	return nil
}

// AnswerCallback acknowledges an inline button press so the client stops spinning.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		c.log(ctx, "error", "answer_callback", map[string]any{"error": err.Error()})
		return c.mapError(err, "answer callback")
	}
	return nil
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("telegram %s failed", op))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("telegram %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("telegram %s", phase))
	}
}
