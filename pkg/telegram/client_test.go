package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
)

type fakeBot struct {
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	sendErr   error
	reqErr    error
	messageID int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	return tgbotapi.Message{MessageID: f.messageID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestSendMessageReturnsMessageID(t *testing.T) {
	bot := &fakeBot{messageID: 42}
	c := &Client{bot: bot}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Accept", "a:x:y")),
	)
	id, err := c.SendMessage(context.Background(), 123, "hello", &kb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected message id 42, got %d", id)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable type %T", bot.sent[0])
	}
	if msg.ChatID != 123 || msg.Text != "hello" {
		t.Fatalf("message mismatch %+v", msg)
	}
	if msg.ReplyMarkup == nil {
		t.Fatalf("keyboard not attached")
	}
}

func TestSendMessageMapsFailureToDependencyError(t *testing.T) {
	bot := &fakeBot{sendErr: errors.New("bot was blocked by the user")}
	c := &Client{bot: bot}

	_, err := c.SendMessage(context.Background(), 123, "hello", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestEditAndDeleteGoThroughRequest(t *testing.T) {
	bot := &fakeBot{}
	c := &Client{bot: bot}

	if err := c.EditMessage(context.Background(), 123, 7, "updated", nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := c.DeleteMessage(context.Background(), 123, 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(bot.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bot.requests))
	}
	if _, ok := bot.requests[0].(tgbotapi.EditMessageTextConfig); !ok {
		t.Fatalf("expected edit config, got %T", bot.requests[0])
	}
	if _, ok := bot.requests[1].(tgbotapi.DeleteMessageConfig); !ok {
		t.Fatalf("expected delete config, got %T", bot.requests[1])
	}
}

func TestDeleteMessageMapsFailure(t *testing.T) {
	bot := &fakeBot{reqErr: errors.New("message to delete not found")}
	c := &Client{bot: bot}

	err := c.DeleteMessage(context.Background(), 123, 7)
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
