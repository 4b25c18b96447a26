package drivers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angeldelgado/deliverydash-backend/pkg/db"
	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RegisterInput carries the fields needed to enroll a driver.
type RegisterInput struct {
	Name           string
	Phone          string
	TelegramChatID *int64
}

// Service defines driver registry operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Driver, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	ListEligibleForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Driver, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error
	Heartbeat(ctx context.Context, id uuid.UUID) error
	LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	maxActive int
	now       func() time.Time
}

// NewService builds a driver service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, maxActiveOrders int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if maxActiveOrders <= 0 {
		return nil, fmt.Errorf("max active orders must be positive")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		maxActive: maxActiveOrders,
		now:       time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Driver, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver name required")
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver phone required")
	}

	driver := &models.Driver{
		Name:           name,
		Phone:          phone,
		TelegramChatID: input.TelegramChatID,
		Status:         enums.DriverStatusOffline,
		LastSeenAt:     s.now(),
	}
	created, err := s.repo.Create(ctx, driver)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_drivers_telegram_chat_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "telegram chat already linked to another driver")
		}
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	driver, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return nil, err
	}
	return driver, nil
}

func (s *service) GetByChatID(ctx context.Context, chatID int64) (*models.Driver, error) {
	driver, err := s.repo.FindByTelegramChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found for chat")
		}
		return nil, err
	}
	return driver, nil
}

func (s *service) List(ctx context.Context) ([]models.Driver, error) {
	return s.repo.List(ctx)
}

func (s *service) ListEligibleForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Driver, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListEligibleForOrder(ctx, orderID, s.maxActive)
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid driver status %q", status))
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, id, status); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
			}
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDriverStatusSet,
			AggregateType: enums.AggregateDriver,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{DriverID: &id, Source: "api"},
			Data: payloads.DriverStatusSetEvent{
				DriverID: id,
				Status:   status,
				SetAt:    s.now(),
			},
			Version: 1,
		})
	})
}

func (s *service) Heartbeat(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if err := s.repo.Touch(ctx, id, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return err
	}
	return nil
}

func (s *service) LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if chatID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "chat id required")
	}
	if err := s.repo.LinkTelegramChat(ctx, id, chatID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		if dbpkg.IsUniqueViolation(err, "idx_drivers_telegram_chat_id") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "telegram chat already linked to another driver")
		}
		return err
	}
	return nil
}
