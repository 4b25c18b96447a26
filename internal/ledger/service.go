package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angeldelgado/deliverydash-backend/pkg/db"
	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	pkgerrors "github.com/angeldelgado/deliverydash-backend/pkg/errors"
)

// RecordSentInput captures the data required to log a delivered offer message.
type RecordSentInput struct {
	OrderID   uuid.UUID
	DriverID  uuid.UUID
	ChatID    int64
	MessageID int
}

// Service defines operations over the notification ledger. The ledger is the
// single source of truth for which chat message represents an (order, driver)
// pair, so every in-place edit and every cleanup deletion goes through it.
type Service interface {
	RecordSent(ctx context.Context, input RecordSentInput) (*models.NotificationRecord, error)
	FindActive(ctx context.Context, orderID, driverID uuid.UUID) (*models.NotificationRecord, error)
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error)
	ListDueForDeletion(ctx context.Context, limit int) ([]models.NotificationRecord, error)
	UpdateDisplayedStatus(ctx context.Context, id uuid.UUID, status enums.NotificationStatus) error
	ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a notification ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) RecordSent(ctx context.Context, input RecordSentInput) (*models.NotificationRecord, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if input.ChatID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat id required")
	}
	if input.MessageID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message id required")
	}

	record := &models.NotificationRecord{
		OrderID:   input.OrderID,
		DriverID:  input.DriverID,
		ChatID:    input.ChatID,
		MessageID: input.MessageID,
		Status:    enums.NotificationStatusOffered,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_notification_records_active_pair") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "active notification already exists for this order and driver")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) FindActive(ctx context.Context, orderID, driverID uuid.UUID) (*models.NotificationRecord, error) {
	record, err := s.repo.FindActive(ctx, orderID, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active notification for order and driver")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListActiveByOrder(ctx, orderID)
}

func (s *service) ListDueForDeletion(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	return s.repo.ListDueForDeletion(ctx, s.now(), limit)
}

func (s *service) UpdateDisplayedStatus(ctx context.Context, id uuid.UUID, status enums.NotificationStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification status %q", status))
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification record not found or already deleted")
		}
		return err
	}
	return nil
}

func (s *service) ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.ScheduleDeletion(ctx, id, at); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification record not found or already deleted")
		}
		return err
	}
	return nil
}

func (s *service) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkDeleted(ctx, id, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification record not found or already deleted")
		}
		return err
	}
	return nil
}
