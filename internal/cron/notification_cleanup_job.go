package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

const defaultCleanupBatchSize = 200

type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Ledger    cleanupLedger
	Gateway   messageDeleter
	BatchSize int
}

type cleanupLedger interface {
	ListDueForDeletion(ctx context.Context, limit int) ([]models.NotificationRecord, error)
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

type messageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("messaging gateway required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultCleanupBatchSize
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		gateway:   params.Gateway,
		batchSize: batchSize,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	ledger    cleanupLedger
	gateway   messageDeleter
	batchSize int
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

// Run deletes the chat messages behind due ledger records and soft deletes
// the records. A failed chat deletion leaves its record untouched so the next
// sweep retries it.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	records, err := j.ledger.ListDueForDeletion(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("list due notifications: %w", err)
	}

	var errs error
	var cleaned int
	for _, record := range records {
		if err := j.gateway.DeleteMessage(ctx, record.ChatID, record.MessageID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete message %d in chat %d: %w", record.MessageID, record.ChatID, err))
			continue
		}
		if err := j.ledger.MarkDeleted(ctx, record.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark record %s deleted: %w", record.ID, err))
			continue
		}
		cleaned++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":     len(records),
		"cleaned": cleaned,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return errs
}
