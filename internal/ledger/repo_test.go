package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:ledgerrepo?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS notification_records (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  driver_id TEXT NOT NULL,
  chat_id INTEGER NOT NULL,
  message_id INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'offered',
  scheduled_deletion_at DATETIME,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_records_active_pair
  ON notification_records (order_id, driver_id) WHERE deleted_at IS NULL;`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM notification_records")
	})

	return db
}

func seedRecord(t *testing.T, repo Repository, orderID, driverID uuid.UUID) *models.NotificationRecord {
	t.Helper()
	record := &models.NotificationRecord{
		ID:        uuid.New(),
		OrderID:   orderID,
		DriverID:  driverID,
		ChatID:    100200,
		MessageID: 42,
		Status:    enums.NotificationStatusOffered,
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}

func TestFindActiveIgnoresDeleted(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	driverID := uuid.New()
	record := seedRecord(t, repo, orderID, driverID)

	found, err := repo.FindActive(ctx, orderID, driverID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)

	require.NoError(t, repo.MarkDeleted(ctx, record.ID, time.Now()))

	_, err = repo.FindActive(ctx, orderID, driverID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestActivePairUniqueUntilDeleted(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	driverID := uuid.New()
	first := seedRecord(t, repo, orderID, driverID)

	dup := &models.NotificationRecord{
		ID:        uuid.New(),
		OrderID:   orderID,
		DriverID:  driverID,
		ChatID:    100200,
		MessageID: 43,
	}
	assert.Error(t, repo.Create(ctx, dup))

	require.NoError(t, repo.MarkDeleted(ctx, first.ID, time.Now()))
	assert.NoError(t, repo.Create(ctx, dup))
}

func TestListDueForDeletion(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now()

	due := seedRecord(t, repo, uuid.New(), uuid.New())
	require.NoError(t, repo.ScheduleDeletion(ctx, due.ID, now.Add(-time.Minute)))

	future := seedRecord(t, repo, uuid.New(), uuid.New())
	require.NoError(t, repo.ScheduleDeletion(ctx, future.ID, now.Add(time.Hour)))

	// Never scheduled, never eligible.
	seedRecord(t, repo, uuid.New(), uuid.New())

	gone := seedRecord(t, repo, uuid.New(), uuid.New())
	require.NoError(t, repo.ScheduleDeletion(ctx, gone.ID, now.Add(-time.Hour)))
	require.NoError(t, repo.MarkDeleted(ctx, gone.ID, now))

	rows, err := repo.ListDueForDeletion(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, due.ID, rows[0].ID)
}

func TestUpdateStatusOnDeletedRecord(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := seedRecord(t, repo, uuid.New(), uuid.New())

	require.NoError(t, repo.UpdateStatus(ctx, record.ID, enums.NotificationStatusTaken))
	require.NoError(t, repo.MarkDeleted(ctx, record.ID, time.Now()))

	err := repo.UpdateStatus(ctx, record.ID, enums.NotificationStatusExpired)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListActiveByOrder(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	a := seedRecord(t, repo, orderID, uuid.New())
	b := seedRecord(t, repo, orderID, uuid.New())
	seedRecord(t, repo, uuid.New(), uuid.New())

	require.NoError(t, repo.MarkDeleted(ctx, b.ID, time.Now()))

	rows, err := repo.ListActiveByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].ID)
}
