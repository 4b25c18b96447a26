package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angeldelgado/deliverydash-backend/pkg/db/models"
	"github.com/angeldelgado/deliverydash-backend/pkg/enums"
	"github.com/angeldelgado/deliverydash-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:ordersrepo?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  restaurant_name TEXT NOT NULL,
  restaurant_address TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  address TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
  total TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'received',
  driver_id TEXT,
  assigned_at DATETIME,
  timed_out_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_ignores (
  order_id TEXT NOT NULL,
  driver_id TEXT NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (order_id, driver_id)
);`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM order_ignores")
		db.Exec("DELETE FROM orders")
	})

	return db
}

func seedOrder(t *testing.T, db *gorm.DB, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:                uuid.New(),
		RestaurantID:      uuid.New(),
		RestaurantName:    "La Esquina",
		RestaurantAddress: "Calle 10 #5",
		CustomerName:      "Ana",
		CustomerPhone:     "555-0100",
		Address:           "Av. Siempre Viva 742",
		Total:             decimal.RequireFromString("34.50"),
		Status:            enums.OrderStatusReceived,
		CreatedAt:         createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestAssignDriverSingleWinner(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now())
	first, second := uuid.New(), uuid.New()

	won, err := repo.AssignDriver(ctx, order.ID, first, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.AssignDriver(ctx, order.ID, second, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "second accept must lose")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, first, *stored.DriverID)
	assert.Equal(t, enums.OrderStatusReceived, stored.Status, "claiming must not touch the lifecycle status")
	assert.NotNil(t, stored.AssignedAt)
}

func TestAssignDriverIgnoresKitchenProgress(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now())
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusAccepted))

	won, err := repo.AssignDriver(ctx, order.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, won, "restaurant progress must not block the claim")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, enums.OrderStatusAccepted, stored.Status)
}

func TestAssignDriverClearsTimedOut(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now())
	marked, err := repo.MarkTimedOut(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, marked)

	won, err := repo.AssignDriver(ctx, order.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, won, "late accept should still win")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TimedOutAt)
}

func TestMarkTimedOutSkipsAssigned(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now())
	_, err := repo.AssignDriver(ctx, order.ID, uuid.New(), time.Now())
	require.NoError(t, err)

	marked, err := repo.MarkTimedOut(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, marked, "assigned order must not be marked timed out")
}

func TestAddIgnoreIsIdempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now())
	driverID := uuid.New()

	require.NoError(t, repo.AddIgnore(ctx, order.ID, driverID))
	require.NoError(t, repo.AddIgnore(ctx, order.ID, driverID))

	var count int64
	require.NoError(t, db.Model(&models.OrderIgnore{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListPendingDispatch(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := seedOrder(t, db, time.Now())
	assigned := seedOrder(t, db, time.Now())
	timedOut := seedOrder(t, db, time.Now())
	inKitchen := seedOrder(t, db, time.Now())
	delivered := seedOrder(t, db, time.Now())

	_, err := repo.AssignDriver(ctx, assigned.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	_, err = repo.MarkTimedOut(ctx, timedOut.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, inKitchen.ID, enums.OrderStatusAccepted))
	require.NoError(t, repo.UpdateStatus(ctx, delivered.ID, enums.OrderStatusDelivered))

	rows, err := repo.ListPendingDispatch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	ids := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		ids[row.ID] = true
	}
	assert.True(t, ids[pending.ID])
	assert.True(t, ids[timedOut.ID], "a timed-out order stays dispatchable")
	assert.True(t, ids[inKitchen.ID], "kitchen progress keeps the order dispatchable")
}

func TestListPaginatesWithCursor(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedOrder(t, db, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.List(ctx, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)

	second, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.True(t, second.Orders[0].CreatedAt.Before(page.Orders[1].CreatedAt))

	status := enums.OrderStatusReceived
	filtered, err := repo.List(ctx, pagination.Params{Limit: 10}, ListFilters{Status: &status})
	require.NoError(t, err)
	assert.Len(t, filtered.Orders, 5)
}
