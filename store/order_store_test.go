package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"table-order-api/apperr"
	"table-order-api/config"
	"table-order-api/models"
	"table-order-api/realtime"
)

type capturePublisher struct {
	events []realtime.Event
}

func (p *capturePublisher) Publish(evt realtime.Event) {
	p.events = append(p.events, evt)
}

func (p *capturePublisher) types() []realtime.EventType {
	out := make([]realtime.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store *OrderStore
	db    *gorm.DB
	pub   *capturePublisher
	scope models.TenantScope

	table  models.Table
	burger models.MenuItem // 25.00
	pasta  models.MenuItem // 40.00
	cheese models.Extra    // 5.00
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	restaurant := models.Restaurant{Name: "Testaurant"}
	require.NoError(t, db.Create(&restaurant).Error)
	branch := models.Branch{RestaurantID: restaurant.ID, Name: "Main"}
	require.NoError(t, db.Create(&branch).Error)

	f := &fixture{
		db:    db,
		pub:   &capturePublisher{},
		scope: models.TenantScope{RestaurantID: restaurant.ID, BranchID: branch.ID},
	}

	f.table = models.Table{RestaurantID: restaurant.ID, BranchID: branch.ID, Number: 5, Seats: 4}
	require.NoError(t, db.Create(&f.table).Error)

	f.burger = models.MenuItem{
		RestaurantID: restaurant.ID, BranchID: branch.ID,
		Name: "Burger", Price: decimal.RequireFromString("25.00"), IsAvailable: true,
	}
	require.NoError(t, db.Create(&f.burger).Error)

	f.pasta = models.MenuItem{
		RestaurantID: restaurant.ID, BranchID: branch.ID,
		Name: "Pasta", Price: decimal.RequireFromString("40.00"), IsAvailable: true,
	}
	require.NoError(t, db.Create(&f.pasta).Error)

	f.cheese = models.Extra{
		RestaurantID: restaurant.ID, BranchID: branch.ID,
		Name: "Cheese", Price: decimal.RequireFromString("5.00"),
	}
	require.NoError(t, db.Create(&f.cheese).Error)

	log := logrus.New()
	log.SetOutput(io.Discard)
	f.store = New(db, log, f.pub, 5*time.Second)
	return f
}

// otherScope creates a second branch of a second restaurant.
func (f *fixture) otherScope(t *testing.T) models.TenantScope {
	t.Helper()
	restaurant := models.Restaurant{Name: "Other"}
	require.NoError(t, f.db.Create(&restaurant).Error)
	branch := models.Branch{RestaurantID: restaurant.ID, Name: "Other Main"}
	require.NoError(t, f.db.Create(&branch).Error)
	return models.TenantScope{RestaurantID: restaurant.ID, BranchID: branch.ID}
}

// place creates the reference order: 2x burger, 1x pasta with cheese.
func (f *fixture) place(t *testing.T, actorID uint) *models.Order {
	t.Helper()
	order, err := f.store.PlaceOrder(context.Background(), f.scope, actorID, PlaceOrderInput{
		TableID: f.table.ID,
		Items: []OrderItemInput{
			{MenuItemID: f.burger.ID, Quantity: 2},
			{MenuItemID: f.pasta.ID, ExtraID: &f.cheese.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) auditCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).Count(&count).Error)
	return count
}

func TestPlaceOrderComputesTotalServerSide(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)

	assert.Equal(t, models.StatusPending, order.Status)
	// 25*2 + (40+5)*1 = 95.00
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("95.00")),
		"total %s != 95.00", order.TotalPrice)
	require.Len(t, order.Details, 2)
	assert.True(t, order.Details[0].UnitPrice.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, order.Details[1].UnitPrice.Equal(decimal.RequireFromString("45.00")))

	assert.Equal(t, []realtime.EventType{realtime.EventOrderCreated}, f.pub.types())
	assert.EqualValues(t, 1, f.auditCount(t))
}

func TestPlaceOrderRejectsForeignTable(t *testing.T) {
	f := newFixture(t)
	other := f.otherScope(t)

	foreignTable := models.Table{RestaurantID: other.RestaurantID, BranchID: other.BranchID, Number: 9}
	require.NoError(t, f.db.Create(&foreignTable).Error)

	_, err := f.store.PlaceOrder(context.Background(), f.scope, 1, PlaceOrderInput{
		TableID: foreignTable.ID,
		Items:   []OrderItemInput{{MenuItemID: f.burger.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	var orders int64
	f.db.Model(&models.Order{}).Count(&orders)
	assert.Zero(t, orders, "failed placement must leave no rows")
	assert.Empty(t, f.pub.events)
}

func TestApproveOnceThenRejected(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)

	approved, err := f.store.Approve(context.Background(), f.scope, 2, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	_, err = f.store.Approve(context.Background(), f.scope, 2, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidOrderStatus, apperr.CodeOf(err))
	assert.Equal(t, apperr.State, apperr.KindOf(err))

	// place ok + approve ok + approve denied = 3 ledger rows.
	assert.EqualValues(t, 3, f.auditCount(t))
	var denial models.AuditEntry
	require.NoError(t, f.db.Order("id desc").First(&denial).Error)
	assert.Equal(t, apperr.CodeInvalidOrderStatus, denial.Result)
	assert.Equal(t, ActionApprove, denial.Action)
}

func TestPrepareLastDetailAutoAdvancesToReady(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)
	_, err := f.store.Approve(context.Background(), f.scope, 2, order.ID)
	require.NoError(t, err)

	fetched, _, err := f.store.GetOrder(context.Background(), f.scope, order.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Details, 2)

	// First item: still PREPARING, ready must not be observable early.
	mid, err := f.store.MarkDetailPrepared(context.Background(), f.scope, 3, fetched.Details[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, mid.Status)
	assert.Nil(t, mid.ReadyAt)

	// Last item: READY inside the same unit of work.
	done, err := f.store.MarkDetailPrepared(context.Background(), f.scope, 3, fetched.Details[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, done.Status)
	require.NotNil(t, done.ReadyAt)

	assert.Equal(t, []realtime.EventType{
		realtime.EventOrderCreated,
		realtime.EventOrderApproved,
		realtime.EventOrderDetailPrepared,
		realtime.EventOrderDetailPrepared,
		realtime.EventOrderReady,
	}, f.pub.types())

	// Prepared invariant: READY iff every detail is prepared.
	persisted, _, err := f.store.GetOrder(context.Background(), f.scope, order.ID)
	require.NoError(t, err)
	for _, d := range persisted.Details {
		assert.True(t, d.IsPrepared)
		require.NotNil(t, d.PreparedBy)
		assert.EqualValues(t, 3, *d.PreparedBy)
	}

	// Repeat preparation is a conflict and leaves state alone.
	_, err = f.store.MarkDetailPrepared(context.Background(), f.scope, 3, fetched.Details[0].ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAlreadyPrepared, apperr.CodeOf(err))
}

func TestMarkOrderPrepared(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)
	_, err := f.store.Approve(context.Background(), f.scope, 2, order.ID)
	require.NoError(t, err)

	done, err := f.store.MarkOrderPrepared(context.Background(), f.scope, 3, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, done.Status)

	_, err = f.store.MarkOrderPrepared(context.Background(), f.scope, 3, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAlreadyPrepared, apperr.CodeOf(err))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func (f *fixture) readyOrder(t *testing.T) *models.Order {
	t.Helper()
	order := f.place(t, 1)
	_, err := f.store.Approve(context.Background(), f.scope, 2, order.ID)
	require.NoError(t, err)
	ready, err := f.store.MarkOrderPrepared(context.Background(), f.scope, 3, order.ID)
	require.NoError(t, err)
	return ready
}

func TestTakeServiceSingleOwner(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(t)

	const waiterA, waiterB = 71, 72

	taken, err := f.store.TakeService(context.Background(), f.scope, waiterA, order.ID)
	require.NoError(t, err)
	require.NotNil(t, taken.ServedBy)
	assert.EqualValues(t, waiterA, *taken.ServedBy)

	_, err = f.store.TakeService(context.Background(), f.scope, waiterB, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeOrderAlreadyTaken, apperr.CodeOf(err))

	// Same waiter repeating is an idempotent success with no second event.
	events := len(f.pub.events)
	_, err = f.store.TakeService(context.Background(), f.scope, waiterA, order.ID)
	require.NoError(t, err)
	assert.Len(t, f.pub.events, events)
}

func TestServeFlowAndPaymentClose(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(t)

	const waiterA, waiterB = 71, 72

	// First serve implicitly claims service.
	mid, err := f.store.ServeDetail(context.Background(), f.scope, waiterA, order.ID, f.burger.ID)
	require.NoError(t, err)
	require.NotNil(t, mid.ServedBy)
	assert.EqualValues(t, waiterA, *mid.ServedBy)
	assert.Nil(t, mid.ServedAt)

	// Another waiter cannot serve the claimed order.
	_, err = f.store.ServeDetail(context.Background(), f.scope, waiterB, order.ID, f.pasta.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeOrderAlreadyTaken, apperr.CodeOf(err))

	// Last item stamps the served marker; the status stays READY until the
	// payment-closing transition.
	done, err := f.store.ServeDetail(context.Background(), f.scope, waiterA, order.ID, f.pasta.ID)
	require.NoError(t, err)
	require.NotNil(t, done.ServedAt)
	assert.Equal(t, models.StatusReady, done.Status)

	// Repeat serve on any item is a conflict.
	_, err = f.store.ServeDetail(context.Background(), f.scope, waiterA, order.ID, f.burger.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAlreadyServed, apperr.CodeOf(err))

	closed, err := f.store.Close(context.Background(), f.scope, waiterA, order.ID, "card", "paid")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, closed.Status)
	assert.Equal(t, "card", closed.PaymentMethod)
	assert.Equal(t, "paid", closed.PaymentStatus)
	require.NotNil(t, closed.CompletedAt)
	require.NotNil(t, closed.ClosedAt)

	// COMPLETED is terminal and reached exactly once.
	_, err = f.store.Close(context.Background(), f.scope, waiterA, order.ID, "card", "paid")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidOrderStatus, apperr.CodeOf(err))
}

func TestServedUniquenessBackedByIndex(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(t)

	_, err := f.store.ServeDetail(context.Background(), f.scope, 71, order.ID, f.burger.ID)
	require.NoError(t, err)

	// Even a writer that bypasses the snapshot check loses on the unique index.
	err = f.db.Create(&models.ServedRecord{OrderID: order.ID, MenuItemID: f.burger.ID, ServedBy: 72}).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	var records int64
	f.db.Model(&models.ServedRecord{}).Where("order_id = ?", order.ID).Count(&records)
	assert.EqualValues(t, 1, records)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)
	other := f.otherScope(t)

	_, _, err := f.store.GetOrder(context.Background(), other, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.store.Approve(context.Background(), other, 2, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	orders, err := f.store.ListOrders(context.Background(), other, "")
	require.NoError(t, err)
	assert.Empty(t, orders)

	// The order is untouched.
	fetched, _, err := f.store.GetOrder(context.Background(), f.scope, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fetched.Status)
}

func TestMonotonicStatusObservations(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, 1)

	observed := []models.OrderStatus{order.Status}
	steps := []func() (*models.Order, error){
		func() (*models.Order, error) {
			return f.store.Approve(context.Background(), f.scope, 2, order.ID)
		},
		func() (*models.Order, error) {
			return f.store.MarkOrderPrepared(context.Background(), f.scope, 3, order.ID)
		},
		func() (*models.Order, error) {
			return f.store.TakeService(context.Background(), f.scope, 71, order.ID)
		},
		func() (*models.Order, error) {
			return f.store.Close(context.Background(), f.scope, 71, order.ID, "cash", "paid")
		},
	}
	for _, step := range steps {
		o, err := step()
		require.NoError(t, err)
		observed = append(observed, o.Status)
	}

	for i := 1; i < len(observed); i++ {
		assert.False(t, observed[i].Before(observed[i-1]),
			"status regressed: %v", observed)
	}
	assert.Equal(t, models.StatusCompleted, observed[len(observed)-1])
}

func TestListOrdersStatusFilter(t *testing.T) {
	f := newFixture(t)
	first := f.place(t, 1)
	f.place(t, 1)
	_, err := f.store.Approve(context.Background(), f.scope, 2, first.ID)
	require.NoError(t, err)

	pending, err := f.store.ListOrders(context.Background(), f.scope, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := f.store.ListOrders(context.Background(), f.scope, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
