package sales

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/cache"
	"stockapp/m/internal/cache/cachetest"
	"stockapp/m/internal/events"
	"stockapp/m/internal/store"
	"stockapp/m/internal/testdb"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(_ context.Context, eventType string, _ int64, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

type fixture struct {
	db       *sqlx.DB
	store    *store.Store
	manager  *Manager
	events   *recorder
	cache    *cachetest.Memory
	customer *domain.Customer
	itemA    *domain.Item
	itemB    *domain.Item
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testdb.Open(t)
	s := store.New(db)

	c := &domain.Customer{Name: "Alice"}
	require.NoError(t, s.Customers.Create(ctx, c))
	a := &domain.Item{Name: "A", Price: decimal.NewFromInt(10), Stock: 5}
	require.NoError(t, s.Items.Create(ctx, a))
	b := &domain.Item{Name: "B", Price: decimal.NewFromInt(5), Stock: 3}
	require.NoError(t, s.Items.Create(ctx, b))

	rec := &recorder{}
	mem := cachetest.NewMemory()
	return &fixture{
		db:       db,
		store:    s,
		manager:  NewManager(db, rec, mem, zap.NewNop()),
		events:   rec,
		cache:    mem,
		customer: c,
		itemA:    a,
		itemB:    b,
	}
}

func (f *fixture) stock(t *testing.T, id int64) int64 {
	t.Helper()
	it, err := f.store.Items.Get(context.Background(), id)
	require.NoError(t, err)
	return it.Stock
}

func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func (f *fixture) standardSale() CreateInput {
	return CreateInput{
		CustomerID:  f.customer.ID,
		TotalAmount: decimal.NewFromInt(25),
		Items: []LineInput{
			{ItemID: f.itemA.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{ItemID: f.itemB.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	}
}

func TestCreateDecrementsStockAndWritesLines(t *testing.T) {
	f := setup(t)
	sale, err := f.manager.Create(context.Background(), nil, f.standardSale())
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(25).Equal(sale.TotalAmount))
	assert.EqualValues(t, 3, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 2, f.stock(t, f.itemB.ID))

	require.Len(t, sale.Items, 2)
	assert.True(t, decimal.NewFromInt(20).Equal(sale.Items[0].Subtotal))
	assert.True(t, decimal.NewFromInt(5).Equal(sale.Items[1].Subtotal))
	require.NotNil(t, sale.Customer)
	assert.Equal(t, "Alice", sale.Customer.Name)

	assert.Equal(t, []string{events.EventSaleCreated}, f.events.events)
}

func TestCreateInvalidatesStatsCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, cache.StatsKeys[0], "[]", 0))

	_, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	_, ok, _ := f.cache.Get(ctx, cache.StatsKeys[0])
	assert.False(t, ok)
}

func TestDeleteRestoresStockAndRemovesLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	deleted, err := f.manager.Delete(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, deleted.ID)

	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.Equal(t, 0, f.countRows(t, "sale_items"))
	assert.Equal(t, 0, f.countRows(t, "sales"))

	_, err = f.manager.Delete(ctx, sale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteKeepsPaymentsDetached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)
	require.NoError(t, f.store.Payments.Create(ctx, &domain.Payment{CustomerID: f.customer.ID, SaleID: &sale.ID, Amount: decimal.NewFromInt(10)}))

	_, err = f.manager.Delete(ctx, sale.ID)
	require.NoError(t, err)

	payments, err := f.store.Payments.List(ctx, store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Nil(t, payments[0].SaleID)
}

func TestCreateMissingItemLeavesStockUnchanged(t *testing.T) {
	f := setup(t)
	in := f.standardSale()
	in.Items = append(in.Items, LineInput{ItemID: 999, Quantity: 1, UnitPrice: decimal.NewFromInt(1)})

	_, err := f.manager.Create(context.Background(), nil, in)
	require.ErrorIs(t, err, domain.ErrNotFound)

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "item", nf.Entity)
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.Equal(t, 0, f.countRows(t, "sales"))
	assert.Empty(t, f.events.events)
}

func TestCreateMissingCustomer(t *testing.T) {
	f := setup(t)
	in := f.standardSale()
	in.CustomerID = 999

	_, err := f.manager.Create(context.Background(), nil, in)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "customer", nf.Entity)
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
}

func TestCreateInsufficientStockLeavesStockUnchanged(t *testing.T) {
	f := setup(t)
	in := f.standardSale()
	in.Items[1].Quantity = 4

	_, err := f.manager.Create(context.Background(), nil, in)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, f.itemB.ID, ise.ItemID)
	assert.Equal(t, "B", ise.ItemName)
	assert.EqualValues(t, 4, ise.Requested)
	assert.EqualValues(t, 3, ise.Available)

	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.Equal(t, 0, f.countRows(t, "sales"))
}

func TestCreateAggregatesRepeatedItems(t *testing.T) {
	f := setup(t)
	in := CreateInput{
		CustomerID:  f.customer.ID,
		TotalAmount: decimal.NewFromInt(60),
		Items: []LineInput{
			{ItemID: f.itemA.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
			{ItemID: f.itemA.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
		},
	}

	_, err := f.manager.Create(context.Background(), nil, in)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
}

func TestCreateRollsBackOnWriteFault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.db.MustExec(`CREATE TRIGGER fail_b BEFORE UPDATE OF stock ON items WHEN OLD.name = 'B'
        BEGIN SELECT RAISE(ABORT, 'disk on fire'); END;`)

	_, err := f.manager.Create(ctx, nil, f.standardSale())
	require.ErrorIs(t, err, domain.ErrTransaction)

	var txErr *domain.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "create sale", txErr.Op)
	assert.Contains(t, err.Error(), "disk on fire")

	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.Equal(t, 0, f.countRows(t, "sales"))
	assert.Equal(t, 0, f.countRows(t, "sale_items"))
}

func TestRetryAfterFailureCreatesExactlyOneSale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := f.standardSale()
	in.Items[1].Quantity = 4

	_, err := f.manager.Create(ctx, nil, in)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, f.store.Items.Increment(ctx, f.itemB.ID, 1))
	_, err = f.manager.Create(ctx, nil, in)
	require.NoError(t, err)

	assert.Equal(t, 1, f.countRows(t, "sales"))
	assert.Equal(t, 2, f.countRows(t, "sale_items"))
	assert.EqualValues(t, 0, f.stock(t, f.itemB.ID))
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	cases := map[string]func(in *CreateInput){
		"no customer":    func(in *CreateInput) { in.CustomerID = 0 },
		"no lines":       func(in *CreateInput) { in.Items = nil },
		"zero quantity":  func(in *CreateInput) { in.Items[0].Quantity = 0 },
		"negative price": func(in *CreateInput) { in.Items[0].UnitPrice = decimal.NewFromInt(-1) },
		"negative total": func(in *CreateInput) { in.TotalAmount = decimal.NewFromInt(-1) },
		"sub-cent price": func(in *CreateInput) { in.Items[0].UnitPrice = decimal.RequireFromString("0.005") },
		"sub-cent total": func(in *CreateInput) { in.TotalAmount = decimal.RequireFromString("25.001") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := f.standardSale()
			mutate(&in)
			_, err := f.manager.Create(context.Background(), nil, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
}

func TestUpdateRestoresThenReapplies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, CreateInput{
		CustomerID:  f.customer.ID,
		TotalAmount: decimal.NewFromInt(20),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, f.stock(t, f.itemA.ID))

	updated, err := f.manager.Update(ctx, sale.ID, UpdateInput{
		TotalAmount: decimal.NewFromInt(40),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 4, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.stock(t, f.itemA.ID))
	require.Len(t, updated.Items, 1)
	assert.Equal(t, sale.Items[0].ID, updated.Items[0].ID)
	assert.EqualValues(t, 4, updated.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(40).Equal(updated.Items[0].Subtotal))
	assert.True(t, decimal.NewFromInt(40).Equal(updated.TotalAmount))
	assert.Equal(t, []string{events.EventSaleCreated, events.EventSaleUpdated}, f.events.events)
}

func TestUpdateInsufficientStockKeepsPreUpdateLevels(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, CreateInput{
		CustomerID:  f.customer.ID,
		TotalAmount: decimal.NewFromInt(20),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	_, err = f.manager.Update(ctx, sale.ID, UpdateInput{
		TotalAmount: decimal.NewFromInt(60),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 6, UnitPrice: decimal.NewFromInt(10)}},
	})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "A", ise.ItemName)
	assert.EqualValues(t, 5, ise.Available)

	assert.EqualValues(t, 3, f.stock(t, f.itemA.ID))
	got, err := f.manager.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.EqualValues(t, 2, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(got.TotalAmount))
}

func TestUpdateReconcilesLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	c := &domain.Item{Name: "C", Price: decimal.NewFromInt(1), Stock: 10}
	require.NoError(t, f.store.Items.Create(ctx, c))

	paid := true
	updated, err := f.manager.Update(ctx, sale.ID, UpdateInput{
		TotalAmount: decimal.NewFromInt(99),
		Paid:        &paid,
		Items: []LineInput{
			{ItemID: f.itemA.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
			{ItemID: c.ID, Quantity: 7, UnitPrice: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 4, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.EqualValues(t, 3, f.stock(t, c.ID))
	assert.True(t, updated.Paid)
	assert.True(t, decimal.NewFromInt(99).Equal(updated.TotalAmount))

	require.Len(t, updated.Items, 2)
	got := map[int64]int64{}
	for _, l := range updated.Items {
		got[l.ItemID] = l.Quantity
	}
	assert.Equal(t, map[int64]int64{f.itemA.ID: 1, c.ID: 7}, got)

	_, err = f.manager.Delete(ctx, sale.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.EqualValues(t, 10, f.stock(t, c.ID))
}

func TestUpdateRejectsRepeatedItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	_, err = f.manager.Update(ctx, sale.ID, UpdateInput{
		TotalAmount: decimal.NewFromInt(20),
		Items: []LineInput{
			{ItemID: f.itemA.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
			{ItemID: f.itemA.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateMissingSale(t *testing.T) {
	f := setup(t)
	_, err := f.manager.Update(context.Background(), 999, UpdateInput{
		TotalAmount: decimal.NewFromInt(10),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
}

func TestCreateIdempotentReplaysStoredSale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, replayed, err := f.manager.CreateIdempotent(ctx, "order-1", nil, f.standardSale())
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.manager.CreateIdempotent(ctx, "order-1", nil, f.standardSale())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, f.countRows(t, "sales"))
	assert.EqualValues(t, 3, f.stock(t, f.itemA.ID))

	_, replayed, err = f.manager.CreateIdempotent(ctx, "", nil, f.standardSale())
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, f.countRows(t, "sales"))
}

func TestCreateRejectsQuantityOverflow(t *testing.T) {
	f := setup(t)
	in := CreateInput{
		CustomerID:  f.customer.ID,
		TotalAmount: decimal.Zero,
		Items: []LineInput{
			{ItemID: f.itemA.ID, Quantity: math.MaxInt64, UnitPrice: decimal.Zero},
			{ItemID: f.itemA.ID, Quantity: math.MaxInt64, UnitPrice: decimal.Zero},
		},
	}

	_, err := f.manager.Create(context.Background(), nil, in)
	require.ErrorIs(t, err, domain.ErrValidation)

	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.Equal(t, 0, f.countRows(t, "sales"))
	assert.Equal(t, 0, f.countRows(t, "sale_items"))
}

func TestDemandSumsPerItem(t *testing.T) {
	order, want, err := demand([]LineInput{
		{ItemID: 2, Quantity: 3},
		{ItemID: 1, Quantity: 1},
		{ItemID: 2, Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, order)
	assert.Equal(t, map[int64]int64{1: 1, 2: 7}, want)

	_, _, err = demand([]LineInput{
		{ItemID: 1, Quantity: math.MaxInt64 - 1},
		{ItemID: 1, Quantity: 2},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateRejectsSubCentPrice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	_, err = f.manager.Update(ctx, sale.ID, UpdateInput{
		TotalAmount: decimal.NewFromInt(10),
		Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 3, UnitPrice: decimal.RequireFromString("3.333")}},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.EqualValues(t, 3, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 2, f.stock(t, f.itemB.ID))
}

func TestConcurrentUpdateAndDeleteKeepStockConsistent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sale, err := f.manager.Create(ctx, nil, f.standardSale())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var updateErr, deleteErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, updateErr = f.manager.Update(ctx, sale.ID, UpdateInput{
			TotalAmount: decimal.NewFromInt(40),
			Items:       []LineInput{{ItemID: f.itemA.ID, Quantity: 4, UnitPrice: decimal.NewFromInt(10)}},
		})
	}()
	go func() {
		defer wg.Done()
		_, deleteErr = f.manager.Delete(ctx, sale.ID)
	}()
	wg.Wait()

	require.NoError(t, deleteErr)
	if updateErr != nil {
		assert.ErrorIs(t, updateErr, domain.ErrNotFound)
	}
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
	assert.EqualValues(t, 3, f.stock(t, f.itemB.ID))
	assert.Equal(t, 0, f.countRows(t, "sales"))
	assert.Equal(t, 0, f.countRows(t, "sale_items"))
}

func TestCreateIdempotentRefusesKeyInProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	key := fmt.Sprintf(cache.KeyIdemSaleCreate, "order-2")
	require.NoError(t, f.cache.Set(ctx, key, idemPending, time.Minute))

	_, _, err := f.manager.CreateIdempotent(ctx, "order-2", nil, f.standardSale())
	require.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, 0, f.countRows(t, "sales"))
	assert.EqualValues(t, 5, f.stock(t, f.itemA.ID))
}

func TestCreateIdempotentReleasesKeyOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := f.standardSale()
	in.Items[1].Quantity = 4

	_, _, err := f.manager.CreateIdempotent(ctx, "order-3", nil, in)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, ok, _ := f.cache.Get(ctx, fmt.Sprintf(cache.KeyIdemSaleCreate, "order-3"))
	assert.False(t, ok)

	require.NoError(t, f.store.Items.Increment(ctx, f.itemB.ID, 1))
	first, replayed, err := f.manager.CreateIdempotent(ctx, "order-3", nil, in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.manager.CreateIdempotent(ctx, "order-3", nil, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.countRows(t, "sales"))
}

func TestCreateIdempotentConcurrentSameKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const callers = 4
	var wg sync.WaitGroup
	created := make([]bool, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, replayed, err := f.manager.CreateIdempotent(ctx, "order-4", nil, f.standardSale())
			errs[i] = err
			created[i] = err == nil && !replayed
		}()
	}
	wg.Wait()

	fresh := 0
	for i := range callers {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], domain.ErrConflict)
		}
		if created[i] {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, f.countRows(t, "sales"))
	assert.EqualValues(t, 3, f.stock(t, f.itemA.ID))
}
