package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/cache"
	"stockapp/m/internal/events"
	"stockapp/m/internal/store"
	"stockapp/m/internal/testdb"
)

type fixture struct {
	svc   *Service
	store *store.Store
	alice *domain.Customer
	bob   *domain.Customer
	sale  *domain.Sale
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testdb.Open(t)
	st := store.New(db)

	alice := &domain.Customer{Name: "Alice"}
	require.NoError(t, st.Customers.Create(ctx, alice))
	bob := &domain.Customer{Name: "Bob"}
	require.NoError(t, st.Customers.Create(ctx, bob))
	sale := &domain.Sale{CustomerID: alice.ID, TotalAmount: decimal.NewFromInt(30)}
	require.NoError(t, st.Sales.Create(ctx, sale))

	return &fixture{
		svc:   NewService(db, events.Nop{}, cache.Nop{}, zap.NewNop()),
		store: st,
		alice: alice,
		bob:   bob,
		sale:  sale,
	}
}

func TestCreateMarksSalePaidWhenCovered(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, SaleID: &f.sale.ID, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	sale, err := f.store.Sales.GetRow(ctx, f.sale.ID)
	require.NoError(t, err)
	assert.False(t, sale.Paid)

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, SaleID: &f.sale.ID, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	sale, err = f.store.Sales.GetRow(ctx, f.sale.ID)
	require.NoError(t, err)
	assert.True(t, sale.Paid)
}

func TestCreateRejectsForeignSale(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), CreateInput{CustomerID: f.bob.ID, SaleID: &f.sale.ID, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	payments, err := f.svc.List(context.Background(), store.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	missing := int64(999)

	_, err := f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, Amount: decimal.RequireFromString("1.005")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: missing, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, SaleID: &missing, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatementBalances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	second := &domain.Sale{CustomerID: f.alice.ID, TotalAmount: decimal.RequireFromString("12.50")}
	require.NoError(t, f.store.Sales.Create(ctx, second))

	_, err := f.svc.Create(ctx, CreateInput{CustomerID: f.alice.ID, Amount: decimal.NewFromInt(15)})
	require.NoError(t, err)

	st, err := f.svc.Statement(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, st.Sales, 2)
	assert.Len(t, st.Payments, 1)
	assert.Equal(t, "42.5", st.TotalSales.String())
	assert.Equal(t, "15", st.TotalPaid.String())
	assert.Equal(t, "27.5", st.Balance.String())

	_, err = f.svc.Statement(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
