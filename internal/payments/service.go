// Package payments records customer payments and builds account statements.
package payments

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/cache"
	"stockapp/m/internal/database"
	"stockapp/m/internal/events"
	"stockapp/m/internal/store"
)

type CreateInput struct {
	CustomerID  int64           `json:"customer_id"`
	SaleID      *int64          `json:"sale_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description"`
}

func (in CreateInput) Validate() error {
	if in.CustomerID <= 0 {
		return domain.Invalid("customer_id", "must be positive")
	}
	if !in.Amount.IsPositive() {
		return domain.Invalid("amount", "must be greater than zero")
	}
	if !domain.IsMoney(in.Amount) {
		return domain.Invalid("amount", "must have at most 2 decimal places")
	}
	return nil
}

// Statement is a customer's account: what was sold, what was paid, and the
// balance still owed.
type Statement struct {
	Customer   domain.Customer  `json:"customer"`
	Sales      []domain.Sale    `json:"sales"`
	Payments   []domain.Payment `json:"payments"`
	TotalSales decimal.Decimal  `json:"total_sales"`
	TotalPaid  decimal.Decimal  `json:"total_paid"`
	Balance    decimal.Decimal  `json:"balance"`
}

type Service struct {
	db     *sqlx.DB
	events events.Publisher
	cache  cache.Cache
	log    *zap.Logger
}

func NewService(db *sqlx.DB, pub events.Publisher, c cache.Cache, log *zap.Logger) *Service {
	return &Service{db: db, events: pub, cache: c, log: log}
}

// Create records a payment. A payment against a sale must come from the
// sale's customer; once the sale's payments cover its total it is marked
// paid.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := &domain.Payment{
		CustomerID:  in.CustomerID,
		SaleID:      in.SaleID,
		Amount:      in.Amount,
		Description: in.Description,
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		st := store.New(tx)
		if _, err := st.Customers.Get(ctx, in.CustomerID); err != nil {
			return err
		}

		var sale *domain.Sale
		if in.SaleID != nil {
			var err error
			sale, err = st.Sales.GetRow(ctx, *in.SaleID)
			if err != nil {
				return err
			}
			if sale.CustomerID != in.CustomerID {
				return domain.Invalid("sale_id", fmt.Sprintf("sale %d does not belong to customer %d", sale.ID, in.CustomerID))
			}
		}

		if err := st.Payments.Create(ctx, p); err != nil {
			return err
		}
		if sale == nil || sale.Paid {
			return nil
		}

		paid, err := st.Payments.SumBySale(ctx, sale.ID)
		if err != nil {
			return err
		}
		if paid.GreaterThanOrEqual(sale.TotalAmount) {
			return st.Sales.SetPaid(ctx, sale.ID, true)
		}
		return nil
	})
	if err != nil {
		return nil, domain.TxFailed("record payment", err)
	}

	s.log.Info("payment recorded",
		zap.Int64("payment_id", p.ID),
		zap.Int64("customer_id", p.CustomerID),
		zap.String("amount", p.Amount.String()))
	s.events.Publish(ctx, events.EventPaymentRecorded, p.ID, events.PaymentRecordedPayload{
		PaymentID:  p.ID,
		CustomerID: p.CustomerID,
		SaleID:     p.SaleID,
		Amount:     p.Amount,
	})
	if err := s.cache.Del(ctx, cache.StatsKeys...); err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f store.PaymentFilter) ([]domain.Payment, error) {
	return store.New(s.db).Payments.List(ctx, f)
}

func (s *Service) Statement(ctx context.Context, customerID int64) (*Statement, error) {
	st := store.New(s.db)
	c, err := st.Customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sales, err := st.Sales.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	payments, err := st.Payments.List(ctx, store.PaymentFilter{CustomerID: &customerID})
	if err != nil {
		return nil, err
	}

	out := &Statement{
		Customer:   *c,
		Sales:      sales,
		Payments:   payments,
		TotalSales: decimal.Zero,
		TotalPaid:  decimal.Zero,
	}
	for _, sale := range sales {
		out.TotalSales = out.TotalSales.Add(sale.TotalAmount)
	}
	for _, p := range payments {
		out.TotalPaid = out.TotalPaid.Add(p.Amount)
	}
	out.Balance = out.TotalSales.Sub(out.TotalPaid)
	return out, nil
}
