package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"stockapp/m/domain"
)

type PaymentRepo struct {
	q sqlx.ExtContext
}

type PaymentFilter struct {
	Page
	CustomerID *int64
	SaleID     *int64
}

const paymentColumns = `id, customer_id, sale_id, amount, description, payment_date`

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now()
	}
	id, err := insertID(ctx, r.q, `INSERT INTO payments (customer_id, sale_id, amount, description, payment_date) VALUES (?, ?, ?, ?, ?)`,
		p.CustomerID, p.SaleID, p.Amount, p.Description, p.PaymentDate)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID = id
	return nil
}

// List returns payments oldest first, optionally narrowed to a customer or
// a sale.
func (r *PaymentRepo) List(ctx context.Context, f PaymentFilter) ([]domain.Payment, error) {
	var conds []string
	var args []any
	if f.CustomerID != nil {
		conds = append(conds, "customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.SaleID != nil {
		conds = append(conds, "sale_id = ?")
		args = append(args, *f.SaleID)
	}
	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY payment_date, id` + f.clause()

	payments := []domain.Payment{}
	if err := sqlx.SelectContext(ctx, r.q, &payments, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// SumBySale totals the payments recorded against a sale.
func (r *PaymentRepo) SumBySale(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := r.q.Rebind(`SELECT SUM(amount) FROM payments WHERE sale_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &total, query, saleID); err != nil {
		return decimal.Zero, fmt.Errorf("sum sale payments: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// DetachSale clears the sale reference of its payments so the sale can be
// removed while the ledger entries stay.
func (r *PaymentRepo) DetachSale(ctx context.Context, saleID int64) error {
	if _, err := exec(ctx, r.q, `UPDATE payments SET sale_id = NULL WHERE sale_id = ?`, saleID); err != nil {
		return fmt.Errorf("detach payments: %w", err)
	}
	return nil
}
