// Package stats serves the read-only dashboard reports. A failing report
// degrades to an empty result; the fault is logged, not returned.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockapp/m/internal/cache"
)

const (
	topProductsLimit = 3
	topDebtorsLimit  = 5
	monthlyWindow    = 30 * 24 * time.Hour
)

type TopProduct struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	TotalQuantity int64           `db:"total_quantity" json:"total_quantity"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
}

type Monthly struct {
	TotalSales  int64           `db:"total_sales" json:"total_sales"`
	TotalIncome decimal.Decimal `db:"total_income" json:"total_income"`
}

type TopDebtor struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	TotalDebt decimal.Decimal `db:"total_debt" json:"total_debt"`
}

type Service struct {
	db    *sqlx.DB
	cache cache.Cache
	log   *zap.Logger
	now   func() time.Time
}

func NewService(db *sqlx.DB, c cache.Cache, log *zap.Logger) *Service {
	return &Service{db: db, cache: c, log: log, now: time.Now}
}

// TopProducts ranks items by quantity sold.
func (s *Service) TopProducts(ctx context.Context) []TopProduct {
	out := []TopProduct{}
	s.cached(ctx, "top-products", &out, func() error {
		query := s.db.Rebind(`SELECT i.id, i.name,
                SUM(si.quantity) AS total_quantity,
                SUM(si.subtotal) AS total_amount
            FROM sale_items si
            JOIN items i ON i.id = si.item_id
            GROUP BY i.id, i.name
            ORDER BY total_quantity DESC, i.id
            LIMIT ?`)
		return s.db.SelectContext(ctx, &out, query, topProductsLimit)
	})
	return out
}

// Monthly counts the sales of the last 30 days and sums their totals.
func (s *Service) Monthly(ctx context.Context) Monthly {
	out := Monthly{TotalIncome: decimal.Zero}
	s.cached(ctx, "monthly", &out, func() error {
		since := s.now().UTC().Add(-monthlyWindow)
		query := s.db.Rebind(`SELECT COUNT(id) AS total_sales, COALESCE(SUM(total_amount), 0) AS total_income
            FROM sales WHERE created_at >= ?`)
		return s.db.GetContext(ctx, &out, query, since)
	})
	return out
}

// TopDebtors ranks customers by sales total minus payments, owing only.
func (s *Service) TopDebtors(ctx context.Context) []TopDebtor {
	out := []TopDebtor{}
	s.cached(ctx, "top-debtors", &out, func() error {
		query := s.db.Rebind(`SELECT c.id, c.name, s.total - COALESCE(p.total, 0) AS total_debt
            FROM customers c
            JOIN (SELECT customer_id, SUM(total_amount) AS total FROM sales GROUP BY customer_id) s
                ON s.customer_id = c.id
            LEFT JOIN (SELECT customer_id, SUM(amount) AS total FROM payments GROUP BY customer_id) p
                ON p.customer_id = c.id
            WHERE s.total - COALESCE(p.total, 0) > 0
            ORDER BY total_debt DESC, c.id
            LIMIT ?`)
		return s.db.SelectContext(ctx, &out, query, topDebtorsLimit)
	})
	return out
}

// cached fills dest from the cache or by running load, storing fresh
// results. On a load fault dest is left at its empty value.
func (s *Service) cached(ctx context.Context, report string, dest any, load func() error) {
	key := fmt.Sprintf(cache.KeyStats, report)
	hit, err := cache.GetJSON(ctx, s.cache, key, dest)
	if err != nil {
		s.log.Warn("stats cache read failed", zap.String("report", report), zap.Error(err))
	}
	if hit {
		return
	}

	if err := load(); err != nil {
		s.log.Error("stats query failed", zap.String("report", report), zap.Error(err))
		resetEmpty(dest)
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, dest, cache.TTLStats); err != nil {
		s.log.Warn("stats cache write failed", zap.String("report", report), zap.Error(err))
	}
}

func resetEmpty(dest any) {
	switch d := dest.(type) {
	case *[]TopProduct:
		*d = []TopProduct{}
	case *[]TopDebtor:
		*d = []TopDebtor{}
	case *Monthly:
		*d = Monthly{TotalIncome: decimal.Zero}
	}
}
