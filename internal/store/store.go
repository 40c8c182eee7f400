// Package store is the record store: one repository per table, all bound to
// an sqlx.ExtContext so the same code runs on the pool or inside a
// transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"stockapp/m/domain"
	"stockapp/m/internal/database"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Store groups the repositories that share one queryer.
type Store struct {
	Users          *UserRepo
	Customers      *CustomerRepo
	Items          *ItemRepo
	Sales          *SaleRepo
	StockUpdates   *StockUpdateRepo
	Payments       *PaymentRepo
	Configurations *ConfigurationRepo
}

func New(q sqlx.ExtContext) *Store {
	return &Store{
		Users:          &UserRepo{q: q},
		Customers:      &CustomerRepo{q: q},
		Items:          &ItemRepo{q: q},
		Sales:          &SaleRepo{q: q},
		StockUpdates:   &StockUpdateRepo{q: q},
		Payments:       &PaymentRepo{q: q},
		Configurations: &ConfigurationRepo{q: q},
	}
}

// Page is a skip/limit window. A non-positive limit means the default.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) clause() string {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	skip := p.Skip
	if skip < 0 {
		skip = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, skip)
}

// setList collects the assignments of a partial update.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setList) empty() bool { return len(s.cols) == 0 }

func (s *setList) sql() string { return strings.Join(s.cols, ", ") }

func now() time.Time { return time.Now().UTC() }

func getOne(ctx context.Context, q sqlx.ExtContext, dest any, entity string, id any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return err
}

func insertID(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, q.Rebind(query+" RETURNING id"), args...)
	return id, err
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// deleteByID removes one row and reports NotFound or InUse.
func deleteByID(ctx context.Context, q sqlx.ExtContext, table, entity string, id int64) error {
	n, err := exec(ctx, q, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return domain.InUse(entity, id)
		}
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

// forUpdate is the row-lock suffix for driver. SQLite takes no row locks;
// its single connection already serializes writers.
func forUpdate(driver string) string {
	if driver == database.DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
