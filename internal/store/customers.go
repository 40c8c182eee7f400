package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockapp/m/domain"
	"stockapp/m/internal/database"
)

type CustomerRepo struct {
	q sqlx.ExtContext
}

type CustomerFilter struct {
	Page
	Search string
}

// CustomerUpdate lists the mutable customer fields.
type CustomerUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

const customerColumns = `id, name, email, phone, address, created_at, updated_at`

func (r *CustomerRepo) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	if err := getOne(ctx, r.q, &c, "customer", id, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// List matches Search case-insensitively against name, email and phone.
func (r *CustomerRepo) List(ctx context.Context, f CustomerFilter) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if f.Search != "" {
		query += ` WHERE LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ? OR LOWER(COALESCE(phone, '')) LIKE ?`
		p := likePattern(f.Search)
		args = append(args, p, p, p)
	}
	query += ` ORDER BY id` + f.clause()

	customers := []domain.Customer{}
	if err := sqlx.SelectContext(ctx, r.q, &customers, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	if err := r.ensureEmailFree(ctx, 0, c.Email); err != nil {
		return err
	}
	c.CreatedAt = now()
	id, err := insertID(ctx, r.q, `INSERT INTO customers (name, email, phone, address, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.Address, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Conflict("email")
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	c.ID = id
	return nil
}

func (r *CustomerRepo) Update(ctx context.Context, id int64, in CustomerUpdate) (*domain.Customer, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := r.ensureEmailFree(ctx, id, in.Email); err != nil {
		return nil, err
	}

	var set setList
	if in.Name != nil {
		set.add("name", *in.Name)
	}
	if in.Email != nil {
		set.add("email", *in.Email)
	}
	if in.Phone != nil {
		set.add("phone", *in.Phone)
	}
	if in.Address != nil {
		set.add("address", *in.Address)
	}
	if !set.empty() {
		set.add("updated_at", now())
		args := append(set.args, id)
		if _, err := exec(ctx, r.q, `UPDATE customers SET `+set.sql()+` WHERE id = ?`, args...); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, domain.Conflict("email")
			}
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return r.Get(ctx, id)
}

// Delete fails with a conflict while sales or payments reference the customer.
func (r *CustomerRepo) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.q, "customers", "customer", id)
}

func (r *CustomerRepo) ensureEmailFree(ctx context.Context, selfID int64, email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	var existing int64
	err := sqlx.GetContext(ctx, r.q, &existing, r.q.Rebind(`SELECT id FROM customers WHERE email = ?`), *email)
	switch {
	case err == nil && existing != selfID:
		return domain.Conflict("email")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check customer email: %w", err)
	}
	return nil
}
