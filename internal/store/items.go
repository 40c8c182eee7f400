package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"stockapp/m/domain"
)

type ItemRepo struct {
	q sqlx.ExtContext
}

type ItemFilter struct {
	Page
	Search    string
	SortBy    string
	SortOrder string
}

// ItemUpdate lists the catalogue fields an edit may change. Stock is moved
// only by sales and stock updates.
type ItemUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
}

const itemColumns = `id, name, description, price, stock, created_at, updated_at`

var itemSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"created_at": "created_at",
}

func (r *ItemRepo) Get(ctx context.Context, id int64) (*domain.Item, error) {
	var it domain.Item
	if err := getOne(ctx, r.q, &it, "item", id, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetMany returns the items that exist among ids, keyed by id.
func (r *ItemRepo) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Item, error) {
	out := make(map[int64]domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var items []domain.Item
	if err := sqlx.SelectContext(ctx, r.q, &items, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// List searches name and description case-insensitively. Unknown sort
// columns fall back to id.
func (r *ItemRepo) List(ctx context.Context, f ItemFilter) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if f.Search != "" {
		query += ` WHERE LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?`
		p := likePattern(f.Search)
		args = append(args, p, p)
	}

	orderBy, ok := itemSortColumns[f.SortBy]
	if !ok {
		orderBy = "id"
	}
	if strings.ToLower(f.SortOrder) == "desc" {
		orderBy += " DESC"
	} else {
		orderBy += " ASC"
	}
	query += ` ORDER BY ` + orderBy + f.clause()

	items := []domain.Item{}
	if err := sqlx.SelectContext(ctx, r.q, &items, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// LowStock returns items whose stock is below threshold, lowest first.
func (r *ItemRepo) LowStock(ctx context.Context, threshold int64) ([]domain.Item, error) {
	items := []domain.Item{}
	query := r.q.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE stock < ? ORDER BY stock, id`)
	if err := sqlx.SelectContext(ctx, r.q, &items, query, threshold); err != nil {
		return nil, fmt.Errorf("list low stock items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) Create(ctx context.Context, it *domain.Item) error {
	if it.Stock < 0 {
		return domain.Invalid("stock", "must not be negative")
	}
	it.CreatedAt = now()
	id, err := insertID(ctx, r.q, `INSERT INTO items (name, description, price, stock, created_at) VALUES (?, ?, ?, ?, ?)`,
		it.Name, it.Description, it.Price, it.Stock, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	it.ID = id
	return nil
}

func (r *ItemRepo) Update(ctx context.Context, id int64, in ItemUpdate) (*domain.Item, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	var set setList
	if in.Name != nil {
		set.add("name", *in.Name)
	}
	if in.Description != nil {
		set.add("description", *in.Description)
	}
	if in.Price != nil {
		set.add("price", *in.Price)
	}
	if !set.empty() {
		set.add("updated_at", now())
		args := append(set.args, id)
		if _, err := exec(ctx, r.q, `UPDATE items SET `+set.sql()+` WHERE id = ?`, args...); err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	}
	return r.Get(ctx, id)
}

// Delete fails with a conflict while sale lines or stock updates reference
// the item.
func (r *ItemRepo) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.q, "items", "item", id)
}

// Decrement takes qty off the item's stock only if enough is on hand. It
// reports false when the guard rejected the write.
func (r *ItemRepo) Decrement(ctx context.Context, id, qty int64) (bool, error) {
	if qty <= 0 {
		return false, domain.Invalid("quantity", "must be greater than zero")
	}
	n, err := exec(ctx, r.q, `UPDATE items SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
		qty, now(), id, qty)
	if err != nil {
		return false, fmt.Errorf("decrement stock of item %d: %w", id, err)
	}
	return n == 1, nil
}

// Increment adds delta (which may be negative) to the item's stock without
// a floor.
func (r *ItemRepo) Increment(ctx context.Context, id, delta int64) error {
	n, err := exec(ctx, r.q, `UPDATE items SET stock = stock + ?, updated_at = ? WHERE id = ?`, delta, now(), id)
	if err != nil {
		return fmt.Errorf("adjust stock of item %d: %w", id, err)
	}
	if n == 0 {
		return domain.NotFound("item", id)
	}
	return nil
}

// ExistsByName reports whether an item with exactly this name is stored.
func (r *ItemRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind(`SELECT COUNT(*) FROM items WHERE name = ?`), name); err != nil {
		return false, err
	}
	return n > 0, nil
}
