package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockapp/m/domain"
)

type StockUpdateRepo struct {
	q sqlx.ExtContext
}

func (r *StockUpdateRepo) Create(ctx context.Context, su *domain.StockUpdate) error {
	su.CreatedAt = now()
	id, err := insertID(ctx, r.q, `INSERT INTO stock_updates (item_id, quantity, created_at) VALUES (?, ?, ?)`,
		su.ItemID, su.Quantity, su.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock update: %w", err)
	}
	su.ID = id
	return nil
}

// List returns audit rows newest first with their item.
func (r *StockUpdateRepo) List(ctx context.Context, page Page) ([]domain.StockUpdate, error) {
	updates := []domain.StockUpdate{}
	query := `SELECT id, item_id, quantity, created_at FROM stock_updates ORDER BY created_at DESC, id DESC` + page.clause()
	if err := sqlx.SelectContext(ctx, r.q, &updates, query); err != nil {
		return nil, fmt.Errorf("list stock updates: %w", err)
	}

	ids := make([]int64, len(updates))
	for i, u := range updates {
		ids[i] = u.ItemID
	}
	items, err := (&ItemRepo{q: r.q}).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range updates {
		if it, ok := items[updates[i].ItemID]; ok {
			updates[i].Item = &it
		}
	}
	return updates, nil
}
