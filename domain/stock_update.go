package domain

import "time"

// StockUpdate is the audit row of a manual stock adjustment.
type StockUpdate struct {
	ID        int64     `db:"id" json:"id"`
	ItemID    int64     `db:"item_id" json:"item_id"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Item *Item `db:"-" json:"item"`
}
