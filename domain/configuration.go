package domain

import "time"

type Configuration struct {
	ID          int64      `db:"id" json:"id"`
	Key         string     `db:"key" json:"key"`
	Value       string     `db:"value" json:"value"`
	Description *string    `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at"`
}

const ConfigLowStockThreshold = "low_stock_threshold"
