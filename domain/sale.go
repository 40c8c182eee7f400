package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID          int64           `db:"id" json:"id"`
	CustomerID  int64           `db:"customer_id" json:"customer_id"`
	UserID      *int64          `db:"user_id" json:"user_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Paid        bool            `db:"paid" json:"paid"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`

	Items    []SaleItem `db:"-" json:"items"`
	Customer *Customer  `db:"-" json:"customer"`
	User     *User      `db:"-" json:"user"`
	Payments []Payment  `db:"-" json:"payments"`
}

type SaleItem struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`

	Item *Item `db:"-" json:"item"`
}

// LineSubtotal is quantity x unit price.
func LineSubtotal(quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}
