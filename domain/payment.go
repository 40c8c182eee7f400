package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID          int64           `db:"id" json:"id"`
	CustomerID  int64           `db:"customer_id" json:"customer_id"`
	SaleID      *int64          `db:"sale_id" json:"sale_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description *string         `db:"description" json:"description"`
	PaymentDate time.Time       `db:"payment_date" json:"payment_date"`
}
