package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money columns keep.
const MoneyScale = 2

func init() {
	// Amounts travel as JSON numbers, the way the clients send them.
	decimal.MarshalJSONWithoutQuotes = true
}

// IsMoney reports whether d is stored without rounding in a money column.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
