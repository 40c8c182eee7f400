package sales

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"stockapp/m/domain"
)

type LineInput struct {
	ItemID    int64           `json:"item_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateInput struct {
	CustomerID  int64           `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Paid        bool            `json:"paid"`
	Items       []LineInput     `json:"items"`
}

// UpdateInput replaces a sale's lines and total. A nil Paid keeps the
// current flag.
type UpdateInput struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	Paid        *bool           `json:"paid"`
	Items       []LineInput     `json:"items"`
}

func (in CreateInput) Validate() error {
	if in.CustomerID <= 0 {
		return domain.Invalid("customer_id", "must be positive")
	}
	if err := validateTotal(in.TotalAmount); err != nil {
		return err
	}
	return validateLines(in.Items, false)
}

func (in UpdateInput) Validate() error {
	if err := validateTotal(in.TotalAmount); err != nil {
		return err
	}
	return validateLines(in.Items, true)
}

func validateTotal(total decimal.Decimal) error {
	if total.IsNegative() {
		return domain.Invalid("total_amount", "must not be negative")
	}
	if !domain.IsMoney(total) {
		return domain.Invalid("total_amount", "must have at most 2 decimal places")
	}
	return nil
}

// validateLines checks every line. Lines are keyed by item when replacing a
// sale, so a repeated item is rejected there.
func validateLines(lines []LineInput, unique bool) error {
	if len(lines) == 0 {
		return domain.Invalid("items", "at least one line is required")
	}
	seen := make(map[int64]bool, len(lines))
	for i, l := range lines {
		field := fmt.Sprintf("items[%d]", i)
		if l.ItemID <= 0 {
			return domain.Invalid(field+".item_id", "must be positive")
		}
		if l.Quantity <= 0 {
			return domain.Invalid(field+".quantity", "must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			return domain.Invalid(field+".unit_price", "must not be negative")
		}
		if !domain.IsMoney(l.UnitPrice) {
			return domain.Invalid(field+".unit_price", "must have at most 2 decimal places")
		}
		if unique && seen[l.ItemID] {
			return domain.Invalid(field+".item_id", fmt.Sprintf("item %d is listed more than once", l.ItemID))
		}
		seen[l.ItemID] = true
	}
	_, _, err := demand(lines)
	return err
}

// demand sums quantities per item, keeping first-seen order. A sum that
// does not fit in int64 is rejected.
func demand(lines []LineInput) ([]int64, map[int64]int64, error) {
	var order []int64
	qty := make(map[int64]int64, len(lines))
	for i, l := range lines {
		sum, ok := qty[l.ItemID]
		if !ok {
			order = append(order, l.ItemID)
		}
		if sum > math.MaxInt64-l.Quantity {
			return nil, nil, domain.Invalid(fmt.Sprintf("items[%d].quantity", i),
				fmt.Sprintf("total quantity for item %d is too large", l.ItemID))
		}
		qty[l.ItemID] = sum + l.Quantity
	}
	return order, qty, nil
}

func linesTotal(lines []LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(domain.LineSubtotal(l.Quantity, l.UnitPrice))
	}
	return total
}
