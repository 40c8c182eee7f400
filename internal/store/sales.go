package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"stockapp/m/domain"
)

type SaleRepo struct {
	q sqlx.ExtContext
}

const (
	saleColumns     = `id, customer_id, user_id, total_amount, paid, created_at`
	saleItemColumns = `id, sale_id, item_id, quantity, unit_price, subtotal`
)

// Get returns the sale with its lines, customer, salesperson and payments.
func (r *SaleRepo) Get(ctx context.Context, id int64) (*domain.Sale, error) {
	s, err := r.GetRow(ctx, id)
	if err != nil {
		return nil, err
	}
	sales := []domain.Sale{*s}
	if err := r.attach(ctx, sales, true); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// GetRow returns the bare sale row.
func (r *SaleRepo) GetRow(ctx context.Context, id int64) (*domain.Sale, error) {
	var s domain.Sale
	if err := getOne(ctx, r.q, &s, "sale", id, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRowForUpdate is GetRow holding the row lock until the transaction
// ends, so concurrent edits of one sale see each other's lines.
func (r *SaleRepo) GetRowForUpdate(ctx context.Context, id int64) (*domain.Sale, error) {
	var s domain.Sale
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = ?` + forUpdate(r.q.DriverName())
	if err := getOne(ctx, r.q, &s, "sale", id, query, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sales newest first with lines and customer. Lines whose item
// no longer exists are left out.
func (r *SaleRepo) List(ctx context.Context, page Page) ([]domain.Sale, error) {
	sales := []domain.Sale{}
	query := `SELECT ` + saleColumns + ` FROM sales ORDER BY created_at DESC, id DESC` + page.clause()
	if err := sqlx.SelectContext(ctx, r.q, &sales, query); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if err := r.attach(ctx, sales, false); err != nil {
		return nil, err
	}
	return sales, nil
}

// ListByCustomer returns the customer's sales oldest first, with lines.
func (r *SaleRepo) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Sale, error) {
	sales := []domain.Sale{}
	query := r.q.Rebind(`SELECT ` + saleColumns + ` FROM sales WHERE customer_id = ? ORDER BY created_at, id`)
	if err := sqlx.SelectContext(ctx, r.q, &sales, query, customerID); err != nil {
		return nil, fmt.Errorf("list customer sales: %w", err)
	}
	if err := r.attach(ctx, sales, false); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *SaleRepo) Create(ctx context.Context, s *domain.Sale) error {
	s.CreatedAt = now()
	id, err := insertID(ctx, r.q, `INSERT INTO sales (customer_id, user_id, total_amount, paid, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.CustomerID, s.UserID, s.TotalAmount, s.Paid, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	s.ID = id
	return nil
}

// SetTotal stores the sale's total and paid flag.
func (r *SaleRepo) SetTotal(ctx context.Context, id int64, total decimal.Decimal, paid bool) error {
	n, err := exec(ctx, r.q, `UPDATE sales SET total_amount = ?, paid = ? WHERE id = ?`, total, paid, id)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if n == 0 {
		return domain.NotFound("sale", id)
	}
	return nil
}

func (r *SaleRepo) SetPaid(ctx context.Context, id int64, paid bool) error {
	if _, err := exec(ctx, r.q, `UPDATE sales SET paid = ? WHERE id = ?`, paid, id); err != nil {
		return fmt.Errorf("mark sale paid: %w", err)
	}
	return nil
}

// Backdate moves the sale's timestamp. Only generated data uses it.
func (r *SaleRepo) Backdate(ctx context.Context, id int64, at time.Time) error {
	if _, err := exec(ctx, r.q, `UPDATE sales SET created_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("backdate sale: %w", err)
	}
	return nil
}

// Delete removes the sale row only. Lines must be removed first.
func (r *SaleRepo) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.q, "sales", "sale", id)
}

// Lines returns the sale's line items in insertion order.
func (r *SaleRepo) Lines(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	lines := []domain.SaleItem{}
	query := r.q.Rebind(`SELECT ` + saleItemColumns + ` FROM sale_items WHERE sale_id = ? ORDER BY id`)
	if err := sqlx.SelectContext(ctx, r.q, &lines, query, saleID); err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}
	return lines, nil
}

func (r *SaleRepo) InsertLine(ctx context.Context, line *domain.SaleItem) error {
	id, err := insertID(ctx, r.q, `INSERT INTO sale_items (sale_id, item_id, quantity, unit_price, subtotal) VALUES (?, ?, ?, ?, ?)`,
		line.SaleID, line.ItemID, line.Quantity, line.UnitPrice, line.Subtotal)
	if err != nil {
		return fmt.Errorf("insert sale line: %w", err)
	}
	line.ID = id
	return nil
}

func (r *SaleRepo) UpdateLine(ctx context.Context, line domain.SaleItem) error {
	_, err := exec(ctx, r.q, `UPDATE sale_items SET quantity = ?, unit_price = ?, subtotal = ? WHERE id = ?`,
		line.Quantity, line.UnitPrice, line.Subtotal, line.ID)
	if err != nil {
		return fmt.Errorf("update sale line: %w", err)
	}
	return nil
}

func (r *SaleRepo) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := exec(ctx, r.q, `DELETE FROM sale_items WHERE id = ?`, lineID); err != nil {
		return fmt.Errorf("delete sale line: %w", err)
	}
	return nil
}

func (r *SaleRepo) DeleteLines(ctx context.Context, saleID int64) error {
	if _, err := exec(ctx, r.q, `DELETE FROM sale_items WHERE sale_id = ?`, saleID); err != nil {
		return fmt.Errorf("delete sale lines: %w", err)
	}
	return nil
}

// attach loads lines (with items), customers and, when full is set, users
// and payments for a batch of sales.
func (r *SaleRepo) attach(ctx context.Context, sales []domain.Sale, full bool) error {
	if len(sales) == 0 {
		return nil
	}
	saleIDs := make([]int64, len(sales))
	customerIDs := make([]int64, 0, len(sales))
	for i, s := range sales {
		saleIDs[i] = s.ID
		customerIDs = append(customerIDs, s.CustomerID)
	}

	query, args, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY id`, saleIDs)
	if err != nil {
		return err
	}
	var lines []domain.SaleItem
	if err := sqlx.SelectContext(ctx, r.q, &lines, r.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load sale lines: %w", err)
	}

	itemIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		itemIDs = append(itemIDs, l.ItemID)
	}
	items, err := (&ItemRepo{q: r.q}).GetMany(ctx, itemIDs)
	if err != nil {
		return err
	}

	linesBySale := make(map[int64][]domain.SaleItem)
	for _, l := range lines {
		it, ok := items[l.ItemID]
		if !ok {
			continue
		}
		l.Item = &it
		linesBySale[l.SaleID] = append(linesBySale[l.SaleID], l)
	}

	customers, err := r.customers(ctx, customerIDs)
	if err != nil {
		return err
	}

	for i := range sales {
		sales[i].Items = linesBySale[sales[i].ID]
		if sales[i].Items == nil {
			sales[i].Items = []domain.SaleItem{}
		}
		if c, ok := customers[sales[i].CustomerID]; ok {
			sales[i].Customer = &c
		}
	}

	if !full {
		return nil
	}
	for i := range sales {
		if sales[i].UserID != nil {
			u, err := (&UserRepo{q: r.q}).Get(ctx, *sales[i].UserID)
			if err == nil {
				sales[i].User = u
			}
		}
		payments, err := (&PaymentRepo{q: r.q}).List(ctx, PaymentFilter{SaleID: &sales[i].ID})
		if err != nil {
			return err
		}
		sales[i].Payments = payments
	}
	return nil
}

func (r *SaleRepo) customers(ctx context.Context, ids []int64) (map[int64]domain.Customer, error) {
	out := make(map[int64]domain.Customer, len(ids))
	query, args, err := sqlx.In(`SELECT `+customerColumns+` FROM customers WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var customers []domain.Customer
	if err := sqlx.SelectContext(ctx, r.q, &customers, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load sale customers: %w", err)
	}
	for _, c := range customers {
		out[c.ID] = c
	}
	return out, nil
}
