// Package sales keeps sale rows, their lines and item stock consistent.
// Every write runs in one transaction: either all stock movements and row
// changes land, or none do.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/cache"
	"stockapp/m/internal/database"
	"stockapp/m/internal/events"
	"stockapp/m/internal/store"
)

type Manager struct {
	db     *sqlx.DB
	events events.Publisher
	cache  cache.Cache
	log    *zap.Logger
}

func NewManager(db *sqlx.DB, pub events.Publisher, c cache.Cache, log *zap.Logger) *Manager {
	return &Manager{db: db, events: pub, cache: c, log: log}
}

func (m *Manager) Get(ctx context.Context, id int64) (*domain.Sale, error) {
	return store.New(m.db).Sales.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, page store.Page) ([]domain.Sale, error) {
	return store.New(m.db).Sales.List(ctx, page)
}

// Create records a sale and takes its quantities out of stock. The customer
// and every item are checked before anything is written.
func (m *Manager) Create(ctx context.Context, userID *int64, in CreateInput) (*domain.Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *domain.Sale
	err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		s := store.New(tx)

		if _, err := s.Customers.Get(ctx, in.CustomerID); err != nil {
			return err
		}
		order, want, err := demand(in.Items)
		if err != nil {
			return err
		}
		items, err := checkStock(ctx, s, order, want)
		if err != nil {
			return err
		}

		sale := &domain.Sale{
			CustomerID:  in.CustomerID,
			UserID:      userID,
			TotalAmount: in.TotalAmount,
			Paid:        in.Paid,
		}
		if err := s.Sales.Create(ctx, sale); err != nil {
			return err
		}
		for _, l := range in.Items {
			line := &domain.SaleItem{
				SaleID:    sale.ID,
				ItemID:    l.ItemID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Subtotal:  domain.LineSubtotal(l.Quantity, l.UnitPrice),
			}
			if err := s.Sales.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		for _, id := range order {
			if err := take(ctx, s, items[id], want[id]); err != nil {
				return err
			}
		}

		created, err = s.Sales.Get(ctx, sale.ID)
		return err
	})
	if err != nil {
		return nil, domain.TxFailed("create sale", err)
	}

	m.checkTotal(created.ID, in.TotalAmount, in.Items)
	m.log.Info("sale created",
		zap.Int64("sale_id", created.ID),
		zap.Int64("customer_id", created.CustomerID),
		zap.Int("lines", len(created.Items)),
		zap.String("total_amount", created.TotalAmount.String()))
	m.afterCommit(ctx, events.EventSaleCreated, created)
	return created, nil
}

// idemPending marks a key reserved by a request that is still creating its
// sale.
const idemPending = "pending"

// CreateIdempotent is Create keyed by a client-supplied key. The key is
// reserved before the sale is written, so concurrent requests with one key
// create at most one sale. A replay within the key's lifetime returns the
// sale recorded the first time, with replayed set.
func (m *Manager) CreateIdempotent(ctx context.Context, key string, userID *int64, in CreateInput) (sale *domain.Sale, replayed bool, err error) {
	if key == "" {
		sale, err = m.Create(ctx, userID, in)
		return sale, false, err
	}

	cacheKey := fmt.Sprintf(cache.KeyIdemSaleCreate, key)
	sale, err = m.replay(ctx, key, cacheKey)
	if err != nil || sale != nil {
		return sale, sale != nil, err
	}

	reserved, err := m.cache.SetNX(ctx, cacheKey, idemPending, cache.TTLIdemPending)
	if err != nil {
		m.log.Warn("idempotency reservation failed", zap.String("key", key), zap.Error(err))
	} else if !reserved {
		sale, err = m.replay(ctx, key, cacheKey)
		if err != nil || sale != nil {
			return sale, sale != nil, err
		}
		return nil, false, idemInProgress(key)
	}

	sale, err = m.Create(ctx, userID, in)
	if err != nil {
		if reserved {
			if derr := m.cache.Del(ctx, cacheKey); derr != nil {
				m.log.Warn("idempotency release failed", zap.String("key", key), zap.Error(derr))
			}
		}
		return nil, false, err
	}
	if err := m.cache.Set(ctx, cacheKey, strconv.FormatInt(sale.ID, 10), cache.TTLIdempotency); err != nil {
		m.log.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
	}
	return sale, false, nil
}

// replay returns the sale stored under cacheKey, or nil when there is none.
// A key naming a sale that has since been deleted is dropped.
func (m *Manager) replay(ctx context.Context, key, cacheKey string) (*domain.Sale, error) {
	raw, ok, err := m.cache.Get(ctx, cacheKey)
	if err != nil {
		m.log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	if raw == idemPending {
		return nil, idemInProgress(key)
	}

	id, perr := strconv.ParseInt(raw, 10, 64)
	if perr == nil {
		sale, err := m.Get(ctx, id)
		if err == nil {
			return sale, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if err := m.cache.Del(ctx, cacheKey); err != nil {
		m.log.Warn("idempotency cleanup failed", zap.String("key", key), zap.Error(err))
	}
	return nil, nil
}

func idemInProgress(key string) error {
	return &domain.ConflictError{
		Field:   "idempotency_key",
		Message: fmt.Sprintf("a request with idempotency key %q is still in progress", key),
	}
}

// Delete puts every line's quantity back in stock and removes the sale and
// its lines. Payments against the sale stay in the ledger, detached.
func (m *Manager) Delete(ctx context.Context, id int64) (*domain.Sale, error) {
	var deleted *domain.Sale
	err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		s := store.New(tx)

		if _, err := s.Sales.GetRowForUpdate(ctx, id); err != nil {
			return err
		}
		sale, err := s.Sales.Get(ctx, id)
		if err != nil {
			return err
		}
		lines, err := s.Sales.Lines(ctx, id)
		if err != nil {
			return err
		}
		if err := restore(ctx, s, lines); err != nil {
			return err
		}
		if err := s.Payments.DetachSale(ctx, id); err != nil {
			return err
		}
		if err := s.Sales.DeleteLines(ctx, id); err != nil {
			return err
		}
		if err := s.Sales.Delete(ctx, id); err != nil {
			return err
		}
		deleted = sale
		return nil
	})
	if err != nil {
		return nil, domain.TxFailed("delete sale", err)
	}

	m.log.Info("sale deleted", zap.Int64("sale_id", id), zap.Int("lines", len(deleted.Items)))
	m.afterCommit(ctx, events.EventSaleDeleted, deleted)
	return deleted, nil
}

// Update replaces the sale's lines. Stock of the current lines is restored
// first, then each new line is taken out again; a line that cannot be
// covered aborts the whole update. The total is stored as given.
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*domain.Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Sale
	err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		s := store.New(tx)

		sale, err := s.Sales.GetRowForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current, err := s.Sales.Lines(ctx, id)
		if err != nil {
			return err
		}
		if err := restore(ctx, s, current); err != nil {
			return err
		}

		order, want, err := demand(in.Items)
		if err != nil {
			return err
		}
		items, err := checkStock(ctx, s, order, want)
		if err != nil {
			return err
		}
		for _, itemID := range order {
			if err := take(ctx, s, items[itemID], want[itemID]); err != nil {
				return err
			}
		}

		if err := reconcile(ctx, s, id, current, in.Items); err != nil {
			return err
		}

		paid := sale.Paid
		if in.Paid != nil {
			paid = *in.Paid
		}
		if err := s.Sales.SetTotal(ctx, id, in.TotalAmount, paid); err != nil {
			return err
		}

		updated, err = s.Sales.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, domain.TxFailed("update sale", err)
	}

	m.checkTotal(id, in.TotalAmount, in.Items)
	m.log.Info("sale updated", zap.Int64("sale_id", id), zap.Int("lines", len(updated.Items)))
	m.afterCommit(ctx, events.EventSaleUpdated, updated)
	return updated, nil
}

// checkStock loads the requested items and verifies each can cover its
// summed quantity.
func checkStock(ctx context.Context, s *store.Store, order []int64, want map[int64]int64) (map[int64]domain.Item, error) {
	items, err := s.Items.GetMany(ctx, order)
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		it, ok := items[id]
		if !ok {
			return nil, domain.NotFound("item", id)
		}
		if it.Stock < want[id] {
			return nil, &domain.InsufficientStockError{ItemID: id, ItemName: it.Name, Requested: want[id], Available: it.Stock}
		}
	}
	return items, nil
}

// take decrements stock under the stock >= qty guard. Losing a race to
// another writer reports the stock that is left.
func take(ctx context.Context, s *store.Store, it domain.Item, qty int64) error {
	ok, err := s.Items.Decrement(ctx, it.ID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	available := it.Stock
	if fresh, err := s.Items.Get(ctx, it.ID); err == nil {
		available = fresh.Stock
	}
	return &domain.InsufficientStockError{ItemID: it.ID, ItemName: it.Name, Requested: qty, Available: available}
}

// restore returns every line's quantity to stock. Lines whose item is gone
// have nothing to restore.
func restore(ctx context.Context, s *store.Store, lines []domain.SaleItem) error {
	for _, l := range lines {
		err := s.Items.Increment(ctx, l.ItemID, l.Quantity)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// reconcile rewrites the line rows: same item updates in place, new items
// are inserted, items no longer listed are removed.
func reconcile(ctx context.Context, s *store.Store, saleID int64, current []domain.SaleItem, next []LineInput) error {
	byItem := make(map[int64]domain.SaleItem, len(current))
	for _, l := range current {
		byItem[l.ItemID] = l
	}

	kept := make(map[int64]bool, len(next))
	for _, l := range next {
		subtotal := domain.LineSubtotal(l.Quantity, l.UnitPrice)
		if existing, ok := byItem[l.ItemID]; ok {
			existing.Quantity = l.Quantity
			existing.UnitPrice = l.UnitPrice
			existing.Subtotal = subtotal
			if err := s.Sales.UpdateLine(ctx, existing); err != nil {
				return err
			}
			kept[existing.ID] = true
			continue
		}
		line := &domain.SaleItem{SaleID: saleID, ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Subtotal: subtotal}
		if err := s.Sales.InsertLine(ctx, line); err != nil {
			return err
		}
		kept[line.ID] = true
	}

	for _, l := range current {
		if kept[l.ID] {
			continue
		}
		if err := s.Sales.DeleteLine(ctx, l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkTotal(saleID int64, total decimal.Decimal, lines []LineInput) {
	if sum := linesTotal(lines); !sum.Equal(total) {
		m.log.Warn("sale total differs from line subtotals",
			zap.Int64("sale_id", saleID),
			zap.String("total_amount", total.String()),
			zap.String("lines_total", sum.String()))
	}
}

func (m *Manager) afterCommit(ctx context.Context, eventType string, sale *domain.Sale) {
	m.events.Publish(ctx, eventType, sale.ID, salePayload(sale))
	if err := m.cache.Del(ctx, cache.StatsKeys...); err != nil {
		m.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func salePayload(sale *domain.Sale) events.SalePayload {
	p := events.SalePayload{
		SaleID:      sale.ID,
		CustomerID:  sale.CustomerID,
		UserID:      sale.UserID,
		TotalAmount: sale.TotalAmount,
		Paid:        sale.Paid,
		Lines:       make([]events.SaleLine, 0, len(sale.Items)),
	}
	for _, l := range sale.Items {
		p.Lines = append(p.Lines, events.SaleLine{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return p
}
