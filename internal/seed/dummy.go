package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/auth"
	"stockapp/m/internal/database"
	"stockapp/m/internal/payments"
	"stockapp/m/internal/sales"
	"stockapp/m/internal/store"
)

const (
	dummySales        = 60
	dummyMaxLines     = 5
	dummyMaxQuantity  = 5
	dummyHistoryDays  = 90
	dummyUserPassword = "password123"
)

// wipeOrder deletes children before parents. Users and configurations
// survive a reload.
var wipeOrder = []string{"payments", "stock_updates", "sale_items", "sales", "items", "customers"}

var dummyUsers = []struct {
	username string
	admin    bool
}{
	{"seller1", false},
	{"seller2", false},
	{"seller3", false},
	{"seller4", false},
	{"supervisor", true},
}

var dummyCustomers = []struct {
	name, email, phone, address string
}{
	{"Alice Moreno", "alice.moreno@example.com", "555-0101", "12 Harbor St"},
	{"Bruno Diaz", "bruno.diaz@example.com", "555-0102", "4 Elm Ave"},
	{"Carla Nunez", "carla.nunez@example.com", "555-0103", "88 Pine Rd"},
	{"Daniel Rojas", "daniel.rojas@example.com", "555-0104", "301 Oak Blvd"},
	{"Elena Vidal", "elena.vidal@example.com", "555-0105", "7 Cedar Ln"},
	{"Felipe Soto", "felipe.soto@example.com", "555-0106", "19 Maple Ct"},
	{"Gabriela Pena", "gabriela.pena@example.com", "555-0107", "55 Birch Way"},
	{"Hugo Castro", "hugo.castro@example.com", "555-0108", "230 Willow Dr"},
	{"Irene Fuentes", "irene.fuentes@example.com", "555-0109", "9 Spruce Pl"},
	{"Javier Ortiz", "javier.ortiz@example.com", "555-0110", "61 Aspen St"},
	{"Karen Silva", "karen.silva@example.com", "555-0111", "140 Poplar Ave"},
	{"Luis Herrera", "luis.herrera@example.com", "555-0112", "3 Chestnut Rd"},
}

var dummyProducts = []struct {
	name, description, price string
}{
	{"Rice 1kg", "Long grain white rice", "1.80"},
	{"Black Beans 500g", "Dried black beans", "1.25"},
	{"Olive Oil 500ml", "Extra virgin olive oil", "6.40"},
	{"Whole Milk 1L", "Pasteurised whole milk", "1.10"},
	{"Butter 250g", "Salted butter", "2.75"},
	{"Eggs x12", "Free range eggs", "3.20"},
	{"Bread Loaf", "Sliced wheat bread", "2.10"},
	{"Coffee 250g", "Ground roasted coffee", "4.90"},
	{"Black Tea x25", "Tea bags", "2.30"},
	{"Sugar 1kg", "Refined white sugar", "1.05"},
	{"Pasta 500g", "Durum wheat spaghetti", "1.40"},
	{"Tomato Sauce 400g", "Crushed tomatoes", "1.15"},
	{"Cheddar 200g", "Mature cheddar cheese", "3.60"},
	{"Orange Juice 1L", "Not from concentrate", "2.95"},
	{"Dish Soap 750ml", "Lemon dish soap", "2.05"},
	{"Laundry Powder 2kg", "Powder detergent", "7.80"},
	{"Toilet Paper x6", "Double ply rolls", "4.15"},
	{"Shampoo 400ml", "Everyday shampoo", "3.85"},
	{"Toothpaste 100ml", "Fluoride toothpaste", "1.95"},
	{"Apples 1kg", "Red apples", "2.40"},
	{"Bananas 1kg", "Ripe bananas", "1.30"},
	{"Chicken Breast 1kg", "Fresh chicken breast", "8.90"},
	{"Ground Beef 500g", "Lean ground beef", "5.60"},
	{"Sparkling Water 1.5L", "Mineral water", "0.95"},
}

var dummyVariants = []struct {
	suffix string
	factor string
}{
	{"Value Pack", "0.90"},
	{"Family Size", "1.75"},
}

// Summary counts what a dummy data load created.
type Summary struct {
	Message   string `json:"message"`
	Users     int    `json:"users"`
	Customers int    `json:"customers"`
	Products  int    `json:"products"`
	Sales     int    `json:"sales"`
	Payments  int    `json:"payments"`
}

// Generator replaces the business data with a generated but consistent data
// set. Sales go through the sale manager, so stock always matches the lines.
type Generator struct {
	db       *sqlx.DB
	sales    *sales.Manager
	payments *payments.Service
	log      *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

func NewGenerator(db *sqlx.DB, sm *sales.Manager, ps *payments.Service, log *zap.Logger) *Generator {
	seed := uint64(time.Now().UnixNano())
	return &Generator{
		db:       db,
		sales:    sm,
		payments: ps,
		log:      log,
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	if err := g.wipe(ctx); err != nil {
		return nil, err
	}

	users, err := g.users(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := g.customers(ctx)
	if err != nil {
		return nil, err
	}
	items, err := g.items(ctx)
	if err != nil {
		return nil, err
	}
	created, err := g.generateSales(ctx, users, customers, items)
	if err != nil {
		return nil, err
	}
	paid, err := g.generatePayments(ctx, created)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Message:   "Dummy data loaded successfully",
		Users:     len(users),
		Customers: len(customers),
		Products:  len(items),
		Sales:     len(created),
		Payments:  paid,
	}
	g.log.Info("dummy data loaded",
		zap.Int("users", out.Users),
		zap.Int("customers", out.Customers),
		zap.Int("products", out.Products),
		zap.Int("sales", out.Sales),
		zap.Int("payments", out.Payments))
	return out, nil
}

func (g *Generator) wipe(ctx context.Context) error {
	return database.WithTx(ctx, g.db, func(tx *sqlx.Tx) error {
		for _, table := range wipeOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}
		return nil
	})
}

// users creates the dummy sellers that are missing and returns the ids of
// every active user.
func (g *Generator) users(ctx context.Context) ([]int64, error) {
	repo := store.New(g.db).Users
	hashed, err := auth.HashPassword(dummyUserPassword)
	if err != nil {
		return nil, err
	}
	for _, du := range dummyUsers {
		_, err := repo.GetByUsername(ctx, du.username)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		email := du.username + "@example.com"
		u := &domain.User{
			Username:       du.username,
			Email:          &email,
			HashedPassword: hashed,
			IsActive:       true,
			IsAdmin:        du.admin,
		}
		if err := repo.Create(ctx, u); err != nil {
			return nil, err
		}
	}

	all, err := repo.List(ctx, store.Page{Limit: 1000})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(all))
	for _, u := range all {
		if u.IsActive {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (g *Generator) customers(ctx context.Context) ([]int64, error) {
	repo := store.New(g.db).Customers
	ids := make([]int64, 0, len(dummyCustomers))
	for _, dc := range dummyCustomers {
		c := &domain.Customer{
			Name:    dc.name,
			Email:   nullIfEmpty(dc.email),
			Phone:   nullIfEmpty(dc.phone),
			Address: nullIfEmpty(dc.address),
		}
		if err := repo.Create(ctx, c); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (g *Generator) items(ctx context.Context) ([]domain.Item, error) {
	repo := store.New(g.db).Items
	out := make([]domain.Item, 0, len(dummyProducts)*(1+len(dummyVariants)))
	add := func(name, description string, price decimal.Decimal) error {
		it := &domain.Item{
			Name:        name,
			Description: nullIfEmpty(description),
			Price:       price,
			Stock:       int64(10 + g.rng.IntN(51)),
		}
		if err := repo.Create(ctx, it); err != nil {
			return err
		}
		out = append(out, *it)
		return nil
	}

	for _, p := range dummyProducts {
		base := decimal.RequireFromString(p.price)
		if err := add(p.name, p.description, base); err != nil {
			return nil, err
		}
		for _, v := range dummyVariants {
			price := base.Mul(decimal.RequireFromString(v.factor)).Round(2)
			if err := add(p.name+" "+v.suffix, p.description, price); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (g *Generator) generateSales(ctx context.Context, users, customers []int64, items []domain.Item) ([]*domain.Sale, error) {
	stock := make(map[int64]int64, len(items))
	for _, it := range items {
		stock[it.ID] = it.Stock
	}

	out := make([]*domain.Sale, 0, dummySales)
	for range dummySales {
		lines := g.pickLines(items, stock)
		if len(lines) == 0 {
			break
		}
		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(domain.LineSubtotal(l.Quantity, l.UnitPrice))
		}

		userID := users[g.rng.IntN(len(users))]
		sale, err := g.sales.Create(ctx, &userID, sales.CreateInput{
			CustomerID:  customers[g.rng.IntN(len(customers))],
			TotalAmount: total,
			Items:       lines,
		})
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			stock[l.ItemID] -= l.Quantity
		}

		at := g.now().AddDate(0, 0, -g.rng.IntN(dummyHistoryDays)).Add(-time.Duration(g.rng.IntN(86400)) * time.Second)
		if err := store.New(g.db).Sales.Backdate(ctx, sale.ID, at); err != nil {
			return nil, err
		}
		sale.CreatedAt = at
		out = append(out, sale)
	}
	return out, nil
}

// pickLines draws up to five distinct in-stock items.
func (g *Generator) pickLines(items []domain.Item, stock map[int64]int64) []sales.LineInput {
	want := 1 + g.rng.IntN(dummyMaxLines)
	lines := make([]sales.LineInput, 0, want)
	for _, idx := range g.rng.Perm(len(items)) {
		if len(lines) == want {
			break
		}
		it := items[idx]
		left := stock[it.ID]
		if left <= 0 {
			continue
		}
		maxQty := min(left, dummyMaxQuantity)
		lines = append(lines, sales.LineInput{
			ItemID:    it.ID,
			Quantity:  1 + g.rng.Int64N(maxQty),
			UnitPrice: it.Price,
		})
	}
	return lines
}

// generatePayments settles every third sale and pays half of every fifth.
func (g *Generator) generatePayments(ctx context.Context, created []*domain.Sale) (int, error) {
	n := 0
	for i, sale := range created {
		var amount decimal.Decimal
		switch {
		case i%3 == 0:
			amount = sale.TotalAmount
		case i%5 == 0:
			amount = sale.TotalAmount.Div(decimal.NewFromInt(2)).Round(2)
		default:
			continue
		}
		if !amount.IsPositive() {
			continue
		}
		saleID := sale.ID
		if _, err := g.payments.Create(ctx, payments.CreateInput{
			CustomerID: sale.CustomerID,
			SaleID:     &saleID,
			Amount:     amount,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
