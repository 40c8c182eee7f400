// Package stock applies manual stock adjustments and answers low-stock
// queries.
package stock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/database"
	"stockapp/m/internal/events"
	"stockapp/m/internal/store"
)

const (
	DefaultLowStockThreshold = 3

	// MaxAdjustment bounds a single manual adjustment in either direction.
	MaxAdjustment = 1_000_000_000
)

type Service struct {
	db     *sqlx.DB
	events events.Publisher
	log    *zap.Logger
}

func NewService(db *sqlx.DB, pub events.Publisher, log *zap.Logger) *Service {
	return &Service{db: db, events: pub, log: log}
}

// Adjust adds delta to the item's stock and records the audit row. No floor
// is applied, but the result must stay within int64.
func (s *Service) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockUpdate, error) {
	if delta > MaxAdjustment || delta < -MaxAdjustment {
		return nil, domain.Invalid("quantity", fmt.Sprintf("must be between %d and %d", -MaxAdjustment, MaxAdjustment))
	}

	var (
		su   *domain.StockUpdate
		item *domain.Item
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		st := store.New(tx)
		current, err := st.Items.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if overflows(current.Stock, delta) {
			return domain.Invalid("quantity", fmt.Sprintf("stock of item %d cannot absorb %d", itemID, delta))
		}
		if err := st.Items.Increment(ctx, itemID, delta); err != nil {
			return err
		}
		su = &domain.StockUpdate{ItemID: itemID, Quantity: delta}
		if err := st.StockUpdates.Create(ctx, su); err != nil {
			return err
		}
		item, err = st.Items.Get(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, domain.TxFailed("adjust stock", err)
	}
	su.Item = item

	if item.Stock < 0 {
		s.log.Warn("stock below zero after adjustment", zap.Int64("item_id", itemID), zap.Int64("stock", item.Stock))
	}
	s.log.Info("stock adjusted", zap.Int64("item_id", itemID), zap.Int64("delta", delta), zap.Int64("stock", item.Stock))
	s.events.Publish(ctx, events.EventStockAdjusted, itemID, events.StockAdjustedPayload{
		ItemID:   itemID,
		Delta:    delta,
		NewStock: item.Stock,
	})
	return su, nil
}

func overflows(stock, delta int64) bool {
	if delta > 0 {
		return stock > math.MaxInt64-delta
	}
	return stock < math.MinInt64-delta
}

func (s *Service) List(ctx context.Context, page store.Page) ([]domain.StockUpdate, error) {
	return store.New(s.db).StockUpdates.List(ctx, page)
}

// LowStock lists items below the configured threshold.
func (s *Service) LowStock(ctx context.Context) ([]domain.Item, error) {
	threshold, err := s.Threshold(ctx)
	if err != nil {
		return nil, err
	}
	return store.New(s.db).Items.LowStock(ctx, threshold)
}

// Threshold reads the low-stock threshold, falling back to the default when
// unset or unparsable.
func (s *Service) Threshold(ctx context.Context) (int64, error) {
	cfg, err := store.New(s.db).Configurations.Get(ctx, domain.ConfigLowStockThreshold)
	if errors.Is(err, domain.ErrNotFound) {
		return DefaultLowStockThreshold, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(cfg.Value, 10, 64)
	if err != nil {
		s.log.Warn("invalid low stock threshold, using default", zap.String("value", cfg.Value))
		return DefaultLowStockThreshold, nil
	}
	return v, nil
}

func (s *Service) SetThreshold(ctx context.Context, threshold int64) (int64, error) {
	if threshold < 0 {
		return 0, domain.Invalid("threshold", "must not be negative")
	}
	desc := "Items with stock below this value are reported as low stock"
	if _, err := store.New(s.db).Configurations.Upsert(ctx, domain.ConfigLowStockThreshold, strconv.FormatInt(threshold, 10), &desc); err != nil {
		return 0, err
	}
	return threshold, nil
}
