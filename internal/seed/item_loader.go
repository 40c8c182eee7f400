package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/database"
	"stockapp/m/internal/store"
)

// LoadItems imports a name,description,price,stock catalogue in one
// transaction. Rows whose name is already stored, or that do not parse, are
// skipped. It returns the number of items created.
func LoadItems(ctx context.Context, db *sqlx.DB, csvPath string, log *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open item catalogue %s: %w", csvPath, err)
	}
	defer file.Close()
	return loadItems(ctx, db, file, log)
}

func loadItems(ctx context.Context, db *sqlx.DB, r io.Reader, log *zap.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read item header: %w", err)
	}

	rows := 0
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		items := store.New(tx).Items
		line := 1
		for {
			record, err := reader.Read()
			line++
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				log.Warn("unable to read item row", zap.Int("line", line), zap.Error(err))
				continue
			}
			it, err := parseItem(record)
			if err != nil {
				log.Warn("skipping item row", zap.Int("line", line), zap.Error(err))
				continue
			}

			exists, err := items.ExistsByName(ctx, it.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := items.Create(ctx, it); err != nil {
				return err
			}
			rows++
		}
	})
	if err != nil {
		return 0, fmt.Errorf("seed items: %w", err)
	}
	log.Info("seeded item catalogue", zap.Int("rows", rows))
	return rows, nil
}

func parseItem(record []string) (*domain.Item, error) {
	if len(record) < 4 {
		return nil, fmt.Errorf("expected 4 columns, got %d", len(record))
	}
	name := strings.TrimSpace(record[0])
	if name == "" {
		return nil, errors.New("empty name")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil || price.IsNegative() || !domain.IsMoney(price) {
		return nil, fmt.Errorf("invalid price %q", record[2])
	}
	stock, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil || stock < 0 {
		return nil, fmt.Errorf("invalid stock %q", record[3])
	}
	return &domain.Item{
		Name:        name,
		Description: nullIfEmpty(record[1]),
		Price:       price,
		Stock:       stock,
	}, nil
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
