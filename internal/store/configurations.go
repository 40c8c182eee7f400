package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockapp/m/domain"
)

type ConfigurationRepo struct {
	q sqlx.ExtContext
}

func (r *ConfigurationRepo) Get(ctx context.Context, key string) (*domain.Configuration, error) {
	var c domain.Configuration
	err := getOne(ctx, r.q, &c, "configuration", key,
		`SELECT id, key, value, description, created_at, updated_at FROM configurations WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert stores value under key, creating the row when missing.
func (r *ConfigurationRepo) Upsert(ctx context.Context, key, value string, description *string) (*domain.Configuration, error) {
	_, err := r.Get(ctx, key)
	switch {
	case err == nil:
		if _, err := exec(ctx, r.q, `UPDATE configurations SET value = ?, description = COALESCE(?, description), updated_at = ? WHERE key = ?`,
			value, description, now(), key); err != nil {
			return nil, fmt.Errorf("update configuration: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		if _, err := insertID(ctx, r.q, `INSERT INTO configurations (key, value, description, created_at) VALUES (?, ?, ?, ?)`,
			key, value, description, now()); err != nil {
			return nil, fmt.Errorf("insert configuration: %w", err)
		}
	default:
		return nil, err
	}
	return r.Get(ctx, key)
}
