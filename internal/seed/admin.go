package seed

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/auth"
	"stockapp/m/internal/config"
	"stockapp/m/internal/store"
)

// EnsureAdmin creates the configured administrator unless the username is
// already taken.
func EnsureAdmin(ctx context.Context, db *sqlx.DB, cfg config.AuthConfig, log *zap.Logger) (bool, error) {
	users := store.New(db).Users
	_, err := users.GetByUsername(ctx, cfg.AdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	hashed, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, err
	}
	admin := &domain.User{
		Username:       cfg.AdminUsername,
		Email:          nullIfEmpty(cfg.AdminEmail),
		HashedPassword: hashed,
		IsActive:       true,
		IsAdmin:        true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return false, err
	}
	log.Info("created default admin user", zap.String("username", admin.Username))
	return true, nil
}
