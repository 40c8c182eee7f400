package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockapp/m/domain"
	"stockapp/m/internal/database"
)

type UserRepo struct {
	q sqlx.ExtContext
}

// UserUpdate lists the mutable user fields. Nil fields are left untouched.
type UserUpdate struct {
	Username       *string
	Email          *string
	HashedPassword *string
	IsActive       *bool
	IsAdmin        *bool
}

const userColumns = `id, username, email, hashed_password, is_active, is_admin, created_at, updated_at`

func (r *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := getOne(ctx, r.q, &u, "user", id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := getOne(ctx, r.q, &u, "user", username, `SELECT `+userColumns+` FROM users WHERE username = ?`, username); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := getOne(ctx, r.q, &u, "user", email, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, page Page) ([]domain.User, error) {
	users := []domain.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id` + page.clause()
	if err := sqlx.SelectContext(ctx, r.q, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts u and fills its id and creation time. Username and email
// must be unused.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := r.ensureUnique(ctx, 0, u.Username, u.Email); err != nil {
		return err
	}
	u.CreatedAt = now()
	id, err := insertID(ctx, r.q, `INSERT INTO users (username, email, hashed_password, is_active, is_admin, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`, u.Username, u.Email, u.HashedPassword, u.IsActive, u.IsAdmin, u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Conflict("username")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepo) Update(ctx context.Context, id int64, in UserUpdate) (*domain.User, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	username := ""
	if in.Username != nil {
		username = *in.Username
	}
	if err := r.ensureUnique(ctx, id, username, in.Email); err != nil {
		return nil, err
	}

	var set setList
	if in.Username != nil {
		set.add("username", *in.Username)
	}
	if in.Email != nil {
		set.add("email", *in.Email)
	}
	if in.HashedPassword != nil {
		set.add("hashed_password", *in.HashedPassword)
	}
	if in.IsActive != nil {
		set.add("is_active", *in.IsActive)
	}
	if in.IsAdmin != nil {
		set.add("is_admin", *in.IsAdmin)
	}
	if !set.empty() {
		set.add("updated_at", now())
		args := append(set.args, id)
		if _, err := exec(ctx, r.q, `UPDATE users SET `+set.sql()+` WHERE id = ?`, args...); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, domain.Conflict("username")
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return r.Get(ctx, id)
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.q, "users", "user", id)
}

func (r *UserRepo) ensureUnique(ctx context.Context, selfID int64, username string, email *string) error {
	if username != "" {
		u, err := r.GetByUsername(ctx, username)
		switch {
		case err == nil && u.ID != selfID:
			return domain.Conflict("username")
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
	}
	if email != nil && *email != "" {
		u, err := r.GetByEmail(ctx, *email)
		switch {
		case err == nil && u.ID != selfID:
			return domain.Conflict("email")
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
	}
	return nil
}
