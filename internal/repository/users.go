package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/posts-api/internal/model"
	"github.com/deppfellow/posts-api/internal/sqlerr"
)

// UserRepository reads users. Passwords are never selected.
type UserRepository struct {
	db DBTX
}

// NewUserRepository binds the repository to a pool or a transaction.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns the user without its password, or nil when absent.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, created_at, updated_at
		FROM users
		WHERE id = @id
	`, pgx.NamedArgs{"id": id}).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, sqlerr.Wrap(err))
	}
	return &u, nil
}
