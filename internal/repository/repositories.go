package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deppfellow/posts-api/internal/server"
)

// DBTX is the subset of *pgxpool.Pool (and pgx.Tx) the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups every repository so services take one argument.
type Repositories struct {
	Posts *PostRepository
	Users *UserRepository
}

// NewRepositories binds every repository to the server pool.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Posts: NewPostRepository(s.DB.Pool),
		Users: NewUserRepository(s.DB.Pool),
	}
}
