package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/posts-api/internal/model"
	"github.com/deppfellow/posts-api/internal/sqlerr"
)

const postColumns = `p.id, p.content, p.user_id, p.status, p.created_at, p.updated_at, p.deleted_at`

// authorColumns never include users.password.
const authorColumns = `u.id, u.email, u.name, u.created_at, u.updated_at`

// PostRepository runs the posts queries. Every read joins the author
// without its password.
type PostRepository struct {
	db DBTX
}

// NewPostRepository binds the repository to a pool or a transaction.
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// List returns live posts with their authors, newest first, and the total
// number of live posts. A limit of 0 means no limit. The page and the
// total come from one statement, so they share a snapshot.
func (r *PostRepository) List(ctx context.Context, limit, offset int) ([]model.Post, int64, error) {
	query := `
		WITH live AS (
			SELECT count(*) AS total FROM posts WHERE deleted_at IS NULL
		), page AS (
			SELECT ` + postColumns + `,
				u.id AS author_id, u.email AS author_email, u.name AS author_name,
				u.created_at AS author_created_at, u.updated_at AS author_updated_at
			FROM posts p
			JOIN users u ON u.id = p.user_id
			WHERE p.deleted_at IS NULL
			ORDER BY p.created_at DESC, p.id DESC
			LIMIT NULLIF(@limit::int, 0)
			OFFSET @offset::int
		)
		SELECT live.total,
			page.id, page.content, page.user_id, page.status, page.created_at, page.updated_at, page.deleted_at,
			page.author_id, page.author_email, page.author_name, page.author_created_at, page.author_updated_at
		FROM live
		LEFT JOIN page ON true
		ORDER BY page.created_at DESC, page.id DESC
	`

	rows, err := r.db.Query(ctx, query, pgx.NamedArgs{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", sqlerr.Wrap(err))
	}

	page, err := pgx.CollectRows(rows, scanListRow)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to collect posts: %w", sqlerr.Wrap(err))
	}

	var (
		count int64
		posts = make([]model.Post, 0, len(page))
	)
	for _, row := range page {
		count = row.total
		if row.post != nil {
			posts = append(posts, *row.post)
		}
	}
	return posts, count, nil
}

// listRow is one row of List. post is nil on the single row returned for
// an empty page.
type listRow struct {
	total int64
	post  *model.Post
}

func scanListRow(row pgx.CollectableRow) (listRow, error) {
	var (
		total     int64
		id        *int64
		p         model.Post
		u         model.User
		content   *string
		userID    *int64
		status    *model.PostStatus
		createdAt *time.Time
		updatedAt *time.Time
		authorID  *int64
		email     *string
		name      *string
		uCreated  *time.Time
		uUpdated  *time.Time
	)
	err := row.Scan(
		&total,
		&id, &content, &userID, &status, &createdAt, &updatedAt, &p.DeletedAt,
		&authorID, &email, &name, &uCreated, &uUpdated,
	)
	if err != nil {
		return listRow{}, err
	}
	if id == nil {
		return listRow{total: total}, nil
	}

	p.ID, p.Content, p.UserID, p.Status = *id, *content, *userID, *status
	p.CreatedAt, p.UpdatedAt = *createdAt, *updatedAt
	u.ID, u.Email, u.Name, u.CreatedAt, u.UpdatedAt = *authorID, *email, *name, *uCreated, *uUpdated
	p.User = &u
	return listRow{total: total, post: &p}, nil
}

// Create inserts an ACTIVE post owned by userID.
func (r *PostRepository) Create(ctx context.Context, userID int64, content string) (*model.Post, error) {
	query := `
		INSERT INTO posts AS p (content, user_id)
		VALUES (@content, @user_id)
		RETURNING ` + postColumns

	row := r.db.QueryRow(ctx, query, pgx.NamedArgs{
		"content": content,
		"user_id": userID,
	})

	post, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", sqlerr.Wrap(err))
	}
	return post, nil
}

// FindByID returns the post with its author, or nil when no row has id.
// Soft-deleted posts are returned too.
func (r *PostRepository) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	query := `
		SELECT ` + postColumns + `, ` + authorColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = @id
	`

	rows, err := r.db.Query(ctx, query, pgx.NamedArgs{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find post %d: %w", id, sqlerr.Wrap(err))
	}

	post, err := pgx.CollectOneRow(rows, scanPostWithAuthor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post %d: %w", id, sqlerr.Wrap(err))
	}
	return &post, nil
}

// Update sets the content of post id when it is owned by userID and
// returns the number of rows changed.
func (r *PostRepository) Update(ctx context.Context, id, userID int64, content string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts
		SET content = @content, updated_at = @at
		WHERE id = @id AND user_id = @user_id
	`, pgx.NamedArgs{
		"id":      id,
		"user_id": userID,
		"content": content,
		"at":      at,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update post %d: %w", id, sqlerr.Wrap(err))
	}
	return tag.RowsAffected(), nil
}

// SoftDelete marks post id DELETED at the given time when it is owned by
// userID and returns the number of rows changed.
func (r *PostRepository) SoftDelete(ctx context.Context, id, userID int64, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts
		SET status = @status, deleted_at = @at, updated_at = @at
		WHERE id = @id AND user_id = @user_id
	`, pgx.NamedArgs{
		"id":      id,
		"user_id": userID,
		"status":  model.PostStatusDeleted,
		"at":      at,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete post %d: %w", id, sqlerr.Wrap(err))
	}
	return tag.RowsAffected(), nil
}

// PurgeDeleted removes rows soft-deleted before the cutoff.
func (r *PostRepository) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM posts
		WHERE status = @status AND deleted_at < @before
	`, pgx.NamedArgs{
		"status": model.PostStatusDeleted,
		"before": before,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted posts: %w", sqlerr.Wrap(err))
	}
	return tag.RowsAffected(), nil
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var p model.Post
	err := row.Scan(&p.ID, &p.Content, &p.UserID, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPostWithAuthor(row pgx.CollectableRow) (model.Post, error) {
	var (
		p model.Post
		u model.User
	)
	err := row.Scan(
		&p.ID, &p.Content, &p.UserID, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return model.Post{}, err
	}
	p.User = &u
	return p, nil
}
