package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/posts-api/internal/model"
	"github.com/deppfellow/posts-api/internal/sqlerr"
)

// PostStore is the persistence PostService needs. *repository.PostRepository
// implements it.
type PostStore interface {
	List(ctx context.Context, limit, offset int) ([]model.Post, int64, error)
	Create(ctx context.Context, userID int64, content string) (*model.Post, error)
	FindByID(ctx context.Context, id int64) (*model.Post, error)
	Update(ctx context.Context, id, userID int64, content string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, id, userID int64, at time.Time) (int64, error)
}

// BadReferenceError reports a write that pointed at a row that does not
// exist, such as a post whose author was removed.
type BadReferenceError struct {
	Code    string
	Message string
	err     error
}

// Error returns the driver message.
func (e *BadReferenceError) Error() string {
	return e.Message
}

// Unwrap exposes the database error.
func (e *BadReferenceError) Unwrap() error {
	return e.err
}

// badReference turns a foreign key violation into *BadReferenceError and
// leaves every other error alone.
func badReference(err error) error {
	if e := sqlerr.Describe(err); e != nil && e.Code == sqlerr.ForeignKeyViolation {
		return &BadReferenceError{
			Code:    sqlerr.ErrorCode(e),
			Message: sqlerr.UserMessage(e),
			err:     err,
		}
	}
	return err
}

// PostService applies the posts rules on top of a PostStore.
type PostService struct {
	store PostStore
	now   func() time.Time
}

// NewPostService uses the wall clock for update and delete timestamps.
func NewPostService(store PostStore) *PostService {
	return &PostService{
		store: store,
		now:   time.Now,
	}
}

// List returns a page of live posts. Rows is never nil.
func (s *PostService) List(ctx context.Context, limit, offset int) (*model.PostPage, error) {
	rows, count, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Post{}
	}
	return &model.PostPage{Rows: rows, Count: count}, nil
}

// Create stores a post owned by userID. A missing author comes back as
// *BadReferenceError.
func (s *PostService) Create(ctx context.Context, userID int64, content string) (*model.Post, error) {
	post, err := s.store.Create(ctx, userID, content)
	if err != nil {
		return nil, badReference(err)
	}

	zerolog.Ctx(ctx).Info().
		Int64("post_id", post.ID).
		Int64("user_id", userID).
		Msg("post created")

	return post, nil
}

// Get returns the post with its author, or nil when it does not exist.
func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	return s.store.FindByID(ctx, id)
}

// Update changes the content of a post owned by userID. Zero means no post
// matched both the id and the owner.
func (s *PostService) Update(ctx context.Context, id, userID int64, content string) (int64, error) {
	n, err := s.store.Update(ctx, id, userID, content, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Delete soft-deletes a post owned by userID. Zero means no post matched
// both the id and the owner.
func (s *PostService) Delete(ctx context.Context, id, userID int64) (int64, error) {
	n, err := s.store.SoftDelete(ctx, id, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}

	if n > 0 {
		zerolog.Ctx(ctx).Info().
			Int64("post_id", id).
			Int64("user_id", userID).
			Msg("post soft-deleted")
	}
	return n, nil
}

// IsBadReference reports whether err is a *BadReferenceError and returns it.
func IsBadReference(err error) (*BadReferenceError, bool) {
	var bad *BadReferenceError
	if errors.As(err, &bad) {
		return bad, true
	}
	return nil, false
}
