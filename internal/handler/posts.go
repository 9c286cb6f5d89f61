package handler

import (
	"net/http"
	"strings"

	"github.com/deppfellow/posts-api/internal/middleware"
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/service"
	"github.com/deppfellow/posts-api/internal/validation"
)

// ListPostsRequest is the query of GET /posts. A missing limit lists every
// live post.
type ListPostsRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

func (r *ListPostsRequest) Validate() error {
	return validation.Struct(r)
}

// PostIDRequest carries the :id path parameter of the read-only and
// delete routes.
type PostIDRequest struct {
	ID int64 `param:"id" json:"-" validate:"gt=0"`
}

func (r *PostIDRequest) Validate() error {
	return validation.Struct(r)
}

// CreatePostRequest is the body of POST /posts. The author comes from the
// bearer token, never from the body.
type CreatePostRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (r *CreatePostRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	return validateContent(r.Content)
}

// UpdatePostRequest is the body of PUT /posts/:id. The id is taken from the
// path only.
type UpdatePostRequest struct {
	ID      int64  `param:"id" json:"-" validate:"gt=0"`
	Content string `json:"content" validate:"required,max=5000"`
}

func (r *UpdatePostRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	return validateContent(r.Content)
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return validation.CustomValidationErrors{{Field: "content", Message: "must not be blank"}}
	}
	return nil
}

// PostHandler serves the /posts routes as ControlFuncs.
type PostHandler struct {
	Handler
	posts *service.PostService
}

// NewPostHandler wires the posts routes to the post service.
func NewPostHandler(s *server.Server, posts *service.PostService) *PostHandler {
	return &PostHandler{
		Handler: NewHandler(s),
		posts:   posts,
	}
}

// List answers GET /posts with {rows, count}.
func (h *PostHandler) List(c Context, req *ListPostsRequest) (Result, error) {
	page, err := h.posts.List(c.Request().Context(), req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return OK(page), nil
}

// Create answers POST /posts with the new post owned by the caller.
func (h *PostHandler) Create(c Context, req *CreatePostRequest) (Result, error) {
	identity, ok := c.Identity()
	if !ok {
		return Reject(http.StatusUnauthorized), nil
	}

	post, err := h.posts.Create(c.Request().Context(), identity.ID, req.Content)
	if bad, ok := service.IsBadReference(err); ok {
		return Reject(http.StatusBadRequest, bad.Message), nil
	}
	if err != nil {
		return nil, err
	}
	return OK(post), nil
}

// Get answers GET /posts/:id with the post and its author, or 404.
func (h *PostHandler) Get(c Context, req *PostIDRequest) (Result, error) {
	post, err := h.posts.Get(c.Request().Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return OrReject(post, http.StatusNotFound), nil
}

// File answers GET /posts/:id/file with the descriptor of the uploaded
// file, or null when the request carried none.
func (h *PostHandler) File(c Context, _ *PostIDRequest) (Result, error) {
	return OK(middleware.GetUploadedFile(c.Echo())), nil
}

// Update answers PUT /posts/:id with the number of posts changed. A post
// that is missing or owned by someone else is a 404 either way.
func (h *PostHandler) Update(c Context, req *UpdatePostRequest) (Result, error) {
	identity, ok := c.Identity()
	if !ok {
		return Reject(http.StatusUnauthorized), nil
	}

	n, err := h.posts.Update(c.Request().Context(), req.ID, identity.ID, req.Content)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return Reject(http.StatusNotFound), nil
	}
	return OK(n), nil
}

// Delete answers DELETE /posts/:id by soft-deleting the caller's post.
// Missing and foreign posts are both a 404.
func (h *PostHandler) Delete(c Context, req *PostIDRequest) (Result, error) {
	identity, ok := c.Identity()
	if !ok {
		return Reject(http.StatusUnauthorized), nil
	}

	n, err := h.posts.Delete(c.Request().Context(), req.ID, identity.ID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return Reject(http.StatusNotFound), nil
	}
	return OK(n), nil
}
