package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/posts-api/internal/handler"
	"github.com/deppfellow/posts-api/internal/middleware"
)

// uploadField is the multipart field GET /posts/:id/file reads.
const uploadField = "file"

// registerPostRoutes mounts /posts. Reads are public; writes pass the rate
// limiter and the auth gate before the adapter runs.
func registerPostRoutes(r *echo.Echo, h *handler.Handlers, m *middleware.Middlewares) {
	p := h.Posts
	posts := r.Group("/posts")

	limit := m.RateLimit.Limit()
	auth := m.Auth.RequireAuth

	posts.GET("", handler.Control(p.Handler, p.List, newRequest[handler.ListPostsRequest]))
	posts.POST("", handler.Control(p.Handler, p.Create, newRequest[handler.CreatePostRequest]), limit, auth)

	posts.GET("/:id", handler.Control(p.Handler, p.Get, newRequest[handler.PostIDRequest]))
	posts.GET("/:id/file", handler.Control(p.Handler, p.File, newRequest[handler.PostIDRequest]),
		limit, auth, m.Upload.Single(uploadField))
	posts.PUT("/:id", handler.Control(p.Handler, p.Update, newRequest[handler.UpdatePostRequest]), limit, auth)
	posts.DELETE("/:id", handler.Control(p.Handler, p.Delete, newRequest[handler.PostIDRequest]), limit, auth)
}

func newRequest[T any]() *T {
	return new(T)
}
