package handler

import (
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/service"
	"github.com/deppfellow/posts-api/static"
)

// Handlers groups every HTTP handler so the router receives one value.
type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Posts   *PostHandler
}

// NewHandlers builds every handler the router mounts. The docs UI is served
// from the embedded static assets.
func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s, static.FS),
		Posts:   NewPostHandler(s, services.Posts),
	}
}
