package middleware

import (
	"github.com/deppfellow/posts-api/internal/lib/token"
	"github.com/deppfellow/posts-api/internal/server"
)

// Middlewares groups every middleware component so the router receives
// one value.
type Middlewares struct {
	Global          *GlobalMiddlewares
	Auth            *AuthMiddleware
	ContextEnhancer *ContextEnhancer
	Tracing         *TracingMiddleware
	RateLimit       *RateLimitMiddleware
	Upload          *UploadMiddleware
}

// NewMiddlewares builds all middleware from the server container. When
// New Relic is disabled the tracing middleware degrades to a no-op.
func NewMiddlewares(s *server.Server, tokens *token.Manager) *Middlewares {
	return &Middlewares{
		Global:          NewGlobalMiddlewares(s),
		Auth:            NewAuthMiddleware(s, tokens),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracingMiddleware(s, s.LoggerService.GetApplication()),
		RateLimit:       NewRateLimitMiddleware(s),
		Upload:          NewUploadMiddleware(s, s.Storage),
	}
}
