package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/posts-api/internal/logger"
	"github.com/deppfellow/posts-api/internal/server"
)

const (
	// UserIDKey holds the authenticated users.id (int64) in the echo context.
	UserIDKey = "user_id"

	// IdentityKey holds the authenticated Identity.
	IdentityKey = "identity"

	// LoggerKey holds the request-scoped *zerolog.Logger.
	LoggerKey = "logger"
)

// ContextEnhancer builds a request-scoped logger carrying request_id,
// method, path, ip and New Relic trace ids.
type ContextEnhancer struct {
	server *server.Server
}

// NewContextEnhancer derives request loggers from the server logger.
func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s}
}

// EnhanceContext stores the logger in both the echo context and the
// request's context.Context. Auth runs later and adds user_id itself.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			contextLogger := ce.server.Logger.With().
				Str("request_id", GetRequestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Logger()

			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				contextLogger = logger.WithTraceContext(contextLogger, txn)
			}

			setLogger(c, contextLogger)
			return next(c)
		}
	}
}

func setLogger(c echo.Context, l zerolog.Logger) {
	c.Set(LoggerKey, &l)
	// zerolog.Ctx(ctx) reads it back in layers below the handler.
	c.SetRequest(c.Request().WithContext(l.WithContext(c.Request().Context())))
}

// GetUserID returns the authenticated user id, or 0.
func GetUserID(c echo.Context) int64 {
	if id, ok := c.Get(UserIDKey).(int64); ok {
		return id
	}
	return 0
}

func userIDString(c echo.Context) string {
	if id := GetUserID(c); id > 0 {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// GetLogger returns the request-scoped logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
