package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/posts-api/internal/errs"
	"github.com/deppfellow/posts-api/internal/lib/token"
	"github.com/deppfellow/posts-api/internal/server"
)

// Identity is the authenticated caller attached by RequireAuth.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
}

// AuthMiddleware verifies bearer tokens.
type AuthMiddleware struct {
	server *server.Server
	tokens *token.Manager
}

// NewAuthMiddleware verifies bearer tokens with tokens.
func NewAuthMiddleware(s *server.Server, tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
		tokens: tokens,
	}
}

// RequireAuth rejects the request with a 401 unless it carries a valid
// "Authorization: Bearer <token>" header. The 401 goes through the global
// error handler, so the wrapped handler never runs.
//
// On success the Identity and user_id are stored in the echo context and
// the request logger gains a user_id field.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		logger := GetLogger(c)

		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			logger.Warn().
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("missing bearer token")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		claims, err := auth.tokens.Parse(raw)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("invalid bearer token")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		// Parse already validated the subject.
		userID, _ := claims.UserID()
		identity := Identity{ID: userID, Email: claims.Email}

		c.Set(IdentityKey, identity)
		c.Set(UserIDKey, userID)
		setLogger(c, logger.With().Int64("user_id", userID).Logger())

		if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
			txn.AddAttribute("user.id", userID)
		}

		GetLogger(c).Debug().
			Str("function", "RequireAuth").
			Dur("duration", time.Since(start)).
			Msg("user authenticated successfully")

		return next(c)
	}
}

// GetIdentity returns the identity stored by RequireAuth.
func GetIdentity(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(IdentityKey).(Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
