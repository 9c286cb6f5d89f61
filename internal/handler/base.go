package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/posts-api/internal/middleware"
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/validation"
)

// Handler holds the shared application dependencies. Concrete handlers
// embed it.
type Handler struct {
	server *server.Server
}

// NewHandler returns the base embedded by every resource handler. It gives
// access to the server for configuration, logging and New Relic.
func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// logger returns the request-scoped logger, falling back to the root
// logger when ContextEnhancer did not run.
func (h Handler) logger(c echo.Context) *zerolog.Logger {
	if _, ok := c.Get(middleware.LoggerKey).(*zerolog.Logger); !ok && h.server != nil && h.server.Logger != nil {
		return h.server.Logger
	}
	return middleware.GetLogger(c)
}

// ErrNoNext is returned by Context.Next when the controlled function was
// mounted as a terminal route handler.
var ErrNoNext = errors.New("handler: no next handler")

// Context is the per-request view handed to a ControlFunc.
type Context interface {
	// Request returns the inbound request. Its context carries the
	// request logger (zerolog.Ctx) and the New Relic transaction.
	Request() *http.Request

	// Echo returns the underlying echo context for the rare handler that
	// has to write the response itself.
	Echo() echo.Context

	Param(name string) string
	Query(name string) string

	// Identity returns the caller attached by the auth gate.
	Identity() (middleware.Identity, bool)

	Logger() *zerolog.Logger

	// Next runs the rest of the chain when mounted with ControlMiddleware.
	Next() error
}

type requestContext struct {
	echo   echo.Context
	next   echo.HandlerFunc
	logger *zerolog.Logger
}

func (rc *requestContext) Request() *http.Request { return rc.echo.Request() }
func (rc *requestContext) Echo() echo.Context { return rc.echo }
func (rc *requestContext) Param(name string) string { return rc.echo.Param(name) }
func (rc *requestContext) Query(name string) string { return rc.echo.QueryParam(name) }
func (rc *requestContext) Logger() *zerolog.Logger { return rc.logger }
func (rc *requestContext) Identity() (middleware.Identity, bool) {
	return middleware.GetIdentity(rc.echo)
}

func (rc *requestContext) Next() error {
	if rc.next == nil {
		return ErrNoNext
	}
	return rc.next(rc.echo)
}

// Result is what a ControlFunc produces: a success payload built with OK
// or a *Rejection. A nil Result is a success with a null body.
type Result interface {
	isResult()
}

type success struct {
	value any
}

func (success) isResult() {}

// OK wraps v as a 200 payload. Zero values such as 0, "", false and nil
// are valid payloads.
func OK(v any) Result {
	return success{value: v}
}

// Rejection stops the success path and answers with StatusCode. The body
// is {"message": ...} when Message is set and {} otherwise.
type Rejection struct {
	StatusCode int
	Message    *string
}

func (*Rejection) isResult() {}

// HasMessage reports whether a message was given. An empty string counts.
func (r *Rejection) HasMessage() bool {
	return r.Message != nil
}

// String formats the rejection for logs.
func (r *Rejection) String() string {
	if r.HasMessage() {
		return fmt.Sprintf("rejected with %d: %s", r.StatusCode, *r.Message)
	}
	return fmt.Sprintf("rejected with %d", r.StatusCode)
}

// Reject builds a Rejection. Only the first message is used.
func Reject(status int, message ...string) *Rejection {
	r := &Rejection{StatusCode: status}
	if len(message) > 0 {
		msg := message[0]
		r.Message = &msg
	}
	return r
}

// OrReject returns OK(v) when v is non-nil and Reject(status, message...)
// otherwise.
func OrReject[T any](v *T, status int, message ...string) Result {
	if v == nil {
		return Reject(status, message...)
	}
	return OK(v)
}

// ControlFunc is business logic behind a route. Expected outcomes are
// returned as a Result; a non-nil error is an unexpected fault.
type ControlFunc[Req validation.Validatable] func(c Context, req Req) (Result, error)

// Control adapts fn into a terminal echo handler. newReq must return a
// fresh pointer on every call; it is bound and validated before fn runs,
// and a bind or validation failure goes to the global error handler as a
// 400.
//
// Responses:
//   - *Rejection: its status, body {"message": m} or {}
//   - anything else: 200 with the payload as JSON
//   - error or panic: 500 with {"message": err.Error()}
//
// Nothing is written when fn already committed the response.
func Control[Req validation.Validatable](h Handler, fn ControlFunc[Req], newReq func() Req) echo.HandlerFunc {
	return func(c echo.Context) error {
		return control(h, c, nil, fn, newReq)
	}
}

// ControlMiddleware is Control mounted as middleware so that Context.Next
// reaches the rest of the chain. The adapter still writes the response
// itself and never calls next on its own.
func ControlMiddleware[Req validation.Validatable](h Handler, fn ControlFunc[Req], newReq func() Req) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return control(h, c, next, fn, newReq)
		}
	}
}

func control[Req validation.Validatable](
	h Handler,
	c echo.Context,
	next echo.HandlerFunc,
	fn ControlFunc[Req],
	newReq func() Req,
) error {
	start := time.Now()
	route := c.Path()

	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
	}

	logger := h.logger(c).With().
		Str("operation", "control").
		Str("route", route).
		Logger()

	req := newReq()
	if err := validation.BindAndValidate(c, req); err != nil {
		logger.Warn().
			Err(err).
			Dur("validation_duration", time.Since(start)).
			Msg("request validation failed")

		if txn != nil {
			txn.AddAttribute("validation.status", "failed")
		}
		return err
	}

	if txn != nil {
		txn.AddAttribute("validation.status", "success")
	}

	handlerStart := time.Now()
	result, fault := invoke(fn, &requestContext{echo: c, next: next, logger: &logger}, req)
	handlerDuration := time.Since(handlerStart)

	if c.Response().Committed {
		event := logger.Debug()
		if fault != nil {
			event = logger.Error().Err(fault)
		}
		event.
			Dur("handler_duration", handlerDuration).
			Msg("response already written by handler")
		return nil
	}

	status, body, outcome, fault := render(result, fault)

	if txn != nil {
		txn.AddAttribute("handler.status", outcome)
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", time.Since(start).Milliseconds())
		if fault != nil {
			txn.NoticeError(nrpkgerrors.Wrap(fault))
		}
	}

	event := logger.Info()
	if fault != nil {
		event = logger.Error().Err(fault)
		var p *panicError
		if errors.As(fault, &p) {
			event = event.Bytes("stack", p.stack)
		}
	}
	event.
		Str("outcome", outcome).
		Int("status", status).
		Dur("handler_duration", handlerDuration).
		Dur("total_duration", time.Since(start)).
		Msg("request handled")

	return c.JSONBlob(status, body)
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func invoke[Req validation.Validatable](fn ControlFunc[Req], c Context, req Req) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				panic(r)
			}
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn(c, req)
}

type messageBody struct {
	Message string `json:"message"`
}

var emptyObject = []byte("{}")

// render turns the outcome of a ControlFunc into a status and JSON body.
// The returned error is the fault that produced a 500, if any.
func render(result Result, fault error) (int, []byte, string, error) {
	if fault != nil {
		return faultResponse(fault)
	}

	var payload any
	switch r := result.(type) {
	case *Rejection:
		if r == nil {
			break
		}
		if r.StatusCode < 100 || r.StatusCode > 999 {
			return faultResponse(fmt.Errorf("invalid rejection status %d", r.StatusCode))
		}
		if !r.HasMessage() {
			return r.StatusCode, emptyObject, "rejected", nil
		}
		body, err := json.Marshal(messageBody{Message: *r.Message})
		if err != nil {
			return faultResponse(err)
		}
		return r.StatusCode, body, "rejected", nil
	case success:
		payload = r.value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return faultResponse(fmt.Errorf("encode response: %w", err))
	}
	return http.StatusOK, body, "success", nil
}

func faultResponse(fault error) (int, []byte, string, error) {
	body, err := json.Marshal(messageBody{Message: fault.Error()})
	if err != nil {
		body = []byte(`{"message":"Internal Server Error"}`)
	}
	return http.StatusInternalServerError, body, "fault", fault
}
