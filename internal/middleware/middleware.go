// Package middleware holds the global and route-level echo middleware:
// request ids, request-scoped logging, New Relic tracing, bearer token
// authentication, rate limiting, multipart uploads, panic recovery and
// the global error handler.
package middleware
