// Package validation binds and validates request payloads.
//
// Payload structs carry go-playground/validator tags; failures are turned
// into a 400 errs.HTTPError with per-field messages the client can show.
package validation
