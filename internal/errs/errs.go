// Package errs defines the error shapes returned to API clients.
//
// HTTPError is the single JSON failure shape used outside Control-wrapped
// handlers. Control-wrapped handlers answer with a Rejection or a fault
// instead, see package handler.
package errs
