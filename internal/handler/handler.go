// Package handler is the HTTP layer between the router and the services.
//
// Route handlers are ControlFuncs: they receive a bound and validated
// request, call a service and return a Result. Control turns that Result
// into the response, so handlers never write to echo directly.
package handler
