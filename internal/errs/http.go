package errs

import (
	"net/http"
)

// NewUnauthorizedError builds a 401. The auth gate returns it for missing,
// malformed, expired or badly signed bearer tokens.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     StatusCode(http.StatusUnauthorized),
		Message:  message,
		Status:   http.StatusUnauthorized,
		Override: override,
	}
}

// NewForbiddenError builds a 403.
func NewForbiddenError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     StatusCode(http.StatusForbidden),
		Message:  message,
		Status:   http.StatusForbidden,
		Override: override,
	}
}

// NewBadRequestError builds a 400. code replaces the default BAD_REQUEST
// when non-nil; errors carries per-field failures.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	formattedCode := StatusCode(http.StatusBadRequest)
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusBadRequest,
		Override: override,
		Errors:   errors,
		Action:   action,
	}
}

// NewNotFoundError builds a 404.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	formattedCode := StatusCode(http.StatusNotFound)
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusNotFound,
		Override: override,
	}
}

// NewRequestEntityTooLargeError builds a 413 for uploads over the limit.
func NewRequestEntityTooLargeError(message string) *HTTPError {
	return &HTTPError{
		Code:     StatusCode(http.StatusRequestEntityTooLarge),
		Message:  message,
		Status:   http.StatusRequestEntityTooLarge,
		Override: true,
	}
}

// NewInternalServerError builds a generic 500 that never leaks the cause.
func NewInternalServerError() *HTTPError {
	return &HTTPError{
		Code:     StatusCode(http.StatusInternalServerError),
		Message:  http.StatusText(http.StatusInternalServerError),
		Status:   http.StatusInternalServerError,
		Override: false,
	}
}

// ValidationError wraps a plain validation error into a 400.
func ValidationError(err error) *HTTPError {
	return NewBadRequestError("Validation failed: "+err.Error(), false, nil, nil, nil)
}
