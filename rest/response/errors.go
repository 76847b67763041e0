package response

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category groups errors the way callers usually react to them.
type Category int

const (
	// CategoryInvalidArgument means the request itself was rejected (400).
	CategoryInvalidArgument Category = iota
	// CategoryLogic means the caller asked for something it cannot have (401, 404).
	CategoryLogic
	// CategoryRuntime means the call failed for reasons outside the caller's
	// input: forbidden key, server failure, transport failure, bad payload.
	CategoryRuntime
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInvalidArgument:
		return "invalid_argument"
	case CategoryLogic:
		return "logic"
	case CategoryRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// ErrorCode classifies REST client errors.
type ErrorCode int

const (
	// ErrCodeBadRequest indicates HTTP 400.
	ErrCodeBadRequest ErrorCode = iota
	// ErrCodeUnauthorized indicates HTTP 401.
	ErrCodeUnauthorized
	// ErrCodeForbidden indicates HTTP 403.
	ErrCodeForbidden
	// ErrCodeNotFound indicates HTTP 404.
	ErrCodeNotFound
	// ErrCodeServer indicates HTTP 500.
	ErrCodeServer
	// ErrCodeTransport indicates the request never produced a response.
	ErrCodeTransport
	// ErrCodeDecode indicates a JSON body that could not be decoded.
	ErrCodeDecode
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeBadRequest:
		return "bad_request"
	case ErrCodeUnauthorized:
		return "unauthorized"
	case ErrCodeForbidden:
		return "forbidden"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeServer:
		return "server"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Messages used for mapped status codes.
const (
	MessageUnauthorized = "Unauthorized"
	MessageForbidden    = "API key was invalid."
	MessageNotFound     = "Resource not found"
	MessageServer       = "Internal server error"
)

// Error is a classified REST client error.
type Error struct {
	// StatusCode is the HTTP status code (0 for transport errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Category groups the error for callers.
	Category Category
	// Message describes the error. For 400 it is the response body.
	Message string
	// Timeout is set for transport errors caused by a timeout.
	Timeout bool
	// Body is the original response body (may be nil).
	Body []byte
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("rest: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rest: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewBadRequestError creates the 400 error. The body becomes the message.
func NewBadRequestError(body []byte) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrCodeBadRequest,
		Category:   CategoryInvalidArgument,
		Message:    string(body),
		Body:       body,
	}
}

// NewUnauthorizedError creates the 401 error.
func NewUnauthorizedError(body []byte) *Error {
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrCodeUnauthorized,
		Category:   CategoryLogic,
		Message:    MessageUnauthorized,
		Body:       body,
	}
}

// NewForbiddenError creates the 403 error.
func NewForbiddenError(body []byte) *Error {
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       ErrCodeForbidden,
		Category:   CategoryRuntime,
		Message:    MessageForbidden,
		Body:       body,
	}
}

// NewNotFoundError creates the 404 error.
func NewNotFoundError(body []byte) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Category:   CategoryLogic,
		Message:    MessageNotFound,
		Body:       body,
	}
}

// NewServerError creates the 500 error.
func NewServerError(body []byte) *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrCodeServer,
		Category:   CategoryRuntime,
		Message:    MessageServer,
		Body:       body,
	}
}

// NewTransportError wraps a failure of the HTTP transport itself.
func NewTransportError(err error) *Error {
	var ne net.Error
	return &Error{
		Code:     ErrCodeTransport,
		Category: CategoryRuntime,
		Message:  err.Error(),
		Timeout:  errors.As(err, &ne) && ne.Timeout(),
		Err:      err,
	}
}

// NewDecodeError wraps a JSON decoding failure of a response body.
func NewDecodeError(err error, body []byte) *Error {
	return &Error{
		Code:     ErrCodeDecode,
		Category: CategoryRuntime,
		Message:  err.Error(),
		Body:     body,
		Err:      err,
	}
}

// ClassifyStatusCode converts an HTTP status code into a typed error.
// It returns nil for success codes and for codes with no mapping.
func ClassifyStatusCode(statusCode int, body []byte) *Error {
	switch statusCode {
	case http.StatusBadRequest:
		return NewBadRequestError(body)
	case http.StatusUnauthorized:
		return NewUnauthorizedError(body)
	case http.StatusForbidden:
		return NewForbiddenError(body)
	case http.StatusNotFound:
		return NewNotFoundError(body)
	case http.StatusInternalServerError:
		return NewServerError(body)
	default:
		return nil
	}
}

// IsMapped reports whether statusCode is one of the codes with documented
// handling (success or a typed error).
func IsMapped(statusCode int) bool {
	switch statusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return true
	}
	return ClassifyStatusCode(statusCode, nil) != nil
}

func as(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsInvalidArgument checks if err belongs to CategoryInvalidArgument.
func IsInvalidArgument(err error) bool {
	e, ok := as(err)
	return ok && e.Category == CategoryInvalidArgument
}

// IsLogic checks if err belongs to CategoryLogic.
func IsLogic(err error) bool {
	e, ok := as(err)
	return ok && e.Category == CategoryLogic
}

// IsRuntime checks if err belongs to CategoryRuntime.
func IsRuntime(err error) bool {
	e, ok := as(err)
	return ok && e.Category == CategoryRuntime
}

// IsUnauthorized checks if err is a 401 error.
func IsUnauthorized(err error) bool {
	e, ok := as(err)
	return ok && e.Code == ErrCodeUnauthorized
}

// IsForbidden checks if err is a 403 error.
func IsForbidden(err error) bool {
	e, ok := as(err)
	return ok && e.Code == ErrCodeForbidden
}

// IsNotFound checks if err is a 404 error.
func IsNotFound(err error) bool {
	e, ok := as(err)
	return ok && e.Code == ErrCodeNotFound
}

// IsServerError checks if err is a 500 error.
func IsServerError(err error) bool {
	e, ok := as(err)
	return ok && e.Code == ErrCodeServer
}

// IsTransport checks if err is a transport error.
func IsTransport(err error) bool {
	e, ok := as(err)
	return ok && e.Code == ErrCodeTransport
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if e, ok := as(err); ok {
		return e.StatusCode
	}
	return 0
}
