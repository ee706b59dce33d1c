// Package errors defines the coded errors shared by the CLI and the HTTP
// API.
//
// Every failure a caller can act on carries a [Code]. Codes prefixed with
// INVALID_ mean the request itself was unusable; the rest describe backend
// or internal failures. The API turns a code into a status with
// [HTTPStatus], the CLI into an exit code with [IsInvalid].
//
//	err := errors.Wrap(errors.ErrCodeStorage, cause, "load positions for %s", project)
//	if errors.Is(err, errors.ErrCodeStorage) {
//		...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error category.
type Code string

const (
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidGraph   Code = "INVALID_GRAPH"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidProject Code = "INVALID_PROJECT"

	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeStorage     Code = "STORAGE_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeUnsupported Code = "UNSUPPORTED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
)

// codeInfo is what the outer surfaces need to know about a code.
type codeInfo struct {
	invalid bool
	status  int
}

var codes = map[Code]codeInfo{
	ErrCodeInvalidInput:   {invalid: true, status: http.StatusBadRequest},
	ErrCodeInvalidGraph:   {invalid: true, status: http.StatusBadRequest},
	ErrCodeInvalidConfig:  {invalid: true, status: http.StatusBadRequest},
	ErrCodeInvalidProject: {invalid: true, status: http.StatusBadRequest},
	ErrCodeNotFound:       {status: http.StatusNotFound},
	ErrCodeStorage:        {status: http.StatusBadGateway},
	ErrCodeTimeout:        {status: http.StatusGatewayTimeout},
	ErrCodeUnsupported:    {status: http.StatusNotImplemented},
	ErrCodeInternal:       {status: http.StatusInternalServerError},
}

// Error pairs a Code with a message for humans and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap returns an Error with a formatted message that wraps cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// find returns the outermost *Error in err's chain.
func find(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	e, ok := find(err)
	return ok && e.Code == code
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// if there is none.
func GetCode(err error) Code {
	if e, ok := find(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of a coded error without its code and
// cause, and err.Error() for anything else.
func UserMessage(err error) string {
	if e, ok := find(err); ok {
		return e.Message
	}
	return err.Error()
}

// IsInvalid reports whether err carries one of the INVALID_* codes.
func IsInvalid(err error) bool {
	return codes[GetCode(err)].invalid
}

// HTTPStatus maps err to the status the API responds with. Uncoded errors
// and unknown codes map to 500.
func HTTPStatus(err error) int {
	if info, ok := codes[GetCode(err)]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}
