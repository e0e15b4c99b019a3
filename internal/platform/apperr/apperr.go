// Package apperr defines the service-wide error taxonomy. Every error that
// crosses a domain boundary carries a machine-readable code so callers can
// distinguish "someone else took it" from "bad input" without parsing
// message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Code string

const (
	CodeValidation          Code = "validation"
	CodeNotFound            Code = "not_found"
	CodeDuplicateResource   Code = "duplicate_resource"
	CodeResourceUnavailable Code = "resource_unavailable"
	CodeResourceOccupied    Code = "resource_occupied"
	CodeInvalidParent       Code = "invalid_parent"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeAdmissionClosed     Code = "admission_closed"
	CodeDoctorNotFound      Code = "doctor_not_found"
	CodeInternal            Code = "internal"
)

// Error is a coded error. Wrapped causes stay reachable via errors.Is/As.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a code to its response status class.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound, CodeDoctorNotFound:
		return http.StatusNotFound
	case CodeDuplicateResource:
		return http.StatusConflict
	case CodeValidation, CodeResourceUnavailable, CodeResourceOccupied,
		CodeInvalidParent, CodeInvalidTransition, CodeAdmissionClosed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// response is the JSON error body.
type response struct {
	Code  Code   `json:"code"`
	Error string `json:"error"`
}

// EchoErrorHandler converts coded errors into JSON responses with the
// matching status. Plain echo.HTTPErrors pass through; anything else is a
// 500 logged with its request id.
func EchoErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ae *Error
		if errors.As(err, &ae) {
			_ = c.JSON(HTTPStatus(ae.Code), response{Code: ae.Code, Error: ae.Msg})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, response{Code: CodeValidation, Error: fmt.Sprintf("%v", he.Message)})
			return
		}

		rid, _ := c.Get("request_id").(string)
		logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, response{Code: CodeInternal, Error: "internal server error"})
	}
}
