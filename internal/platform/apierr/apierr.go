package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeConfiguration   = "configuration_error"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeValidation      = "validation_error"
	CodeGeneration      = "generation_error"
	CodeMalformedOutput = "malformed_output"
	CodePersistence     = "persistence_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Configuration(err error) *Error {
	return New(http.StatusInternalServerError, CodeConfiguration, err)
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

func Generation(err error) *Error {
	return New(http.StatusBadGateway, CodeGeneration, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

// MalformedOutput keeps the raw model text so a failed parse can be inspected
// after the fact.
type MalformedOutput struct {
	Raw string
	Err error
}

func (e *MalformedOutput) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %v", e.Err)
	}
	return "malformed model output"
}

func (e *MalformedOutput) Unwrap() error { return e.Err }

func Malformed(raw string, err error) *Error {
	return New(http.StatusBadGateway, CodeMalformedOutput, &MalformedOutput{Raw: raw, Err: err})
}

// RawOutput extracts the preserved model text from anywhere in err's chain.
func RawOutput(err error) (string, bool) {
	var mo *MalformedOutput
	if errors.As(err, &mo) {
		return mo.Raw, true
	}
	return "", false
}

// CodeOf reports the taxonomy code carried by err, or "" when err carries none.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}
