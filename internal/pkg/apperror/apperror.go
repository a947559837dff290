package apperror

import (
	"errors"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

// Code classifies an error for callers and transports.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeInvalidStatus      Code = "INVALID_STATUS"
	CodeConflict           Code = "CONFLICT"
	CodeStoreNotReady      Code = "STORE_NOT_READY"
	CodeIPRestricted       Code = "IP_RESTRICTED"
	CodeLocationRestricted Code = "LOCATION_RESTRICTED"
	CodeTooSoon            Code = "TOO_SOON"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is a classified error. Sentinels are created with New and compared
// with errors.Is; Wrap attaches a cause while keeping the classification.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by identity and, for wrapped copies, by the sentinel
// they were derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.Err != nil && errors.Is(e.Err, t))
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies err under code. A nil err returns nil.
func Wrap(code Code, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the classification of err, INTERNAL_ERROR when unknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return CodeValidation
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err is classified under code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
