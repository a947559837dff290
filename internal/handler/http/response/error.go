package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

var codeStatus = map[apperror.Code]int{
	apperror.CodeValidation:         http.StatusUnprocessableEntity,
	apperror.CodeUnauthorized:       http.StatusUnauthorized,
	apperror.CodeForbidden:          http.StatusForbidden,
	apperror.CodeNotFound:           http.StatusNotFound,
	apperror.CodeAlreadyExists:      http.StatusConflict,
	apperror.CodeConflict:           http.StatusConflict,
	apperror.CodeInvalidState:       http.StatusConflict,
	apperror.CodeInvalidStatus:      http.StatusConflict,
	apperror.CodeIPRestricted:       http.StatusForbidden,
	apperror.CodeLocationRestricted: http.StatusForbidden,
	apperror.CodeTooSoon:            http.StatusTooManyRequests,
	apperror.CodeStoreNotReady:      http.StatusServiceUnavailable,
}

// StatusOf is the HTTP status for a classified error.
func StatusOf(err error) int {
	if status, ok := codeStatus[apperror.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	code := apperror.CodeOf(err)
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, "An unexpected error occurred")
		return
	}

	message := string(code)
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	Fail(w, status, string(code), message, nil)
}
