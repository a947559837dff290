package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

func TestHandleError(t *testing.T) {
	notFound := apperror.New(apperror.CodeNotFound, "request not found")
	notReady := apperror.New(apperror.CodeStoreNotReady, "attendance store is not ready")

	var fieldErrs validator.ValidationErrors
	fieldErrs.Add("work_date", "is required")

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"wrapped sentinel", fmt.Errorf("failed to get: %w", notFound), http.StatusNotFound, "NOT_FOUND", "request not found"},
		{"field errors", fieldErrs, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed"},
		{"store not ready", notReady, http.StatusServiceUnavailable, "STORE_NOT_READY", "attendance store is not ready"},
		{"too soon", apperror.New(apperror.CodeTooSoon, "punch too soon"), http.StatusTooManyRequests, "TOO_SOON", "punch too soon"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}
