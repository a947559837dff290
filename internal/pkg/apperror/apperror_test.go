package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
)

var errSample = New(CodeNotFound, "sample not found")

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"sentinel", errSample, CodeNotFound},
		{"wrapped sentinel", fmt.Errorf("load: %w", errSample), CodeNotFound},
		{"validation", validator.ValidationErrors{{Field: "user_id", Message: "required"}}, CodeValidation},
		{"wrapped validation", fmt.Errorf("x: %w", validator.ValidationErrors{{Field: "a", Message: "b"}}), CodeValidation},
		{"plain", errors.New("boom"), CodeInternal},
		{"wrap", Wrap(CodeStoreNotReady, "store", errors.New("relation missing")), CodeStoreNotReady},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CodeOf(c.err))
		})
	}
}

func TestWrap_KeepsSentinelIdentity(t *testing.T) {
	wrapped := Wrap(CodeInvalidState, "resolve", errSample)
	assert.ErrorIs(t, wrapped, errSample)
	assert.Equal(t, "resolve: sample not found", wrapped.Error())
	assert.Nil(t, Wrap(CodeInternal, "noop", nil))
}
