package attendance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"
)

func TestPunchRequest_Validate(t *testing.T) {
	valid := PunchRequest{OrgID: "org", UserID: "u1", Type: EventCheckIn, OccurredAt: "2024-03-04T09:00:00+07:00"}
	assert.NoError(t, valid.Validate())

	bad := PunchRequest{OrgID: "org", Type: "lunch", OccurredAt: "yesterday", Timezone: "Nowhere/City",
		Location: &Location{Latitude: 120}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	for _, field := range []string{"user_id", "type", "occurred_at", "timezone", "location.lat"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestImportRequest_Validate(t *testing.T) {
	ok := ImportRequest{OrgID: "org", Filename: "march.XLSX", Reader: strings.NewReader("x")}
	assert.NoError(t, ok.Validate())

	bad := ImportRequest{OrgID: "org", Filename: "march.pdf", Reader: strings.NewReader("x"), Mode: "replace"}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
	assert.Contains(t, err.Error(), "mode")
}

func TestOverride_Empty(t *testing.T) {
	var o *Override
	assert.True(t, o.Empty())
	assert.True(t, (&Override{}).Empty())
	s := StatusAdjusted
	assert.False(t, (&Override{Status: &s}).Empty())
}
