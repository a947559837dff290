package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequestRequest
		wantErr string
	}{
		{
			name:    "missed check in needs requested_in",
			req:     CreateRequestRequest{Type: TypeMissedCheckIn, RequestedOut: "2024-03-04T18:00:00Z"},
			wantErr: "requested_in",
		},
		{
			name:    "time correction must be ordered",
			req:     CreateRequestRequest{Type: TypeTimeCorrection, RequestedIn: "2024-03-04T18:00:00Z", RequestedOut: "2024-03-04T09:00:00Z"},
			wantErr: "requested_out must be after requested_in",
		},
		{
			name:    "leave needs duration or span",
			req:     CreateRequestRequest{Type: TypeLeave},
			wantErr: "duration_minutes",
		},
		{
			name:    "unknown type",
			req:     CreateRequestRequest{Type: "vacation"},
			wantErr: "type must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.OrgID = "org"
			tt.req.UserID = "u1"
			tt.req.WorkDate = "2024-03-04"
			err := tt.req.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateRequestRequest_ValidateParses(t *testing.T) {
	req := CreateRequestRequest{
		OrgID: "org", UserID: "u1", WorkDate: "2024-03-04", Type: TypeOvertime,
		RequestedIn: "2024-03-04T18:00:00Z", RequestedOut: "2024-03-04T20:30:00Z",
	}
	require.NoError(t, req.Validate())
	require.NotNil(t, req.ParsedRequestedIn)
	require.NotNil(t, req.ParsedRequestedOut)
	assert.Equal(t, 4, req.ParsedWorkDate.Day())
}

func TestFlowSnapshot(t *testing.T) {
	empty := FlowSnapshot{}
	assert.True(t, empty.IsLastStep())
	_, ok := empty.Current()
	assert.False(t, ok)

	two := FlowSnapshot{Steps: []Step{{ApproverUserIDs: []string{"a"}}, {}}}
	assert.False(t, two.IsLastStep())
	step, ok := two.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, step.ApproverUserIDs)

	two.CurrentStep = 1
	assert.True(t, two.IsLastStep())
	step, _ = two.Current()
	assert.True(t, step.IsOpen())
}
