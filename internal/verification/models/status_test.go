package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idvgate/pkg/domain-errors"
)

func TestParseFlowStatus(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    FlowStatus
		wantErr string
	}{
		{name: "initiated upper", raw: "INITIATED", want: FlowInitiated},
		{name: "completed lower", raw: "completed", want: FlowCompleted},
		{name: "reinitiated mixed", raw: "ReInitiated", want: FlowReinitiated},
		{name: "padded", raw: "  INITIATED  ", want: FlowInitiated},
		{name: "missing", raw: "", wantErr: "flow status not found"},
		{name: "blank", raw: "   ", wantErr: "flow status not found"},
		{name: "invalid", raw: "STARTED", wantErr: "invalid flow status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlowStatus(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlowStatusDistinguishesMissingFromInvalid(t *testing.T) {
	_, missingErr := ParseFlowStatus("")
	_, invalidErr := ParseFlowStatus("bogus")

	require.Error(t, missingErr)
	require.Error(t, invalidErr)
	assert.NotEqual(t, missingErr.Error(), invalidErr.Error())
}

func TestParseRunStatus(t *testing.T) {
	for _, raw := range []string{"processing", "awaiting_input", "approved", "declined", "review", "abandoned", "error"} {
		got, err := ParseRunStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, RunStatus(raw), got)
	}

	got, err := ParseRunStatus("APPROVED")
	require.NoError(t, err)
	assert.Equal(t, RunStatusApproved, got)

	_, err = ParseRunStatus("finished")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRunStatusEnding(t *testing.T) {
	assert.True(t, RunStatusApproved.Ending())
	assert.True(t, RunStatusDeclined.Ending())
	assert.True(t, RunStatusReview.Ending())

	assert.False(t, RunStatusProcessing.Ending())
	assert.False(t, RunStatusAwaitingInput.Ending())
	assert.False(t, RunStatusAbandoned.Ending())
	assert.False(t, RunStatusError.Ending())
	assert.False(t, RunStatusUnknown.Ending())
}

func TestParseComparisonResult(t *testing.T) {
	assert.Equal(t, ComparisonClear, ParseComparisonResult("clear"))
	assert.Equal(t, ComparisonClear, ParseComparisonResult("CLEAR"))
	assert.Equal(t, ComparisonConsider, ParseComparisonResult("consider"))
	assert.Equal(t, ComparisonUnknown, ParseComparisonResult("unknown"))
	assert.Equal(t, ComparisonUnknown, ParseComparisonResult("anything-else"))
}

func TestVerifyRequestFlowStatus(t *testing.T) {
	req := &VerifyRequest{
		ProviderID: "onfido-1",
		Claims:     []string{"http://wso2.org/claims/dob"},
		Properties: []RequestProperty{{Name: "Status", Value: "initiated"}},
	}
	got, err := req.FlowStatus()
	require.NoError(t, err)
	assert.Equal(t, FlowInitiated, got)

	req.Properties = nil
	_, err = req.FlowStatus()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow status not found")
}

func TestVerifyRequestValidate(t *testing.T) {
	valid := &VerifyRequest{ProviderID: "p1", Claims: []string{"uri"}}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&VerifyRequest{Claims: []string{"uri"}}).Validate())
	assert.Error(t, (&VerifyRequest{ProviderID: "p1"}).Validate())
	assert.Error(t, (&VerifyRequest{ProviderID: "p1", Claims: []string{" "}}).Validate())
}
