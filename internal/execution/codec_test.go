package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/apierr"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		ref     Ref
		wantWID string
		wantRID string
		wantErr bool
	}{
		{name: "workflow and run", ref: Ref{WorkflowID: "wf-1", RunID: "run-1"}, wantWID: "wf-1", wantRID: "run-1"},
		{name: "empty run stays unset", ref: Ref{WorkflowID: "wf-1"}, wantWID: "wf-1"},
		{name: "whitespace run stays unset", ref: Ref{WorkflowID: "wf-1", RunID: "  "}, wantWID: "wf-1"},
		{name: "padded ids pass through", ref: Ref{WorkflowID: " wf-2 ", RunID: " run-2"}, wantWID: " wf-2 ", wantRID: " run-2"},
		{name: "empty workflow id", ref: Ref{RunID: "run-1"}, wantErr: true},
		{name: "blank workflow id", ref: Ref{WorkflowID: "\t"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			we, err := Resolve("TerminateWorkflow", tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apierr.IsValidation(err))
				assert.Contains(t, err.Error(), "TerminateWorkflow")
				assert.Nil(t, we)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWID, we.GetWorkflowId())
			assert.Equal(t, tt.wantRID, we.GetRunId())
		})
	}
}

func TestEncodeTime(t *testing.T) {
	assert.Nil(t, EncodeTime(nil))
	zero := time.Time{}
	assert.Nil(t, EncodeTime(&zero))

	ts := time.Date(2024, 3, 1, 12, 30, 0, 250, time.UTC)
	enc := EncodeTime(&ts)
	require.NotNil(t, enc)
	assert.Equal(t, ts.Unix(), enc.GetSeconds())
	assert.Equal(t, int32(250), enc.GetNanos())
}

func TestStartTimeFilterOpenRange(t *testing.T) {
	f, err := StartTimeFilter(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Nil(t, f.GetEarliestTime())
	assert.Nil(t, f.GetLatestTime())
}

func TestStartTimeFilterBounds(t *testing.T) {
	lo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := lo.Add(time.Hour)

	f, err := StartTimeFilter(&lo, nil)
	require.NoError(t, err)
	assert.Equal(t, lo.Unix(), f.GetEarliestTime().GetSeconds())
	assert.Nil(t, f.GetLatestTime())

	f, err = StartTimeFilter(&lo, &hi)
	require.NoError(t, err)
	assert.Equal(t, hi.Unix(), f.GetLatestTime().GetSeconds())

	_, err = StartTimeFilter(&hi, &lo)
	assert.True(t, apierr.IsValidation(err))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseTime("2024-05-06T07:08:09Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), got.UTC())

	_, err = ParseTime("yesterday")
	assert.True(t, apierr.IsValidation(err))
}
