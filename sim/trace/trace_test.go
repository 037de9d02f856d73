package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationTrace_RecordDispatch_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceLevelDecisions)

	// WHEN a dispatch record is recorded
	st.RecordDispatch(DispatchRecord{
		PassengerID:    "p1",
		Clock:          1000,
		Stage:          "check_in",
		ChosenInstance: 2,
		Reason:         "shortest-queue",
		QueueLens:      []int{3, 1, 0},
	})

	// THEN the trace contains one dispatch record with correct data
	require.Len(t, st.Dispatches, 1)
	assert.Equal(t, "p1", st.Dispatches[0].PassengerID)
	assert.Equal(t, 2, st.Dispatches[0].ChosenInstance)
	assert.Empty(t, st.Detours)
	assert.Empty(t, st.FlightAdmissions)
}

func TestSimulationTrace_RecordDetourAndFlight_AppendsInOrder(t *testing.T) {
	st := NewSimulationTrace(TraceLevelDecisions)

	st.RecordDetour(DetourRecord{PassengerID: "p1", From: "generate", Side: "toilet", Then: "check_in"})
	st.RecordDetour(DetourRecord{PassengerID: "p2", From: "check_in", Side: "dinner", Then: "security_check"})
	st.RecordFlightAdmission(FlightAdmissionRecord{FlightID: 0, Admitted: true})

	require.Len(t, st.Detours, 2)
	assert.Equal(t, "p1", st.Detours[0].PassengerID)
	assert.Equal(t, "dinner", st.Detours[1].Side)
	require.Len(t, st.FlightAdmissions, 1)
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
		{"NONE", false},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidTraceLevel(tc.level))
		})
	}
}
