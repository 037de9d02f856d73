package trace

import "fmt"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDispatches      int
	UnoccupiedDispatches int
	InstanceDistribution map[string]int // "stage_index" → passengers dispatched
	TotalDetours         int
	DetoursBySide        map[string]int
	FlightsAdmitted      int
	FlightsRejected      int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		InstanceDistribution: make(map[string]int),
		DetoursBySide:        make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDispatches = len(st.Dispatches)
	for _, d := range st.Dispatches {
		summary.InstanceDistribution[fmt.Sprintf("%s_%d", d.Stage, d.ChosenInstance)]++
		if d.Reason == "unoccupied" {
			summary.UnoccupiedDispatches++
		}
	}

	summary.TotalDetours = len(st.Detours)
	for _, d := range st.Detours {
		summary.DetoursBySide[d.Side]++
	}

	for _, a := range st.FlightAdmissions {
		if a.Admitted {
			summary.FlightsAdmitted++
		} else {
			summary.FlightsRejected++
		}
	}
	return summary
}
