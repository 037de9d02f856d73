// Package trace provides decision-trace recording for post-run analysis of
// dispatch, detour and flight admission decisions.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// DispatchRecord captures one server-pool dispatch decision.
type DispatchRecord struct {
	PassengerID    string
	Clock          int64
	Stage          string
	ChosenInstance int
	Reason         string
	QueueLens      []int // per-instance queue length seen by the decision
}

// DetourRecord captures one random-event substitution.
type DetourRecord struct {
	PassengerID string
	Clock       int64
	From        string // stage that completed
	Side        string // side event chosen
	Then        string // stage entered after the side event
}

// FlightAdmissionRecord captures one flight admission decision.
type FlightAdmissionRecord struct {
	FlightID int64
	Clock    int64
	Admitted bool
	Required int64 // preparation + departure ticks
	TimeLeft int64 // ticks left before the horizon
}
