package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures dispatch, detour and flight admission decisions.
	TraceLevelDecisions TraceLevel = "decisions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects decision records during a run.
// Records are appended from the simulation loop only; it is not safe for concurrent use.
type SimulationTrace struct {
	Level            TraceLevel
	Dispatches       []DispatchRecord
	Detours          []DetourRecord
	FlightAdmissions []FlightAdmissionRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{
		Level:            level,
		Dispatches:       make([]DispatchRecord, 0),
		Detours:          make([]DetourRecord, 0),
		FlightAdmissions: make([]FlightAdmissionRecord, 0),
	}
}

// RecordDispatch appends a dispatch decision record.
func (st *SimulationTrace) RecordDispatch(record DispatchRecord) {
	st.Dispatches = append(st.Dispatches, record)
}

// RecordDetour appends a detour record.
func (st *SimulationTrace) RecordDetour(record DetourRecord) {
	st.Detours = append(st.Detours, record)
}

// RecordFlightAdmission appends a flight admission record.
func (st *SimulationTrace) RecordFlightAdmission(record FlightAdmissionRecord) {
	st.FlightAdmissions = append(st.FlightAdmissions, record)
}
