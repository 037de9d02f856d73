// Tracks run-wide counters and per-instance sample streams such as:
// processed counts, service times, waiting times, generator and side-event delays.

package sim

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"
)

// SampleStream is an append-only series of observations (milliseconds).
// Safe for concurrent use.
type SampleStream struct {
	mu     sync.Mutex
	values []float64
}

// Record appends one observation.
func (s *SampleStream) Record(v float64) {
	s.mu.Lock()
	s.values = append(s.values, v)
	s.mu.Unlock()
}

// Len returns the number of observations.
func (s *SampleStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Values returns a copy of the observations in recording order.
func (s *SampleStream) Values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.values)
}

// Summary returns descriptive statistics over the current observations.
func (s *SampleStream) Summary() SampleSummary {
	return Summarize(s.Values())
}

// SampleSummary holds descriptive statistics of a sample stream.
type SampleSummary struct {
	Count  int
	Mean   float64
	StdDev float64
	P50    float64
	P95    float64
	Max    float64
}

// Summarize computes descriptive statistics. Zero-valued for an empty input.
func Summarize(values []float64) SampleSummary {
	if len(values) == 0 {
		return SampleSummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sum := SampleSummary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		sum.StdDev = stat.StdDev(sorted, nil)
	}
	return sum
}

// InstanceMetrics holds the observations of one server instance.
type InstanceMetrics struct {
	processed    atomic.Uint64
	ServiceTimes SampleStream // sampled service delay per passenger served
	WaitingTimes SampleStream // generation-to-service-start time per passenger
}

// Processed returns the number of passengers this instance finished serving.
func (m *InstanceMetrics) Processed() uint64 {
	return m.processed.Load()
}

// Metrics aggregates statistics about the simulation for final reporting.
// All accessors are safe to call while the run is in progress.
type Metrics struct {
	Generated    atomic.Uint64 // passengers created by generators
	Failures     atomic.Uint64 // passengers lost to a caught per-entity failure
	Abandoned    atomic.Uint64 // passengers in service or detouring when the run stopped
	RandomEvents atomic.Uint64 // side events injected

	generators []*SampleStream                 // inter-arrival delays per generator
	instances  map[StageKind][]*InstanceMetrics // per pooled stage, per instance
	sideEvents map[StageKind]*SampleStream      // delay per side event kind
}

func newMetrics(generators int, poolSizes map[StageKind]int) *Metrics {
	m := &Metrics{
		generators: make([]*SampleStream, generators),
		instances:  make(map[StageKind][]*InstanceMetrics),
		sideEvents: make(map[StageKind]*SampleStream),
	}
	for i := range m.generators {
		m.generators[i] = &SampleStream{}
	}
	for _, stage := range PooledStages {
		ims := make([]*InstanceMetrics, poolSizes[stage])
		for i := range ims {
			ims[i] = &InstanceMetrics{}
		}
		m.instances[stage] = ims
	}
	for _, side := range SideEvents {
		m.sideEvents[side] = &SampleStream{}
	}
	return m
}

// Generator returns the inter-arrival samples of generator idx.
func (m *Metrics) Generator(idx int) *SampleStream {
	return m.generators[idx]
}

// Generators returns the number of generators.
func (m *Metrics) Generators() int {
	return len(m.generators)
}

// Instance returns the metrics of one pooled-stage instance, or nil if it does not exist.
func (m *Metrics) Instance(stage StageKind, idx int) *InstanceMetrics {
	ims := m.instances[stage]
	if idx < 0 || idx >= len(ims) {
		return nil
	}
	return ims[idx]
}

// Processed returns the number of passengers a stage finished serving, summed over
// its instances. For the generate stage it is the number of passengers generated.
func (m *Metrics) Processed(stage StageKind) uint64 {
	if stage == StageGenerate {
		return m.Generated.Load()
	}
	var total uint64
	for _, im := range m.instances[stage] {
		total += im.Processed()
	}
	return total
}

// SideEvent returns the delay samples of one side event kind, or nil for other stages.
func (m *Metrics) SideEvent(kind StageKind) *SampleStream {
	return m.sideEvents[kind]
}

// ServiceTimes merges the service-time observations of every instance of stage.
func (m *Metrics) ServiceTimes(stage StageKind) []float64 {
	var out []float64
	for _, im := range m.instances[stage] {
		out = append(out, im.ServiceTimes.Values()...)
	}
	return out
}

// WaitingTimes merges the waiting-time observations of every instance of stage.
func (m *Metrics) WaitingTimes(stage StageKind) []float64 {
	var out []float64
	for _, im := range m.instances[stage] {
		out = append(out, im.WaitingTimes.Values()...)
	}
	return out
}

// FlightCounts is a point-in-time copy of the flight registry counters.
type FlightCounts struct {
	Created            uint64 // flights admitted
	Rejected           uint64 // flights that failed the admission gate
	Open               int
	Departed           uint64
	Boarded            uint64 // passengers boarded on any flight
	DepartedPassengers uint64 // passengers boarded on flights that have departed
	Missed             uint64 // passengers attributed to a departed flight
	UnattributedMissed uint64 // missed passengers with no departed flight to attribute to
}

// Print writes the end-of-run report.
func (m *Metrics) Print(w io.Writer, now int64, flights FlightCounts) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Virtual time         : %.3f s\n", float64(now)/1e6)
	fmt.Fprintf(w, "Generated Passengers : %d\n", m.Generated.Load())
	for i, g := range m.generators {
		printSummary(w, fmt.Sprintf("generator[%d] delay", i), g.Summary())
	}
	for _, stage := range PooledStages {
		fmt.Fprintf(w, "%-20s : %d processed\n", stage, m.Processed(stage))
		for i, im := range m.instances[stage] {
			fmt.Fprintf(w, "  %s[%d] processed : %d\n", stage, i, im.Processed())
		}
		printSummary(w, fmt.Sprintf("%s service", stage), Summarize(m.ServiceTimes(stage)))
		printSummary(w, fmt.Sprintf("%s waiting", stage), Summarize(m.WaitingTimes(stage)))
	}
	fmt.Fprintf(w, "Random Events        : %d\n", m.RandomEvents.Load())
	for _, side := range SideEvents {
		fmt.Fprintf(w, "  %-18s : %d\n", side, m.sideEvents[side].Len())
	}
	fmt.Fprintf(w, "Flights Created      : %d\n", flights.Created)
	fmt.Fprintf(w, "Flights Rejected     : %d\n", flights.Rejected)
	fmt.Fprintf(w, "Flights Departed     : %d\n", flights.Departed)
	fmt.Fprintf(w, "Flights Open         : %d\n", flights.Open)
	fmt.Fprintf(w, "Boarded Passengers   : %d\n", flights.Boarded)
	fmt.Fprintf(w, "Departed Passengers  : %d\n", flights.DepartedPassengers)
	fmt.Fprintf(w, "Missed Passengers    : %d (%d without a departed flight)\n", flights.Missed+flights.UnattributedMissed, flights.UnattributedMissed)
	fmt.Fprintf(w, "Failed Passengers    : %d\n", m.Failures.Load())
	fmt.Fprintf(w, "Abandoned Passengers : %d\n", m.Abandoned.Load())
}

func printSummary(w io.Writer, label string, s SampleSummary) {
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(w, "  %-28s : n=%d mean=%.2fms stddev=%.2fms p50=%.2fms p95=%.2fms max=%.2fms\n",
		label, s.Count, s.Mean, s.StdDev, s.P50, s.P95, s.Max)
}
