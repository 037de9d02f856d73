package sim

import "fmt"

// InstanceSnapshot is a lightweight view of one server instance for dispatch decisions.
type InstanceSnapshot struct {
	Index    int
	Occupied bool
	QueueLen int
}

// DispatchDecision records which instance receives an arriving passenger and why.
type DispatchDecision struct {
	Index  int
	Reason string
}

const (
	// ReasonUnoccupied: the first instance whose server is free was chosen.
	ReasonUnoccupied = "unoccupied"
	// ReasonShortestQueue: every server was busy; the shortest queue was chosen.
	ReasonShortestQueue = "shortest-queue"
)

// Dispatch picks the instance for a newly arriving passenger.
//
//  1. The first unoccupied instance in index order wins, whatever its queue length.
//  2. If every instance is occupied, the instance with the fewest waiting passengers
//     wins; ties are broken by lowest index.
//
// The result depends only on the snapshots, so known states can be replayed.
// Panics on empty snapshots.
func Dispatch(snapshots []InstanceSnapshot) DispatchDecision {
	if len(snapshots) == 0 {
		panic("Dispatch: empty snapshots")
	}
	for _, s := range snapshots {
		if !s.Occupied {
			return DispatchDecision{Index: s.Index, Reason: ReasonUnoccupied}
		}
	}

	// Strict < keeps the lowest index among equal lengths.
	target := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.QueueLen < target.QueueLen {
			target = s
		}
	}
	return DispatchDecision{Index: target.Index, Reason: ReasonShortestQueue}
}

func (d DispatchDecision) String() string {
	return fmt.Sprintf("%s[%d]", d.Reason, d.Index)
}
