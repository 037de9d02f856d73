package sim

import "fmt"

// StageKind identifies one step of the terminal pipeline.
type StageKind int

const (
	StageGenerate StageKind = iota
	StageCheckIn
	StageSecurityCheck
	StageBoarding
	StageToilet
	StageDinner
	StageShopping
	numStages
)

var stageNames = [numStages]string{
	StageGenerate:      "generate",
	StageCheckIn:       "check_in",
	StageSecurityCheck: "security_check",
	StageBoarding:      "boarding",
	StageToilet:        "toilet",
	StageDinner:        "dinner",
	StageShopping:      "shopping",
}

func (s StageKind) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("StageKind(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStageKind maps a stage name back to its StageKind.
func ParseStageKind(name string) (StageKind, error) {
	for i, n := range stageNames {
		if n == name {
			return StageKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// StageSpec describes where a stage sits in the pipeline graph.
type StageSpec struct {
	Next         StageKind // stage an entity is handed to when this one completes
	Pooled       bool      // served by a ServerPool of queued instances
	Configurable bool      // pool size can be configured
	RandomEvents bool      // hand-offs from this stage may be detoured
	Terminal     bool      // no further hand-off
}

// pipeline is the fixed stage graph: generate → check-in → security-check → boarding.
// Side events carry no Next of their own: a detour remembers where to go afterwards.
var pipeline = [numStages]StageSpec{
	StageGenerate:      {Next: StageCheckIn, Configurable: true, RandomEvents: true},
	StageCheckIn:       {Next: StageSecurityCheck, Pooled: true, Configurable: true, RandomEvents: true},
	StageSecurityCheck: {Next: StageBoarding, Pooled: true, Configurable: true, RandomEvents: true},
	StageBoarding:      {Terminal: true},
	StageToilet:        {},
	StageDinner:        {},
	StageShopping:      {},
}

// Spec returns the pipeline entry for s. Panics on an unknown stage.
func (s StageKind) Spec() StageSpec {
	if s < 0 || s >= numStages {
		panic(fmt.Sprintf("unknown stage %d", int(s)))
	}
	return pipeline[s]
}

// IsSideEvent reports whether s is one of the randomly injected side activities.
func (s StageKind) IsSideEvent() bool {
	for _, side := range SideEvents {
		if s == side {
			return true
		}
	}
	return false
}

// SideEvents is the fixed set of detour activities.
var SideEvents = []StageKind{StageToilet, StageDinner, StageShopping}

// PooledStages lists the stages served by queued server pools, in pipeline order.
var PooledStages = []StageKind{StageCheckIn, StageSecurityCheck}

// ConfigurableStages lists the stages whose server count can be configured.
var ConfigurableStages = []StageKind{StageGenerate, StageCheckIn, StageSecurityCheck}
