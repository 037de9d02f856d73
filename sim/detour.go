// Implements random-event injection: a hand-off may be detoured through a side
// event (toilet, dinner, shopping) before reaching its next stage.

package sim

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// Route is the outcome of a routing decision: either Direct to Next, or a Detour
// through Side that then hands the passenger to Next.
type Route struct {
	Next   StageKind
	Side   StageKind
	detour bool
}

// Direct routes straight to next.
func Direct(next StageKind) Route {
	return Route{Next: next}
}

// Detour routes through side, then to then.
func Detour(side, then StageKind) Route {
	return Route{Next: then, Side: side, detour: true}
}

// IsDetour reports whether the route passes through a side event.
func (r Route) IsDetour() bool {
	return r.detour
}

func (r Route) String() string {
	if r.detour {
		return fmt.Sprintf("detour(%s → %s)", r.Side, r.Next)
	}
	return fmt.Sprintf("direct(%s)", r.Next)
}

// RandomEventInjector decides whether a hand-off is detoured through a side event.
type RandomEventInjector struct {
	probability   float64
	rng           *rand.Rand
	decisions     uint64
	substitutions uint64
}

// NewRandomEventInjector creates an injector firing with the given probability.
// A probability of 0 never fires.
func NewRandomEventInjector(probability float64, rng *rand.Rand) *RandomEventInjector {
	return &RandomEventInjector{probability: probability, rng: rng}
}

// MaybeSubstitute draws one uniform sample; below the probability, it returns a
// side event chosen uniformly from SideEvents.
func (r *RandomEventInjector) MaybeSubstitute(next StageKind) (StageKind, bool) {
	r.decisions++
	if r.rng.Float64() >= r.probability {
		return next, false
	}
	r.substitutions++
	return SideEvents[r.rng.IntN(len(SideEvents))], true
}

// Route decides how a passenger leaving from travels to next. Only stages flagged
// for random events are ever detoured.
func (r *RandomEventInjector) Route(from, next StageKind) Route {
	if !from.Spec().RandomEvents || r.probability <= 0 {
		return Direct(next)
	}
	if side, ok := r.MaybeSubstitute(next); ok {
		return Detour(side, next)
	}
	return Direct(next)
}

// Stats returns the number of decisions drawn and how many were substituted.
func (r *RandomEventInjector) Stats() (decisions, substitutions uint64) {
	return r.decisions, r.substitutions
}

type sideState int32

const (
	sideWaiting sideState = iota
	sideHolding
	sideExecuted
	sideAbandoned
	sideFailed
)

// SideEventProcess carries one passenger through a side event, then hands it to the
// stage the detour was headed for.
type SideEventProcess struct {
	kind      StageKind
	from      StageKind
	then      StageKind
	passenger *Passenger
	name      string

	sampler  sampling.DelaySampler
	rng      *rand.Rand
	coord    *Coordinator
	state    atomic.Int32
	executed atomic.Bool
}

// Name implements kernel.Process.
func (s *SideEventProcess) Name() string {
	return s.name
}

// Kind returns the side event.
func (s *SideEventProcess) Kind() StageKind {
	return s.kind
}

// Then returns the stage the passenger is handed to afterwards.
func (s *SideEventProcess) Then() StageKind {
	return s.then
}

// Passenger returns the detoured passenger.
func (s *SideEventProcess) Passenger() *Passenger {
	return s.passenger
}

// Executed reports whether the hand-off has been performed. Once true it stays true.
func (s *SideEventProcess) Executed() bool {
	return s.executed.Load()
}

// InFlight reports whether the passenger is still inside the side event.
func (s *SideEventProcess) InFlight() bool {
	st := sideState(s.state.Load())
	return st == sideWaiting || st == sideHolding
}

// Resume implements kernel.Process: hold for the sampled delay, then hand off once.
func (s *SideEventProcess) Resume(k *kernel.Kernel) kernel.Yield {
	switch sideState(s.state.Load()) {
	case sideWaiting:
		ms, err := sampleDelay(s.sampler, s.rng)
		if err != nil {
			s.fail(k, err)
			return kernel.Done()
		}
		s.coord.metrics.SideEvent(s.kind).Record(ms)
		s.state.Store(int32(sideHolding))
		return kernel.Hold(ticksFromMillis(ms))
	case sideHolding:
		if !s.executed.CompareAndSwap(false, true) {
			return kernel.Done()
		}
		s.state.Store(int32(sideExecuted))
		if err := s.coord.deliverSafely(s.then, s.passenger); err != nil {
			s.coord.metrics.Failures.Add(1)
			logrus.Errorf("[tick %07d] %s: %v", k.Now(), s.name, err)
		}
		return kernel.Done()
	default:
		return kernel.Done()
	}
}

// Interrupt implements kernel.Interruptible. A passenger still inside the side
// event is abandoned.
func (s *SideEventProcess) Interrupt(k *kernel.Kernel) {
	if s.InFlight() {
		s.state.Store(int32(sideAbandoned))
		s.coord.metrics.Abandoned.Add(1)
		logrus.Debugf("[tick %07d] %s abandoned %s", k.Now(), s.name, s.passenger.ID)
	}
}

func (s *SideEventProcess) fail(k *kernel.Kernel, err error) {
	s.state.Store(int32(sideFailed))
	s.coord.metrics.Failures.Add(1)
	logrus.Errorf("[tick %07d] %s failed for %s: %v", k.Now(), s.name, s.passenger.ID, err)
}
