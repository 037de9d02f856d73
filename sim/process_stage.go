// Implements StageProcess, the server logic bound to one instance of a pooled stage.
// A StageProcess loops Idle → Serving → Routing → Idle until the run ends.

package sim

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// ServerState is the lifecycle state of a StageProcess.
type ServerState int32

const (
	ServerIdle ServerState = iota
	ServerServing
	ServerRouting
	ServerTerminated
)

func (s ServerState) String() string {
	switch s {
	case ServerIdle:
		return "idle"
	case ServerServing:
		return "serving"
	case ServerRouting:
		return "routing"
	case ServerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ServerState(%d)", int32(s))
	}
}

// StageProcess serves the passengers of one StageQueue, one at a time.
type StageProcess struct {
	stage StageKind
	index int
	name  string

	queue     *StageQueue
	inService atomic.Pointer[Passenger]
	state     atomic.Int32

	sampler sampling.DelaySampler
	rng     *rand.Rand
	metrics *InstanceMetrics
	coord   *Coordinator
}

func newStageProcess(c *Coordinator, stage StageKind, idx int, sampler sampling.DelaySampler) *StageProcess {
	return &StageProcess{
		stage:   stage,
		index:   idx,
		name:    SubsystemInstance(stage, idx),
		queue:   &StageQueue{},
		sampler: sampler,
		rng:     c.rng.ForSubsystem(SubsystemInstance(stage, idx)),
		metrics: c.metrics.Instance(stage, idx),
		coord:   c,
	}
}

// Name implements kernel.Process.
func (s *StageProcess) Name() string {
	return s.name
}

// Stage returns the stage this instance serves.
func (s *StageProcess) Stage() StageKind {
	return s.stage
}

// Index returns the instance index within its pool.
func (s *StageProcess) Index() int {
	return s.index
}

// Queue returns the instance's queue.
func (s *StageProcess) Queue() *StageQueue {
	return s.queue
}

// InService returns the passenger being served, or nil.
func (s *StageProcess) InService() *Passenger {
	return s.inService.Load()
}

// State returns the current lifecycle state.
func (s *StageProcess) State() ServerState {
	return ServerState(s.state.Load())
}

// Metrics returns the instance's observations.
func (s *StageProcess) Metrics() *InstanceMetrics {
	return s.metrics
}

func (s *StageProcess) setState(st ServerState) {
	s.state.Store(int32(st))
}

// Resume implements kernel.Process. A resume while Serving means the service delay
// has elapsed: the passenger is routed onward before the next one is pulled.
func (s *StageProcess) Resume(k *kernel.Kernel) kernel.Yield {
	if s.State() == ServerServing {
		s.finish(k)
	}
	return s.serveNext(k)
}

// Interrupt implements kernel.Interruptible. The passenger in service, if any, is
// abandoned and not counted as processed.
func (s *StageProcess) Interrupt(k *kernel.Kernel) {
	if p := s.inService.Swap(nil); p != nil {
		s.coord.metrics.Abandoned.Add(1)
		s.queue.Release()
		logrus.Debugf("[tick %07d] %s abandoned %s", k.Now(), s.name, p.ID)
	}
	s.setState(ServerTerminated)
}

func (s *StageProcess) finish(k *kernel.Kernel) {
	p := s.inService.Swap(nil)
	s.queue.Release()
	s.metrics.processed.Add(1)
	s.setState(ServerRouting)
	if err := s.coord.route(s.stage, p); err != nil {
		s.coord.metrics.Failures.Add(1)
		logrus.Errorf("[tick %07d] %s: %v", k.Now(), s.name, err)
	}
	s.setState(ServerIdle)
}

func (s *StageProcess) serveNext(k *kernel.Kernel) kernel.Yield {
	for {
		if !k.Continue() {
			s.setState(ServerTerminated)
			return kernel.Done()
		}
		p, ok := s.queue.Dequeue()
		if !ok {
			s.setState(ServerIdle)
			return kernel.Passivate()
		}
		if !s.queue.TryOccupy() {
			logrus.Warnf("[tick %07d] %s was already occupied when serving %s", k.Now(), s.name, p.ID)
		}
		ms, err := sampleDelay(s.sampler, s.rng)
		if err != nil {
			s.queue.Release()
			s.coord.metrics.Failures.Add(1)
			logrus.Errorf("[tick %07d] %s failed serving %s: %v", k.Now(), s.name, p.ID, err)
			continue
		}
		s.metrics.ServiceTimes.Record(ms)
		s.metrics.WaitingTimes.Record(float64(k.Now()-p.CreatedAt) / TicksPerMilli)
		s.inService.Store(p)
		s.setState(ServerServing)
		logrus.Debugf("[tick %07d] %s serving %s for %.3fms", k.Now(), s.name, p.ID, ms)
		return kernel.Hold(ticksFromMillis(ms))
	}
}

// sampleDelay draws one delay, converting a sampler panic into an error.
func sampleDelay(s sampling.DelaySampler, rng *rand.Rand) (ms float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sampling delay: %v", r)
		}
	}()
	return s.Sample(rng), nil
}
