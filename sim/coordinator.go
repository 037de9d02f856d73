// Implements the Coordinator, which wires server pools, generators, the random-event
// injector and the flight registry onto one kernel and drives a run.

package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/bus"
	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/sampling"
	"github.com/terminal-sim/terminal-sim/sim/trace"
)

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithTrace records dispatch, detour and flight admission decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(c *Coordinator) { c.trace = st }
}

// WithNotifier publishes domain events through n.
func WithNotifier(n *bus.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithDelaySampler replaces the configured delay sampler of a stage. Side event
// kinds replace the sampler of that side event only.
func WithDelaySampler(stage StageKind, s sampling.DelaySampler) Option {
	return func(c *Coordinator) { c.samplerOverrides[stage] = s }
}

// Coordinator owns every process of one run.
type Coordinator struct {
	cfg     SimulationConfig
	kernel  *kernel.Kernel
	rng     *PartitionedRNG
	ids     *IDGenerator
	metrics *Metrics

	pools      map[StageKind]*ServerPool
	generators []*Generator
	injector   *RandomEventInjector
	flights    *FlightRegistry

	samplerOverrides map[StageKind]sampling.DelaySampler
	sideSamplers     map[StageKind]sampling.DelaySampler
	trace            *trace.SimulationTrace
	notifier         *bus.Notifier

	detoursMu sync.Mutex
	detours   []*SideEventProcess // side events that may still hold a passenger

	started bool
	stopped bool
}

// NewCoordinator validates cfg and builds a coordinator ready to Start.
func NewCoordinator(cfg SimulationConfig, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	cfg = cfg.Clone()
	c := &Coordinator{
		cfg:              cfg,
		kernel:           kernel.New(cfg.Horizon()),
		rng:              NewPartitionedRNG(cfg.Seed),
		ids:              NewIDGenerator(cfg.Seed),
		metrics:          newMetrics(cfg.PoolSizes[StageGenerate], cfg.PoolSizes),
		pools:            make(map[StageKind]*ServerPool),
		samplerOverrides: make(map[StageKind]sampling.DelaySampler),
		sideSamplers:     make(map[StageKind]sampling.DelaySampler),
	}
	for _, opt := range opts {
		opt(c)
	}

	sampler := func(stage StageKind, spec sampling.DistSpec) (sampling.DelaySampler, error) {
		if s, ok := c.samplerOverrides[stage]; ok {
			return s, nil
		}
		return sampling.NewDelaySampler(spec)
	}

	for _, stage := range PooledStages {
		s, err := sampler(stage, cfg.Delays[stage])
		if err != nil {
			return nil, fmt.Errorf("%s delay: %w", stage, err)
		}
		c.pools[stage] = newServerPool(stage, cfg.PoolSizes[stage], func(idx int) *StageProcess {
			return newStageProcess(c, stage, idx, s)
		})
	}

	gen, err := sampler(StageGenerate, cfg.Delays[StageGenerate])
	if err != nil {
		return nil, fmt.Errorf("%s delay: %w", StageGenerate, err)
	}
	c.generators = make([]*Generator, cfg.PoolSizes[StageGenerate])
	for i := range c.generators {
		c.generators[i] = newGenerator(c, i, gen)
	}

	for _, side := range SideEvents {
		s, err := sampler(side, cfg.SideEventDelay)
		if err != nil {
			return nil, fmt.Errorf("%s delay: %w", side, err)
		}
		c.sideSamplers[side] = s
	}
	c.injector = NewRandomEventInjector(cfg.RandomEventProbability, c.rng.ForSubsystem(SubsystemRandomEvents))

	prep, err := sampling.NewDelaySampler(cfg.FlightPreparation)
	if err != nil {
		return nil, fmt.Errorf("flight preparation delay: %w", err)
	}
	dep, err := sampling.NewDelaySampler(cfg.FlightDeparture)
	if err != nil {
		return nil, fmt.Errorf("flight departure delay: %w", err)
	}
	c.flights = newFlightRegistry(c.kernel, c.ids, prep, dep, c.rng.ForSubsystem(SubsystemFlights), cfg.MaxFlights)
	c.flights.trace = c.trace
	c.flights.notifier = c.notifier
	return c, nil
}

// Start opens the initial flights, spawns every server and generator, and runs the
// kernel until the horizon, until no work is left, or until ctx is done.
// Start may be called once.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.started {
		return errors.New("coordinator already started")
	}
	c.started = true
	logrus.Infof("[tick %07d] Starting simulation: horizon=%d ticks, generators=%d, check-in=%d, security=%d, p(random event)=%.2f",
		c.kernel.Now(), c.kernel.Horizon(), len(c.generators),
		c.pools[StageCheckIn].Size(), c.pools[StageSecurityCheck].Size(), c.cfg.RandomEventProbability)

	c.flights.Fill()
	for _, stage := range PooledStages {
		for _, s := range c.pools[stage].Servers() {
			c.kernel.Spawn(s)
		}
	}
	for _, g := range c.generators {
		c.kernel.Spawn(g)
	}
	return c.kernel.Run(ctx)
}

// Stop forces every still-live process to resume-then-terminate. Passengers in
// service or inside a side event are abandoned. A failure on one process is
// logged and the sweep continues; all failures are returned joined.
// Calling Stop more than once is a no-op.
func (c *Coordinator) Stop() error {
	if c.stopped {
		return nil
	}
	c.stopped = true
	c.kernel.Stop()

	var errs []error
	swept := 0
	for _, p := range c.kernel.Live() {
		swept++
		if err := c.kernel.ResumeThenTerminate(p); err != nil {
			logrus.Errorf("[tick %07d] terminating %s: %v", c.kernel.Now(), p.Name(), err)
			errs = append(errs, err)
		}
	}
	logrus.Infof("[tick %07d] Stopped %d processes", c.kernel.Now(), swept)
	return errors.Join(errs...)
}

// Run starts the simulation and stops it once the kernel returns.
func (c *Coordinator) Run(ctx context.Context) error {
	runErr := c.Start(ctx)
	if err := c.Stop(); err != nil {
		logrus.Warnf("simulation stopped with termination errors: %v", err)
	}
	return runErr
}

// route hands p, which just left from, to the next stage, possibly through a side
// event. A panic while routing is returned as an error.
func (c *Coordinator) route(from StageKind, p *Passenger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("routing %s from %s: %v", p.ID, from, r)
		}
	}()
	next := from.Spec().Next
	rt := c.injector.Route(from, next)
	if rt.IsDetour() {
		c.startDetour(from, rt, p)
		return nil
	}
	c.deliver(next, p)
	return nil
}

func (c *Coordinator) startDetour(from StageKind, rt Route, p *Passenger) {
	now := c.kernel.Now()
	side := &SideEventProcess{
		kind:      rt.Side,
		from:      from,
		then:      rt.Next,
		passenger: p,
		name:      fmt.Sprintf("%s_%s", rt.Side, p.ID),
		sampler:   c.sideSamplers[rt.Side],
		rng:       c.rng.ForSubsystem(SubsystemRandomEvents),
		coord:     c,
	}
	c.metrics.RandomEvents.Add(1)
	if c.trace != nil {
		c.trace.RecordDetour(trace.DetourRecord{
			PassengerID: p.ID,
			Clock:       now,
			From:        from.String(),
			Side:        rt.Side.String(),
			Then:        rt.Next.String(),
		})
	}
	c.trackDetour(side)
	c.kernel.Spawn(side)
	logrus.Debugf("[tick %07d] %s detoured via %s", now, p.ID, rt)
}

// trackDetour remembers side, dropping side events that no longer hold a passenger.
func (c *Coordinator) trackDetour(side *SideEventProcess) {
	c.detoursMu.Lock()
	defer c.detoursMu.Unlock()
	n := 0
	for _, d := range c.detours {
		if d.InFlight() {
			c.detours[n] = d
			n++
		}
	}
	clear(c.detours[n:])
	c.detours = append(c.detours[:n], side)
}

// deliver places p at stage next: boarding admits it to its flight, pooled stages
// dispatch it to one instance and wake that instance if it is idle.
func (c *Coordinator) deliver(next StageKind, p *Passenger) {
	if next.Spec().Terminal {
		c.flights.AdmitPassenger(p)
		return
	}
	pool, ok := c.pools[next]
	if !ok {
		panic(fmt.Sprintf("no server pool for stage %s", next))
	}
	snaps := pool.Snapshots()
	d := Dispatch(snaps)
	server := pool.Server(d.Index)
	if c.trace != nil {
		lens := make([]int, len(snaps))
		for i, s := range snaps {
			lens[i] = s.QueueLen
		}
		c.trace.RecordDispatch(trace.DispatchRecord{
			PassengerID:    p.ID,
			Clock:          c.kernel.Now(),
			Stage:          next.String(),
			ChosenInstance: d.Index,
			Reason:         d.Reason,
			QueueLens:      lens,
		})
	}
	if n := server.queue.Enqueue(p); n == 1 && !server.queue.Occupied() {
		c.kernel.Activate(server)
	}
}

// deliverSafely is deliver with a panic returned as an error.
func (c *Coordinator) deliverSafely(next StageKind, p *Passenger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivering %s to %s: %v", p.ID, next, r)
		}
	}()
	c.deliver(next, p)
	return nil
}

// Config returns the configuration of the run.
func (c *Coordinator) Config() SimulationConfig {
	return c.cfg.Clone()
}

// Kernel returns the scheduler driving the run.
func (c *Coordinator) Kernel() *kernel.Kernel {
	return c.kernel
}

// Now returns the current virtual time in ticks.
func (c *Coordinator) Now() int64 {
	return c.kernel.Now()
}

// Pool returns the server pool of a pooled stage, or nil.
func (c *Coordinator) Pool(stage StageKind) *ServerPool {
	return c.pools[stage]
}

// Pools returns the server pools in pipeline order.
func (c *Coordinator) Pools() []*ServerPool {
	pools := make([]*ServerPool, 0, len(PooledStages))
	for _, stage := range PooledStages {
		pools = append(pools, c.pools[stage])
	}
	return pools
}

// Generators returns the passenger generators.
func (c *Coordinator) Generators() []*Generator {
	return c.generators
}

// Injector returns the random-event injector.
func (c *Coordinator) Injector() *RandomEventInjector {
	return c.injector
}

// Flights returns the flight registry.
func (c *Coordinator) Flights() *FlightRegistry {
	return c.flights
}

// Metrics returns the run metrics.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// Trace returns the decision trace, or nil when tracing is off.
func (c *Coordinator) Trace() *trace.SimulationTrace {
	return c.trace
}

// Detours returns the side events that may still hold a passenger.
func (c *Coordinator) Detours() []*SideEventProcess {
	c.detoursMu.Lock()
	defer c.detoursMu.Unlock()
	out := make([]*SideEventProcess, 0, len(c.detours))
	for _, d := range c.detours {
		if d.InFlight() {
			out = append(out, d)
		}
	}
	return out
}

// Snapshot accounts for every generated passenger.
type Snapshot struct {
	Now       int64
	Generated uint64
	Boarded   uint64
	Missed    uint64 // attributed and unattributed
	Queued    int
	InService int
	Detouring int
	Abandoned uint64
	Failed    uint64
}

// Accounted returns the number of passengers found somewhere. It equals Generated
// whenever no process is mid-step.
func (s Snapshot) Accounted() uint64 {
	return s.Boarded + s.Missed + uint64(s.Queued+s.InService+s.Detouring) + s.Abandoned + s.Failed
}

// Snapshot captures where every generated passenger currently is.
func (c *Coordinator) Snapshot() Snapshot {
	fc := c.flights.Counts()
	s := Snapshot{
		Now:       c.kernel.Now(),
		Generated: c.metrics.Generated.Load(),
		Boarded:   fc.Boarded,
		Missed:    fc.Missed + fc.UnattributedMissed,
		Detouring: len(c.Detours()),
		Abandoned: c.metrics.Abandoned.Load(),
		Failed:    c.metrics.Failures.Load(),
	}
	for _, pool := range c.pools {
		s.Queued += pool.Queued()
		s.InService += pool.InService()
	}
	return s
}

// PrintReport writes the end-of-run report to w.
func (c *Coordinator) PrintReport(w io.Writer) {
	c.metrics.Print(w, c.kernel.Now(), c.flights.Counts())
}
