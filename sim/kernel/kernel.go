// Package kernel provides the virtual-time scheduler that drives simulation processes.
//
// A Process is a state machine that the Kernel resumes at its wake times. Each call
// to Resume runs until the process next suspends, which it expresses by returning a
// Yield: Hold(d) to sleep for d ticks, Passivate() to sleep until another process
// calls Activate, or Done() to finish. Exactly one process runs at any virtual
// instant; wakeups at the same instant run in the order they were scheduled.
//
// Thread-safety: NOT thread-safe, except Now, Horizon and Stop which may be called
// from any goroutine. All other methods must be called from the goroutine running Run,
// or before Run starts / after it returns.
package kernel

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Process is a logical activity scheduled in virtual time.
type Process interface {
	Name() string
	Resume(k *Kernel) Yield
}

// Interruptible is implemented by processes that hold work which must be abandoned
// when they are forcibly terminated (see Kernel.ResumeThenTerminate).
type Interruptible interface {
	Interrupt(k *Kernel)
}

type yieldKind int

const (
	yieldHold yieldKind = iota
	yieldPassivate
	yieldDone
)

// Yield tells the kernel how a process suspends after a call to Resume.
type Yield struct {
	kind  yieldKind
	delay int64
}

// Hold suspends the process for delay ticks. Negative delays are treated as zero.
func Hold(delay int64) Yield {
	if delay < 0 {
		delay = 0
	}
	return Yield{kind: yieldHold, delay: delay}
}

// Passivate suspends the process until Activate is called for it.
func Passivate() Yield {
	return Yield{kind: yieldPassivate}
}

// Done finishes the process; it is no longer tracked.
func Done() Yield {
	return Yield{kind: yieldDone}
}

// State is the lifecycle state of a tracked process.
type State int

const (
	StateScheduled State = iota // waiting for a wake time
	StatePassive                // waiting for Activate
	StateRunning                // inside Resume
	StateTerminated             // finished or terminated; absorbing
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StatePassive:
		return "passive"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type handle struct {
	proc  Process
	state State
}

// Kernel owns the virtual clock and the time-ordered wakeup queue.
type Kernel struct {
	clock   atomic.Int64
	horizon int64
	stopped atomic.Bool

	events  *eventHeap
	handles map[Process]*handle
	live    []*handle // spawn order, compacted lazily
	current *handle
	seq     uint64
	pending int // wakeups in events whose process is still live
}

// New creates a Kernel whose clock starts at zero and stops at horizon ticks.
// Panics if horizon is not positive.
func New(horizon int64) *Kernel {
	if horizon <= 0 {
		panic(fmt.Sprintf("kernel.New: horizon must be > 0, got %d", horizon))
	}
	return &Kernel{
		horizon: horizon,
		events:  newEventHeap(),
		handles: make(map[Process]*handle),
	}
}

// Now returns the current virtual time in ticks.
func (k *Kernel) Now() int64 {
	return k.clock.Load()
}

// Horizon returns the virtual time at which the run stops.
func (k *Kernel) Horizon() int64 {
	return k.horizon
}

// TimeLeft returns Horizon() - Now().
func (k *Kernel) TimeLeft() int64 {
	return k.horizon - k.Now()
}

// Spawn starts tracking p and schedules its first Resume at the current time.
// Panics if p is already live.
func (k *Kernel) Spawn(p Process) {
	if _, ok := k.handles[p]; ok {
		panic(fmt.Sprintf("kernel.Spawn: process %q is already live", p.Name()))
	}
	h := &handle{proc: p}
	k.handles[p] = h
	k.live = append(k.live, h)
	k.schedule(h, k.Now())
	logrus.Debugf("[tick %07d] spawned %s", k.Now(), p.Name())
}

// Activate wakes a passive process at the current time.
// Returns false if p is not live or not passive.
func (k *Kernel) Activate(p Process) bool {
	h, ok := k.handles[p]
	if !ok || h.state != StatePassive {
		return false
	}
	k.schedule(h, k.Now())
	return true
}

// StateOf reports the lifecycle state of p. The boolean is false if p was never
// spawned or is no longer tracked.
func (k *Kernel) StateOf(p Process) (State, bool) {
	h, ok := k.handles[p]
	if !ok {
		return StateTerminated, false
	}
	return h.state, true
}

// HasPendingWork reports whether any process is running or waiting for a wake time.
func (k *Kernel) HasPendingWork() bool {
	return k.current != nil || k.pending > 0
}

// Continue reports whether the run should go on: not stopped, horizon not exceeded,
// and work still pending. Processes call this before starting a new unit of work.
func (k *Kernel) Continue() bool {
	return !k.stopped.Load() && k.Now() <= k.horizon && k.HasPendingWork()
}

// Stop makes Run return before its next wakeup and Continue report false.
func (k *Kernel) Stop() {
	k.stopped.Store(true)
}

// Terminate stops tracking p without resuming it. Any pending wakeup is discarded.
// Returns false if p is not live.
func (k *Kernel) Terminate(p Process) bool {
	h, ok := k.handles[p]
	if !ok {
		return false
	}
	k.retire(h)
	return true
}

// ResumeThenTerminate gives p a chance to abandon its in-flight work through
// Interruptible.Interrupt and then terminates it. The process is terminated even
// when Interrupt panics; the panic is returned as an error.
func (k *Kernel) ResumeThenTerminate(p Process) (err error) {
	h, ok := k.handles[p]
	if !ok {
		return fmt.Errorf("process %q is not live", p.Name())
	}
	defer k.retire(h)
	if ip, ok := p.(Interruptible); ok {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("interrupting %q: %v", p.Name(), r)
			}
		}()
		ip.Interrupt(k)
	}
	return nil
}

// Live returns the tracked processes in spawn order.
func (k *Kernel) Live() []Process {
	n := 0
	for _, h := range k.live {
		if h.state != StateTerminated {
			k.live[n] = h
			n++
		}
	}
	for i := n; i < len(k.live); i++ {
		k.live[i] = nil
	}
	k.live = k.live[:n]

	procs := make([]Process, n)
	for i, h := range k.live {
		procs[i] = h.proc
	}
	return procs
}

// Run resumes processes in wake-time order until no work is pending, the next wakeup
// lies beyond the horizon, Stop is called, or ctx is done. A wakeup beyond the horizon
// is never executed; the clock is pinned to the horizon instead.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.stopped.Load() {
			break
		}
		w := k.events.peek()
		if w == nil {
			break
		}
		if w.h.state == StateTerminated {
			k.events.popNext()
			continue
		}
		if w.at > k.horizon {
			k.clock.Store(k.horizon)
			break
		}
		k.events.popNext()
		k.pending--
		k.clock.Store(w.at)
		k.step(w.h)
	}
	logrus.Infof("[tick %07d] Simulation ended", k.Now())
	return nil
}

func (k *Kernel) schedule(h *handle, at int64) {
	h.state = StateScheduled
	k.seq++
	k.events.schedule(&wakeup{at: at, seq: k.seq, h: h})
	k.pending++
}

func (k *Kernel) retire(h *handle) {
	if h.state == StateTerminated {
		return
	}
	if h.state == StateScheduled {
		k.pending--
	}
	h.state = StateTerminated
	delete(k.handles, h.proc)
}

func (k *Kernel) step(h *handle) {
	h.state = StateRunning
	k.current = h
	y := k.resume(h)
	k.current = nil

	// The process may have terminated itself (or been terminated) while running.
	if h.state == StateTerminated {
		return
	}
	switch y.kind {
	case yieldHold:
		k.schedule(h, k.Now()+y.delay)
	case yieldPassivate:
		h.state = StatePassive
	default:
		k.retire(h)
	}
}

func (k *Kernel) resume(h *handle) (y Yield) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[tick %07d] process %s panicked, terminating it: %v", k.Now(), h.proc.Name(), r)
			y = Done()
		}
	}()
	return h.proc.Resume(k)
}
