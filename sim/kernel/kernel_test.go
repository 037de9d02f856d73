package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted is a process that replays a fixed list of yields and records the
// virtual times at which it was resumed.
type scripted struct {
	name        string
	yields      []Yield
	resumedAt   []int64
	interrupted bool
	panicOnStop bool
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Resume(k *Kernel) Yield {
	s.resumedAt = append(s.resumedAt, k.Now())
	if len(s.yields) == 0 {
		return Done()
	}
	y := s.yields[0]
	s.yields = s.yields[1:]
	return y
}

func (s *scripted) Interrupt(_ *Kernel) {
	s.interrupted = true
	if s.panicOnStop {
		panic("boom")
	}
}

func TestKernel_HoldAdvancesClockInWakeOrder(t *testing.T) {
	// GIVEN two processes holding for different durations
	k := New(1000)
	a := &scripted{name: "a", yields: []Yield{Hold(30), Hold(30)}}
	b := &scripted{name: "b", yields: []Yield{Hold(10)}}
	k.Spawn(a)
	k.Spawn(b)

	// WHEN the kernel runs to completion
	require.NoError(t, k.Run(context.Background()))

	// THEN each process resumes at its own wake times
	assert.Equal(t, []int64{0, 30, 60}, a.resumedAt)
	assert.Equal(t, []int64{0, 10}, b.resumedAt)
	assert.False(t, k.HasPendingWork())
	assert.Empty(t, k.Live())
}

func TestKernel_SameInstantRunsInSchedulingOrder(t *testing.T) {
	k := New(100)
	var order []string
	mk := func(name string) *orderProc {
		return &orderProc{name: name, order: &order}
	}
	p1, p2, p3 := mk("p1"), mk("p2"), mk("p3")
	k.Spawn(p1)
	k.Spawn(p2)
	k.Spawn(p3)

	require.NoError(t, k.Run(context.Background()))

	assert.Equal(t, []string{"p1", "p2", "p3"}, order)
}

type orderProc struct {
	name  string
	order *[]string
}

func (o *orderProc) Name() string { return o.name }
func (o *orderProc) Resume(_ *Kernel) Yield {
	*o.order = append(*o.order, o.name)
	return Done()
}

func TestKernel_NeverExecutesPastHorizon(t *testing.T) {
	// GIVEN a process whose second wakeup lies beyond the horizon
	k := New(50)
	p := &scripted{name: "p", yields: []Yield{Hold(40), Hold(40)}}
	k.Spawn(p)

	// WHEN the kernel runs
	require.NoError(t, k.Run(context.Background()))

	// THEN the wakeup at 80 is not executed and the clock is pinned to the horizon
	assert.Equal(t, []int64{0, 40}, p.resumedAt)
	assert.Equal(t, int64(50), k.Now())
	assert.Equal(t, int64(0), k.TimeLeft())

	// AND the process is still live so that a shutdown sweep can reach it
	assert.Equal(t, []Process{p}, k.Live())
}

func TestKernel_PassivateAndActivate(t *testing.T) {
	k := New(100)
	waiter := &scripted{name: "waiter", yields: []Yield{Passivate()}}
	k.Spawn(waiter)
	require.NoError(t, k.Run(context.Background()))

	state, ok := k.StateOf(waiter)
	require.True(t, ok)
	assert.Equal(t, StatePassive, state)
	assert.False(t, k.HasPendingWork(), "a passive process is not pending work")

	// Activate only succeeds for passive processes
	assert.True(t, k.Activate(waiter))
	assert.False(t, k.Activate(waiter), "already scheduled")

	require.NoError(t, k.Run(context.Background()))
	assert.Equal(t, []int64{0, 0}, waiter.resumedAt)
	_, ok = k.StateOf(waiter)
	assert.False(t, ok)
}

func TestKernel_TerminateDiscardsPendingWakeup(t *testing.T) {
	k := New(100)
	p := &scripted{name: "p", yields: []Yield{Hold(10), Hold(10)}}
	k.Spawn(p)
	assert.True(t, k.Terminate(p))
	assert.False(t, k.Terminate(p))
	assert.False(t, k.HasPendingWork())

	require.NoError(t, k.Run(context.Background()))
	assert.Empty(t, p.resumedAt)
}

func TestKernel_ResumeThenTerminate_ToleratesPanics(t *testing.T) {
	// GIVEN three suspended processes, the middle one panics when interrupted
	k := New(10)
	procs := []*scripted{
		{name: "a", yields: []Yield{Hold(100)}},
		{name: "b", yields: []Yield{Hold(100)}, panicOnStop: true},
		{name: "c", yields: []Yield{Hold(100)}},
	}
	for _, p := range procs {
		k.Spawn(p)
	}
	require.NoError(t, k.Run(context.Background()))
	require.Len(t, k.Live(), 3)

	// WHEN every live process is swept
	var errs []error
	for _, p := range k.Live() {
		if err := k.ResumeThenTerminate(p); err != nil {
			errs = append(errs, err)
		}
	}

	// THEN all were interrupted exactly once and terminated, one error reported
	for _, p := range procs {
		assert.True(t, p.interrupted, p.name)
	}
	assert.Len(t, errs, 1)
	assert.Empty(t, k.Live())
	assert.Error(t, k.ResumeThenTerminate(procs[0]), "already terminated")
}

func TestKernel_PanickingProcessIsTerminated(t *testing.T) {
	k := New(100)
	bad := &panicProc{}
	good := &scripted{name: "good", yields: []Yield{Hold(5)}}
	k.Spawn(bad)
	k.Spawn(good)

	require.NoError(t, k.Run(context.Background()))

	assert.Equal(t, []int64{0, 5}, good.resumedAt)
	assert.Empty(t, k.Live())
}

type panicProc struct{}

func (panicProc) Name() string { return "panic" }
func (*panicProc) Resume(_ *Kernel) Yield {
	panic("failure inside process")
}

func TestKernel_StopAndContextCancellation(t *testing.T) {
	k := New(100)
	p := &scripted{name: "p", yields: []Yield{Hold(1), Hold(1), Hold(1)}}
	k.Spawn(p)
	assert.True(t, k.Continue())

	k.Stop()
	assert.False(t, k.Continue())
	require.NoError(t, k.Run(context.Background()))
	assert.Empty(t, p.resumedAt)

	k2 := New(100)
	k2.Spawn(&scripted{name: "q"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, k2.Run(ctx), context.Canceled)
}

func TestNew_PanicsOnNonPositiveHorizon(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
