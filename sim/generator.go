package sim

import (
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// Generator creates passengers for randomly chosen open flights and hands them to
// the first pipeline stage. The generate stage has no queue: each generator is its
// own process and is never dispatched to.
type Generator struct {
	index   int
	name    string
	sampler sampling.DelaySampler
	rng     *rand.Rand
	samples *SampleStream
	coord   *Coordinator
	stopped bool
}

func newGenerator(c *Coordinator, idx int, sampler sampling.DelaySampler) *Generator {
	return &Generator{
		index:   idx,
		name:    SubsystemInstance(StageGenerate, idx),
		sampler: sampler,
		rng:     c.rng.ForSubsystem(SubsystemInstance(StageGenerate, idx)),
		samples: c.metrics.Generator(idx),
		coord:   c,
	}
}

// Name implements kernel.Process.
func (g *Generator) Name() string {
	return g.name
}

// Resume implements kernel.Process: generate one passenger, then hold for a sampled
// inter-arrival delay. The hold is at least one tick so virtual time always advances.
func (g *Generator) Resume(k *kernel.Kernel) kernel.Yield {
	if !k.Continue() {
		g.stopped = true
		return kernel.Done()
	}
	c := g.coord
	p := NewPassenger(c.ids.NextPassengerID(), c.flights.pickOpen(g.rng), k.Now())
	c.metrics.Generated.Add(1)
	logrus.Debugf("[tick %07d] %s generated %s", k.Now(), g.name, p)
	if err := c.route(StageGenerate, p); err != nil {
		c.metrics.Failures.Add(1)
		logrus.Errorf("[tick %07d] %s: %v", k.Now(), g.name, err)
	}

	ms, err := sampleDelay(g.sampler, g.rng)
	if err != nil {
		g.stopped = true
		logrus.Errorf("[tick %07d] %s stopped: %v", k.Now(), g.name, err)
		return kernel.Done()
	}
	g.samples.Record(ms)
	return kernel.Hold(max(ticksFromMillis(ms), 1))
}

// Stopped reports whether the generator has finished for good.
func (g *Generator) Stopped() bool {
	return g.stopped
}
