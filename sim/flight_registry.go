// Implements the FlightRegistry: the open and departed flight sets, the flight
// admission gate, and replenishment of departed flights.

package sim

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/bus"
	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/sampling"
	"github.com/terminal-sim/terminal-sim/sim/trace"
)

// FlightRegistry owns every admitted flight of a run.
// Open→departed moves and passenger admission are atomic with respect to each other.
type FlightRegistry struct {
	kernel      *kernel.Kernel
	ids         *IDGenerator
	preparation sampling.DelaySampler
	departure   sampling.DelaySampler
	rng         *rand.Rand
	maxOpen     int
	trace       *trace.SimulationTrace // nil when tracing is off
	notifier    *bus.Notifier          // nil when events are not published

	mu       sync.Mutex
	open     map[FlightID]*Flight
	departed map[FlightID]*Flight
	counts   FlightCounts
}

func newFlightRegistry(k *kernel.Kernel, ids *IDGenerator, prep, dep sampling.DelaySampler, rng *rand.Rand, maxOpen int) *FlightRegistry {
	return &FlightRegistry{
		kernel:      k,
		ids:         ids,
		preparation: prep,
		departure:   dep,
		rng:         rng,
		maxOpen:     maxOpen,
		open:        make(map[FlightID]*Flight),
		departed:    make(map[FlightID]*Flight),
	}
}

// OpenFlights returns the open flights ordered by id.
func (r *FlightRegistry) OpenFlights() []*Flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	flights := make([]*Flight, 0, len(r.open))
	for _, f := range r.open {
		flights = append(flights, f)
	}
	slices.SortFunc(flights, func(a, b *Flight) int { return cmp.Compare(a.ID, b.ID) })
	return flights
}

// DepartedFlights returns the departed flights ordered by id.
func (r *FlightRegistry) DepartedFlights() []*Flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	flights := make([]*Flight, 0, len(r.departed))
	for _, f := range r.departed {
		flights = append(flights, f)
	}
	slices.SortFunc(flights, func(a, b *Flight) int { return cmp.Compare(a.ID, b.ID) })
	return flights
}

// GetFlight returns an open or departed flight by id.
func (r *FlightRegistry) GetFlight(id FlightID) (*Flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.open[id]; ok {
		return f, true
	}
	f, ok := r.departed[id]
	return f, ok
}

// Counts returns a copy of the registry counters.
func (r *FlightRegistry) Counts() FlightCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counts
	c.Open = len(r.open)
	return c
}

// AdmitPassenger boards p on its flight if that flight is open. Otherwise p is
// recorded as missed against the departed flight with that id, or as an
// unattributed miss if there is none. Returns true if p boarded.
func (r *FlightRegistry) AdmitPassenger(p *Passenger) bool {
	now := r.kernel.Now()
	r.mu.Lock()
	var (
		boarded    bool
		attributed bool
	)
	if f, ok := r.open[p.FlightID]; ok {
		f.board(p)
		r.counts.Boarded++
		boarded = true
	} else if f, ok := r.departed[p.FlightID]; ok {
		f.recordMissed(p)
		r.counts.Missed++
		attributed = true
	} else {
		r.counts.UnattributedMissed++
	}
	r.mu.Unlock()

	ev := bus.PassengerEvent{PassengerID: p.ID, FlightID: int64(p.FlightID), Clock: now, Attributed: boarded || attributed}
	var err error
	if boarded {
		logrus.Debugf("[tick %07d] %s boarded flight %d", now, p.ID, p.FlightID)
		err = r.notifier.PassengerBoarded(ev)
	} else {
		logrus.Debugf("[tick %07d] %s missed flight %d", now, p.ID, p.FlightID)
		err = r.notifier.PassengerMissed(ev)
	}
	if err != nil {
		logrus.Warnf("[tick %07d] %v", now, err)
	}
	return boarded
}

// DepartFlight moves an open flight to the departed set, then tries to replenish
// the open pool with one new flight while the clock is within the horizon.
// Returns false if id was not open.
func (r *FlightRegistry) DepartFlight(id FlightID) bool {
	now := r.kernel.Now()
	r.mu.Lock()
	f, ok := r.open[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.open, id)
	boarded := f.depart(now)
	r.departed[id] = f
	r.counts.Departed++
	r.counts.DepartedPassengers += uint64(boarded)
	r.mu.Unlock()

	logrus.Infof("[tick %07d] flight %d departed with %d passengers", now, id, boarded)
	if err := r.notifier.FlightDeparted(bus.FlightEvent{FlightID: int64(id), Clock: now, Boarded: boarded}); err != nil {
		logrus.Warnf("[tick %07d] %v", now, err)
	}
	if now <= r.kernel.Horizon() {
		r.GenerateFlight()
	}
	return true
}

// GenerateFlight samples a new flight and applies the admission gate: it is opened
// and its countdown process spawned only if preparation+departure is shorter than
// the time left before the horizon. The flight is returned either way.
func (r *FlightRegistry) GenerateFlight() *Flight {
	now := r.kernel.Now()
	id := r.ids.NextFlightID()
	prep := ticksFromMillis(r.preparation.Sample(r.rng))
	dep := ticksFromMillis(r.departure.Sample(r.rng))
	timeLeft := r.kernel.TimeLeft()
	f := newFlight(id, prep, dep, now, timeLeft)

	if r.trace != nil {
		r.trace.RecordFlightAdmission(trace.FlightAdmissionRecord{
			FlightID: int64(id),
			Clock:    now,
			Admitted: f.Admitted,
			Required: prep + dep,
			TimeLeft: timeLeft,
		})
	}
	if !f.Admitted {
		r.mu.Lock()
		r.counts.Rejected++
		r.mu.Unlock()
		logrus.Debugf("[tick %07d] flight %d rejected: needs %d ticks, %d left", now, id, prep+dep, timeLeft)
		if err := r.notifier.FlightRejected(bus.FlightEvent{FlightID: int64(id), Clock: now, Required: prep + dep, TimeLeft: timeLeft}); err != nil {
			logrus.Warnf("[tick %07d] %v", now, err)
		}
		return f
	}

	r.mu.Lock()
	r.open[id] = f
	r.counts.Created++
	r.mu.Unlock()
	r.kernel.Spawn(&flightProcess{flight: f, registry: r})
	logrus.Debugf("[tick %07d] opened %s", now, f)
	return f
}

// Fill generates flights until maxOpen generation attempts have been made or the
// open pool is full.
func (r *FlightRegistry) Fill() {
	for range r.maxOpen {
		r.mu.Lock()
		full := len(r.open) >= r.maxOpen
		r.mu.Unlock()
		if full {
			return
		}
		r.GenerateFlight()
	}
}

// pickOpen returns the id of a uniformly chosen open flight, or NoFlight.
func (r *FlightRegistry) pickOpen(rng *rand.Rand) FlightID {
	r.mu.Lock()
	ids := make([]FlightID, 0, len(r.open))
	for id := range r.open {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	if len(ids) == 0 {
		return NoFlight
	}
	slices.Sort(ids)
	return ids[rng.IntN(len(ids))]
}
