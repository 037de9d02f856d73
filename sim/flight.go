package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/terminal-sim/terminal-sim/sim/kernel"
)

// Flight is a departure that passengers board until it leaves.
// Delays are in kernel ticks. A Flight departs at most once and is never
// mutated afterwards.
type Flight struct {
	ID               FlightID
	PreparationDelay int64 // boarding window
	DepartureDelay   int64 // taxi and departure
	CreatedAt        int64
	Admitted         bool // preparation+departure fit before the horizon at creation

	mu         sync.Mutex
	boarded    []*Passenger
	missed     []*Passenger
	departed   bool
	departedAt int64
}

func newFlight(id FlightID, prep, dep, now, timeLeft int64) *Flight {
	return &Flight{
		ID:               id,
		PreparationDelay: prep,
		DepartureDelay:   dep,
		CreatedAt:        now,
		Admitted:         timeLeft > prep+dep,
	}
}

// Boarded returns the passengers that boarded, in boarding order.
func (f *Flight) Boarded() []*Passenger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.boarded)
}

// Missed returns the passengers that arrived after departure.
func (f *Flight) Missed() []*Passenger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.missed)
}

// Departed reports whether the flight has left and when.
func (f *Flight) Departed() (bool, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.departed, f.departedAt
}

func (f *Flight) board(p *Passenger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.departed {
		panic(fmt.Sprintf("flight %d: boarding after departure", f.ID))
	}
	f.boarded = append(f.boarded, p)
}

func (f *Flight) recordMissed(p *Passenger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missed = append(f.missed, p)
}

// depart marks the flight departed and returns the boarded count.
func (f *Flight) depart(now int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departed = true
	f.departedAt = now
	return len(f.boarded)
}

func (f *Flight) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("Flight{id=%d, prep=%d, dep=%d, boarded=%d, missed=%d, departed=%v}",
		f.ID, f.PreparationDelay, f.DepartureDelay, len(f.boarded), len(f.missed), f.departed)
}

// flightProcess counts a flight down: preparation, then departure, then departFlight.
type flightProcess struct {
	flight   *Flight
	registry *FlightRegistry
	phase    int
}

func (p *flightProcess) Name() string {
	return fmt.Sprintf("flight_%d", p.flight.ID)
}

func (p *flightProcess) Resume(k *kernel.Kernel) kernel.Yield {
	p.phase++
	switch p.phase {
	case 1:
		return kernel.Hold(p.flight.PreparationDelay)
	case 2:
		return kernel.Hold(p.flight.DepartureDelay)
	default:
		p.registry.DepartFlight(p.flight.ID)
		return kernel.Done()
	}
}
