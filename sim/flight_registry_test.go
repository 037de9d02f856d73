package sim

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-sim/terminal-sim/sim/bus"
	"github.com/terminal-sim/terminal-sim/sim/kernel"
	"github.com/terminal-sim/terminal-sim/sim/trace"
)

func newTestRegistry(horizon int64, prepMs, depMs float64, maxOpen int) (*kernel.Kernel, *FlightRegistry) {
	k := kernel.New(horizon)
	r := newFlightRegistry(k, NewIDGenerator(1), constSampler(prepMs), constSampler(depMs),
		rand.New(rand.NewPCG(1, 2)), maxOpen)
	return k, r
}

func TestFlightRegistry_DepartAndReplenishUntilGateRejects(t *testing.T) {
	// GIVEN a 5 s horizon and flights needing 1 s + 1 s
	k, r := newTestRegistry(5_000_000, 1000, 1000, 3)
	r.trace = trace.NewSimulationTrace(trace.TraceLevelDecisions)

	// WHEN the pool is filled and the kernel runs to completion
	r.Fill()
	require.NoError(t, k.Run(context.Background()))

	// THEN two generations depart (t=2 s, t=4 s) and the third is rejected (1 s left)
	c := r.Counts()
	assert.Equal(t, uint64(6), c.Created)
	assert.Equal(t, uint64(6), c.Departed)
	assert.Equal(t, uint64(3), c.Rejected)
	assert.Equal(t, 0, c.Open)
	assert.Empty(t, r.OpenFlights())
	assert.Len(t, r.DepartedFlights(), 6)
	assert.Equal(t, c.Departed+uint64(c.Open), c.Created)

	require.Len(t, r.trace.FlightAdmissions, 9)
	for _, rec := range r.trace.FlightAdmissions[6:] {
		assert.False(t, rec.Admitted)
		assert.Equal(t, int64(4_000_000), rec.Clock)
		assert.Equal(t, int64(1_000_000), rec.TimeLeft)
	}
	for _, f := range r.DepartedFlights() {
		departed, at := f.Departed()
		assert.True(t, departed)
		assert.Equal(t, f.CreatedAt+f.PreparationDelay+f.DepartureDelay, at)
	}
}

func TestFlightRegistry_GateRejectsFlightsThatCannotDepart(t *testing.T) {
	// GIVEN flights needing 6 s before a 5 s horizon
	_, r := newTestRegistry(5_000_000, 3000, 3000, 4)

	// WHEN the pool is filled
	r.Fill()
	f := r.GenerateFlight()

	// THEN no flight is ever opened
	assert.False(t, f.Admitted)
	assert.Empty(t, r.OpenFlights())
	_, ok := r.GetFlight(f.ID)
	assert.False(t, ok)
	assert.Equal(t, uint64(5), r.Counts().Rejected)
	assert.Equal(t, uint64(0), r.Counts().Created)
}

func TestFlightRegistry_AdmitPassenger(t *testing.T) {
	// GIVEN three open flights
	_, r := newTestRegistry(int64(time.Hour/time.Microsecond), 1000, 1000, 3)
	r.Fill()
	require.Len(t, r.OpenFlights(), 3)

	// WHEN a passenger boards flight 1 and the flight departs
	assert.True(t, r.AdmitPassenger(NewPassenger("a", 1, 0)))
	require.True(t, r.DepartFlight(1))

	// THEN later passengers for flight 1 are missed against it
	assert.False(t, r.AdmitPassenger(NewPassenger("b", 1, 0)))
	f, ok := r.GetFlight(1)
	require.True(t, ok)
	assert.Len(t, f.Boarded(), 1)
	require.Len(t, f.Missed(), 1)
	assert.Equal(t, "b", f.Missed()[0].ID)

	// AND passengers without any departed flight are unattributed misses
	assert.False(t, r.AdmitPassenger(NewPassenger("c", NoFlight, 0)))

	c := r.Counts()
	assert.Equal(t, uint64(1), c.Boarded)
	assert.Equal(t, uint64(1), c.DepartedPassengers)
	assert.Equal(t, uint64(1), c.Missed)
	assert.Equal(t, uint64(1), c.UnattributedMissed)
	assert.Equal(t, 3, c.Open, "departure replenishes the pool")
	assert.False(t, r.DepartFlight(1), "a flight departs once")
}

func TestFlightRegistry_PickOpen(t *testing.T) {
	_, r := newTestRegistry(int64(time.Hour/time.Microsecond), 1000, 1000, 3)
	rng := rand.New(rand.NewPCG(3, 4))
	assert.Equal(t, NoFlight, r.pickOpen(rng))

	r.Fill()
	seen := make(map[FlightID]bool)
	for i := 0; i < 300; i++ {
		id := r.pickOpen(rng)
		_, open := r.GetFlight(id)
		require.True(t, open)
		seen[id] = true
	}
	assert.Len(t, seen, 3)
}

func TestFlightRegistry_PublishesDomainEvents(t *testing.T) {
	// GIVEN a registry publishing to an in-memory bus
	ps := bus.NewInMemory()
	defer ps.Close()
	boarded, err := ps.Subscribe(context.Background(), bus.TopicPassengerBoarded)
	require.NoError(t, err)
	departed, err := ps.Subscribe(context.Background(), bus.TopicFlightDeparted)
	require.NoError(t, err)
	_, r := newTestRegistry(int64(time.Hour/time.Microsecond), 1000, 1000, 3)
	r.notifier = bus.NewNotifier(ps)
	r.Fill()

	// WHEN a passenger boards and the flight departs
	r.AdmitPassenger(NewPassenger("a", 0, 0))
	r.DepartFlight(0)

	// THEN both events are received
	select {
	case msg := <-boarded:
		ev, err := bus.DecodePassengerEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, "a", ev.PassengerID)
		assert.True(t, ev.Attributed)
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("no boarding event")
	}
	select {
	case msg := <-departed:
		ev, err := bus.DecodeFlightEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, int64(0), ev.FlightID)
		assert.Equal(t, 1, ev.Boarded)
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("no departure event")
	}
}
