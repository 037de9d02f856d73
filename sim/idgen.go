package sim

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator issues passenger and flight identities for one simulation run.
// Passenger IDs are name-based (SHA-1) UUIDs derived from the run seed and a
// counter, so repeated runs with the same seed produce the same IDs while two
// generators never share state.
type IDGenerator struct {
	namespace  uuid.UUID
	passengers atomic.Uint64
	flights    atomic.Int64
}

// NewIDGenerator creates an IDGenerator for a run with the given seed.
func NewIDGenerator(seed int64) *IDGenerator {
	return &IDGenerator{
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("terminal-sim/%d", seed))),
	}
}

// NextPassengerID returns a fresh passenger identity.
func (g *IDGenerator) NextPassengerID() string {
	n := g.passengers.Add(1)
	return uuid.NewSHA1(g.namespace, []byte(strconv.FormatUint(n, 10))).String()
}

// NextFlightID returns the next flight id, starting at 0.
func (g *IDGenerator) NextFlightID() FlightID {
	return FlightID(g.flights.Add(1) - 1)
}

// PassengersIssued returns how many passenger IDs were handed out.
func (g *IDGenerator) PassengersIssued() uint64 {
	return g.passengers.Load()
}
