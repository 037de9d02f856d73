package sim

import "fmt"

// FlightID identifies a flight. IDs are issued monotonically by IDGenerator.
type FlightID int64

// NoFlight is the target of a passenger generated while no flight was open.
const NoFlight FlightID = -1

// Passenger is one simulated traveller. A Passenger is never modified after
// NewPassenger returns; stages only read it and pass the pointer along.
type Passenger struct {
	ID        string   // opaque unique id
	FlightID  FlightID // flight the passenger wants to board
	CreatedAt int64    // virtual time of generation (ticks)
}

// NewPassenger creates a passenger generated at virtual time now.
func NewPassenger(id string, flight FlightID, now int64) *Passenger {
	return &Passenger{ID: id, FlightID: flight, CreatedAt: now}
}

func (p *Passenger) String() string {
	return fmt.Sprintf("Passenger{id=%s, flight=%d, created=%d}", p.ID, p.FlightID, p.CreatedAt)
}
