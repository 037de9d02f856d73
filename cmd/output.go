package cmd

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"

	"github.com/terminal-sim/terminal-sim/sim/bus"
	"github.com/terminal-sim/terminal-sim/sim/trace"
)

// newEventPrinter returns a bus handler writing one line per domain event.
func newEventPrinter(w io.Writer) func(topic string, msg *message.Message) {
	var mu sync.Mutex
	return func(topic string, msg *message.Message) {
		line, err := formatEvent(topic, msg)
		if err != nil {
			logrus.Warnf("follow: %v", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}
}

func formatEvent(topic string, msg *message.Message) (string, error) {
	switch topic {
	case bus.TopicPassengerBoarded, bus.TopicPassengerMissed:
		ev, err := bus.DecodePassengerEvent(msg)
		if err != nil {
			return "", err
		}
		if !ev.Attributed {
			return fmt.Sprintf("[tick %07d] %s %s (no departed flight)", ev.Clock, topic, ev.PassengerID), nil
		}
		return fmt.Sprintf("[tick %07d] %s %s flight=%d", ev.Clock, topic, ev.PassengerID, ev.FlightID), nil
	case bus.TopicFlightDeparted:
		ev, err := bus.DecodeFlightEvent(msg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[tick %07d] %s flight=%d boarded=%d", ev.Clock, topic, ev.FlightID, ev.Boarded), nil
	case bus.TopicFlightRejected:
		ev, err := bus.DecodeFlightEvent(msg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[tick %07d] %s flight=%d required=%d left=%d", ev.Clock, topic, ev.FlightID, ev.Required, ev.TimeLeft), nil
	default:
		return "", fmt.Errorf("unknown topic %q", topic)
	}
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "Dispatches           : %d (%d to an idle server)\n", s.TotalDispatches, s.UnoccupiedDispatches)
	for _, key := range sortedKeys(s.InstanceDistribution) {
		fmt.Fprintf(w, "  %-18s : %d\n", key, s.InstanceDistribution[key])
	}
	fmt.Fprintf(w, "Detours              : %d\n", s.TotalDetours)
	for _, key := range sortedKeys(s.DetoursBySide) {
		fmt.Fprintf(w, "  %-18s : %d\n", key, s.DetoursBySide[key])
	}
	fmt.Fprintf(w, "Flight admissions    : %d admitted, %d rejected\n", s.FlightsAdmitted, s.FlightsRejected)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
