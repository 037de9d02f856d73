// Package bus publishes simulation domain events (boardings, missed passengers,
// flight departures and rejections) on a watermill message bus.
// Payloads are JSON. Like trace, this package does not depend on sim/.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topics.
const (
	TopicPassengerBoarded = "passenger.boarded"
	TopicPassengerMissed  = "passenger.missed"
	TopicFlightDeparted   = "flight.departed"
	TopicFlightRejected   = "flight.rejected"
)

// Topics lists every topic a Notifier publishes on.
var Topics = []string{
	TopicPassengerBoarded,
	TopicPassengerMissed,
	TopicFlightDeparted,
	TopicFlightRejected,
}

// PassengerEvent is the payload of passenger.boarded and passenger.missed.
type PassengerEvent struct {
	PassengerID string `json:"passenger_id"`
	FlightID    int64  `json:"flight_id"`
	Clock       int64  `json:"clock"`
	Attributed  bool   `json:"attributed"` // false when no flight with FlightID ever departed
}

// FlightEvent is the payload of flight.departed and flight.rejected.
type FlightEvent struct {
	FlightID int64 `json:"flight_id"`
	Clock    int64 `json:"clock"`
	Boarded  int   `json:"boarded,omitempty"`
	Required int64 `json:"required,omitempty"`
	TimeLeft int64 `json:"time_left,omitempty"`
}

// NewInMemory returns an in-process publisher/subscriber. Publish returns without
// waiting for subscribers.
func NewInMemory() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 1024},
		watermill.NewStdLogger(false, false),
	)
}

// NewSynchronous returns an in-process publisher/subscriber whose Publish blocks
// until every subscriber has acked the message, so subscribers see events in
// publication order and none is pending when the run ends.
func NewSynchronous() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
}

// Notifier publishes domain events. A nil *Notifier discards everything.
type Notifier struct {
	publisher message.Publisher
}

// NewNotifier wraps a watermill publisher.
func NewNotifier(publisher message.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// PassengerBoarded publishes on passenger.boarded.
func (n *Notifier) PassengerBoarded(ev PassengerEvent) error {
	return n.publish(TopicPassengerBoarded, ev)
}

// PassengerMissed publishes on passenger.missed.
func (n *Notifier) PassengerMissed(ev PassengerEvent) error {
	return n.publish(TopicPassengerMissed, ev)
}

// FlightDeparted publishes on flight.departed.
func (n *Notifier) FlightDeparted(ev FlightEvent) error {
	return n.publish(TopicFlightDeparted, ev)
}

// FlightRejected publishes on flight.rejected.
func (n *Notifier) FlightRejected(ev FlightEvent) error {
	return n.publish(TopicFlightRejected, ev)
}

func (n *Notifier) publish(topic string, payload any) error {
	if n == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := n.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// DecodePassengerEvent decodes the payload of a passenger topic.
func DecodePassengerEvent(msg *message.Message) (PassengerEvent, error) {
	var ev PassengerEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decoding passenger event %s: %w", msg.UUID, err)
	}
	return ev, nil
}

// DecodeFlightEvent decodes the payload of a flight topic.
func DecodeFlightEvent(msg *message.Message) (FlightEvent, error) {
	var ev FlightEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decoding flight event %s: %w", msg.UUID, err)
	}
	return ev, nil
}

// Follow subscribes to every topic and calls handle for each message, acking it
// afterwards. handle may be called from several goroutines at once.
// The returned wait function blocks until all subscriptions have ended, which
// happens when ctx is done or the subscriber is closed.
func Follow(ctx context.Context, sub message.Subscriber, handle func(topic string, msg *message.Message)) (wait func(), err error) {
	var wg sync.WaitGroup
	for _, topic := range Topics {
		msgs, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return wg.Wait, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			for msg := range msgs {
				handle(topic, msg)
				msg.Ack()
			}
		}(topic)
	}
	return wg.Wait, nil
}
