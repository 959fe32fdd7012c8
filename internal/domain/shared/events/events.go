package events

import "time"

// DomainEvent is the envelope contract every recorded fact satisfies.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Names returns the event names of evs in order.
func Names[E DomainEvent](evs []E) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.EventName())
	}
	return out
}
