package guests

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEvent = errors.New("guests: unknown event")

// Codec maps events to their wire name and JSON payload.
type Codec struct{}

func (Codec) Encode(ev Event) (string, []byte, error) {
	if ev == nil {
		return "", nil, ErrUnknownEvent
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("guests: encode %s: %w", ev.EventName(), err)
	}
	return ev.EventName(), payload, nil
}

func (Codec) Decode(name string, payload []byte) (Event, error) {
	switch name {
	case EventGuestCheckedIn:
		return decode[GuestCheckedIn](name, payload)
	case EventChargeRecorded:
		return decode[ChargeRecorded](name, payload)
	case EventPaymentRecorded:
		return decode[PaymentRecorded](name, payload)
	case EventGuestCheckedOut:
		return decode[GuestCheckedOut](name, payload)
	case EventGuestCheckoutFailed:
		return decode[GuestCheckoutFailed](name, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func decode[E Event](name string, payload []byte) (Event, error) {
	var ev E
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("guests: decode %s: %w", name, err)
	}
	return ev, nil
}
