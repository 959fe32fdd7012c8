package guests

import (
	"time"

	"gueststay/internal/domain/shared/money"
)

// State is the write-side view of an account, always derived by folding its
// events. Exactly one of NotExisting, Opened or CheckedOut.
type State interface {
	guestStayState()
}

type NotExisting struct{}

type Opened struct {
	AccountID   AccountID
	GuestID     string
	RoomID      string
	CheckedInAt time.Time
	// Balance is negative when the guest owes money.
	Balance money.Money
}

type CheckedOut struct {
	Opened
	CheckedOutAt time.Time
}

func (NotExisting) guestStayState() {}
func (Opened) guestStayState()      {}
func (CheckedOut) guestStayState()  {}

// Initial is the state of an empty stream.
func Initial() State {
	return NotExisting{}
}

// Evolve applies one event. Events that do not apply to the current variant
// leave it unchanged.
func Evolve(state State, event Event) State {
	switch ev := event.(type) {
	case GuestCheckedIn:
		if _, ok := state.(NotExisting); !ok {
			return state
		}
		return Opened{
			AccountID:   ev.AccountID,
			GuestID:     ev.GuestID,
			RoomID:      ev.RoomID,
			CheckedInAt: ev.CheckedInAt,
			Balance:     money.Zero,
		}
	case ChargeRecorded:
		opened, ok := state.(Opened)
		if !ok {
			return state
		}
		opened.Balance = opened.Balance.Sub(ev.Amount)
		return opened
	case PaymentRecorded:
		opened, ok := state.(Opened)
		if !ok {
			return state
		}
		opened.Balance = opened.Balance.Add(ev.Amount)
		return opened
	case GuestCheckedOut:
		opened, ok := state.(Opened)
		if !ok {
			return state
		}
		return CheckedOut{Opened: opened, CheckedOutAt: ev.CheckedOutAt}
	case GuestCheckoutFailed:
		return state
	default:
		return state
	}
}

// Fold replays events from the initial state.
func Fold(evs []Event) State {
	state := Initial()
	for _, ev := range evs {
		state = Evolve(state, ev)
	}
	return state
}
