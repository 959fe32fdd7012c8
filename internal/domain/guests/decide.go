package guests

import (
	"time"

	"gueststay/internal/domain/shared/money"
)

// CheckInGuest opens the account. Repeating it on an open account is a no-op.
type CheckInGuest struct {
	AccountID AccountID
	GuestID   string
	RoomID    string
	Now       time.Time
}

func (c CheckInGuest) Decide(state State) ([]Event, error) {
	switch state.(type) {
	case NotExisting:
		return []Event{GuestCheckedIn{
			AccountID:   c.AccountID,
			GuestID:     c.GuestID,
			RoomID:      c.RoomID,
			CheckedInAt: c.Now,
		}}, nil
	case Opened:
		return nil, nil
	case CheckedOut:
		return nil, ErrAlreadyCheckedOut
	default:
		return nil, ErrAccountNotFound
	}
}

// RecordCharge adds a charge against an open account. Amount is validated
// positive before the command is decided.
type RecordCharge struct {
	AccountID AccountID
	ChargeID  string
	Amount    money.Money
	Now       time.Time
}

func (c RecordCharge) Decide(state State) ([]Event, error) {
	if err := requireOpened(state); err != nil {
		return nil, err
	}
	return []Event{ChargeRecorded{
		AccountID:  c.AccountID,
		ChargeID:   c.ChargeID,
		Amount:     c.Amount,
		RecordedAt: c.Now,
	}}, nil
}

type RecordPayment struct {
	AccountID AccountID
	PaymentID string
	Amount    money.Money
	Now       time.Time
}

func (c RecordPayment) Decide(state State) ([]Event, error) {
	if err := requireOpened(state); err != nil {
		return nil, err
	}
	return []Event{PaymentRecorded{
		AccountID:  c.AccountID,
		PaymentID:  c.PaymentID,
		Amount:     c.Amount,
		RecordedAt: c.Now,
	}}, nil
}

// CheckOutGuest closes a settled account. An unsettled balance is not an
// error: the attempt is recorded as GuestCheckoutFailed.
type CheckOutGuest struct {
	AccountID AccountID
	Now       time.Time
}

func (c CheckOutGuest) Decide(state State) ([]Event, error) {
	switch s := state.(type) {
	case NotExisting:
		return nil, ErrAccountNotFound
	case CheckedOut:
		return nil, nil
	case Opened:
		if !s.Balance.IsZero() {
			return []Event{GuestCheckoutFailed{
				AccountID: c.AccountID,
				Reason:    ReasonBalanceNotSettled,
				FailedAt:  c.Now,
			}}, nil
		}
		return []Event{GuestCheckedOut{AccountID: c.AccountID, CheckedOutAt: c.Now}}, nil
	default:
		return nil, ErrAccountNotFound
	}
}

func requireOpened(state State) error {
	switch state.(type) {
	case Opened:
		return nil
	case CheckedOut:
		return ErrAlreadyCheckedOut
	default:
		return ErrAccountNotFound
	}
}

// CheckoutFailure returns the reason of the first GuestCheckoutFailed in evs.
func CheckoutFailure(evs []Event) (string, bool) {
	for _, ev := range evs {
		if failed, ok := ev.(GuestCheckoutFailed); ok {
			return failed.Reason, true
		}
	}
	return "", false
}
