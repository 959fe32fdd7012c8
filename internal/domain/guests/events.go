package guests

import (
	"time"

	"gueststay/internal/domain/shared/events"
	"gueststay/internal/domain/shared/money"
)

const (
	EventGuestCheckedIn      = "guest_stay.checked_in"
	EventChargeRecorded      = "guest_stay.charge_recorded"
	EventPaymentRecorded     = "guest_stay.payment_recorded"
	EventGuestCheckedOut     = "guest_stay.checked_out"
	EventGuestCheckoutFailed = "guest_stay.checkout_failed"
)

// Event is the closed set of facts recorded on a guest stay account stream.
type Event interface {
	events.DomainEvent
	guestStayEvent()
}

type GuestCheckedIn struct {
	AccountID   AccountID `json:"guestStayAccountId"`
	GuestID     string    `json:"guestId"`
	RoomID      string    `json:"roomId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

func (e GuestCheckedIn) EventName() string     { return EventGuestCheckedIn }
func (e GuestCheckedIn) AggregateID() string   { return string(e.AccountID) }
func (e GuestCheckedIn) OccurredAt() time.Time { return e.CheckedInAt }
func (GuestCheckedIn) guestStayEvent()         {}

type ChargeRecorded struct {
	AccountID  AccountID   `json:"guestStayAccountId"`
	ChargeID   string      `json:"chargeId"`
	Amount     money.Money `json:"amount"`
	RecordedAt time.Time   `json:"recordedAt"`
}

func (e ChargeRecorded) EventName() string     { return EventChargeRecorded }
func (e ChargeRecorded) AggregateID() string   { return string(e.AccountID) }
func (e ChargeRecorded) OccurredAt() time.Time { return e.RecordedAt }
func (ChargeRecorded) guestStayEvent()         {}

type PaymentRecorded struct {
	AccountID  AccountID   `json:"guestStayAccountId"`
	PaymentID  string      `json:"paymentId"`
	Amount     money.Money `json:"amount"`
	RecordedAt time.Time   `json:"recordedAt"`
}

func (e PaymentRecorded) EventName() string     { return EventPaymentRecorded }
func (e PaymentRecorded) AggregateID() string   { return string(e.AccountID) }
func (e PaymentRecorded) OccurredAt() time.Time { return e.RecordedAt }
func (PaymentRecorded) guestStayEvent()         {}

type GuestCheckedOut struct {
	AccountID    AccountID `json:"guestStayAccountId"`
	CheckedOutAt time.Time `json:"checkedOutAt"`
}

func (e GuestCheckedOut) EventName() string     { return EventGuestCheckedOut }
func (e GuestCheckedOut) AggregateID() string   { return string(e.AccountID) }
func (e GuestCheckedOut) OccurredAt() time.Time { return e.CheckedOutAt }
func (GuestCheckedOut) guestStayEvent()         {}

// GuestCheckoutFailed records a rejected check-out attempt. It is history,
// not a state transition.
type GuestCheckoutFailed struct {
	AccountID AccountID `json:"guestStayAccountId"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failedAt"`
}

func (e GuestCheckoutFailed) EventName() string     { return EventGuestCheckoutFailed }
func (e GuestCheckoutFailed) AggregateID() string   { return string(e.AccountID) }
func (e GuestCheckoutFailed) OccurredAt() time.Time { return e.FailedAt }
func (GuestCheckoutFailed) guestStayEvent()         {}
