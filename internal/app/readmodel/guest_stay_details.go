package readmodel

import (
	"context"
	"time"

	"gueststay/internal/domain/guests"
	"gueststay/internal/domain/shared/money"
)

type Status string

const (
	StatusNotExisting Status = "NotExisting"
	StatusCheckedIn   Status = "CheckedIn"
	StatusCheckedOut  Status = "CheckedOut"
)

// Transaction is one charge (negative amount) or payment (positive amount).
type Transaction struct {
	ID     string      `json:"id"`
	Amount money.Money `json:"amount"`
}

// GuestStayDetails is the queryable projection of one account stream.
// Version is the stream version the document was built from.
type GuestStayDetails struct {
	ID                string        `json:"id"`
	GuestID           string        `json:"guestId"`
	RoomID            string        `json:"roomId"`
	Status            Status        `json:"status"`
	Balance           money.Money   `json:"balance"`
	TransactionsCount int           `json:"transactionsCount"`
	Transactions      []Transaction `json:"transactions"`
	CheckedInAt       time.Time     `json:"checkedInAt"`
	CheckedOutAt      *time.Time    `json:"checkedOutAt,omitempty"`
	Version           int64         `json:"version"`
}

// Store persists projected documents keyed by account id.
type Store interface {
	ByID(ctx context.Context, id string) (GuestStayDetails, bool, error)
	Upsert(ctx context.Context, doc GuestStayDetails) error
}

// Empty is the document of a stream that has not been checked into yet.
func Empty(id string) GuestStayDetails {
	return GuestStayDetails{ID: id, Status: StatusNotExisting, Transactions: []Transaction{}}
}

// Evolve folds the event at the given stream version into doc. The input
// document is not modified.
func Evolve(doc GuestStayDetails, version int64, event guests.Event) GuestStayDetails {
	next := doc
	next.Transactions = append([]Transaction(nil), doc.Transactions...)
	if next.Transactions == nil {
		next.Transactions = []Transaction{}
	}
	switch ev := event.(type) {
	case guests.GuestCheckedIn:
		if doc.Status != StatusNotExisting && doc.Status != "" {
			break
		}
		next.ID = string(ev.AccountID)
		next.GuestID = ev.GuestID
		next.RoomID = ev.RoomID
		next.Status = StatusCheckedIn
		next.Balance = money.Zero
		next.CheckedInAt = ev.CheckedInAt
	case guests.ChargeRecorded:
		if doc.Status != StatusCheckedIn {
			break
		}
		next.Balance = next.Balance.Sub(ev.Amount)
		next.Transactions = append(next.Transactions, Transaction{ID: ev.ChargeID, Amount: ev.Amount.Neg()})
		next.TransactionsCount = len(next.Transactions)
	case guests.PaymentRecorded:
		if doc.Status != StatusCheckedIn {
			break
		}
		next.Balance = next.Balance.Add(ev.Amount)
		next.Transactions = append(next.Transactions, Transaction{ID: ev.PaymentID, Amount: ev.Amount})
		next.TransactionsCount = len(next.Transactions)
	case guests.GuestCheckedOut:
		if doc.Status != StatusCheckedIn {
			break
		}
		at := ev.CheckedOutAt
		next.Status = StatusCheckedOut
		next.CheckedOutAt = &at
	case guests.GuestCheckoutFailed:
	}
	if version > next.Version {
		next.Version = version
	}
	return next
}

// IsActive reports whether the stay is visible to active-stay queries.
func (d GuestStayDetails) IsActive() bool {
	return d.Status == StatusCheckedIn
}
