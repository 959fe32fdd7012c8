package dto

import (
	"time"

	"gueststay/internal/app/readmodel"
	"gueststay/internal/domain/shared/money"
)

type StayTransaction struct {
	ID     string      `json:"id"`
	Amount money.Money `json:"amount"`
}

// GuestStayDetails is the transport shape of an active stay.
type GuestStayDetails struct {
	ID                string            `json:"id"`
	GuestID           string            `json:"guestId"`
	RoomID            string            `json:"roomId"`
	Status            string            `json:"status"`
	Balance           money.Money       `json:"balance"`
	TransactionsCount int               `json:"transactionsCount"`
	Transactions      []StayTransaction `json:"transactions"`
	CheckedInAt       time.Time         `json:"checkedInAt"`
	CheckedOutAt      *time.Time        `json:"checkedOutAt,omitempty"`
	Version           int64             `json:"version"`
}

func GuestStayDetailsFromModel(doc readmodel.GuestStayDetails) GuestStayDetails {
	txs := make([]StayTransaction, 0, len(doc.Transactions))
	for _, tx := range doc.Transactions {
		txs = append(txs, StayTransaction{ID: tx.ID, Amount: tx.Amount})
	}
	return GuestStayDetails{
		ID:                doc.ID,
		GuestID:           doc.GuestID,
		RoomID:            doc.RoomID,
		Status:            string(doc.Status),
		Balance:           doc.Balance,
		TransactionsCount: doc.TransactionsCount,
		Transactions:      txs,
		CheckedInAt:       doc.CheckedInAt,
		CheckedOutAt:      doc.CheckedOutAt,
		Version:           doc.Version,
	}
}

// StayCommandResult is returned by every guest stay command. Version is the
// stream version the next conditional request should send.
type StayCommandResult struct {
	AccountID       string   `json:"accountId"`
	GuestID         string   `json:"guestId"`
	RoomID          string   `json:"roomId"`
	CheckInDate     string   `json:"checkInDate"`
	Version         int64    `json:"version"`
	Events          []string `json:"events"`
	CheckoutFailure string   `json:"checkoutFailure,omitempty"`
}

type FolioExport struct {
	AccountID string `json:"accountId"`
	Version   int64  `json:"version"`
	ObjectKey string `json:"objectKey"`
	URL       string `json:"url"`
}
