package guests

import (
	"errors"
	"fmt"
	"strings"

	"gueststay/internal/domain/shared/stayday"
)

const accountIDPrefix = "guest_stay_account-"

// AccountID identifies one guest's stay in one room starting on one day.
// It is the event stream key and the read model document key.
type AccountID string

var ErrInvalidAccountKey = errors.New("guests: guest id, room id and day are required")

// NewAccountID derives the account id for a guest, room and stay day.
func NewAccountID(guestID, roomID string, day stayday.Day) (AccountID, error) {
	guestID = strings.TrimSpace(guestID)
	roomID = strings.TrimSpace(roomID)
	if guestID == "" || roomID == "" || day.IsZero() {
		return "", ErrInvalidAccountKey
	}
	return AccountID(fmt.Sprintf("%s%s:%s:%s", accountIDPrefix, guestID, roomID, day)), nil
}

func (id AccountID) String() string { return string(id) }

// RuleViolation is a business rule rejection carrying a human readable reason.
type RuleViolation struct {
	Reason string
}

func (e *RuleViolation) Error() string {
	return "guests: " + e.Reason
}

var (
	ErrAccountNotFound   = &RuleViolation{Reason: "account doesn't exist"}
	ErrAlreadyCheckedOut = &RuleViolation{Reason: "account already checked out"}
)

// ReasonBalanceNotSettled is recorded when a check-out is attempted on an
// account whose balance is not exactly zero.
const ReasonBalanceNotSettled = "balance not settled"
