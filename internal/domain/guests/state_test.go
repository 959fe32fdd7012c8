package guests

import (
	"testing"

	"gueststay/internal/domain/shared/money"
)

func TestEvolveBalance(t *testing.T) {
	id := testAccount(t)
	state := Fold([]Event{
		GuestCheckedIn{AccountID: id, GuestID: "guest-1", RoomID: "room-7", CheckedInAt: testNow},
		ChargeRecorded{AccountID: id, ChargeID: "c1", Amount: money.MustParse("100"), RecordedAt: testNow},
		PaymentRecorded{AccountID: id, PaymentID: "p1", Amount: money.MustParse("40"), RecordedAt: testNow},
		GuestCheckoutFailed{AccountID: id, Reason: ReasonBalanceNotSettled, FailedAt: testNow},
	})
	opened, ok := state.(Opened)
	if !ok {
		t.Fatalf("expected Opened, got %T", state)
	}
	if !opened.Balance.Equal(money.MustParse("-60")) {
		t.Fatalf("expected balance -60, got %s", opened.Balance)
	}
}

func TestEvolveIgnoresEventsForOtherVariants(t *testing.T) {
	id := testAccount(t)
	charge := ChargeRecorded{AccountID: id, ChargeID: "c1", Amount: money.MustParse("5"), RecordedAt: testNow}

	if _, ok := Evolve(Initial(), charge).(NotExisting); !ok {
		t.Fatal("expected charge on missing account to be ignored")
	}

	closed := checkedOutAccount(t)
	after := Evolve(closed, charge)
	out, ok := after.(CheckedOut)
	if !ok {
		t.Fatalf("expected CheckedOut, got %T", after)
	}
	if !out.Balance.IsZero() {
		t.Fatalf("expected closed balance unchanged, got %s", out.Balance)
	}

	again := Evolve(closed, GuestCheckedIn{AccountID: id, GuestID: "other", CheckedInAt: testNow})
	if _, ok := again.(CheckedOut); !ok {
		t.Fatalf("expected re-check-in to be ignored, got %T", again)
	}
}
