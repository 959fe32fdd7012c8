package folio

import (
	"bytes"
	"testing"
	"time"

	"gueststay/internal/app/readmodel"
	"gueststay/internal/domain/shared/money"
)

func TestRenderProducesPDF(t *testing.T) {
	checkedIn := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	checkedOut := checkedIn.Add(20 * time.Hour)
	doc := readmodel.GuestStayDetails{
		ID:      "guest_stay_account-g1:101:2024-03-09",
		GuestID: "g1",
		RoomID:  "101",
		Status:  readmodel.StatusCheckedOut,
		Balance: money.Zero,
		Transactions: []readmodel.Transaction{
			{ID: "c1", Amount: money.MustParse("-120")},
			{ID: "p1", Amount: money.MustParse("120")},
		},
		TransactionsCount: 2,
		CheckedInAt:       checkedIn,
		CheckedOutAt:      &checkedOut,
		Version:           4,
	}
	r := PDFRenderer{Property: "Harbor Inn", Clock: func() time.Time { return checkedOut }}

	out, err := r.Render(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected a PDF document, got %q", out[:8])
	}
	if r.ContentType() != "application/pdf" {
		t.Fatalf("unexpected content type %s", r.ContentType())
	}

	empty, err := r.Render(readmodel.Empty("acc"))
	if err != nil || len(empty) == 0 {
		t.Fatalf("expected empty folio to render, got %d bytes (%v)", len(empty), err)
	}
}
