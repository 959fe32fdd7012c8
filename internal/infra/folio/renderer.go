package folio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"gueststay/internal/app/readmodel"
)

const dateTimeLayout = "02 Jan 2006 15:04 MST"

// PDFRenderer lays out a guest stay as an A4 folio: header, stay facts, a
// ledger of charges and payments, and the closing balance.
type PDFRenderer struct {
	Property string
	Clock    func() time.Time
}

func (r PDFRenderer) ContentType() string { return "application/pdf" }

func (r PDFRenderer) Render(doc readmodel.GuestStayDetails) ([]byte, error) {
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock().UTC()
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetTitle("Guest folio "+doc.ID, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, r.title(), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Issued "+now.Format(dateTimeLayout), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	facts := fmt.Sprintf("Account: %s\nGuest: %s\nRoom: %s\nStatus: %s\nChecked in: %s",
		doc.ID, doc.GuestID, doc.RoomID, doc.Status, doc.CheckedInAt.UTC().Format(dateTimeLayout))
	if doc.CheckedOutAt != nil {
		facts += "\nChecked out: " + doc.CheckedOutAt.UTC().Format(dateTimeLayout)
	}
	pdf.MultiCell(0, 6, facts, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 245)
	pdf.CellFormat(20, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(90, 8, "Transaction", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "Amount", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for i, tx := range doc.Transactions {
		kind := "Payment"
		if tx.Amount.IsNegative() {
			kind = "Charge"
		}
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 7, kind+" "+tx.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tx.Amount.Decimal().StringFixed(2), "1", 1, "R", false, 0, "")
	}
	if len(doc.Transactions) == 0 {
		pdf.CellFormat(0, 7, "No transactions", "1", 1, "C", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(110, 8, "Balance", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, doc.Balance.Decimal().StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("folio: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r PDFRenderer) title() string {
	if r.Property != "" {
		return r.Property + " - Guest folio"
	}
	return "Guest folio"
}
