package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type SignatureRow struct {
	Level    int
	Role     string
	SignedBy string
	SignedAt *time.Time
	Note     string
}

type ApprovalSheet struct {
	Title       string
	RequestID   string
	RequesterID string
	Status      string
	Rows        []SignatureRow
	GeneratedAt time.Time
}

// Render writes the sheet as a single-page A4 document.
func Render(w io.Writer, sheet ApprovalSheet) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(sheet.Title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, sheet.Title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Request: %s", sheet.RequestID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Requester: %s", sheet.RequesterID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", sheet.Status))
	pdf.Ln(10)

	widths := []float64{15, 45, 55, 45, 30}
	headers := []string{"Level", "Role", "Signed by", "Signed at", "Note"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range sheet.Rows {
		signedAt := ""
		if row.SignedAt != nil {
			signedAt = row.SignedAt.UTC().Format("2006-01-02 15:04")
		}
		cells := []string{fmt.Sprint(row.Level + 1), row.Role, row.SignedBy, signedAt, row.Note}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 8, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, "Generated "+sheet.GeneratedAt.UTC().Format(time.RFC3339))

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
