package exports

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/groeigesprek/backend/internal/models"
)

// ParticipantSheet is the input of a printable sign-in list.
type ParticipantSheet struct {
	Session      *models.Session
	Participants []models.Registration
	// QRCode is an optional PNG linking to the registration page.
	QRCode      []byte
	GeneratedAt time.Time
}

// WritePDF renders an A4 sign-in sheet: session details, an optional QR
// code and a table of participants with a signature column.
func WritePDF(w io.Writer, sheet ParticipantSheet) error {
	if sheet.Session == nil {
		return fmt.Errorf("participant sheet: session is required")
	}
	s := sheet.Session
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Deelnemerslijst "+s.TypeName("groeigesprek")), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Deelnemerslijst: "+s.TypeName("Groeigesprek")))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	when := s.Date + " " + s.StartTime
	if s.EndTime != nil {
		when += " - " + *s.EndTime
	}
	for _, line := range []string{
		"Datum en tijd: " + when,
		"Locatie: " + s.DisplayLocation(),
		"Begeleider: " + s.Facilitator,
		fmt.Sprintf("Aanmeldingen: %d / %d", len(sheet.Participants), s.MaxParticipants),
	} {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	if len(sheet.QRCode) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(sheet.QRCode))
		pdf.ImageOptions("qr", 165, 12, 30, 30, false, opts, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{10, 55, 55, 35, 35}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(203, 233, 251)
	for i, h := range []string{"#", "Naam", "Afdeling", "Status", "Handtekening"} {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for i, reg := range sheet.Participants {
		cells := []string{fmt.Sprintf("%d", i+1), reg.Name, reg.Department, string(reg.Status), ""}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 8, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if !sheet.GeneratedAt.IsZero() {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		pdf.Cell(0, 5, "Gegenereerd op "+sheet.GeneratedAt.Format("2-1-2006 15:04"))
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
