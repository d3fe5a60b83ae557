package document

import (
	"bytes"

	"github.com/go-pdf/fpdf"
)

const chartImageName = "chart"

// PDF renders an A4 portrait report.
type PDF struct{}

// Render writes the title, both text blocks and the chart below them.
func (PDF) Render(report Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(report.Title, true)
	pdf.SetCreator("trmreport", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(report.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Generated "+report.GeneratedAt.Format("2006-01-02 15:04")+" | "+Period(report.Summary)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	writeBlock(pdf, tr, "Relevant values:", ValueLines(report.Summary))
	pdf.Ln(4)
	writeBlock(pdf, tr, "Percentage change:", ChangeLines(report.Summary))
	pdf.Ln(6)

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(chartImageName, opts, bytes.NewReader(report.Chart))
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	pdf.ImageOptions(chartImageName, left, pdf.GetY(), pageW-left-right, 0, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBlock(pdf *fpdf.Fpdf, tr func(string) string, heading string, lines []Line) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(heading), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, l := range lines {
		pdf.CellFormat(0, 7, tr(l.Label+": "+l.Value), "", 1, "L", false, 0, "")
	}
}
