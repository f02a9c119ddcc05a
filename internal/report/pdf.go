package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders dashboard metrics as a one-page A4 summary.
func WritePDF(w io.Writer, m Metrics) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Team dashboard", false)
	pdf.SetAuthor("taskflow", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Team dashboard", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated "+m.GeneratedAt.Format("2006-01-02 15:04 UTC"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Summary")
	kv(pdf, "Total tasks", fmt.Sprint(m.Total))
	kv(pdf, "Completion rate", fmt.Sprintf("%d%%", m.CompletionRate))
	kv(pdf, "Completed tasks", fmt.Sprint(m.Completed))
	kv(pdf, "Overdue tasks", fmt.Sprint(m.Overdue))
	pdf.Ln(4)

	section(pdf, "Status distribution")
	for _, s := range m.ByStatus {
		kv(pdf, string(s.Status), fmt.Sprint(s.Count))
	}
	pdf.Ln(4)

	section(pdf, "Team performance")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 7, "Member", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Completed", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Overdue", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, ms := range m.Members {
		pdf.CellFormat(70, 7, ms.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprint(ms.Completed), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprint(ms.Overdue), "", 1, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func kv(pdf *gofpdf.Fpdf, k, v string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(70, 6, k, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, v, "", 1, "L", false, 0, "")
}
