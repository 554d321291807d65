package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

const (
	labelWidth = 60.0
	lineHeight = 6.0
)

// PDFRenderer lays out a session as a printable medical report
type PDFRenderer struct {
	logger *zap.Logger
	now    func() time.Time
}

// Ensure PDFRenderer implements the ReportRenderer interface
var _ repositories.ReportRenderer = (*PDFRenderer)(nil)

// NewPDFRenderer creates a report renderer
func NewPDFRenderer(logger *zap.Logger) *PDFRenderer {
	return &PDFRenderer{logger: logger, now: time.Now}
}

// Render implements repositories.ReportRenderer. Validated data is used
// once present, extracted data otherwise.
func (r *PDFRenderer) Render(ctx context.Context, session *entities.TranscriptionSession) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Rapport Medical "+session.Reference, true)
	pdf.SetCreator("medical-transcription", true)
	pdf.SetCreationDate(r.now())
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - page %d/{nb}", session.Reference, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Rapport Médical"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	header := [][2]string{
		{"Référence", session.Reference},
		{"Modèle", firstNonEmpty(session.TemplateName, session.TemplateType, "-")},
		{"Date", session.CreatedAt.Local().Format("02/01/2006 15:04")},
		{"Statut", string(session.State)},
	}
	for _, row := range header {
		r.row(pdf, tr, row[0], row[1])
	}

	r.section(pdf, tr, "Informations patient", session.PatientInfo())
	r.section(pdf, tr, "Données cliniques", session.ClinicalData())

	if strings.TrimSpace(session.MedicalReport) != "" {
		r.heading(pdf, tr, "Rapport")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, lineHeight, tr(session.MedicalReport), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error("Failed to render report",
			zap.String("transcriptionID", session.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) heading(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func (r *PDFRenderer) section(pdf *fpdf.Fpdf, tr func(string) string, title string, data entities.StructuredData) {
	if len(data) == 0 {
		return
	}
	r.heading(pdf, tr, title)
	pdf.SetFont("Helvetica", "", 10)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.row(pdf, tr, entities.FormatFieldName(k), displayValue(data[k]))
	}
}

func (r *PDFRenderer) row(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, lineHeight, tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
}

// displayValue flattens a structured value to one printable string
func displayValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if strings.TrimSpace(val) == "" {
			return "-"
		}
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
