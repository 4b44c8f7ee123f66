// Package pdf lays out a consultation summary as an A4 document.
package pdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/nikhilbhutani/docchat/internal/summary"
)

const disclaimer = "IMPORTANT MEDICAL DISCLAIMER: This document is an AI-generated summary of a medical consultation " +
	"created for documentation and reference purposes only. This summary is NOT a medical prescription, " +
	"diagnosis, or treatment plan. It should not replace professional medical advice, clinical judgment, " +
	"or direct communication with your healthcare provider. Always consult with qualified medical " +
	"professionals for any health-related decisions, medication changes, or treatment modifications. " +
	"The accuracy of this AI-generated content should be verified with your healthcare provider."

const about = "This document is a structured summary generated using AI technology from a doctor-patient conversation. " +
	"It aims to assist in maintaining records and improving follow-up care but should be validated by medical professionals."

const noInfo = "No specific information discussed in this session."

type rgb struct{ r, g, b int }

var (
	brand = rgb{41, 128, 185}
	ink   = rgb{44, 62, 80}
	label = rgb{52, 73, 94}
	muted = rgb{128, 128, 128}
)

type Renderer struct {
	now func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// Render writes the summary document for a session to w.
func (r *Renderer) Render(w io.Writer, userID, sessionID string, s *summary.Summary) error {
	doc := r.document(userID, sessionID, s)
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render summary pdf: %w", err)
	}
	return nil
}

type page struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (r *Renderer) document(userID, sessionID string, s *summary.Summary) *fpdf.Fpdf {
	f := fpdf.New("P", "mm", "A4", "")
	p := &page{Fpdf: f, tr: f.UnicodeTranslatorFromDescriptor("")}
	now := r.now().UTC()

	f.SetTitle("Medical Consultation Summary "+sessionID, true)
	f.SetCreationDate(now)
	f.SetHeaderFunc(p.header)
	f.SetFooterFunc(p.footer)
	f.SetAutoPageBreak(true, 25)
	f.AddPage()

	p.section("SESSION INFORMATION")
	p.infoRow("Date of Consultation", now.Format("02 January 2006"), true)
	p.infoRow("Session ID", sessionID, true)
	p.infoRow("User ID", userID, false)
	p.infoRow("Document Type", "Medical Consultation Summary", false)
	p.infoRow("Generated", now.Format("02 January 2006 at 15:04 UTC"), false)

	p.section("SESSION OVERVIEW")
	p.paragraph(s.SessionOverview)

	p.section("CONVERSATION HIGHLIGHTS")
	for _, h := range s.ConversationHighlights.Labeled() {
		p.highlight(h[0], h[1])
	}

	p.section("DOCTOR'S ASSESSMENT")
	p.paragraph(s.DoctorAssessment)

	p.section("INVESTIGATIONS SUGGESTED")
	p.bullets(s.InvestigationsSuggested, false)

	p.section("MEDICATIONS / TREATMENT")
	p.bullets(s.MedicationsTreatment, false)

	p.section("ACTION ITEMS / NEXT STEPS")
	p.bullets(s.ActionItems, true)

	p.section("AI SUMMARY NOTE")
	p.paragraph(s.AISummaryNote)

	p.section("ABOUT THIS SUMMARY")
	p.paragraph(about)

	p.disclaimer()
	return f
}

func (p *page) text(c rgb) { p.SetTextColor(c.r, c.g, c.b) }

func (p *page) header() {
	p.SetFillColor(brand.r, brand.g, brand.b)
	p.Rect(0, 0, 210, 32, "F")
	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "B", 20)
	p.SetXY(15, 8)
	p.CellFormat(0, 8, "MEDICAL CONSULTATION SUMMARY", "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 11)
	p.SetXY(15, 20)
	p.CellFormat(0, 6, "Comprehensive Patient-Doctor Consultation Report", "", 0, "L", false, 0, "")
	p.SetY(37)
}

func (p *page) footer() {
	p.SetY(-18)
	p.SetDrawColor(brand.r, brand.g, brand.b)
	p.SetLineWidth(0.5)
	p.Line(15, 285, 195, 285)
	p.SetFont("Helvetica", "", 8)
	p.SetTextColor(100, 100, 100)
	p.SetX(15)
	p.CellFormat(60, 6, fmt.Sprintf("Page %d", p.PageNo()), "", 0, "L", false, 0, "")
	p.SetX(135)
	p.CellFormat(60, 6, "AI-Enhanced Medical Summary", "", 0, "R", false, 0, "")
}

func (p *page) section(title string) {
	if p.GetY() > 265 {
		p.AddPage()
	}
	p.Ln(10)
	y := p.GetY()
	p.SetFillColor(brand.r, brand.g, brand.b)
	p.Rect(15, y, 180, 12, "F")
	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "B", 12)
	p.SetXY(18, y+3)
	p.CellFormat(0, 6, p.tr(title), "", 0, "L", false, 0, "")
	p.Ln(18)
}

func (p *page) infoRow(key, value string, bold bool) {
	p.SetFont("Helvetica", "B", 10)
	p.text(label)
	p.SetX(20)
	p.CellFormat(60, 7, p.tr(key+":"), "", 0, "L", false, 0, "")
	style := ""
	if bold {
		style = "B"
	}
	p.SetFont("Helvetica", style, 10)
	p.text(ink)
	p.SetX(80)
	p.CellFormat(115, 7, p.tr(value), "", 0, "L", false, 0, "")
	p.Ln(8)
}

func (p *page) paragraph(content string) {
	p.SetFont("Helvetica", "", 10)
	p.text(ink)
	p.SetX(20)
	p.MultiCell(175, 6, p.tr(content), "", "L", false)
}

func (p *page) highlight(title, content string) {
	p.SetFont("Helvetica", "B", 10)
	p.text(brand)
	p.SetX(25)
	p.CellFormat(0, 7, p.tr("• "+title+":"), "", 0, "L", false, 0, "")
	p.Ln(7)
	p.SetFont("Helvetica", "", 10)
	p.text(ink)
	p.SetX(35)
	p.MultiCell(160, 6, p.tr(content), "", "L", false)
	p.Ln(4)
}

// bullets prints items as a list. A list that is empty or holds a single
// "no specific ..." entry prints a muted placeholder. Check marks come from
// the ZapfDingbats core font.
func (p *page) bullets(items []string, check bool) {
	if len(items) == 0 || (len(items) == 1 && strings.Contains(strings.ToLower(items[0]), "no specific")) {
		p.SetFont("Helvetica", "I", 10)
		p.text(muted)
		p.SetX(25)
		p.MultiCell(170, 6, noInfo, "", "L", false)
		p.Ln(5)
		return
	}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		p.text(ink)
		p.SetX(25)
		if check {
			p.SetFont("ZapfDingbats", "", 9)
			p.CellFormat(5, 6, "4", "", 0, "L", false, 0, "")
		} else {
			p.SetFont("Helvetica", "", 10)
			p.CellFormat(5, 6, p.tr("•"), "", 0, "L", false, 0, "")
		}
		p.SetFont("Helvetica", "", 10)
		p.SetX(32)
		p.MultiCell(163, 6, p.tr(item), "", "L", false)
		p.Ln(3)
	}
}

func (p *page) disclaimer() {
	p.Ln(8)
	if p.GetY() > 297-25-45 {
		p.AddPage()
	}
	y := p.GetY()
	p.SetFillColor(255, 243, 205)
	p.SetDrawColor(230, 126, 34)
	p.SetLineWidth(1.0)
	p.Rect(15, y, 180, 45, "DF")
	p.SetTextColor(175, 96, 26)
	p.SetFont("Helvetica", "B", 10)
	p.SetXY(20, y+4)
	p.CellFormat(0, 5, "MEDICAL DISCLAIMER", "", 0, "L", false, 0, "")
	p.SetTextColor(80, 80, 80)
	p.SetFont("Helvetica", "", 8)
	p.SetXY(20, y+12)
	p.MultiCell(170, 4.5, disclaimer, "", "L", false)
	p.Ln(10)
}
