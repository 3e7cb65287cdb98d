package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/models"
)

type DocumentService struct {
	config *config.Config
}

func NewDocumentService(cfg *config.Config) *DocumentService {
	return &DocumentService{config: cfg}
}

func (s *DocumentService) newPDF(title, subtitle string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(190, 10, title, "", 1, "C", false, 0, "")
	if subtitle != "" {
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(190, 8, subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)
	return pdf
}

func (s *DocumentService) footer(pdf *gofpdf.Fpdf, text string) {
	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(190, 4, text, "", "", false)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, heading string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, heading)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.Cell(60, 6, label)
	pdf.Cell(130, 6, value)
	pdf.Ln(6)
}

// MasterNDAPDF renders a signed master NDA.
func (s *DocumentService) MasterNDAPDF(nda *models.MasterNDA, investor *models.User) ([]byte, error) {
	pdf := s.newPDF("MASTER NON-DISCLOSURE AGREEMENT", "Version "+nda.Version)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(190, 5, strings.TrimSpace(models.NDATemplateContent), "", "", false)
	pdf.Ln(8)

	section(pdf, "RECIPIENT SIGNATURE")
	row(pdf, "Name:", nda.SignedName)
	row(pdf, "Email:", investor.Email)
	row(pdf, "Signed:", nda.SignedAt.UTC().Format("January 2, 2006 15:04:05 MST"))
	if nda.ExpiresAt != nil {
		row(pdf, "Valid until:", nda.ExpiresAt.UTC().Format("January 2, 2006"))
	}
	row(pdf, "IP Address:", nda.IPAddress)
	row(pdf, "Document hash:", nda.DocumentHash)

	s.footer(pdf, fmt.Sprintf("This document was electronically signed via %s. The signature data is stored with the platform and this document serves as proof of agreement.", s.config.AppName))
	return output(pdf)
}

// AddendumPDF renders a signed project addendum.
func (s *DocumentService) AddendumPDF(sig *models.ProjectNDASignature, project *models.Project, investor *models.User) ([]byte, error) {
	pdf := s.newPDF("NDA ADDENDUM", project.Title)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(190, 5, models.AddendumPreamble, "", "", false)
	pdf.Ln(4)
	if project.NDAConfig != nil {
		pdf.MultiCell(190, 5, project.NDAConfig.CustomClauses, "", "", false)
	}
	pdf.Ln(8)

	section(pdf, "RECIPIENT SIGNATURE")
	row(pdf, "Name:", sig.SignedName)
	row(pdf, "Email:", investor.Email)
	row(pdf, "Signed:", sig.SignedAt.UTC().Format("January 2, 2006 15:04:05 MST"))
	row(pdf, "Master NDA:", sig.MasterNDAID.String())
	row(pdf, "Clauses hash:", sig.ClausesHash)

	s.footer(pdf, "This addendum supplements the master NDA referenced above.")
	return output(pdf)
}

// SAFENotePDF renders the note with whatever signatures it carries.
func (s *DocumentService) SAFENotePDF(note *models.SAFENote, investor, developer *models.User, project *models.Project) ([]byte, error) {
	pdf := s.newPDF("SAFE", "Simple Agreement for Future Equity")

	section(pdf, "PARTIES")
	company := developer.CompanyName
	if company == "" {
		company = project.Title
	}
	pdf.Cell(95, 6, "Company: "+company)
	pdf.Cell(95, 6, "Investor: "+investor.FullName())
	pdf.Ln(10)

	section(pdf, "INVESTMENT TERMS")
	row(pdf, "Project:", project.Title)
	row(pdf, "Investment Amount:", fmt.Sprintf("$%.2f", note.InvestmentAmount))
	if note.ValuationCap != nil && *note.ValuationCap > 0 {
		row(pdf, "Valuation Cap:", fmt.Sprintf("$%.2f", *note.ValuationCap))
	}
	if note.DiscountRate != nil && *note.DiscountRate > 0 {
		row(pdf, "Discount Rate:", fmt.Sprintf("%.1f%%", *note.DiscountRate))
	}
	row(pdf, "Most Favored Nation:", yesNo(note.IsMFN))
	row(pdf, "Pro-Rata Rights:", yesNo(note.ProRataRights))
	row(pdf, "Status:", string(note.Status))
	pdf.Ln(4)

	section(pdf, "KEY TERMS")
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(190, 5, safeKeyTerms, "", "", false)
	pdf.Ln(8)

	section(pdf, "SIGNATURES")
	pdf.Cell(95, 6, "INVESTOR")
	pdf.Cell(95, 6, "COMPANY")
	pdf.Ln(8)
	pdf.Cell(95, 6, signedLine(note.InvestorSignedAt))
	pdf.Cell(95, 6, signedLine(note.FounderSignedAt))
	pdf.Ln(6)
	pdf.Cell(95, 6, investor.FullName())
	pdf.Cell(95, 6, developer.FullName())
	pdf.Ln(6)
	if note.ExecutedAt != nil {
		pdf.Ln(4)
		row(pdf, "Executed:", note.ExecutedAt.UTC().Format("January 2, 2006"))
	}

	s.footer(pdf, fmt.Sprintf("This document was generated via %s. Electronic signatures are legally binding under applicable e-signature laws.", s.config.AppName))
	return output(pdf)
}

const safeKeyTerms = `1. CONVERSION EVENTS
This SAFE converts into equity upon an Equity Financing, or pays out or converts upon a Liquidity Event or Dissolution Event.

2. CONVERSION MECHANICS
Upon an Equity Financing the Investor receives the greater number of shares computed at the Valuation Cap price or at the Discount Rate applied to the price per share. An MFN SAFE takes the best terms of any later SAFE issued before conversion.

3. REPRESENTATIONS
Both parties represent they have the authority to enter into this agreement and that this investment complies with applicable securities laws.`

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func signedLine(at *time.Time) string {
	if at == nil {
		return "Pending signature"
	}
	return "Signed: " + at.Format("Jan 2, 2006")
}
