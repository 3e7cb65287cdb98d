package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasterNDA is the platform-wide agreement an investor signs once per validity window.
type MasterNDA struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"investor_id"`
	Version       string         `gorm:"not null" json:"version"`
	SignatureData string         `gorm:"type:text;not null" json:"-"` // base64 signature image
	SignedName    string         `gorm:"not null" json:"signed_name"`
	IPAddress     string         `json:"ip_address"`
	UserAgent     string         `json:"user_agent"`
	DocumentHash  string         `json:"document_hash"` // sha256 of the template at signing time
	SignedAt      time.Time      `gorm:"not null" json:"signed_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (n *MasterNDA) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.SignedAt.IsZero() {
		n.SignedAt = time.Now()
	}
	return nil
}

// IsValidAt reports whether the NDA covers the instant t.
func (n *MasterNDA) IsValidAt(t time.Time) bool {
	if n == nil {
		return false
	}
	if t.Before(n.SignedAt) {
		return false
	}
	return n.ExpiresAt == nil || t.Before(*n.ExpiresAt)
}

func (n *MasterNDA) IsValid() bool {
	return n.IsValidAt(time.Now())
}

// ProjectNDASignature is an investor's signature on one project's addendum.
type ProjectNDASignature struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_addendum_pair" json:"investor_id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_addendum_pair" json:"project_id"`
	MasterNDAID   uuid.UUID `gorm:"type:uuid;not null;index" json:"master_nda_id"`
	SignedName    string    `gorm:"not null" json:"signed_name"`
	SignatureData string    `gorm:"type:text" json:"-"`
	ClausesHash   string    `json:"clauses_hash"`
	IPAddress     string    `json:"ip_address"`
	SignedAt      time.Time `gorm:"not null" json:"signed_at"`

	MasterNDA *MasterNDA `gorm:"foreignKey:MasterNDAID" json:"master_nda,omitempty"`
}

func (s *ProjectNDASignature) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.SignedAt.IsZero() {
		s.SignedAt = time.Now()
	}
	return nil
}

// NDATemplateContent is the master NDA text. Its sha256 is stored with every signature.
const NDATemplateContent = `
MASTER NON-DISCLOSURE AGREEMENT

This Master Non-Disclosure Agreement ("Agreement") takes effect on the date of electronic signature below.

PARTIES
The marketplace operator and the founders listing projects on it (together, the "Disclosing Parties"), and
the undersigned investor (the "Recipient").

1. PURPOSE
The Recipient will receive business plans, financials, technical material and other non-public information
about listed projects ("Confidential Information") solely to evaluate an investment.

2. OBLIGATIONS
The Recipient shall keep Confidential Information in confidence, shall not disclose it to any third party
without written consent, shall use it only for evaluating an investment, and shall protect it with at least
reasonable care.

3. EXCLUSIONS
Information that is public through no fault of the Recipient, was already known to the Recipient, was
independently developed, or must be disclosed by law is not Confidential Information.

4. PROJECT ADDENDA
A project may attach an addendum with additional clauses. An addendum supplements this Agreement and does not
replace it.

5. TERM
This Agreement remains in effect for the validity period shown on the signed copy. Obligations over
information received during that period survive its expiry.

6. NO LICENSE
Nothing in this Agreement grants the Recipient any right in the intellectual property of a Disclosing Party.

7. REMEDIES
A breach may cause irreparable harm and the Disclosing Parties may seek equitable relief in addition to any
other remedy.

8. ELECTRONIC SIGNATURE
Electronic signatures under this Agreement are binding.
`

// AddendumPreamble opens every project addendum.
const AddendumPreamble = `This addendum supplements the Master Non-Disclosure Agreement signed by the Recipient. ` +
	`The following additional clauses apply to the project named below:`
