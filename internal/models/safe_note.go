package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"gorm.io/gorm"
)

type SAFENoteStatus string

const (
	SAFEStatusDraft          SAFENoteStatus = "draft"
	SAFEStatusSent           SAFENoteStatus = "sent"
	SAFEStatusSignedInvestor SAFENoteStatus = "signed_investor" // investor signed, awaiting founder
	SAFEStatusSignedFounder  SAFENoteStatus = "signed_founder"  // both signed, awaiting execution
	SAFEStatusExecuted       SAFENoteStatus = "executed"
	SAFEStatusCancelled      SAFENoteStatus = "cancelled"
)

type SAFEEvent string

const (
	SAFEEventSend         SAFEEvent = "send"
	SAFEEventInvestorSign SAFEEvent = "investor_sign"
	SAFEEventFounderSign  SAFEEvent = "founder_sign"
	SAFEEventExecute      SAFEEvent = "execute"
	SAFEEventCancel       SAFEEvent = "cancel"
)

// Terminal reports whether no further event is accepted.
func (s SAFENoteStatus) Terminal() bool {
	return s == SAFEStatusExecuted || s == SAFEStatusCancelled
}

// Next is the SAFE note transition function. The second result is false when ev is not
// allowed from s; the status is then returned unchanged.
func (s SAFENoteStatus) Next(ev SAFEEvent) (SAFENoteStatus, bool) {
	switch s {
	case SAFEStatusDraft:
		switch ev {
		case SAFEEventSend:
			return SAFEStatusSent, true
		case SAFEEventCancel:
			return SAFEStatusCancelled, true
		}
	case SAFEStatusSent:
		switch ev {
		case SAFEEventInvestorSign:
			return SAFEStatusSignedInvestor, true
		case SAFEEventCancel:
			return SAFEStatusCancelled, true
		}
	case SAFEStatusSignedInvestor:
		switch ev {
		case SAFEEventFounderSign:
			return SAFEStatusSignedFounder, true
		case SAFEEventCancel:
			return SAFEStatusCancelled, true
		}
	case SAFEStatusSignedFounder:
		switch ev {
		case SAFEEventExecute:
			return SAFEStatusExecuted, true
		case SAFEEventCancel:
			return SAFEStatusCancelled, true
		}
	case SAFEStatusExecuted, SAFEStatusCancelled:
	}
	return s, false
}

type SAFENote struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"investor_id"`
	ProjectID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	DeveloperID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"developer_id"`
	InvestmentAmount   float64        `gorm:"not null" json:"investment_amount"`
	ValuationCap       *float64       `json:"valuation_cap,omitempty"`
	DiscountRate       *float64       `json:"discount_rate,omitempty"` // percentage
	IsMFN              bool           `gorm:"default:false" json:"is_mfn"`
	ProRataRights      bool           `gorm:"default:false" json:"pro_rata_rights"`
	Notes              string         `gorm:"type:text" json:"notes,omitempty"`
	Status             SAFENoteStatus `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	SentAt             *time.Time     `json:"sent_at,omitempty"`
	InvestorSignature  string         `gorm:"type:text" json:"-"`
	InvestorSignedAt   *time.Time     `json:"investor_signed_at,omitempty"`
	InvestorIP         string         `json:"-"`
	FounderSignature   string         `gorm:"type:text" json:"-"`
	FounderSignedAt    *time.Time     `json:"founder_signed_at,omitempty"`
	FounderIP          string         `json:"-"`
	ExecutedAt         *time.Time     `json:"executed_at,omitempty"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID     `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CancellationReason string         `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CommissionAmount   float64        `json:"commission_amount"`
	CommissionPaid     bool           `gorm:"default:false" json:"commission_paid"`
	DocumentPath       string         `json:"document_path,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Investor  *User    `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Developer *User    `gorm:"foreignKey:DeveloperID" json:"developer,omitempty"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (n *SAFENote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = SAFEStatusDraft
	}
	return nil
}

// ReadOnly reports whether the note's terms and status are frozen.
func (n *SAFENote) ReadOnly() bool {
	return n.Status.Terminal()
}

// Apply moves the note through ev at time at, keeping the timestamp invariants:
// ExecutedAt is set iff executed, CancelledAt/CancellationReason iff cancelled.
func (n *SAFENote) Apply(ev SAFEEvent, at time.Time) error {
	next, ok := n.Status.Next(ev)
	if !ok {
		return apperr.Transition("SAFE note", string(n.Status), string(ev))
	}
	switch next {
	case SAFEStatusSent:
		n.SentAt = &at
	case SAFEStatusSignedInvestor:
		n.InvestorSignedAt = &at
	case SAFEStatusSignedFounder:
		n.FounderSignedAt = &at
	case SAFEStatusExecuted:
		n.ExecutedAt = &at
	case SAFEStatusCancelled:
		n.CancelledAt = &at
	}
	n.Status = next
	return nil
}

// Terms returns the offer terms carried by the note.
func (n *SAFENote) Terms() SAFETerms {
	return SAFETerms{
		InvestmentAmount: n.InvestmentAmount,
		ValuationCap:     n.ValuationCap,
		DiscountRate:     n.DiscountRate,
		IsMFN:            n.IsMFN,
		ProRataRights:    n.ProRataRights,
	}
}

// SetTerms copies t onto the note.
func (n *SAFENote) SetTerms(t SAFETerms) {
	n.InvestmentAmount = t.InvestmentAmount
	n.ValuationCap = t.ValuationCap
	n.DiscountRate = t.DiscountRate
	n.IsMFN = t.IsMFN
	n.ProRataRights = t.ProRataRights
}

// SAFETerms are the negotiable economics of an offer.
type SAFETerms struct {
	InvestmentAmount float64  `json:"investment_amount"`
	ValuationCap     *float64 `json:"valuation_cap,omitempty"`
	DiscountRate     *float64 `json:"discount_rate,omitempty"`
	IsMFN            bool     `json:"is_mfn"`
	ProRataRights    bool     `json:"pro_rata_rights"`
}

// WithMFN returns t with MFN toggled; enabling MFN clears cap and discount the way the
// offer form does. The server accepts either shape.
func (t SAFETerms) WithMFN(on bool) SAFETerms {
	t.IsMFN = on
	if on {
		t.ValuationCap = nil
		t.DiscountRate = nil
	}
	return t
}

func (t SAFETerms) hasCap() bool      { return t.ValuationCap != nil && *t.ValuationCap > 0 }
func (t SAFETerms) hasDiscount() bool { return t.DiscountRate != nil && *t.DiscountRate > 0 }

// Violation is one failed offer rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations is returned by ValidateOffer when any rule fails.
type Violations []Violation

func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, x.Field+": "+x.Message)
	}
	return "invalid offer: " + strings.Join(parts, "; ")
}

// ValidateOffer checks t against the offer rules and the project's inclusive investment
// range (0 bounds are ignored). It returns nil or a Violations error.
func ValidateOffer(t SAFETerms, minInvestment, maxInvestment float64) error {
	var v Violations
	switch {
	case t.InvestmentAmount <= 0:
		v = append(v, Violation{"investment_amount", "must be greater than zero"})
	case minInvestment > 0 && t.InvestmentAmount < minInvestment:
		v = append(v, Violation{"investment_amount", fmt.Sprintf("must be at least %.2f", minInvestment)})
	case maxInvestment > 0 && t.InvestmentAmount > maxInvestment:
		v = append(v, Violation{"investment_amount", fmt.Sprintf("must be at most %.2f", maxInvestment)})
	}
	if t.ValuationCap != nil && *t.ValuationCap < 0 {
		v = append(v, Violation{"valuation_cap", "must not be negative"})
	}
	if t.DiscountRate != nil && (*t.DiscountRate < 0 || *t.DiscountRate >= 100) {
		v = append(v, Violation{"discount_rate", "must be between 0 and 100"})
	}
	if !t.hasCap() && !t.hasDiscount() && !t.IsMFN {
		v = append(v, Violation{"terms", "set a valuation cap, a discount rate or MFN"})
	}
	if len(v) == 0 {
		return nil
	}
	return v
}
