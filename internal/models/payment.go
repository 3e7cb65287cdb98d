package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentEvent string

const (
	PaymentEventSucceed PaymentEvent = "succeed"
	PaymentEventFail    PaymentEvent = "fail"
	PaymentEventRefund  PaymentEvent = "refund"
)

// Next returns the status reached by applying ev, and false if ev is not allowed from s.
func (s PaymentStatus) Next(ev PaymentEvent) (PaymentStatus, bool) {
	switch s {
	case PaymentStatusPending:
		switch ev {
		case PaymentEventSucceed:
			return PaymentStatusSucceeded, true
		case PaymentEventFail:
			return PaymentStatusFailed, true
		}
	case PaymentStatusSucceeded:
		if ev == PaymentEventRefund {
			return PaymentStatusRefunded, true
		}
	case PaymentStatusFailed, PaymentStatusRefunded:
	}
	return s, false
}

// GrantsCredits reports whether a payment in this status contributes view credits.
func (s PaymentStatus) GrantsCredits() bool {
	return s == PaymentStatusSucceeded
}

type Payment struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"investor_id"`
	Amount             int64          `gorm:"not null" json:"amount"` // in cents
	Currency           string         `gorm:"not null;default:'usd'" json:"currency"`
	ViewsGranted       int            `gorm:"not null" json:"views_granted"`
	Status             PaymentStatus  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	StripePaymentID    string         `gorm:"index" json:"stripe_payment_id,omitempty"`
	StripeSessionID    string         `gorm:"index" json:"stripe_session_id,omitempty"`
	StripeClientSecret string         `json:"-"`
	Description        string         `json:"description"`
	ReceiptURL         string         `json:"receipt_url,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	SucceededAt        *time.Time     `json:"succeeded_at,omitempty"`
	RefundedAt         *time.Time     `json:"refunded_at,omitempty"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Investor *User `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PaymentPackage is the per-investor view-credit ledger fed by succeeded payments.
type PaymentPackage struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"investor_id"`
	TotalViewsPurchased int       `gorm:"not null;default:0" json:"total_views_purchased"`
	ViewsUsed           int       `gorm:"not null;default:0" json:"views_used"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (p *PaymentPackage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ViewsRemaining may be negative after a refund of already-consumed credits.
func (p *PaymentPackage) ViewsRemaining() int {
	if p == nil {
		return 0
	}
	return p.TotalViewsPurchased - p.ViewsUsed
}

// PackageSummary is the read model returned to investors.
type PackageSummary struct {
	TotalViewsPurchased int `json:"total_views_purchased"`
	ViewsUsed           int `json:"views_used"`
	ViewsRemaining      int `json:"views_remaining"`
}

func (p *PaymentPackage) Summary() PackageSummary {
	if p == nil {
		return PackageSummary{}
	}
	return PackageSummary{
		TotalViewsPurchased: p.TotalViewsPurchased,
		ViewsUsed:           p.ViewsUsed,
		ViewsRemaining:      p.ViewsRemaining(),
	}
}

// ViewPackageOffer describes the purchasable credit bundle.
type ViewPackageOffer struct {
	Views           int    `json:"views"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	AmountFormatted string `json:"amount_formatted"`
}

// PaymentResponse is the safe representation for API responses
type PaymentResponse struct {
	ID              uuid.UUID     `json:"id"`
	Amount          int64         `json:"amount"`
	AmountFormatted string        `json:"amount_formatted"`
	Currency        string        `json:"currency"`
	Status          PaymentStatus `json:"status"`
	ViewsGranted    int           `json:"views_granted"`
	ReceiptURL      string        `json:"receipt_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	SucceededAt     *time.Time    `json:"succeeded_at,omitempty"`
}

func (p *Payment) ToResponse() PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		Amount:          p.Amount,
		AmountFormatted: FormatCurrency(p.Amount, p.Currency),
		Currency:        p.Currency,
		Status:          p.Status,
		ViewsGranted:    p.ViewsGranted,
		ReceiptURL:      p.ReceiptURL,
		CreatedAt:       p.CreatedAt,
		SucceededAt:     p.SucceededAt,
	}
}

// FormatCurrency renders an amount in minor units with its currency symbol.
func FormatCurrency(amount int64, currency string) string {
	major := fmt.Sprintf("%.2f", float64(amount)/100)
	switch currency {
	case "zar":
		return "R" + major
	case "eur":
		return "€" + major
	case "gbp":
		return "£" + major
	default:
		return "$" + major
	}
}
