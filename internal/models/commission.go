package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// MarkPaid is the only transition a client can request.
func (s CommissionStatus) MarkPaid() (CommissionStatus, bool) {
	switch s {
	case CommissionStatusPending:
		return CommissionStatusPaid, true
	case CommissionStatusPaid, CommissionStatusCancelled:
	}
	return s, false
}

// Commission is the platform fee derived from one executed SAFE note.
type Commission struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	SAFENoteID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"safe_note_id"`
	InvestorID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"investor_id"`
	DeveloperID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"developer_id"`
	ProjectID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"project_id"`
	InvestmentAmount float64          `gorm:"not null" json:"investment_amount"`
	Rate             float64          `gorm:"not null" json:"rate"`
	Amount           float64          `gorm:"not null" json:"amount"`
	Status           CommissionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	PaidBy           *uuid.UUID       `gorm:"type:uuid" json:"paid_by,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	Project  *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	SAFENote *SAFENote `gorm:"foreignKey:SAFENoteID" json:"safe_note,omitempty"`
}

func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CommissionStatusPending
	}
	return nil
}

// ComputeCommission returns investment × rate rounded half-up to cents.
func ComputeCommission(investment, rate float64) float64 {
	amt := decimal.NewFromFloat(investment).Mul(decimal.NewFromFloat(rate)).Round(2)
	f, _ := amt.Float64()
	return f
}

// SummaryScope tells the reader what a summary was computed over.
type SummaryScope string

const (
	ScopePage   SummaryScope = "page"
	ScopeGlobal SummaryScope = "global"
)

type CommissionSummary struct {
	Scope         SummaryScope `json:"scope"`
	Count         int          `json:"count"`
	TotalEarned   float64      `json:"total_earned"`   // Σ amount where paid
	PendingAmount float64      `json:"pending_amount"` // Σ amount where pending
	AverageRate   float64      `json:"average_rate"`   // mean(rate); 0 when empty
}

// SummarizePage aggregates only the given rows; the result is scoped to that page.
func SummarizePage(items []Commission) CommissionSummary {
	earned, pending, rates := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range items {
		amt := decimal.NewFromFloat(c.Amount)
		switch c.Status {
		case CommissionStatusPaid:
			earned = earned.Add(amt)
		case CommissionStatusPending:
			pending = pending.Add(amt)
		case CommissionStatusCancelled:
		}
		rates = rates.Add(decimal.NewFromFloat(c.Rate))
	}
	s := CommissionSummary{Scope: ScopePage, Count: len(items)}
	s.TotalEarned, _ = earned.Round(2).Float64()
	s.PendingAmount, _ = pending.Round(2).Float64()
	if len(items) > 0 {
		s.AverageRate, _ = rates.Div(decimal.NewFromInt(int64(len(items)))).Round(6).Float64()
	}
	return s
}
