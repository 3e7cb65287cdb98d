package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
	"gorm.io/gorm"
)

type CommissionService struct {
	audit *AuditService
}

func NewCommissionService(audit *AuditService) *CommissionService {
	return &CommissionService{audit: audit}
}

// CommissionPage is one page of commissions with a summary over exactly those rows.
type CommissionPage struct {
	Items   []models.Commission      `json:"items"`
	Total   int64                    `json:"total"`
	Page    int                      `json:"page"`
	Limit   int                      `json:"limit"`
	Summary models.CommissionSummary `json:"summary"`
}

func (s *CommissionService) List(status models.CommissionStatus, page Page) (*CommissionPage, error) {
	page = page.normalized()
	q := database.GetDB().Model(&models.Commission{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Commission
	if err := page.apply(q.Preload("Project").Order("created_at DESC")).Find(&items).Error; err != nil {
		return nil, err
	}
	return &CommissionPage{
		Items:   items,
		Total:   total,
		Page:    page.Page,
		Limit:   page.Limit,
		Summary: models.SummarizePage(items),
	}, nil
}

// GlobalSummary aggregates every commission in SQL.
func (s *CommissionService) GlobalSummary() (models.CommissionSummary, error) {
	var row struct {
		Count   int64
		Earned  float64
		Pending float64
		AvgRate float64
	}
	err := database.GetDB().Model(&models.Commission{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending,
			COALESCE(AVG(rate), 0) AS avg_rate`,
			models.CommissionStatusPaid, models.CommissionStatusPending).
		Scan(&row).Error
	if err != nil {
		return models.CommissionSummary{}, err
	}

	out := models.CommissionSummary{Scope: models.ScopeGlobal, Count: int(row.Count)}
	out.TotalEarned, _ = decimal.NewFromFloat(row.Earned).Round(2).Float64()
	out.PendingAmount, _ = decimal.NewFromFloat(row.Pending).Round(2).Float64()
	out.AverageRate, _ = decimal.NewFromFloat(row.AvgRate).Round(6).Float64()
	return out, nil
}

// MarkPaid moves a pending commission to paid and flags its SAFE note.
func (s *CommissionService) MarkPaid(adminID, id uuid.UUID, ip string) (*models.Commission, error) {
	var c models.Commission
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("commission")
			}
			return err
		}
		next, ok := c.Status.MarkPaid()
		if !ok {
			return apperr.Transition("commission", string(c.Status), "mark paid")
		}

		now := time.Now()
		res := tx.Model(&models.Commission{}).
			Where("id = ? AND status = ?", c.ID, models.CommissionStatusPending).
			Updates(map[string]any{"status": next, "paid_at": now, "paid_by": adminID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeConflict, "Commission changed concurrently")
		}
		if err := tx.Model(&models.SAFENote{}).Where("id = ?", c.SAFENoteID).
			Update("commission_paid", true).Error; err != nil {
			return err
		}

		c.Status, c.PaidAt, c.PaidBy = next, &now, &adminID
		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(adminID),
			Action:     models.AuditCommissionPaid,
			EntityType: "commission",
			EntityID:   c.ID,
			Metadata:   map[string]any{"amount": c.Amount, "safe_note_id": c.SAFENoteID},
			IPAddress:  ip,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
