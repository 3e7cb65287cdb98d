package services

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

const maxPageLimit = 100

func (p Page) normalized() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	p = p.normalized()
	return q.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
}

// AuditEntry describes one state change.
type AuditEntry struct {
	ActorID    *uuid.UUID
	Action     models.AuditAction
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
	IPAddress  string
}

type AuditFilter struct {
	Action     string
	EntityType string
	ActorID    *uuid.UUID
}

type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

// Record writes e using tx so the log row commits with the change it describes.
func (s *AuditService) Record(tx *gorm.DB, e AuditEntry) error {
	entry := &models.AuditLog{
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Create(entry).Error; err != nil {
		logger.L().Error("audit write failed", zap.String("action", string(e.Action)), zap.Error(err))
		return err
	}
	return nil
}

// List returns audit rows newest first and the total matching count.
func (s *AuditService) List(f AuditFilter, page Page) ([]models.AuditLog, int64, error) {
	q := database.GetDB().Model(&models.AuditLog{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := page.apply(q.Order("created_at DESC")).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func actor(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
