package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditNDASigned         AuditAction = "nda.signed"
	AuditAddendumSigned    AuditAction = "nda.addendum_signed"
	AuditProjectUnlocked   AuditAction = "project.unlocked"
	AuditPaymentSucceeded  AuditAction = "payment.succeeded"
	AuditPaymentFailed     AuditAction = "payment.failed"
	AuditPaymentRefunded   AuditAction = "payment.refunded"
	AuditSAFETransition    AuditAction = "safe_note.transition"
	AuditMeetingTransition AuditAction = "meeting.transition"
	AuditCommissionPaid    AuditAction = "commission.paid"
	AuditProjectReviewed   AuditAction = "project.reviewed"
)

type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Action     AuditAction    `gorm:"type:varchar(40);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(40);not null" json:"entity_type"`
	EntityID   uuid.UUID      `gorm:"type:uuid;index" json:"entity_id"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
