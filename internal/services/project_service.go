package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
	"gorm.io/gorm"
)

// ProjectService owns the admin review step of the project lifecycle.
type ProjectService struct {
	audit    *AuditService
	notifier Notifier
}

func NewProjectService(audit *AuditService, notifier Notifier) *ProjectService {
	return &ProjectService{audit: audit, notifier: notifier}
}

// Review approves or rejects a pending project. A rejection needs a reason.
func (s *ProjectService) Review(by Actor, projectID uuid.UUID, approve bool, reason string) (*models.Project, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Rejection reason is required")
	}

	var project models.Project
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Developer").First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project")
			}
			return err
		}
		if project.Status != models.ProjectStatusPending {
			return apperr.Transition("project", string(project.Status), "review")
		}

		updates := map[string]any{"status": models.ProjectStatusRejected, "rejection_reason": reason}
		if approve {
			now := time.Now()
			updates = map[string]any{
				"status":           models.ProjectStatusApproved,
				"rejection_reason": "",
				"approved_at":      now,
				"approved_by":      by.ID,
			}
			project.ApprovedAt, project.ApprovedBy = &now, &by.ID
		}
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", project.ID, models.ProjectStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.CodeConflict, "Project changed concurrently")
		}
		project.Status = updates["status"].(models.ProjectStatus)
		project.RejectionReason = updates["rejection_reason"].(string)

		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(by.ID),
			Action:     models.AuditProjectReviewed,
			EntityType: "project",
			EntityID:   project.ID,
			Metadata:   map[string]any{"approved": approve, "reason": reason},
			IPAddress:  by.IP,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(project.Developer, projectReviewedNotice(&project))
	return &project, nil
}
