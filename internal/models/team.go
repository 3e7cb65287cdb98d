package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TeamMember belongs to the gated part of a project; it is only serialised
// with the full project view.
type TeamMember struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Name       string         `gorm:"not null" json:"name"`
	Title      string         `gorm:"not null" json:"title"`
	ProfileURL string         `json:"profile_url,omitempty"`
	IsLead     bool           `gorm:"default:false" json:"is_lead"`
	Position   int            `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time      `json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ReplaceTeam swaps the project's team for members, keeping their order.
// Call it inside the transaction that saves the project.
func ReplaceTeam(tx *gorm.DB, projectID uuid.UUID, members []TeamMember) error {
	if err := tx.Where("project_id = ?", projectID).Delete(&TeamMember{}).Error; err != nil {
		return err
	}
	for i := range members {
		m := members[i]
		m.ID = uuid.Nil
		m.ProjectID = projectID
		m.Position = i
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}

// OrderedTeam is the preload scope for Project.Team.
func OrderedTeam(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
