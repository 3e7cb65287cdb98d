package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Projects []Project `gorm:"foreignKey:CategoryID" json:"projects,omitempty"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ProjectStatus string

const (
	ProjectStatusDraft    ProjectStatus = "draft"
	ProjectStatusPending  ProjectStatus = "pending"
	ProjectStatusApproved ProjectStatus = "approved"
	ProjectStatusRejected ProjectStatus = "rejected"
)

// Editable reports whether the developer may still change the project.
func (s ProjectStatus) Editable() bool {
	return s == ProjectStatusDraft || s == ProjectStatusRejected
}

type Project struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	DeveloperID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"developer_id"`
	CategoryID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"category_id"`
	Title             string         `gorm:"not null" json:"title"`
	Tagline           string         `gorm:"size:200" json:"tagline"`
	Description       string         `gorm:"type:text;not null" json:"description"`
	Problem           string         `gorm:"type:text" json:"problem"`
	Solution          string         `gorm:"type:text" json:"solution"`
	TargetMarket      string         `gorm:"type:text" json:"target_market"`
	BusinessModel     string         `gorm:"type:text" json:"business_model"`
	Traction          string         `gorm:"type:text" json:"traction"`
	MinimumInvestment float64        `json:"minimum_investment"` // 0 means no lower bound
	MaximumInvestment float64        `json:"maximum_investment"` // 0 means no upper bound
	ValuationCap      float64        `json:"valuation_cap"`
	LogoPath          string         `json:"logo_path,omitempty"`
	PitchDeckPath     string         `json:"pitch_deck_path,omitempty"`
	Status            ProjectStatus  `gorm:"type:varchar(20);default:'draft'" json:"status"`
	RejectionReason   string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID     `gorm:"type:uuid" json:"approved_by,omitempty"`
	UnlockCount       int            `gorm:"default:0" json:"unlock_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Developer *User             `gorm:"foreignKey:DeveloperID" json:"developer,omitempty"`
	Category  *Category         `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Images    []ProjectImage    `gorm:"foreignKey:ProjectID" json:"images,omitempty"`
	Team      []TeamMember      `gorm:"foreignKey:ProjectID" json:"team,omitempty"`
	NDAConfig *ProjectNDAConfig `gorm:"foreignKey:ProjectID" json:"nda_config,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InvestmentRange returns the inclusive bounds, 0 meaning unbounded.
func (p *Project) InvestmentRange() (min, max float64) {
	return p.MinimumInvestment, p.MaximumInvestment
}

// RequiresAddendum reports whether a per-project addendum gates access.
func (p *Project) RequiresAddendum() bool {
	return p.NDAConfig != nil && p.NDAConfig.RequireAddendum
}

// ProjectPublicInfo is the teaser shown before the project is unlocked
type ProjectPublicInfo struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Tagline           string    `json:"tagline"`
	CategoryID        uuid.UUID `json:"category_id"`
	Category          *Category `json:"category,omitempty"`
	MinimumInvestment float64   `json:"minimum_investment"`
	MaximumInvestment float64   `json:"maximum_investment"`
	RequireAddendum   bool      `json:"require_addendum"`
	LogoPath          string    `json:"logo_path,omitempty"`
	PrimaryImage      string    `json:"primary_image,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func (p *Project) ToPublicInfo() ProjectPublicInfo {
	info := ProjectPublicInfo{
		ID:                p.ID,
		Title:             p.Title,
		Tagline:           p.Tagline,
		CategoryID:        p.CategoryID,
		Category:          p.Category,
		MinimumInvestment: p.MinimumInvestment,
		MaximumInvestment: p.MaximumInvestment,
		RequireAddendum:   p.RequiresAddendum(),
		LogoPath:          p.LogoPath,
		CreatedAt:         p.CreatedAt,
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			info.PrimaryImage = img.FilePath
			break
		}
	}
	if info.PrimaryImage == "" && len(p.Images) > 0 {
		info.PrimaryImage = p.Images[0].FilePath
	}
	return info
}

type ProjectImage struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	FilePath     string         `gorm:"not null" json:"file_path"`
	FileName     string         `json:"file_name"`
	Caption      string         `json:"caption"`
	DisplayOrder int            `gorm:"default:0" json:"display_order"`
	IsPrimary    bool           `gorm:"default:false" json:"is_primary"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (pi *ProjectImage) BeforeCreate(tx *gorm.DB) error {
	if pi.ID == uuid.Nil {
		pi.ID = uuid.New()
	}
	return nil
}

// ProjectNDAConfig holds the per-project addendum requirement.
type ProjectNDAConfig struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	RequireAddendum bool      `gorm:"default:false" json:"require_addendum"`
	CustomClauses   string    `gorm:"type:text" json:"custom_clauses"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *ProjectNDAConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ProjectUnlock is the permanent record of one consumed view credit.
// At most one exists per (investor, project).
type ProjectUnlock struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_unlock_pair" json:"investor_id"`
	ProjectID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_unlock_pair;index" json:"project_id"`
	PaymentID  *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	UnlockedAt time.Time  `gorm:"not null" json:"unlocked_at"`

	// Relations
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (u *ProjectUnlock) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UnlockedAt.IsZero() {
		u.UnlockedAt = time.Now()
	}
	return nil
}
