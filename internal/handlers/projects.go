package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	storageService     *services.StorageService
	entitlementService *services.EntitlementService
}

func NewProjectHandler(storageService *services.StorageService, entitlementService *services.EntitlementService) *ProjectHandler {
	return &ProjectHandler{
		storageService:     storageService,
		entitlementService: entitlementService,
	}
}

// ListProjects returns approved projects as teasers
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	db := database.GetDB()

	query := db.Where("status = ?", models.ProjectStatusApproved).
		Preload("Category").
		Preload("Images").
		Preload("NDAConfig")

	if category := c.Query("category"); category != "" {
		query = query.Where("category_id = ?", category)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(tagline) LIKE ?", pattern, pattern)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		respondError(c, err)
		return
	}

	publicProjects := make([]models.ProjectPublicInfo, 0, len(projects))
	for _, p := range projects {
		publicProjects = append(publicProjects, p.ToPublicInfo())
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": publicProjects,
		"total":    len(publicProjects),
	})
}

func loadFullProject(db *gorm.DB, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := db.Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order") }).
		Preload("Team", models.OrderedTeam).
		Preload("NDAConfig").
		Preload("Developer").
		First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("project")
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject returns the full project to its owner, admins and investors who unlocked
// it. Everyone else gets the teaser and, for investors, the access decision.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := loadFullProject(database.GetDB(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	role, _ := middleware.GetUserRole(c)

	owner := role == models.RoleDeveloper && project.DeveloperID == userID
	if !owner && role != models.RoleAdmin && project.Status != models.ProjectStatusApproved {
		respondError(c, apperr.NotFound("project"))
		return
	}

	if owner || role == models.RoleAdmin {
		c.JSON(http.StatusOK, gin.H{"project": h.withURLs(c, project), "full_access": true})
		return
	}

	access, ok := middleware.GetProjectAccess(c)
	if ok && access.Decision.HasAccess {
		c.JSON(http.StatusOK, gin.H{
			"project":     h.withURLs(c, project),
			"full_access": true,
			"access":      access.Decision,
		})
		return
	}

	resp := gin.H{"project": project.ToPublicInfo(), "full_access": false}
	if ok {
		resp["access"] = access.Decision
	}
	c.JSON(http.StatusOK, resp)
}

type fullProject struct {
	*models.Project
	LogoURL      string `json:"logo_url,omitempty"`
	PitchDeckURL string `json:"pitch_deck_url,omitempty"`
}

func (h *ProjectHandler) withURLs(c *gin.Context, p *models.Project) fullProject {
	out := fullProject{Project: p}
	out.LogoURL, _ = h.storageService.URL(c.Request.Context(), p.LogoPath)
	out.PitchDeckURL, _ = h.storageService.URL(c.Request.Context(), p.PitchDeckPath)
	return out
}

// GetAccess returns the unlock decision for the calling investor.
func (h *ProjectHandler) GetAccess(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.entitlementService.Access(userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	d := view.Decision
	c.JSON(http.StatusOK, gin.H{
		"project_id":      view.ProjectID,
		"state":           d.State,
		"has_access":      d.HasAccess,
		"needs_nda":       d.NeedsNDA,
		"needs_addendum":  d.NeedsAddendum,
		"needs_payment":   d.NeedsPayment,
		"can_unlock":      d.CanUnlock(),
		"next_action":     d.Next,
		"views_remaining": view.Snapshot.ViewsRemaining,
		"snapshot":        view.Snapshot,
	})
}

// Unlock consumes one view credit on the project. Repeating it is harmless.
func (h *ProjectHandler) Unlock(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	result, err := h.entitlementService.Unlock(userID, projectID, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"unlock":          result.Unlock,
		"views_remaining": result.ViewsRemaining,
		"created":         result.Created,
	})
}

// GetCategories returns all project categories
func (h *ProjectHandler) GetCategories(c *gin.Context) {
	var categories []models.Category
	if err := database.GetDB().Order("name").Find(&categories).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type TeamMemberRequest struct {
	Name       string `json:"name" binding:"required"`
	Title      string `json:"title" binding:"required"`
	ProfileURL string `json:"profile_url" binding:"omitempty,url"`
	IsLead     bool   `json:"is_lead"`
}

// ProjectRequest is the developer's project form
type ProjectRequest struct {
	Title             string              `json:"title" binding:"required"`
	Tagline           string              `json:"tagline" binding:"max=200"`
	CategoryID        uuid.UUID           `json:"category_id" binding:"required"`
	Description       string              `json:"description" binding:"required"`
	Problem           string              `json:"problem"`
	Solution          string              `json:"solution"`
	TargetMarket      string              `json:"target_market"`
	BusinessModel     string              `json:"business_model"`
	Traction          string              `json:"traction"`
	MinimumInvestment float64             `json:"minimum_investment" binding:"gte=0"`
	MaximumInvestment float64             `json:"maximum_investment" binding:"gte=0"`
	ValuationCap      float64             `json:"valuation_cap" binding:"gte=0"`
	Team              []TeamMemberRequest `json:"team" binding:"dive"`
}

func (r *ProjectRequest) apply(p *models.Project) {
	p.Title = strings.TrimSpace(r.Title)
	p.Tagline = r.Tagline
	p.CategoryID = r.CategoryID
	p.Description = r.Description
	p.Problem = r.Problem
	p.Solution = r.Solution
	p.TargetMarket = r.TargetMarket
	p.BusinessModel = r.BusinessModel
	p.Traction = r.Traction
	p.MinimumInvestment = r.MinimumInvestment
	p.MaximumInvestment = r.MaximumInvestment
	p.ValuationCap = r.ValuationCap
}

func (r *ProjectRequest) validate() error {
	if r.MaximumInvestment > 0 && r.MinimumInvestment > r.MaximumInvestment {
		return apperr.New(apperr.CodeInvalid, "minimum_investment must not exceed maximum_investment")
	}
	var count int64
	if err := database.GetDB().Model(&models.Category{}).Where("id = ?", r.CategoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.New(apperr.CodeInvalid, "Unknown category")
	}
	return nil
}

func replaceTeam(tx *gorm.DB, projectID uuid.UUID, team []TeamMemberRequest) error {
	members := make([]models.TeamMember, len(team))
	for i, m := range team {
		members[i] = models.TeamMember{Name: m.Name, Title: m.Title, ProfileURL: m.ProfileURL, IsLead: m.IsLead}
	}
	return models.ReplaceTeam(tx, projectID, members)
}

// CreateProject creates a draft project (developer only)
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	project := &models.Project{DeveloperID: userID, Status: models.ProjectStatusDraft}
	req.apply(project)

	db := database.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ProjectNDAConfig{ProjectID: project.ID}).Error; err != nil {
			return err
		}
		return replaceTeam(tx, project.ID, req.Team)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	project, _ = loadFullProject(db, project.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Project created successfully",
		"project": project,
	})
}

// ownedProject loads a project belonging to the calling developer.
func ownedProject(c *gin.Context) (*models.Project, bool) {
	userID, _ := middleware.GetUserID(c)
	projectID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var project models.Project
	if err := database.GetDB().Preload("NDAConfig").
		First(&project, "id = ? AND developer_id = ?", projectID, userID).Error; err != nil {
		respondError(c, apperr.NotFound("project"))
		return nil, false
	}
	return &project, true
}

// UpdateProject updates a draft or rejected project
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}
	if !project.Status.Editable() {
		respondError(c, apperr.New(apperr.CodeForbidden, "Cannot edit approved or pending projects"))
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}
	req.apply(project)

	db := database.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("NDAConfig").Save(project).Error; err != nil {
			return err
		}
		if req.Team != nil {
			return replaceTeam(tx, project.ID, req.Team)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	project, _ = loadFullProject(db, project.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Project updated successfully",
		"project": project,
	})
}

// SubmitProject submits a project for review
func (h *ProjectHandler) SubmitProject(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}
	if !project.Status.Editable() {
		respondError(c, apperr.New(apperr.CodeInvalidState, "Project already submitted or approved"))
		return
	}

	if err := database.GetDB().Model(project).Updates(map[string]any{
		"status":           models.ProjectStatusPending,
		"rejection_reason": "",
	}).Error; err != nil {
		respondError(c, err)
		return
	}
	project.Status = models.ProjectStatusPending

	c.JSON(http.StatusOK, gin.H{
		"message": "Project submitted for review",
		"project": project,
	})
}

type NDAConfigRequest struct {
	RequireAddendum bool   `json:"require_addendum"`
	CustomClauses   string `json:"custom_clauses"`
}

// UpdateNDAConfig sets whether investors must sign a project addendum.
func (h *ProjectHandler) UpdateNDAConfig(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}

	var req NDAConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RequireAddendum && strings.TrimSpace(req.CustomClauses) == "" {
		respondError(c, apperr.New(apperr.CodeInvalid, "custom_clauses are required when an addendum is required"))
		return
	}

	cfg := project.NDAConfig
	if cfg == nil {
		cfg = &models.ProjectNDAConfig{ProjectID: project.ID}
	}
	cfg.RequireAddendum = req.RequireAddendum
	cfg.CustomClauses = req.CustomClauses
	if err := database.GetDB().Save(cfg).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nda_config": cfg})
}

// UploadLogo replaces the project's logo
func (h *ProjectHandler) UploadLogo(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}
	file, err := c.FormFile("logo")
	if err != nil {
		respondError(c, apperr.New(apperr.CodeInvalid, "No logo file provided"))
		return
	}

	key, err := h.storageService.SaveProjectImage(c.Request.Context(), project.ID, "logo", file)
	if err != nil {
		respondError(c, err)
		return
	}
	old := project.LogoPath
	if err := database.GetDB().Model(project).Update("logo_path", key).Error; err != nil {
		respondError(c, err)
		return
	}
	if old != "" {
		_ = h.storageService.Delete(c.Request.Context(), old)
	}

	url, _ := h.storageService.URL(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{"logo_path": key, "logo_url": url})
}

// UploadPitchDeck replaces the project's pitch deck (PDF)
func (h *ProjectHandler) UploadPitchDeck(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}
	file, err := c.FormFile("pitch_deck")
	if err != nil {
		respondError(c, apperr.New(apperr.CodeInvalid, "No pitch deck file provided"))
		return
	}

	key, err := h.storageService.SavePitchDeck(c.Request.Context(), project.ID, file)
	if err != nil {
		respondError(c, err)
		return
	}
	old := project.PitchDeckPath
	if err := database.GetDB().Model(project).Update("pitch_deck_path", key).Error; err != nil {
		respondError(c, err)
		return
	}
	if old != "" {
		_ = h.storageService.Delete(c.Request.Context(), old)
	}

	c.JSON(http.StatusOK, gin.H{"pitch_deck_path": key})
}

// UploadProjectImage uploads an image for a project
func (h *ProjectHandler) UploadProjectImage(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, apperr.New(apperr.CodeInvalid, "No image file provided"))
		return
	}

	caption := c.PostForm("caption")
	isPrimary := c.PostForm("is_primary") == "true"

	key, err := h.storageService.SaveProjectImage(c.Request.Context(), project.ID, "img", file)
	if err != nil {
		respondError(c, err)
		return
	}

	db := database.GetDB()
	var image *models.ProjectImage
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ProjectImage{}).Where("project_id = ?", project.ID).Count(&count).Error; err != nil {
			return err
		}

		// The first image is always primary.
		if isPrimary {
			if err := tx.Model(&models.ProjectImage{}).Where("project_id = ?", project.ID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		} else if count == 0 {
			isPrimary = true
		}

		image = &models.ProjectImage{
			ProjectID:    project.ID,
			FilePath:     key,
			FileName:     file.Filename,
			Caption:      caption,
			DisplayOrder: int(count),
			IsPrimary:    isPrimary,
		}
		return tx.Create(image).Error
	})
	if err != nil {
		_ = h.storageService.Delete(c.Request.Context(), key)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Image uploaded successfully",
		"image":   image,
	})
}

// DeleteProjectImage deletes an image from a project
func (h *ProjectHandler) DeleteProjectImage(c *gin.Context) {
	project, ok := ownedProject(c)
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	db := database.GetDB()
	var image models.ProjectImage
	if err := db.First(&image, "id = ? AND project_id = ?", imageID, project.ID).Error; err != nil {
		respondError(c, apperr.NotFound("image"))
		return
	}

	if err := db.Delete(&image).Error; err != nil {
		respondError(c, err)
		return
	}
	_ = h.storageService.Delete(c.Request.Context(), image.FilePath)

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

// GetMyProjects returns the developer's projects with open offer and meeting counts
func (h *ProjectHandler) GetMyProjects(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	db := database.GetDB()

	var projects []models.Project
	if err := db.Where("developer_id = ?", userID).
		Preload("Category").
		Preload("Images").
		Preload("NDAConfig").
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		respondError(c, err)
		return
	}

	type ProjectWithActivity struct {
		models.Project
		OpenOffers      int64 `json:"open_offers"`
		PendingMeetings int64 `json:"pending_meetings"`
	}

	result := make([]ProjectWithActivity, 0, len(projects))
	for _, p := range projects {
		row := ProjectWithActivity{Project: p}
		db.Model(&models.SAFENote{}).
			Where("project_id = ? AND status IN ?", p.ID,
				[]models.SAFENoteStatus{models.SAFEStatusSent, models.SAFEStatusSignedInvestor}).
			Count(&row.OpenOffers)
		db.Model(&models.MeetingRequest{}).
			Where("project_id = ? AND status = ?", p.ID, models.MeetingStatusPending).
			Count(&row.PendingMeetings)
		result = append(result, row)
	}

	c.JSON(http.StatusOK, gin.H{"projects": result})
}
