package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
	"gorm.io/gorm"
)

type AdminHandler struct {
	projectService    *services.ProjectService
	commissionService *services.CommissionService
	auditService      *services.AuditService
}

func NewAdminHandler(projectService *services.ProjectService, commissionService *services.CommissionService, auditService *services.AuditService) *AdminHandler {
	return &AdminHandler{
		projectService:    projectService,
		commissionService: commissionService,
		auditService:      auditService,
	}
}

// GetDashboardStats returns platform statistics
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	db := database.GetDB()

	var stats struct {
		TotalUsers       int64 `json:"total_users"`
		TotalInvestors   int64 `json:"total_investors"`
		TotalDevelopers  int64 `json:"total_developers"`
		TotalProjects    int64 `json:"total_projects"`
		ApprovedProjects int64 `json:"approved_projects"`
		PendingProjects  int64 `json:"pending_projects"`
		TotalSAFENotes   int64 `json:"total_safe_notes"`
		ExecutedNotes    int64 `json:"executed_safe_notes"`
		TotalMeetings    int64 `json:"total_meetings"`
		TotalPayments    int64 `json:"total_payments"`
		TotalRevenue     int64 `json:"total_revenue"`
	}

	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&stats.TotalUsers, &models.User{}, nil},
		{&stats.TotalInvestors, &models.User{}, []any{"role = ?", models.RoleInvestor}},
		{&stats.TotalDevelopers, &models.User{}, []any{"role = ?", models.RoleDeveloper}},
		{&stats.TotalProjects, &models.Project{}, nil},
		{&stats.ApprovedProjects, &models.Project{}, []any{"status = ?", models.ProjectStatusApproved}},
		{&stats.PendingProjects, &models.Project{}, []any{"status = ?", models.ProjectStatusPending}},
		{&stats.TotalSAFENotes, &models.SAFENote{}, nil},
		{&stats.ExecutedNotes, &models.SAFENote{}, []any{"status = ?", models.SAFEStatusExecuted}},
		{&stats.TotalMeetings, &models.MeetingRequest{}, nil},
		{&stats.TotalPayments, &models.Payment{}, []any{"status = ?", models.PaymentStatusSucceeded}},
	}
	for _, q := range counts {
		tx := db.Model(q.model)
		if q.where != nil {
			tx = tx.Where(q.where[0], q.where[1:]...)
		}
		if err := tx.Count(q.dst).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	var revenue struct {
		Total int64
	}
	if err := db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusSucceeded).
		Select("COALESCE(SUM(amount), 0) as total").
		Scan(&revenue).Error; err != nil {
		respondError(c, err)
		return
	}
	stats.TotalRevenue = revenue.Total

	commissions, err := h.commissionService.GlobalSummary()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "commissions": commissions})
}

// ListAllUsers returns users, optionally filtered by role
func (h *AdminHandler) ListAllUsers(c *gin.Context) {
	query := database.GetDB().Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	response := make([]models.UserResponse, 0, len(users))
	for i := range users {
		response = append(response, users[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"users": response})
}

// ListAllProjects returns projects in every status
func (h *AdminHandler) ListAllProjects(c *gin.Context) {
	query := database.GetDB().Model(&models.Project{}).
		Preload("Developer").
		Preload("Category").
		Preload("Images")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetPendingProjects returns projects awaiting review, oldest first
func (h *AdminHandler) GetPendingProjects(c *gin.Context) {
	var projects []models.Project
	if err := database.GetDB().Where("status = ?", models.ProjectStatusPending).
		Preload("Developer").
		Preload("Category").
		Preload("Images").
		Preload("Team", models.OrderedTeam).
		Order("created_at ASC").
		Find(&projects).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ApproveProjectRequest represents project review input
type ApproveProjectRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// ApproveProject approves or rejects a pending project
func (h *AdminHandler) ApproveProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req ApproveProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.Review(middleware.GetActor(c), projectID, req.Approved, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project " + string(project.Status),
		"project": project,
	})
}

// ListAllOffers returns every SAFE note
func (h *AdminHandler) ListAllOffers(c *gin.Context) {
	query := database.GetDB().Preload("Project").Preload("Investor").Preload("Developer")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var notes []models.SAFENote
	if err := query.Order("created_at DESC").Find(&notes).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"safe_notes": notes})
}

// ListAllPayments returns all payments
func (h *AdminHandler) ListAllPayments(c *gin.Context) {
	var payments []models.Payment
	if err := database.GetDB().Preload("Investor").
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ListAuditLogs pages through the audit trail
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	f := services.AuditFilter{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if id, err := uuid.Parse(c.Query("actor_id")); err == nil {
		f.ActorID = &id
	}
	page := services.Page{Page: queryInt(c, "page", 1), Limit: queryInt(c, "limit", 50)}

	logs, total, err := h.auditService.List(f, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs, "total": total})
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CreateCategory creates a new category
func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	}
	if err := database.GetDB().Create(category).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Category created successfully",
		"category": category,
	})
}

func findCategory(id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := database.GetDB().First(&category, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("category")
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory updates a category
func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	categoryID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := findCategory(categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	category.Name = req.Name
	category.Description = req.Description
	category.Icon = req.Icon

	if err := database.GetDB().Save(category).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Category updated successfully",
		"category": category,
	})
}

// DeleteCategory deletes a category that has no projects
func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	categoryID, ok := paramID(c, "id")
	if !ok {
		return
	}
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.Project{}).Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count > 0 {
		respondError(c, apperr.New(apperr.CodeConflict, "Cannot delete category with existing projects"))
		return
	}

	res := db.Delete(&models.Category{}, "id = ?", categoryID)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperr.NotFound("category"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
