package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

type InvestorHandler struct {
	entitlementService *services.EntitlementService
}

func NewInvestorHandler(entitlementService *services.EntitlementService) *InvestorHandler {
	return &InvestorHandler{entitlementService: entitlementService}
}

// GetDashboard returns the investor's package, NDA and activity counts
func (h *InvestorHandler) GetDashboard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	d, err := h.entitlementService.Dashboard(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": d})
}

// GetUnlockedProjects lists the projects the investor has unlocked
func (h *InvestorHandler) GetUnlockedProjects(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	unlocks, err := h.entitlementService.ListUnlocks(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	type unlockedProject struct {
		models.ProjectUnlock
		Project *models.ProjectPublicInfo `json:"project,omitempty"`
	}
	out := make([]unlockedProject, 0, len(unlocks))
	for _, u := range unlocks {
		item := unlockedProject{ProjectUnlock: u}
		if u.Project != nil {
			info := u.Project.ToPublicInfo()
			item.Project = &info
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"unlocks": out, "total": len(out)})
}
