package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
}

func NewCommissionHandler(commissionService *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissionService: commissionService}
}

// ListCommissions returns one page; its summary covers only that page
func (h *CommissionHandler) ListCommissions(c *gin.Context) {
	page := services.Page{Page: queryInt(c, "page", 1), Limit: queryInt(c, "limit", 20)}
	result, err := h.commissionService.List(models.CommissionStatus(c.Query("status")), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSummary aggregates every commission
func (h *CommissionHandler) GetSummary(c *gin.Context) {
	summary, err := h.commissionService.GlobalSummary()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *CommissionHandler) MarkPaid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)
	commission, err := h.commissionService.MarkPaid(adminID, id, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Commission marked paid", "commission": commission})
}
