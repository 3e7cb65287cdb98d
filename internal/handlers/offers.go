package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

// OfferHandler serves SAFE note offers through their signature lifecycle.
type OfferHandler struct {
	safeService *services.SAFENoteService
}

func NewOfferHandler(safeService *services.SAFENoteService) *OfferHandler {
	return &OfferHandler{safeService: safeService}
}

// OfferRequest represents SAFE offer input
type OfferRequest struct {
	ProjectID        uuid.UUID `json:"project_id" binding:"required"`
	InvestmentAmount float64   `json:"investment_amount"`
	ValuationCap     *float64  `json:"valuation_cap"`
	DiscountRate     *float64  `json:"discount_rate"`
	IsMFN            bool      `json:"is_mfn"`
	ProRataRights    bool      `json:"pro_rata_rights"`
	Notes            string    `json:"notes"`
}

func (r OfferRequest) input() services.OfferInput {
	return services.OfferInput{
		ProjectID: r.ProjectID,
		Notes:     r.Notes,
		Terms: models.SAFETerms{
			InvestmentAmount: r.InvestmentAmount,
			ValuationCap:     r.ValuationCap,
			DiscountRate:     r.DiscountRate,
			IsMFN:            r.IsMFN,
			ProRataRights:    r.ProRataRights,
		},
	}
}

// CreateOffer drafts a SAFE note (investor only)
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	note, err := h.safeService.Create(userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Offer drafted",
		"safe_note": note,
	})
}

// UpdateOffer edits a draft
func (h *OfferHandler) UpdateOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	note, err := h.safeService.Update(userID, noteID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"safe_note": note})
}

// GetMyOffers returns notes made by the investor, received by the developer, or all for admins
func (h *OfferHandler) GetMyOffers(c *gin.Context) {
	f := services.SAFEFilter{Status: models.SAFENoteStatus(c.Query("status"))}
	if pid, err := uuid.Parse(c.Query("project_id")); err == nil {
		f.ProjectID = &pid
	}

	notes, err := h.safeService.List(middleware.GetActor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"safe_notes": notes, "total": len(notes)})
}

// GetOffer returns one note the caller is party to
func (h *OfferHandler) GetOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	note, err := h.safeService.Get(middleware.GetActor(c), noteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"safe_note": note})
}

// SendOffer sends a draft to the founder
func (h *OfferHandler) SendOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	note, err := h.safeService.Send(middleware.GetActor(c), noteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Offer sent", "safe_note": note})
}

type SignOfferRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// SignOffer records the caller's signature; the role decides which one
func (h *OfferHandler) SignOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SignOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	note, err := h.safeService.Sign(middleware.GetActor(c), noteID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SAFE note signed", "safe_note": note})
}

// ExecuteOffer finalizes a fully signed note (admin only)
func (h *OfferHandler) ExecuteOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	note, err := h.safeService.Execute(middleware.GetActor(c), noteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SAFE note executed", "safe_note": note})
}

type CancelOfferRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelOffer ends a note before execution
func (h *OfferHandler) CancelOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CancelOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	note, err := h.safeService.Cancel(middleware.GetActor(c), noteID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SAFE note cancelled", "safe_note": note})
}

// DownloadOffer renders the note as a PDF
func (h *OfferHandler) DownloadOffer(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	pdf, note, err := h.safeService.PDF(middleware.GetActor(c), noteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="safe_%s.pdf"`, note.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
