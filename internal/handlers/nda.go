package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/services"
)

type NDAHandler struct {
	authService     *services.AuthService
	ndaService      *services.NDAService
	documentService *services.DocumentService
}

func NewNDAHandler(authService *services.AuthService, ndaService *services.NDAService, documentService *services.DocumentService) *NDAHandler {
	return &NDAHandler{
		authService:     authService,
		ndaService:      ndaService,
		documentService: documentService,
	}
}

// GetNDATemplate returns the NDA template content
func (h *NDAHandler) GetNDATemplate(c *gin.Context) {
	t := h.ndaService.Template()
	c.JSON(http.StatusOK, gin.H{
		"template":        t.Content,
		"version":         t.Version,
		"document_hash":   t.DocumentHash,
		"validity_months": t.ValidityMonths,
	})
}

// GetNDAStatus returns the current user's NDA status
func (h *NDAHandler) GetNDAStatus(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	status, err := h.ndaService.Status(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SignRequest is the signing form shared by the master NDA and addenda.
type SignRequest struct {
	SignatureData string `json:"signature_data" binding:"required"` // base64 signature image
	SignedName    string `json:"signed_name" binding:"required"`
	Agreed        bool   `json:"agreed"`
}

func (r SignRequest) signature(c *gin.Context) services.Signature {
	return services.Signature{
		SignedName:    r.SignedName,
		SignatureData: r.SignatureData,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.GetHeader("User-Agent"),
	}
}

func bindSignature(c *gin.Context) (SignRequest, bool) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	if !req.Agreed {
		respondError(c, apperr.New(apperr.CodeInvalid, "You must agree to the NDA terms"))
		return req, false
	}
	return req, true
}

// SignNDA handles master NDA signing
func (h *NDAHandler) SignNDA(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	req, ok := bindSignature(c)
	if !ok {
		return
	}

	nda, err := h.ndaService.SignMaster(userID, req.signature(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "NDA signed successfully",
		"nda_id":     nda.ID,
		"version":    nda.Version,
		"signed_at":  nda.SignedAt,
		"expires_at": nda.ExpiresAt,
	})
}

// DownloadNDA renders the latest signed master NDA as a PDF
func (h *NDAHandler) DownloadNDA(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	nda, err := h.ndaService.LatestMaster(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := h.documentService.MasterNDAPDF(nda, user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="nda_%s.pdf"`, nda.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetAddendum returns the project's addendum and whether the caller signed it
func (h *NDAHandler) GetAddendum(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.ndaService.Addendum(userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addendum": view})
}

// SignAddendum signs the project's addendum against the caller's valid master NDA
func (h *NDAHandler) SignAddendum(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)
	req, ok := bindSignature(c)
	if !ok {
		return
	}

	sig, err := h.ndaService.SignAddendum(userID, projectID, req.signature(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Addendum signed successfully",
		"signature": sig,
	})
}

// DownloadAddendum renders the caller's addendum signature as a PDF
func (h *NDAHandler) DownloadAddendum(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	sig, project, err := h.ndaService.AddendumSignature(userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	pdf, err := h.documentService.AddendumPDF(sig, project, user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="addendum_%s.pdf"`, projectID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
