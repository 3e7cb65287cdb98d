package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NDAService struct {
	config *config.Config
	audit  *AuditService
}

func NewNDAService(cfg *config.Config, audit *AuditService) *NDAService {
	return &NDAService{config: cfg, audit: audit}
}

// Signature is what the investor submits when signing.
type Signature struct {
	SignedName    string
	SignatureData string
	IPAddress     string
	UserAgent     string
}

type NDATemplate struct {
	Version        string `json:"version"`
	Content        string `json:"content"`
	DocumentHash   string `json:"document_hash"`
	ValidityMonths int    `json:"validity_months"`
}

// AddendumView is a project's addendum as shown to one investor.
type AddendumView struct {
	ProjectID      uuid.UUID  `json:"project_id"`
	ProjectTitle   string     `json:"project_title"`
	Required       bool       `json:"required"`
	Preamble       string     `json:"preamble"`
	CustomClauses  string     `json:"custom_clauses"`
	ClausesHash    string     `json:"clauses_hash"`
	MasterNDAValid bool       `json:"master_nda_valid"`
	MasterNDAID    *uuid.UUID `json:"master_nda_id,omitempty"`
	MasterVersion  string     `json:"master_nda_version,omitempty"`
	Signed         bool       `json:"signed"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (s *NDAService) Template() NDATemplate {
	return NDATemplate{
		Version:        s.config.NDAVersion,
		Content:        models.NDATemplateContent,
		DocumentHash:   hashText(models.NDATemplateContent),
		ValidityMonths: s.config.NDAValidityMonths,
	}
}

func (s *NDAService) Status(investorID uuid.UUID) (NDAStatus, error) {
	return ndaStatus(database.GetDB(), investorID)
}

// SignMaster records a master NDA signature. A second signature is only accepted once
// the previous one has expired.
func (s *NDAService) SignMaster(investorID uuid.UUID, sig Signature) (*models.MasterNDA, error) {
	if strings.TrimSpace(sig.SignedName) == "" || sig.SignatureData == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Signed name and signature are required")
	}

	var nda *models.MasterNDA
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		active, err := activeMasterNDA(tx, investorID, now)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.New(apperr.CodeConflict, "You already have a valid NDA on file")
		}

		expires := now.AddDate(0, s.config.NDAValidityMonths, 0)
		nda = &models.MasterNDA{
			InvestorID:    investorID,
			Version:       s.config.NDAVersion,
			SignatureData: sig.SignatureData,
			SignedName:    strings.TrimSpace(sig.SignedName),
			IPAddress:     sig.IPAddress,
			UserAgent:     sig.UserAgent,
			DocumentHash:  hashText(models.NDATemplateContent),
			SignedAt:      now,
			ExpiresAt:     &expires,
		}
		if err := tx.Create(nda).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(investorID),
			Action:     models.AuditNDASigned,
			EntityType: "master_nda",
			EntityID:   nda.ID,
			Metadata:   map[string]any{"version": nda.Version},
			IPAddress:  sig.IPAddress,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("master nda signed", zap.String("investor_id", investorID.String()), zap.String("version", nda.Version))
	return nda, nil
}

// LatestMaster returns the most recent master NDA, valid or not.
func (s *NDAService) LatestMaster(investorID uuid.UUID) (*models.MasterNDA, error) {
	var nda models.MasterNDA
	err := database.GetDB().Where("investor_id = ?", investorID).Order("signed_at DESC").First(&nda).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("NDA")
	}
	if err != nil {
		return nil, err
	}
	return &nda, nil
}

func (s *NDAService) Addendum(investorID, projectID uuid.UUID) (*AddendumView, error) {
	db := database.GetDB()

	project, err := approvedProject(db, projectID)
	if err != nil {
		return nil, err
	}

	view := &AddendumView{
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		Required:     project.RequiresAddendum(),
		Preamble:     models.AddendumPreamble,
	}
	if project.NDAConfig != nil {
		view.CustomClauses = project.NDAConfig.CustomClauses
		view.ClausesHash = hashText(project.NDAConfig.CustomClauses)
	}

	master, err := activeMasterNDA(db, investorID, time.Now())
	if err != nil {
		return nil, err
	}
	if master != nil {
		view.MasterNDAValid = true
		view.MasterNDAID = &master.ID
		view.MasterVersion = master.Version
	}

	var sig models.ProjectNDASignature
	err = db.Where("investor_id = ? AND project_id = ?", investorID, projectID).First(&sig).Error
	switch {
	case err == nil:
		view.Signed = true
		view.SignedAt = &sig.SignedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return view, nil
}

// SignAddendum links a project addendum signature to the investor's valid master NDA.
func (s *NDAService) SignAddendum(investorID, projectID uuid.UUID, sig Signature) (*models.ProjectNDASignature, error) {
	if strings.TrimSpace(sig.SignedName) == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Signed name is required")
	}

	var out *models.ProjectNDASignature
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		project, err := approvedProject(tx, projectID)
		if err != nil {
			return err
		}
		if !project.RequiresAddendum() {
			return apperr.New(apperr.CodeInvalid, "This project does not require an addendum")
		}

		master, err := activeMasterNDA(tx, investorID, time.Now())
		if err != nil {
			return err
		}
		if master == nil {
			return apperr.ErrNDARequired
		}

		signed, err := addendumSigned(tx, investorID, projectID)
		if err != nil {
			return err
		}
		if signed {
			return apperr.New(apperr.CodeConflict, "Addendum already signed")
		}

		out = &models.ProjectNDASignature{
			InvestorID:    investorID,
			ProjectID:     projectID,
			MasterNDAID:   master.ID,
			SignedName:    strings.TrimSpace(sig.SignedName),
			SignatureData: sig.SignatureData,
			ClausesHash:   hashText(project.NDAConfig.CustomClauses),
			IPAddress:     sig.IPAddress,
		}
		if err := tx.Create(out).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:    actor(investorID),
			Action:     models.AuditAddendumSigned,
			EntityType: "project",
			EntityID:   projectID,
			Metadata:   map[string]any{"master_nda_id": master.ID},
			IPAddress:  sig.IPAddress,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddendumSignature returns the investor's signature with its project, for PDF rendering.
func (s *NDAService) AddendumSignature(investorID, projectID uuid.UUID) (*models.ProjectNDASignature, *models.Project, error) {
	db := database.GetDB()
	var sig models.ProjectNDASignature
	if err := db.Where("investor_id = ? AND project_id = ?", investorID, projectID).First(&sig).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("addendum signature")
		}
		return nil, nil, err
	}
	var project models.Project
	if err := db.Preload("NDAConfig").First(&project, "id = ?", projectID).Error; err != nil {
		return nil, nil, err
	}
	return &sig, &project, nil
}
