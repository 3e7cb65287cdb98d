package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/entitlement"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntitlementService is the server-side ledger of NDAs, credits and unlocks.
type EntitlementService struct {
	audit *AuditService
}

func NewEntitlementService(audit *AuditService) *EntitlementService {
	return &EntitlementService{audit: audit}
}

// AccessView is the answer to "may this investor see this project".
type AccessView struct {
	ProjectID uuid.UUID            `json:"project_id"`
	Decision  entitlement.Decision `json:"decision"`
	Snapshot  entitlement.Snapshot `json:"snapshot"`
}

// UnlockResult is returned by Unlock as a single unit: the record and the balance after it.
type UnlockResult struct {
	Unlock         *models.ProjectUnlock `json:"unlock"`
	ViewsRemaining int                   `json:"views_remaining"`
	Created        bool                  `json:"created"`
}

func activeMasterNDA(db *gorm.DB, investorID uuid.UUID, at time.Time) (*models.MasterNDA, error) {
	var nda models.MasterNDA
	err := db.Where("investor_id = ? AND signed_at <= ? AND (expires_at IS NULL OR expires_at > ?)", investorID, at, at).
		Order("signed_at DESC").
		First(&nda).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &nda, nil
}

func packageFor(db *gorm.DB, investorID uuid.UUID) (*models.PaymentPackage, error) {
	var pkg models.PaymentPackage
	err := db.Where("investor_id = ?", investorID).First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PaymentPackage{InvestorID: investorID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func findUnlock(db *gorm.DB, investorID, projectID uuid.UUID) (*models.ProjectUnlock, error) {
	var u models.ProjectUnlock
	err := db.Where("investor_id = ? AND project_id = ?", investorID, projectID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func addendumSigned(db *gorm.DB, investorID, projectID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&models.ProjectNDASignature{}).
		Where("investor_id = ? AND project_id = ?", investorID, projectID).
		Count(&count).Error
	return count > 0, err
}

func approvedProject(db *gorm.DB, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := db.Preload("NDAConfig").
		Where("id = ? AND status = ?", projectID, models.ProjectStatusApproved).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("project")
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *EntitlementService) snapshot(db *gorm.DB, investorID uuid.UUID, project *models.Project) (entitlement.Snapshot, error) {
	snap := entitlement.Snapshot{ProjectID: project.ID, RequireAddendum: project.RequiresAddendum()}

	unlock, err := findUnlock(db, investorID, project.ID)
	if err != nil {
		return snap, err
	}
	snap.ExistingUnlock = unlock != nil

	nda, err := activeMasterNDA(db, investorID, time.Now())
	if err != nil {
		return snap, err
	}
	snap.MasterNDAValid = nda != nil

	if snap.RequireAddendum {
		if snap.AddendumSigned, err = addendumSigned(db, investorID, project.ID); err != nil {
			return snap, err
		}
	}

	pkg, err := packageFor(db, investorID)
	if err != nil {
		return snap, err
	}
	snap.ViewsRemaining = pkg.ViewsRemaining()
	return snap, nil
}

// Access evaluates the decision function over freshly read state.
func (s *EntitlementService) Access(investorID, projectID uuid.UUID) (*AccessView, error) {
	db := database.GetDB()

	project, err := approvedProject(db, projectID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(db, investorID, project)
	if err != nil {
		return nil, err
	}
	return &AccessView{ProjectID: projectID, Decision: entitlement.Decide(snap), Snapshot: snap}, nil
}

// HasUnlock reports whether the investor already consumed a credit on the project.
func (s *EntitlementService) HasUnlock(investorID, projectID uuid.UUID) (bool, error) {
	u, err := findUnlock(database.GetDB(), investorID, projectID)
	return u != nil, err
}

// Unlock consumes one credit and records the unlock in one transaction. Repeating it for
// the same pair returns the existing record without touching the balance.
func (s *EntitlementService) Unlock(investorID, projectID uuid.UUID, ip string) (*UnlockResult, error) {
	db := database.GetDB()
	var result *UnlockResult

	err := db.Transaction(func(tx *gorm.DB) error {
		project, err := approvedProject(tx, projectID)
		if err != nil {
			return err
		}

		existing, err := findUnlock(tx, investorID, projectID)
		if err != nil {
			return err
		}
		if existing != nil {
			pkg, err := packageFor(tx, investorID)
			if err != nil {
				return err
			}
			result = &UnlockResult{Unlock: existing, ViewsRemaining: pkg.ViewsRemaining()}
			return nil
		}

		snap, err := s.snapshot(tx, investorID, project)
		if err != nil {
			return err
		}
		switch entitlement.Decide(snap).State {
		case entitlement.StateLockedNoNDA:
			return apperr.ErrNDARequired
		case entitlement.StateLockedNeedsAddendum:
			return apperr.ErrAddendumRequired
		case entitlement.StateLockedNeedsPayment:
			return apperr.ErrNoCredits
		case entitlement.StateEligible, entitlement.StateUnlocked:
		}

		// Decrement only while a credit remains.
		res := tx.Model(&models.PaymentPackage{}).
			Where("investor_id = ? AND total_views_purchased - views_used > 0", investorID).
			Updates(map[string]any{
				"views_used": gorm.Expr("views_used + ?", 1),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNoCredits
		}

		unlock := &models.ProjectUnlock{
			InvestorID: investorID,
			ProjectID:  projectID,
			PaymentID:  latestSucceededPayment(tx, investorID),
		}
		if err := tx.Create(unlock).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).
			UpdateColumn("unlock_count", gorm.Expr("unlock_count + ?", 1)).Error; err != nil {
			return err
		}

		if err := s.audit.Record(tx, AuditEntry{
			ActorID:    actor(investorID),
			Action:     models.AuditProjectUnlocked,
			EntityType: "project",
			EntityID:   projectID,
			Metadata:   map[string]any{"unlock_id": unlock.ID},
			IPAddress:  ip,
		}); err != nil {
			return err
		}

		pkg, err := packageFor(tx, investorID)
		if err != nil {
			return err
		}
		result = &UnlockResult{Unlock: unlock, ViewsRemaining: pkg.ViewsRemaining(), Created: true}
		return nil
	})
	if err != nil {
		// A concurrent unlock of the same pair won the unique index; report its record.
		if !apperr.IsCode(err, apperr.CodeNotFound) {
			if existing, ferr := findUnlock(db, investorID, projectID); ferr == nil && existing != nil {
				pkg, perr := packageFor(db, investorID)
				if perr == nil {
					return &UnlockResult{Unlock: existing, ViewsRemaining: pkg.ViewsRemaining()}, nil
				}
			}
		}
		return nil, err
	}

	if result.Created {
		logger.L().Info("project unlocked",
			zap.String("investor_id", investorID.String()),
			zap.String("project_id", projectID.String()),
			zap.Int("views_remaining", result.ViewsRemaining),
		)
	}
	return result, nil
}

func latestSucceededPayment(db *gorm.DB, investorID uuid.UUID) *uuid.UUID {
	var p models.Payment
	err := db.Select("id").
		Where("investor_id = ? AND status = ?", investorID, models.PaymentStatusSucceeded).
		Order("succeeded_at DESC").
		First(&p).Error
	if err != nil {
		return nil
	}
	return &p.ID
}

// ListUnlocks returns the investor's unlocked projects, newest first.
func (s *EntitlementService) ListUnlocks(investorID uuid.UUID) ([]models.ProjectUnlock, error) {
	var unlocks []models.ProjectUnlock
	err := database.GetDB().Where("investor_id = ?", investorID).
		Preload("Project").
		Preload("Project.Category").
		Order("unlocked_at DESC").
		Find(&unlocks).Error
	return unlocks, err
}

func (s *EntitlementService) Package(investorID uuid.UUID) (models.PackageSummary, error) {
	pkg, err := packageFor(database.GetDB(), investorID)
	if err != nil {
		return models.PackageSummary{}, err
	}
	return pkg.Summary(), nil
}

// NDAStatus summarizes the investor's master NDA.
type NDAStatus struct {
	Signed    bool       `json:"signed"`
	Valid     bool       `json:"is_valid"`
	Version   string     `json:"version,omitempty"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func ndaStatus(db *gorm.DB, investorID uuid.UUID) (NDAStatus, error) {
	var latest models.MasterNDA
	err := db.Where("investor_id = ?", investorID).Order("signed_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NDAStatus{}, nil
	}
	if err != nil {
		return NDAStatus{}, err
	}
	return NDAStatus{
		Signed:    true,
		Valid:     latest.IsValid(),
		Version:   latest.Version,
		SignedAt:  &latest.SignedAt,
		ExpiresAt: latest.ExpiresAt,
	}, nil
}

// InvestorDashboard is the entitlement snapshot shown on the investor home page.
type InvestorDashboard struct {
	Package          models.PackageSummary           `json:"package"`
	NDA              NDAStatus                       `json:"nda"`
	UnlockedProjects int64                           `json:"unlocked_projects"`
	PendingMeetings  int64                           `json:"pending_meetings"`
	UnreadMessages   int64                           `json:"unread_messages"`
	SAFENotes        map[models.SAFENoteStatus]int64 `json:"safe_notes"`
}

func (s *EntitlementService) Dashboard(investorID uuid.UUID) (*InvestorDashboard, error) {
	db := database.GetDB()
	d := &InvestorDashboard{SAFENotes: map[models.SAFENoteStatus]int64{}}

	pkg, err := packageFor(db, investorID)
	if err != nil {
		return nil, err
	}
	d.Package = pkg.Summary()

	if d.NDA, err = ndaStatus(db, investorID); err != nil {
		return nil, err
	}
	if err := db.Model(&models.ProjectUnlock{}).Where("investor_id = ?", investorID).Count(&d.UnlockedProjects).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.MeetingRequest{}).
		Where("investor_id = ? AND status = ?", investorID, models.MeetingStatusPending).
		Count(&d.PendingMeetings).Error; err != nil {
		return nil, err
	}
	if d.UnreadMessages, err = unreadCount(db, investorID); err != nil {
		return nil, err
	}

	var rows []struct {
		Status models.SAFENoteStatus
		Count  int64
	}
	if err := db.Model(&models.SAFENote{}).
		Select("status, COUNT(*) as count").
		Where("investor_id = ?", investorID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		d.SAFENotes[r.Status] = r.Count
	}
	return d, nil
}
