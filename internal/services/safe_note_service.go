package services

import (
	"context"
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
	"gorm.io/gorm/clause"
)

type SAFENoteService struct {
	config   *config.Config
	audit    *AuditService
	docs     *DocumentService
	storage  *StorageService
	notifier Notifier
}

func NewSAFENoteService(cfg *config.Config, audit *AuditService, docs *DocumentService, storage *StorageService, notifier Notifier) *SAFENoteService {
	return &SAFENoteService{config: cfg, audit: audit, docs: docs, storage: storage, notifier: notifier}
}

// OfferInput is the investor's offer.
type OfferInput struct {
	ProjectID uuid.UUID
	Terms     models.SAFETerms
	Notes     string
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
	IP   string
}

func (a Actor) canView(n *models.SAFENote) bool {
	return a.Role == models.RoleAdmin || n.InvestorID == a.ID || n.DeveloperID == a.ID
}

func invalidOffer(err error) error {
	var v models.Violations
	if errors.As(err, &v) {
		return apperr.Wrap(err, apperr.CodeInvalid, v.Error()).WithMeta("violations", []models.Violation(v))
	}
	return err
}

func loadNote(db *gorm.DB, id uuid.UUID) (*models.SAFENote, error) {
	var note models.SAFENote
	err := db.Preload("Project").Preload("Investor").Preload("Developer").First(&note, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("SAFE note")
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Create drafts an offer on a project the investor has unlocked.
func (s *SAFENoteService) Create(investorID uuid.UUID, in OfferInput) (*models.SAFENote, error) {
	db := database.GetDB()

	project, err := approvedProject(db, in.ProjectID)
	if err != nil {
		return nil, err
	}
	unlocked, err := findUnlock(db, investorID, project.ID)
	if err != nil {
		return nil, err
	}
	if unlocked == nil {
		return nil, apperr.New(apperr.CodeForbidden, "Unlock the project before making an offer")
	}
	lo, hi := project.InvestmentRange()
	if err := models.ValidateOffer(in.Terms, lo, hi); err != nil {
		return nil, invalidOffer(err)
	}

	note := &models.SAFENote{
		InvestorID:  investorID,
		ProjectID:   project.ID,
		DeveloperID: project.DeveloperID,
		Notes:       in.Notes,
		Status:      models.SAFEStatusDraft,
	}
	note.SetTerms(in.Terms)
	if err := db.Create(note).Error; err != nil {
		return nil, err
	}
	return loadNote(db, note.ID)
}

// Update replaces the terms of a draft.
func (s *SAFENoteService) Update(investorID, noteID uuid.UUID, in OfferInput) (*models.SAFENote, error) {
	db := database.GetDB()
	note, err := loadNote(db, noteID)
	if err != nil {
		return nil, err
	}
	if note.InvestorID != investorID {
		return nil, apperr.ErrForbidden
	}
	if note.Status != models.SAFEStatusDraft {
		return nil, apperr.New(apperr.CodeInvalidState, "Only draft offers can be edited")
	}
	if err := models.ValidateOffer(in.Terms, note.Project.MinimumInvestment, note.Project.MaximumInvestment); err != nil {
		return nil, invalidOffer(err)
	}

	note.SetTerms(in.Terms)
	note.Notes = in.Notes
	res := db.Model(note).Where("status = ?", models.SAFEStatusDraft).
		Select("investment_amount", "valuation_cap", "discount_rate", "is_mfn", "pro_rata_rights", "notes").
		Updates(note)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.CodeConflict, "Offer changed concurrently")
	}
	return loadNote(db, noteID)
}

// transition applies ev only if nobody else moved the note since it was read.
func (s *SAFENoteService) transition(tx *gorm.DB, note *models.SAFENote, ev models.SAFEEvent, by Actor) error {
	from := note.Status
	if err := note.Apply(ev, time.Now()); err != nil {
		return err
	}
	res := tx.Model(note).Where("status = ?", from).Select("*").Omit(clause.Associations).Updates(note)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeConflict, "SAFE note changed concurrently")
	}
	return s.audit.Record(tx, AuditEntry{
		ActorID:    actor(by.ID),
		Action:     models.AuditSAFETransition,
		EntityType: "safe_note",
		EntityID:   note.ID,
		Metadata:   map[string]any{"from": from, "to": note.Status, "event": ev},
		IPAddress:  by.IP,
	})
}

// Send offers a draft to the founder.
func (s *SAFENoteService) Send(by Actor, noteID uuid.UUID) (*models.SAFENote, error) {
	db := database.GetDB()
	note, err := loadNote(db, noteID)
	if err != nil {
		return nil, err
	}
	if note.InvestorID != by.ID {
		return nil, apperr.ErrForbidden
	}
	if err := models.ValidateOffer(note.Terms(), note.Project.MinimumInvestment, note.Project.MaximumInvestment); err != nil {
		return nil, invalidOffer(err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, note, models.SAFEEventSend, by)
	}); err != nil {
		return nil, err
	}

	s.notifier.Notify(note.Developer, offerSentNotice(note, note.Project, note.Investor))
	return note, nil
}

// Sign records the caller's signature. The investor signs a sent note first, then the
// founder countersigns. With AUTO_EXECUTE_SAFE the founder's signature executes the note.
func (s *SAFENoteService) Sign(by Actor, noteID uuid.UUID, signature string) (*models.SAFENote, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Signature is required")
	}

	db := database.GetDB()
	note, err := loadNote(db, noteID)
	if err != nil {
		return nil, err
	}

	var (
		ev     models.SAFEEvent
		signer *models.User
		notify *models.User
	)
	switch by.ID {
	case note.InvestorID:
		ev, signer, notify = models.SAFEEventInvestorSign, note.Investor, note.Developer
		note.InvestorSignature = signature
		note.InvestorIP = by.IP
	case note.DeveloperID:
		ev, signer, notify = models.SAFEEventFounderSign, note.Developer, note.Investor
		note.FounderSignature = signature
		note.FounderIP = by.IP
	default:
		return nil, apperr.ErrForbidden
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, note, ev, by)
	}); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify, offerSignedNotice(note, note.Project, signer))

	if ev == models.SAFEEventFounderSign && s.config.AutoExecuteSAFE {
		return s.execute(by, note)
	}
	return note, nil
}

// Execute finalizes a fully signed note. Admins call it when auto-execution is off.
func (s *SAFENoteService) Execute(by Actor, noteID uuid.UUID) (*models.SAFENote, error) {
	if by.Role != models.RoleAdmin {
		return nil, apperr.ErrForbidden
	}
	note, err := loadNote(database.GetDB(), noteID)
	if err != nil {
		return nil, err
	}
	return s.execute(by, note)
}

// execute moves the note to executed and creates its commission in the same transaction.
func (s *SAFENoteService) execute(by Actor, note *models.SAFENote) (*models.SAFENote, error) {
	db := database.GetDB()
	rate := s.config.CommissionRate

	err := db.Transaction(func(tx *gorm.DB) error {
		note.CommissionAmount = models.ComputeCommission(note.InvestmentAmount, rate)
		if err := s.transition(tx, note, models.SAFEEventExecute, by); err != nil {
			return err
		}
		return tx.Create(&models.Commission{
			SAFENoteID:       note.ID,
			InvestorID:       note.InvestorID,
			DeveloperID:      note.DeveloperID,
			ProjectID:        note.ProjectID,
			InvestmentAmount: note.InvestmentAmount,
			Rate:             rate,
			Amount:           note.CommissionAmount,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("safe note executed",
		zap.String("safe_note_id", note.ID.String()),
		zap.Float64("investment_amount", note.InvestmentAmount),
		zap.Float64("commission", note.CommissionAmount),
	)

	s.storeDocument(note)
	s.notifier.Notify(note.Investor, safeExecutedNotice(note, note.Project))
	s.notifier.Notify(note.Developer, safeExecutedNotice(note, note.Project))
	return note, nil
}

// storeDocument keeps a copy of the executed PDF. Failure leaves DocumentPath empty and the
// PDF is rendered on demand instead.
func (s *SAFENoteService) storeDocument(note *models.SAFENote) {
	if s.storage == nil {
		return
	}
	pdf, err := s.docs.SAFENotePDF(note, note.Investor, note.Developer, note.Project)
	if err != nil {
		logger.L().Warn("render safe note pdf", zap.String("safe_note_id", note.ID.String()), zap.Error(err))
		return
	}
	key, err := s.storage.SaveDocument(context.Background(), "safe_note", note.ID, pdf)
	if err != nil {
		logger.L().Warn("store safe note pdf", zap.String("safe_note_id", note.ID.String()), zap.Error(err))
		return
	}
	note.DocumentPath = key
	database.GetDB().Model(&models.SAFENote{}).Where("id = ?", note.ID).Update("document_path", key)
}

// Cancel ends the note. Either party may cancel before execution; a reason is required.
func (s *SAFENoteService) Cancel(by Actor, noteID uuid.UUID, reason string) (*models.SAFENote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.CodeInvalid, "Cancellation reason is required")
	}

	db := database.GetDB()
	note, err := loadNote(db, noteID)
	if err != nil {
		return nil, err
	}
	if note.InvestorID != by.ID && note.DeveloperID != by.ID && by.Role != models.RoleAdmin {
		return nil, apperr.ErrForbidden
	}

	note.CancellationReason = reason
	note.CancelledBy = &by.ID
	if err := db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, note, models.SAFEEventCancel, by)
	}); err != nil {
		return nil, err
	}

	other := note.Developer
	if by.ID == note.DeveloperID {
		other = note.Investor
	}
	s.notifier.Notify(other, safeCancelledNotice(note, note.Project))
	return note, nil
}

// SAFEFilter narrows List.
type SAFEFilter struct {
	Status    models.SAFENoteStatus
	ProjectID *uuid.UUID
}

// List returns notes visible to the caller: their own as investor or founder, all for admins.
func (s *SAFENoteService) List(by Actor, f SAFEFilter) ([]models.SAFENote, error) {
	q := database.GetDB().Preload("Project").Preload("Investor").Preload("Developer")
	switch by.Role {
	case models.RoleInvestor:
		q = q.Where("investor_id = ?", by.ID)
	case models.RoleDeveloper:
		q = q.Where("developer_id = ? AND status <> ?", by.ID, models.SAFEStatusDraft)
	case models.RoleAdmin:
	default:
		return nil, apperr.ErrForbidden
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}

	var notes []models.SAFENote
	err := q.Order("created_at DESC").Find(&notes).Error
	return notes, err
}

func (s *SAFENoteService) Get(by Actor, noteID uuid.UUID) (*models.SAFENote, error) {
	note, err := loadNote(database.GetDB(), noteID)
	if err != nil {
		return nil, err
	}
	if !by.canView(note) {
		return nil, apperr.NotFound("SAFE note")
	}
	if by.ID == note.DeveloperID && note.Status == models.SAFEStatusDraft {
		return nil, apperr.NotFound("SAFE note")
	}
	return note, nil
}

// PDF renders the note as it stands.
func (s *SAFENoteService) PDF(by Actor, noteID uuid.UUID) ([]byte, *models.SAFENote, error) {
	note, err := s.Get(by, noteID)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.docs.SAFENotePDF(note, note.Investor, note.Developer, note.Project)
	if err != nil {
		return nil, nil, err
	}
	return pdf, note, nil
}
