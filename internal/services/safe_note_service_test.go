package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
)

type safeFixture struct {
	svc       *SAFENoteService
	notifier  *fakeNotifier
	store     *memStore
	investor  *models.User
	developer *models.User
	project   *models.Project
}

func newSAFEFixture(t *testing.T, cfg *config.Config) *safeFixture {
	t.Helper()
	setupDB(t)
	f := &safeFixture{notifier: &fakeNotifier{}, store: newMemStore()}
	f.svc = NewSAFENoteService(cfg, NewAuditService(), NewDocumentService(cfg), NewStorageServiceWith(f.store), f.notifier)
	f.investor = createUser(t, models.RoleInvestor)
	f.developer = createUser(t, models.RoleDeveloper)
	f.project = createProject(t, f.developer, projectOpts{min: 10000, max: 500000})

	signNDA(t, f.investor, time.Now().AddDate(1, 0, 0))
	giveCredits(t, f.investor, 4, 0)
	_, err := NewEntitlementService(NewAuditService()).Unlock(f.investor.ID, f.project.ID, "")
	require.NoError(t, err)
	return f
}

func (f *safeFixture) asInvestor() Actor {
	return Actor{ID: f.investor.ID, Role: models.RoleInvestor, IP: "10.0.0.1"}
}

func (f *safeFixture) asDeveloper() Actor {
	return Actor{ID: f.developer.ID, Role: models.RoleDeveloper, IP: "10.0.0.2"}
}

func ptr(v float64) *float64 { return &v }

func (f *safeFixture) offer(t *testing.T) *models.SAFENote {
	t.Helper()
	note, err := f.svc.Create(f.investor.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: 100000, ValuationCap: ptr(5000000), DiscountRate: ptr(20)},
		Notes:     "Happy to lead the round",
	})
	require.NoError(t, err)
	return note
}

func TestSAFELifecycleExecutesWithCommission(t *testing.T) {
	f := newSAFEFixture(t, testConfig())

	note := f.offer(t)
	assert.Equal(t, models.SAFEStatusDraft, note.Status)
	assert.Equal(t, f.developer.ID, note.DeveloperID)

	note, err := f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusSent, note.Status)
	assert.NotNil(t, note.SentAt)
	assert.Len(t, f.notifier.to(f.developer.ID), 1)

	_, err = f.svc.Sign(f.asDeveloper(), note.ID, "Founder")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState), "founder cannot sign first")

	note, err = f.svc.Sign(f.asInvestor(), note.ID, "Investor")
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusSignedInvestor, note.Status)

	note, err = f.svc.Sign(f.asDeveloper(), note.ID, "Founder")
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusExecuted, note.Status)
	assert.NotNil(t, note.ExecutedAt)
	assert.Equal(t, 5000.0, note.CommissionAmount)

	var commission models.Commission
	require.NoError(t, database.GetDB().First(&commission, "safe_note_id = ?", note.ID).Error)
	assert.Equal(t, models.ComputeCommission(100000, 0.05), commission.Amount)
	assert.Equal(t, models.CommissionStatusPending, commission.Status)
	assert.Equal(t, f.project.ID, commission.ProjectID)

	require.NotEmpty(t, note.DocumentPath)
	assert.True(t, f.store.has(note.DocumentPath))

	_, err = f.svc.Cancel(f.asInvestor(), note.ID, "changed my mind")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
	assert.EqualValues(t, 4, countRows(t, &models.AuditLog{}, "entity_id = ? AND action = ?", note.ID, models.AuditSAFETransition))
}

func TestSAFEManualExecute(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExecuteSAFE = false
	f := newSAFEFixture(t, cfg)
	admin := createUser(t, models.RoleAdmin)

	note := f.offer(t)
	_, err := f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)
	_, err = f.svc.Sign(f.asInvestor(), note.ID, "Investor")
	require.NoError(t, err)
	note, err = f.svc.Sign(f.asDeveloper(), note.ID, "Founder")
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusSignedFounder, note.Status)
	assert.EqualValues(t, 0, countRows(t, &models.Commission{}, "safe_note_id = ?", note.ID))

	_, err = f.svc.Execute(f.asDeveloper(), note.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	note, err = f.svc.Execute(Actor{ID: admin.ID, Role: models.RoleAdmin}, note.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusExecuted, note.Status)
	assert.EqualValues(t, 1, countRows(t, &models.Commission{}, "safe_note_id = ?", note.ID))
}

func TestSAFECreateValidation(t *testing.T) {
	f := newSAFEFixture(t, testConfig())

	_, err := f.svc.Create(f.investor.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: 5000, DiscountRate: ptr(20)},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))

	_, err = f.svc.Create(f.investor.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: 50000},
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid), "needs cap, discount or MFN")

	_, err = f.svc.Create(f.investor.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: 50000, IsMFN: true},
	})
	assert.NoError(t, err)
}

func TestSAFERequiresUnlock(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	stranger := createUser(t, models.RoleInvestor)

	_, err := f.svc.Create(stranger.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: 50000, IsMFN: true},
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
}

func TestSAFEDraftHiddenFromFounder(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	note := f.offer(t)

	_, err := f.svc.Get(f.asDeveloper(), note.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	notes, err := f.svc.List(f.asDeveloper(), SAFEFilter{})
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)
	notes, err = f.svc.List(f.asDeveloper(), SAFEFilter{})
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	other := createUser(t, models.RoleInvestor)
	_, err = f.svc.Get(Actor{ID: other.ID, Role: models.RoleInvestor}, note.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestSAFEUpdateOnlyDraft(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	note := f.offer(t)

	updated, err := f.svc.Update(f.investor.ID, note.ID, OfferInput{
		Terms: models.SAFETerms{InvestmentAmount: 200000, ValuationCap: ptr(8000000)},
		Notes: "Revised",
	})
	require.NoError(t, err)
	assert.Equal(t, 200000.0, updated.InvestmentAmount)
	assert.Equal(t, "Revised", updated.Notes)

	_, err = f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(f.investor.ID, note.ID, OfferInput{Terms: models.SAFETerms{InvestmentAmount: 300000, IsMFN: true}})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestSAFECancel(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	note := f.offer(t)
	_, err := f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.asDeveloper(), note.ID, "  ")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))

	note, err = f.svc.Cancel(f.asDeveloper(), note.ID, "Round closed")
	require.NoError(t, err)
	assert.Equal(t, models.SAFEStatusCancelled, note.Status)
	assert.Equal(t, "Round closed", note.CancellationReason)
	require.NotNil(t, note.CancelledBy)
	assert.Equal(t, f.developer.ID, *note.CancelledBy)
	assert.NotEmpty(t, f.notifier.to(f.investor.ID))

	_, err = f.svc.Sign(f.asInvestor(), note.ID, "Investor")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestSAFEPDF(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	note := f.offer(t)

	pdf, got, err := f.svc.PDF(f.asInvestor(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
