package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
)

func executedNote(t *testing.T, f *safeFixture, amount float64) *models.SAFENote {
	t.Helper()
	note, err := f.svc.Create(f.investor.ID, OfferInput{
		ProjectID: f.project.ID,
		Terms:     models.SAFETerms{InvestmentAmount: amount, IsMFN: true},
	})
	require.NoError(t, err)
	_, err = f.svc.Send(f.asInvestor(), note.ID)
	require.NoError(t, err)
	_, err = f.svc.Sign(f.asInvestor(), note.ID, "Investor")
	require.NoError(t, err)
	note, err = f.svc.Sign(f.asDeveloper(), note.ID, "Founder")
	require.NoError(t, err)
	require.Equal(t, models.SAFEStatusExecuted, note.Status)
	return note
}

func TestMarkPaidOnce(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	svc := NewCommissionService(NewAuditService())
	admin := createUser(t, models.RoleAdmin)
	note := executedNote(t, f, 100000)

	var c models.Commission
	require.NoError(t, database.GetDB().First(&c, "safe_note_id = ?", note.ID).Error)

	paid, err := svc.MarkPaid(admin.ID, c.ID, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.PaidBy)
	assert.Equal(t, admin.ID, *paid.PaidBy)

	var stored models.SAFENote
	require.NoError(t, database.GetDB().First(&stored, "id = ?", note.ID).Error)
	assert.True(t, stored.CommissionPaid)

	_, err = svc.MarkPaid(admin.ID, c.ID, "10.0.0.9")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
	assert.EqualValues(t, 1, countRows(t, &models.AuditLog{}, "action = ?", models.AuditCommissionPaid))

	_, err = svc.MarkPaid(admin.ID, uuid.New(), "")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestCommissionSummaries(t *testing.T) {
	f := newSAFEFixture(t, testConfig())
	svc := NewCommissionService(NewAuditService())
	admin := createUser(t, models.RoleAdmin)

	for _, amount := range []float64{100000, 200000, 40000} {
		executedNote(t, f, amount)
	}
	var first models.Commission
	require.NoError(t, database.GetDB().Where("investment_amount = ?", 200000).First(&first).Error)
	_, err := svc.MarkPaid(admin.ID, first.ID, "")
	require.NoError(t, err)

	global, err := svc.GlobalSummary()
	require.NoError(t, err)
	assert.Equal(t, models.ScopeGlobal, global.Scope)
	assert.Equal(t, 3, global.Count)
	assert.Equal(t, 10000.0, global.TotalEarned)
	assert.Equal(t, 7000.0, global.PendingAmount)
	assert.InDelta(t, 0.05, global.AverageRate, 1e-9)

	page, err := svc.List("", Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, models.ScopePage, page.Summary.Scope)
	assert.Equal(t, 2, page.Summary.Count)
	assert.Equal(t, models.SummarizePage(page.Items), page.Summary)

	pending, err := svc.List(models.CommissionStatusPending, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending.Total)
	assert.Equal(t, 7000.0, pending.Summary.PendingAmount)
	assert.Zero(t, pending.Summary.TotalEarned)
}

func TestProjectReview(t *testing.T) {
	setupDB(t)
	notifier := &fakeNotifier{}
	svc := NewProjectService(NewAuditService(), notifier)
	admin := Actor{ID: createUser(t, models.RoleAdmin).ID, Role: models.RoleAdmin}
	developer := createUser(t, models.RoleDeveloper)

	pending := createProject(t, developer, projectOpts{status: models.ProjectStatusPending})
	_, err := svc.Review(admin, pending.ID, false, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))

	p, err := svc.Review(admin, pending.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusApproved, p.Status)
	require.NotNil(t, p.ApprovedBy)
	assert.Equal(t, admin.ID, *p.ApprovedBy)
	assert.Len(t, notifier.to(developer.ID), 1)

	_, err = svc.Review(admin, pending.ID, false, "late")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))

	other := createProject(t, developer, projectOpts{status: models.ProjectStatusPending})
	p, err = svc.Review(admin, other.ID, false, "Missing financials")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusRejected, p.Status)
	assert.Equal(t, "Missing financials", p.RejectionReason)

	logs, total, err := NewAuditService().List(AuditFilter{Action: string(models.AuditProjectReviewed)}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)
}
