package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/entitlement"
	"github.com/ukuvago/angelmatch/internal/models"
)

func TestUnlockConsumesOneCredit(t *testing.T) {
	setupDB(t)
	svc := NewEntitlementService(NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	project := createProject(t, createUser(t, models.RoleDeveloper), projectOpts{})
	signNDA(t, investor, time.Now().AddDate(1, 0, 0))
	giveCredits(t, investor, 4, 0)

	res, err := svc.Unlock(investor.ID, project.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 3, res.ViewsRemaining)
	assert.Equal(t, 3, packageOf(t, investor).ViewsRemaining())
	assert.EqualValues(t, 1, countRows(t, &models.ProjectUnlock{}, "investor_id = ?", investor.ID))
	assert.EqualValues(t, 1, countRows(t, &models.AuditLog{}, "action = ?", models.AuditProjectUnlocked))

	again, err := svc.Unlock(investor.ID, project.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Unlock.ID, again.Unlock.ID)
	assert.Equal(t, 3, again.ViewsRemaining)
	assert.Equal(t, 3, packageOf(t, investor).ViewsRemaining())
	assert.EqualValues(t, 1, countRows(t, &models.ProjectUnlock{}, "investor_id = ?", investor.ID))

	view, err := svc.Access(investor.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StateUnlocked, view.Decision.State)
	assert.True(t, view.Snapshot.ExistingUnlock)
}

func TestUnlockGates(t *testing.T) {
	setupDB(t)
	svc := NewEntitlementService(NewAuditService())
	developer := createUser(t, models.RoleDeveloper)

	t.Run("no nda", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{})
		giveCredits(t, investor, 4, 0)

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.ErrorIs(t, err, apperr.ErrNDARequired)
		assert.Equal(t, 4, packageOf(t, investor).ViewsRemaining())
	})

	t.Run("expired nda", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{})
		signNDA(t, investor, time.Now().Add(-time.Minute))
		giveCredits(t, investor, 4, 0)

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.ErrorIs(t, err, apperr.ErrNDARequired)
	})

	t.Run("no credits", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{})
		signNDA(t, investor, time.Now().AddDate(1, 0, 0))
		giveCredits(t, investor, 4, 4)

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.ErrorIs(t, err, apperr.ErrNoCredits)
		assert.EqualValues(t, 0, countRows(t, &models.ProjectUnlock{}, "investor_id = ?", investor.ID))
		assert.Equal(t, 0, packageOf(t, investor).ViewsRemaining())
	})

	t.Run("no package at all", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{})
		signNDA(t, investor, time.Now().AddDate(1, 0, 0))

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.ErrorIs(t, err, apperr.ErrNoCredits)
	})

	t.Run("addendum", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{requireAddendum: true})
		signNDA(t, investor, time.Now().AddDate(1, 0, 0))
		giveCredits(t, investor, 4, 0)

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.ErrorIs(t, err, apperr.ErrAddendumRequired)

		nda := NewNDAService(testConfig(), NewAuditService())
		_, err = nda.SignAddendum(investor.ID, project.ID, Signature{SignedName: "Thandi Test", SignatureData: "sig"})
		require.NoError(t, err)

		res, err := svc.Unlock(investor.ID, project.ID, "")
		require.NoError(t, err)
		assert.Equal(t, 3, res.ViewsRemaining)
	})

	t.Run("unapproved project", func(t *testing.T) {
		investor := createUser(t, models.RoleInvestor)
		project := createProject(t, developer, projectOpts{status: models.ProjectStatusPending})
		signNDA(t, investor, time.Now().AddDate(1, 0, 0))
		giveCredits(t, investor, 4, 0)

		_, err := svc.Unlock(investor.ID, project.ID, "")
		assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
		assert.Equal(t, 4, packageOf(t, investor).ViewsRemaining())
	})
}

func TestAccessReportsNextStep(t *testing.T) {
	setupDB(t)
	svc := NewEntitlementService(NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	project := createProject(t, createUser(t, models.RoleDeveloper), projectOpts{})

	view, err := svc.Access(investor.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StateLockedNoNDA, view.Decision.State)
	assert.False(t, view.Snapshot.MasterNDAValid)

	signNDA(t, investor, time.Now().AddDate(1, 0, 0))
	view, err = svc.Access(investor.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StateLockedNeedsPayment, view.Decision.State)

	giveCredits(t, investor, 4, 0)
	view, err = svc.Access(investor.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StateEligible, view.Decision.State)
	assert.Equal(t, 4, view.Snapshot.ViewsRemaining)
}

func TestDashboardCountsUnlocks(t *testing.T) {
	setupDB(t)
	svc := NewEntitlementService(NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	developer := createUser(t, models.RoleDeveloper)
	signNDA(t, investor, time.Now().AddDate(1, 0, 0))
	giveCredits(t, investor, 4, 0)

	for i := 0; i < 2; i++ {
		p := createProject(t, developer, projectOpts{})
		_, err := svc.Unlock(investor.ID, p.ID, "")
		require.NoError(t, err)
	}

	unlocks, err := svc.ListUnlocks(investor.ID)
	require.NoError(t, err)
	assert.Len(t, unlocks, 2)

	pkg, err := svc.Package(investor.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, pkg.TotalViewsPurchased)
	assert.Equal(t, 2, pkg.ViewsUsed)
	assert.Equal(t, 2, pkg.ViewsRemaining)
}
