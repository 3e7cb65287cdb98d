package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/models"
)

func pendingPayment(t *testing.T, investor *models.User, views int) *models.Payment {
	t.Helper()
	p := &models.Payment{
		InvestorID:   investor.ID,
		Amount:       50000,
		Currency:     "usd",
		ViewsGranted: views,
		Status:       models.PaymentStatusPending,
	}
	require.NoError(t, database.GetDB().Create(p).Error)
	return p
}

func TestApplySucceedGrantsCreditsOnce(t *testing.T) {
	setupDB(t)
	svc := NewPaymentService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	payment := pendingPayment(t, investor, 4)

	got, err := svc.Apply(payment.ID, models.PaymentEventSucceed, "https://pay.example/receipt")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, got.Status)
	assert.Equal(t, "https://pay.example/receipt", got.ReceiptURL)
	assert.NotNil(t, got.SucceededAt)
	assert.Equal(t, 4, packageOf(t, investor).TotalViewsPurchased)

	// webhook redelivery
	got, err = svc.Apply(payment.ID, models.PaymentEventSucceed, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, got.Status)
	assert.Equal(t, 4, packageOf(t, investor).TotalViewsPurchased)
	assert.EqualValues(t, 1, countRows(t, &models.AuditLog{}, "action = ?", models.AuditPaymentSucceeded))
}

func TestApplyRefundMayGoNegative(t *testing.T) {
	setupDB(t)
	svc := NewPaymentService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	payment := pendingPayment(t, investor, 4)

	_, err := svc.Apply(payment.ID, models.PaymentEventSucceed, "")
	require.NoError(t, err)
	require.NoError(t, database.GetDB().Model(&models.PaymentPackage{}).
		Where("investor_id = ?", investor.ID).Update("views_used", 3).Error)

	got, err := svc.Apply(payment.ID, models.PaymentEventRefund, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, got.Status)
	assert.NotNil(t, got.RefundedAt)

	pkg := packageOf(t, investor)
	assert.Equal(t, 0, pkg.TotalViewsPurchased)
	assert.Equal(t, -3, pkg.ViewsRemaining())
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	setupDB(t)
	svc := NewPaymentService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)

	failed := pendingPayment(t, investor, 4)
	_, err := svc.Apply(failed.ID, models.PaymentEventFail, "")
	require.NoError(t, err)

	_, err = svc.Apply(failed.ID, models.PaymentEventSucceed, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))

	pending := pendingPayment(t, investor, 4)
	_, err = svc.Apply(pending.ID, models.PaymentEventRefund, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))

	_, err = svc.Apply(uuid.New(), models.PaymentEventSucceed, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	var pkgs int64
	database.GetDB().Model(&models.PaymentPackage{}).Where("investor_id = ?", investor.ID).Count(&pkgs)
	assert.Zero(t, pkgs)
}

func TestSignMaster(t *testing.T) {
	setupDB(t)
	svc := NewNDAService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	sig := Signature{SignedName: " Thandi Test ", SignatureData: "data:image/png;base64,AAAA", IPAddress: "10.0.0.2"}

	_, err := svc.SignMaster(investor.ID, Signature{SignedName: "Thandi Test"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))

	nda, err := svc.SignMaster(investor.ID, sig)
	require.NoError(t, err)
	assert.Equal(t, "Thandi Test", nda.SignedName)
	require.NotNil(t, nda.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 12, 0), *nda.ExpiresAt, time.Minute)
	assert.NotEmpty(t, nda.DocumentHash)

	status, err := svc.Status(investor.ID)
	require.NoError(t, err)
	assert.True(t, status.Signed)
	assert.True(t, status.Valid)

	_, err = svc.SignMaster(investor.ID, sig)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
	assert.EqualValues(t, 1, countRows(t, &models.MasterNDA{}, "investor_id = ?", investor.ID))
}

func TestSignMasterAfterExpiry(t *testing.T) {
	setupDB(t)
	svc := NewNDAService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	signNDA(t, investor, time.Now().Add(-time.Hour))

	status, err := svc.Status(investor.ID)
	require.NoError(t, err)
	assert.True(t, status.Signed)
	assert.False(t, status.Valid)

	_, err = svc.SignMaster(investor.ID, Signature{SignedName: "Thandi", SignatureData: "sig"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, countRows(t, &models.MasterNDA{}, "investor_id = ?", investor.ID))
}

func TestSignAddendumNeedsMaster(t *testing.T) {
	setupDB(t)
	svc := NewNDAService(testConfig(), NewAuditService())
	investor := createUser(t, models.RoleInvestor)
	developer := createUser(t, models.RoleDeveloper)
	gated := createProject(t, developer, projectOpts{requireAddendum: true})
	open := createProject(t, developer, projectOpts{})

	_, err := svc.SignAddendum(investor.ID, gated.ID, Signature{SignedName: "Thandi"})
	assert.ErrorIs(t, err, apperr.ErrNDARequired)

	signNDA(t, investor, time.Now().AddDate(1, 0, 0))
	_, err = svc.SignAddendum(investor.ID, open.ID, Signature{SignedName: "Thandi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))

	sig, err := svc.SignAddendum(investor.ID, gated.ID, Signature{SignedName: "Thandi"})
	require.NoError(t, err)
	assert.NotEmpty(t, sig.ClausesHash)

	_, err = svc.SignAddendum(investor.ID, gated.ID, Signature{SignedName: "Thandi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}
