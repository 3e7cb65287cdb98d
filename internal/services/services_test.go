package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// setupDB points the package at a fresh in-memory sqlite database.
func setupDB(t *testing.T) {
	t.Helper()
	restore := logger.SetForTest(zap.NewNop())
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared", gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		restore()
	})
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "test-secret",
		JWTExpiration:       1,
		ViewPackagePrice:    50000,
		ViewPackageCurrency: "usd",
		ViewPackageSize:     4,
		NDAVersion:          "1.0",
		NDAValidityMonths:   12,
		CommissionRate:      0.05,
		AutoExecuteSAFE:     true,
		AppName:             "AngelMatch",
		AppURL:              "http://localhost:8080",
	}
}

type sent struct {
	To     uuid.UUID
	Notice Notice
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeNotifier) Notify(to *models.User, n Notice) {
	if to == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{To: to.ID, Notice: n})
}

func (f *fakeNotifier) to(id uuid.UUID) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notice
	for _, s := range f.sent {
		if s.To == id {
			out = append(out, s.Notice)
		}
	}
	return out
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) URL(_ context.Context, key string) (string, error) {
	return "mem://" + key, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func createUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		FirstName:    string(role),
		LastName:     "Test",
		IsActive:     true,
	}
	require.NoError(t, database.GetDB().Create(u).Error)
	return u
}

type projectOpts struct {
	status          models.ProjectStatus
	requireAddendum bool
	min, max        float64
}

func createProject(t *testing.T, developer *models.User, opts projectOpts) *models.Project {
	t.Helper()
	db := database.GetDB()
	cat := &models.Category{Name: "Cat " + uuid.NewString()}
	require.NoError(t, db.Create(cat).Error)

	if opts.status == "" {
		opts.status = models.ProjectStatusApproved
	}
	p := &models.Project{
		DeveloperID:       developer.ID,
		CategoryID:        cat.ID,
		Title:             "Solar Kiosks",
		Description:       "Pay-as-you-go solar for township spaza shops",
		MinimumInvestment: opts.min,
		MaximumInvestment: opts.max,
		Status:            opts.status,
	}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, db.Create(&models.ProjectNDAConfig{
		ProjectID:       p.ID,
		RequireAddendum: opts.requireAddendum,
		CustomClauses:   "No contact with listed suppliers.",
	}).Error)
	return p
}

func giveCredits(t *testing.T, investor *models.User, total, used int) {
	t.Helper()
	require.NoError(t, database.GetDB().Create(&models.PaymentPackage{
		InvestorID:          investor.ID,
		TotalViewsPurchased: total,
		ViewsUsed:           used,
	}).Error)
}

func signNDA(t *testing.T, investor *models.User, expires time.Time) {
	t.Helper()
	require.NoError(t, database.GetDB().Create(&models.MasterNDA{
		InvestorID:    investor.ID,
		Version:       "1.0",
		SignatureData: "data:image/png;base64,AAAA",
		SignedName:    investor.FirstName,
		SignedAt:      time.Now().Add(-time.Hour),
		ExpiresAt:     &expires,
	}).Error)
}

func packageOf(t *testing.T, investor *models.User) *models.PaymentPackage {
	t.Helper()
	var pkg models.PaymentPackage
	require.NoError(t, database.GetDB().Where("investor_id = ?", investor.ID).First(&pkg).Error)
	return &pkg
}

func countRows(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.GetDB().Model(model).Where(query, args...).Count(&n).Error)
	return n
}
