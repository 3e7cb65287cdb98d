package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

type nopNotifier struct{}

func (nopNotifier) Notify(*models.User, services.Notice) {}

type testServer struct {
	cfg       *config.Config
	router    *gin.Engine
	svc       *Services
	developer *models.User
	investor  *models.User
	project   *models.Project
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Cleanup(logger.SetForTest(zap.NewNop()))

	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared", gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	cfg := &config.Config{
		JWTSecret:           "test-secret",
		JWTExpiration:       1,
		ViewPackagePrice:    50000,
		ViewPackageCurrency: "usd",
		ViewPackageSize:     4,
		NDAVersion:          "1.0",
		NDAValidityMonths:   12,
		CommissionRate:      0.05,
		AutoExecuteSAFE:     true,
		UploadDir:           t.TempDir(),
		AppName:             "AngelMatch",
		IdempotencyTTL:      time.Hour,
	}
	audit := services.NewAuditService()
	docs := services.NewDocumentService(cfg)
	notifier := nopNotifier{}
	svc := &Services{
		Auth:        services.NewAuthService(cfg),
		NDA:         services.NewNDAService(cfg, audit),
		Payment:     services.NewPaymentService(cfg, audit),
		Entitlement: services.NewEntitlementService(audit),
		SAFENotes:   services.NewSAFENoteService(cfg, audit, docs, nil, notifier),
		Meetings:    services.NewMeetingService(audit, notifier),
		Commissions: services.NewCommissionService(audit),
		Projects:    services.NewProjectService(audit, notifier),
		Audit:       audit,
		Documents:   docs,
		Idempotency: services.NewMemoryIdempotencyStore(time.Hour),
	}

	s := &testServer{cfg: cfg, router: SetupRouter(cfg, svc, middleware.NewRateLimiter(100, 100)), svc: svc}
	s.developer = s.user(t, models.RoleDeveloper)
	s.investor = s.user(t, models.RoleInvestor)

	cat := &models.Category{Name: "Fintech"}
	require.NoError(t, db.Create(cat).Error)
	s.project = &models.Project{
		DeveloperID:       s.developer.ID,
		CategoryID:        cat.ID,
		Title:             "Ledgerly",
		Description:       "Bookkeeping for informal traders",
		MinimumInvestment: 10000,
		Status:            models.ProjectStatusApproved,
	}
	require.NoError(t, db.Create(s.project).Error)
	return s
}

func (s *testServer) user(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", Role: role, FirstName: "Test", IsActive: true}
	require.NoError(t, database.GetDB().Create(u).Error)
	return u
}

func (s *testServer) do(t *testing.T, as *models.User, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	if as != nil {
		token, err := s.svc.Auth.GenerateToken(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "application/pdf" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) qualify(t *testing.T) {
	t.Helper()
	db := database.GetDB()
	expires := time.Now().AddDate(1, 0, 0)
	require.NoError(t, db.Create(&models.MasterNDA{
		InvestorID:    s.investor.ID,
		Version:       "1.0",
		SignatureData: "sig",
		SignedName:    "Test",
		SignedAt:      time.Now().Add(-time.Minute),
		ExpiresAt:     &expires,
	}).Error)
	require.NoError(t, db.Create(&models.PaymentPackage{InvestorID: s.investor.ID, TotalViewsPurchased: 4}).Error)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, nil, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["db_connected"])
}

func TestProjectTeaserUntilUnlocked(t *testing.T) {
	s := newTestServer(t)
	path := "/api/projects/" + s.project.ID.String()

	w, body := s.do(t, s.investor, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["full_access"])
	access := body["access"].(map[string]any)
	assert.Equal(t, "locked_no_nda", access["state"])

	w, body = s.do(t, s.investor, http.MethodPost, path+"/unlock", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "nda_required", body["code"])

	s.qualify(t)
	w, body = s.do(t, s.investor, http.MethodGet, path+"/access", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eligible", body["state"])
	assert.Equal(t, true, body["can_unlock"])
	assert.EqualValues(t, 4, body["views_remaining"])

	key := http.Header{middleware.IdempotencyHeader: []string{"unlock-1"}}
	w, body = s.do(t, s.investor, http.MethodPost, path+"/unlock", nil, key)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 3, body["views_remaining"])

	w, _ = s.do(t, s.investor, http.MethodPost, path+"/unlock", nil, key)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(middleware.ReplayedHeader))

	w, body = s.do(t, s.investor, http.MethodPost, path+"/unlock", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["created"])
	assert.EqualValues(t, 3, body["views_remaining"])

	w, body = s.do(t, s.investor, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["full_access"])
	assert.Equal(t, "Bookkeeping for informal traders", body["project"].(map[string]any)["description"])
}

func TestRolesGuardRoutes(t *testing.T) {
	s := newTestServer(t)
	path := "/api/projects/" + s.project.ID.String() + "/unlock"

	w, _ := s.do(t, nil, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, s.developer, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])

	w, _ = s.do(t, s.investor, http.MethodGet, "/api/admin/commissions", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOfferValidationMeta(t *testing.T) {
	s := newTestServer(t)
	s.qualify(t)
	_, err := s.svc.Entitlement.Unlock(s.investor.ID, s.project.ID, "")
	require.NoError(t, err)

	w, body := s.do(t, s.investor, http.MethodPost, "/api/safe-notes", map[string]any{
		"project_id":        s.project.ID,
		"investment_amount": 500,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", body["code"])
	assert.NotEmpty(t, body["violations"])

	w, body = s.do(t, s.investor, http.MethodPost, "/api/safe-notes", map[string]any{
		"project_id":        s.project.ID,
		"investment_amount": 25000,
		"valuation_cap":     4000000,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	note := body["safe_note"].(map[string]any)
	assert.Equal(t, "draft", note["status"])

	w, body = s.do(t, s.developer, http.MethodGet, "/api/safe-notes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["total"])
}

func TestMeetingThroughAPI(t *testing.T) {
	s := newTestServer(t)
	s.qualify(t)
	_, err := s.svc.Entitlement.Unlock(s.investor.ID, s.project.ID, "")
	require.NoError(t, err)

	w, body := s.do(t, s.investor, http.MethodPost, "/api/meetings", map[string]any{
		"project_id": s.project.ID,
		"subject":    "Intro call",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, body)
	id := body["meeting"].(map[string]any)["id"].(string)

	w, _ = s.do(t, s.developer, http.MethodPost, "/api/meetings/"+id+"/messages", map[string]any{"content": "Welcome"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = s.do(t, s.investor, http.MethodGet, "/api/messages/unread-count", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["unread"])

	w, body = s.do(t, s.developer, http.MethodPost, "/api/meetings/"+id+"/accept", map[string]any{
		"scheduled_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "accepted", body["meeting"].(map[string]any)["status"])
}

func TestRateLimitIsPerUser(t *testing.T) {
	s := newTestServer(t)
	s.router = SetupRouter(s.cfg, s.svc, middleware.NewRateLimiter(0.01, 1))
	other := s.user(t, models.RoleInvestor)
	path := "/api/projects/" + s.project.ID.String() + "/unlock"

	// both investors share the test client IP
	w, _ := s.do(t, s.investor, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, other, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "a second user gets its own bucket")

	w, body := s.do(t, s.investor, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body["code"])
}
