package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withUser(id uuid.UUID, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxUserID, id)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

func serve(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestRateLimitMutatingOnly(t *testing.T) {
	r := gin.New()
	r.Use(withUser(uuid.New(), models.RoleInvestor), NewRateLimiter(1, 2).Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/x", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/x", nil).Code)
	w := serve(r, http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorCode(t, w))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	l := NewRateLimiter(1, 1)
	a, b := gin.New(), gin.New()
	a.Use(withUser(uuid.New(), models.RoleInvestor), l.Handler())
	b.Use(withUser(uuid.New(), models.RoleInvestor), l.Handler())
	for _, r := range []*gin.Engine{a, b} {
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	}

	assert.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(a, http.MethodPost, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, serve(b, http.MethodPost, "/x", nil).Code)

	l.gc(0)
	assert.Empty(t, l.visitors)
}

func idempotentRouter(store services.IdempotencyStore, hits *atomic.Int32, status int) *gin.Engine {
	r := gin.New()
	r.Use(withUser(uuid.New(), models.RoleInvestor), Idempotency(store))
	r.POST("/unlock", func(c *gin.Context) {
		n := hits.Add(1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func TestIdempotencyReplays(t *testing.T) {
	restore := logger.SetForTest(zap.NewNop())
	defer restore()
	var hits atomic.Int32
	r := idempotentRouter(services.NewMemoryIdempotencyStore(time.Hour), &hits, http.StatusCreated)
	key := http.Header{IdempotencyHeader: []string{"k-1"}}

	first := serve(r, http.MethodPost, "/unlock", key)
	second := serve(r, http.MethodPost, "/unlock", key)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.EqualValues(t, 1, hits.Load())

	serve(r, http.MethodPost, "/unlock", http.Header{IdempotencyHeader: []string{"k-2"}})
	serve(r, http.MethodPost, "/unlock", nil)
	assert.EqualValues(t, 3, hits.Load())
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	restore := logger.SetForTest(zap.NewNop())
	defer restore()
	var hits atomic.Int32
	r := idempotentRouter(services.NewMemoryIdempotencyStore(time.Hour), &hits, http.StatusServiceUnavailable)
	key := http.Header{IdempotencyHeader: []string{"k-1"}}

	serve(r, http.MethodPost, "/unlock", key)
	serve(r, http.MethodPost, "/unlock", key)
	assert.EqualValues(t, 2, hits.Load())
}

func TestIdempotencyInFlightConflict(t *testing.T) {
	restore := logger.SetForTest(zap.NewNop())
	defer restore()
	store := services.NewMemoryIdempotencyStore(time.Hour)
	userID := uuid.New()
	var hits atomic.Int32

	r := gin.New()
	r.Use(withUser(userID, models.RoleInvestor), Idempotency(store))
	r.POST("/unlock", func(c *gin.Context) {
		hits.Add(1)
		c.Status(http.StatusOK)
	})

	ok, err := store.Reserve(context.Background(), "idem:"+userID.String()+":POST:/unlock:k-1")
	require.NoError(t, err)
	require.True(t, ok)

	w := serve(r, http.MethodPost, "/unlock", http.Header{IdempotencyHeader: []string{"k-1"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, hits.Load())
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiration: 1, AppName: "AngelMatch"})
	user := &models.User{ID: uuid.New(), Email: "dev@example.com", Role: models.RoleDeveloper}
	token, err := auth.GenerateToken(user)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		id, _ := GetUserID(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/admin", AuthMiddleware(auth), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Token " + token}}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", http.Header{"Authorization": []string{"Bearer nope"}}).Code)

	w = serve(r, http.MethodGet, "/admin", http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	auth := services.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiration: 1})
	r := gin.New()
	r.GET("/projects", OptionalAuthMiddleware(auth), func(c *gin.Context) {
		_, ok := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	w := serve(r, http.MethodGet, "/projects", http.Header{"Authorization": []string{"Bearer garbage"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
}
