package middleware

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/services"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when an authenticated user repeats a key.
// Requests without the header run normally. 5xx responses are not stored so the client
// can retry them.
func Idempotency(store services.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(IdempotencyHeader)
		if header == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if len(header) > 255 {
			abort(c, apperr.New(apperr.CodeInvalid, "Idempotency-Key is too long"))
			return
		}

		userID, _ := GetUserID(c)
		key := "idem:" + userID.String() + ":" + c.Request.Method + ":" + c.FullPath() + ":" + header
		ctx := c.Request.Context()

		if resp, err := store.Get(ctx, key); err != nil {
			logger.L().Warn("idempotency lookup failed", zap.Error(err))
		} else if resp != nil {
			c.Header(ReplayedHeader, "true")
			c.Data(resp.Status, resp.ContentType, resp.Body)
			c.Abort()
			return
		}

		ok, err := store.Reserve(ctx, key)
		if err != nil {
			logger.L().Warn("idempotency reserve failed", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			abort(c, apperr.New(apperr.CodeConflict, "A request with this Idempotency-Key is already in progress"))
			return
		}
		defer func() {
			if err := store.Release(ctx, key); err != nil {
				logger.L().Warn("idempotency release failed", zap.Error(err))
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if status := w.Status(); status < http.StatusInternalServerError {
			if err := store.Put(ctx, key, services.StoredResponse{
				Status:      status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}); err != nil {
				logger.L().Warn("idempotency store failed", zap.Error(err))
			}
		}
	}
}
